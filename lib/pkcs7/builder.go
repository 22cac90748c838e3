/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pkcs7

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"

	"github.com/sassoftware/relicsign/lib/x509tools"
)

// signingInputter is implemented by content types, such as Authenticode's
// IndirectData, whose messageDigest attribute is computed over something
// other than their own full DER encoding.
type signingInputter interface {
	SigningInput() ([]byte, error)
}

// SignatureBuilder assembles a single-signer SignedData: it computes the
// messageDigest of whatever content SetContent was given, lets the caller
// layer on additional authenticated attributes, and produces the final
// signature over the canonically sorted attribute set.
type SignatureBuilder struct {
	signer crypto.Signer
	chain  []*x509.Certificate
	hash   crypto.Hash

	contentOID  asn1.ObjectIdentifier
	content     interface{}
	digestInput []byte

	attrs AttributeList
	err   error
}

// NewBuilder starts a SignatureBuilder that will sign with signer, embed
// chain (chain[0] must hold the public key matching signer), and hash the
// content and attributes with hash.
func NewBuilder(signer crypto.Signer, chain []*x509.Certificate, hash crypto.Hash) *SignatureBuilder {
	b := &SignatureBuilder{signer: signer, chain: chain, hash: hash}
	if len(chain) == 0 || !x509tools.SameKey(signer.Public(), chain[0].PublicKey) {
		b.err = errors.New("pkcs7: first certificate must match private key")
	}
	return b
}

// SetContent sets the SignedData's embedded content to content, tagged
// with contentType. If content implements SigningInput, that method's
// return value is hashed to produce the messageDigest attribute; otherwise
// content's full DER encoding is hashed.
func (b *SignatureBuilder) SetContent(contentType asn1.ObjectIdentifier, content interface{}) error {
	if b.err != nil {
		return b.err
	}
	var digestInput []byte
	if si, ok := content.(signingInputter); ok {
		input, err := si.SigningInput()
		if err != nil {
			return err
		}
		digestInput = input
	} else {
		der, err := marshalAny(content)
		if err != nil {
			return err
		}
		digestInput = der
	}
	b.contentOID = contentType
	b.content = content
	b.digestInput = digestInput
	return nil
}

// AddAuthenticatedAttribute appends an authenticated attribute holding
// value, DER-encoded the same way SetContent digests its content.
func (b *SignatureBuilder) AddAuthenticatedAttribute(oid asn1.ObjectIdentifier, value interface{}) error {
	if b.err != nil {
		return b.err
	}
	return b.attrs.Add(oid, value)
}

// Sign finalizes the SignedData: it adds the contentType and messageDigest
// attributes (unless the caller already supplied them), signs the
// canonical DER of the authenticated attribute set, and returns the
// completed ContentInfoSignedData.
func (b *SignatureBuilder) Sign() (*ContentInfoSignedData, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.content == nil {
		return nil, errors.New("pkcs7: SetContent was not called")
	}
	if !b.hash.Available() {
		return nil, errors.New("pkcs7: requested hash is not available")
	}
	digestAlg, ok := x509tools.PkixDigestAlgorithm(b.hash)
	if !ok {
		return nil, errors.New("pkcs7: unsupported digest algorithm")
	}
	pkeyAlg, ok := x509tools.PkixPublicKeyAlgorithm(b.signer.Public())
	if !ok {
		return nil, errors.New("pkcs7: unsupported public key algorithm")
	}

	attrs := b.attrs
	if !attrs.Exists(OidAttributeContentType) {
		if err := attrs.Add(OidAttributeContentType, b.contentOID); err != nil {
			return nil, err
		}
	}
	if !attrs.Exists(OidAttributeMessageDigest) {
		w := b.hash.New()
		w.Write(b.digestInput)
		if err := attrs.Add(OidAttributeMessageDigest, w.Sum(nil)); err != nil {
			return nil, err
		}
	}
	sorted, err := attrs.sorted()
	if err != nil {
		return nil, err
	}
	signedBytes, err := sorted.Bytes()
	if err != nil {
		return nil, err
	}
	// Bytes returns the SET's own TLV, and the hash is taken over all of
	// it, SET tag included.
	w := b.hash.New()
	w.Write(signedBytes)
	digest := w.Sum(nil)

	sig, err := b.signer.Sign(rand.Reader, digest, b.hash)
	if err != nil {
		return nil, err
	}

	cinfo, err := NewContentInfo(b.contentOID, b.content)
	if err != nil {
		return nil, err
	}
	signerInfo := SignerInfo{
		Version: 1,
		IssuerAndSerialNumber: IssuerAndSerial{
			IssuerName:   asn1.RawValue{FullBytes: b.chain[0].RawIssuer},
			SerialNumber: b.chain[0].SerialNumber,
		},
		DigestAlgorithm:           digestAlg,
		AuthenticatedAttributes:   sorted,
		DigestEncryptionAlgorithm: pkeyAlg,
		EncryptedDigest:           sig,
	}
	return &ContentInfoSignedData{
		ContentType: OidSignedData,
		Content: SignedData{
			Version:                    1,
			DigestAlgorithmIdentifiers: []pkix.AlgorithmIdentifier{digestAlg},
			ContentInfo:                cinfo,
			Certificates:               MarshalCertificates(b.chain),
			SignerInfos:                []SignerInfo{signerInfo},
		},
	}, nil
}
