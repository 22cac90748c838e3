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

// Package pkcs7 implements the subset of CMS/PKCS#7 SignedData needed to
// produce and verify Authenticode signatures: single-signer, no
// enveloped or digested content types, DER only.
package pkcs7

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
)

var (
	OidData                   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OidSignedData             = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OidAttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OidAttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OidAttributeSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
)

// ContentInfo is ContentInfo ::= SEQUENCE { contentType OBJECT IDENTIFIER,
// content [0] EXPLICIT ANY DEFINED BY contentType OPTIONAL }.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// NewContentInfo builds a ContentInfo with contentType type. content may be
// nil (a detached/absent content), a []byte (embedded as an OCTET
// STRING), or any value that asn1.Marshal accepts, or a type implementing
// Marshal() ([]byte, error).
func NewContentInfo(contentType asn1.ObjectIdentifier, content interface{}) (ContentInfo, error) {
	ci := ContentInfo{ContentType: contentType}
	if content == nil {
		return ci, nil
	}
	inner, err := marshalAny(content)
	if err != nil {
		return ContentInfo{}, err
	}
	ci.Content = asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: inner}
	return ci, nil
}

// Bytes returns the embedded content's own TLV encoding, or nil if no
// content is embedded (a detached signature).
func (ci ContentInfo) Bytes() ([]byte, error) {
	if len(ci.Content.Bytes) == 0 {
		return nil, nil
	}
	return ci.Content.Bytes, nil
}

// Unmarshal decodes the embedded content into out.
func (ci ContentInfo) Unmarshal(out interface{}) error {
	if len(ci.Content.Bytes) == 0 {
		return errNoContent
	}
	_, err := asn1.Unmarshal(ci.Content.Bytes, out)
	return err
}

// ContentInfoSignedData is a ContentInfo whose content is always a
// SignedData, i.e. the top-level object of a detached or embedded PKCS#7
// signature.
type ContentInfoSignedData struct {
	ContentType asn1.ObjectIdentifier
	Content     SignedData `asn1:"explicit,optional,tag:0"`
}

// Unmarshal decodes the DER of a ContentInfoSignedData, e.g. a PKCS#7
// signature read back off disk or out of a cache.
func Unmarshal(der []byte) (*ContentInfoSignedData, error) {
	psd := new(ContentInfoSignedData)
	if _, err := asn1.Unmarshal(der, psd); err != nil {
		return nil, err
	}
	return psd, nil
}

// Marshal returns the DER encoding of psd.
func (psd *ContentInfoSignedData) Marshal() ([]byte, error) {
	return asn1.Marshal(*psd)
}

// SignedData is SignedData ::= SEQUENCE { version INTEGER,
// digestAlgorithms DigestAlgorithmIdentifiers, contentInfo ContentInfo,
// certificates [0] IMPLICIT ExtendedCertificatesAndCertificates OPTIONAL,
// crls [1] IMPLICIT CertificateRevocationLists OPTIONAL,
// signerInfos SignerInfos }.
type SignedData struct {
	Version                    int                        `asn1:"default:1"`
	DigestAlgorithmIdentifiers []pkix.AlgorithmIdentifier `asn1:"set"`
	ContentInfo                ContentInfo
	Certificates               RawCertificates        `asn1:"optional,tag:0"`
	CRLs                       []pkix.CertificateList `asn1:"optional,tag:1"`
	SignerInfos                []SignerInfo           `asn1:"set"`
}

// RawCertificates holds the DER of the certificates [0] field verbatim,
// tag and length included, since the certificate set is usually passed
// straight through from an existing signature or straight out of a
// loaded chain without needing to round-trip through x509.Certificate.
type RawCertificates struct {
	Raw asn1.RawContent
}

// Attribute is Attribute ::= SEQUENCE { type OBJECT IDENTIFIER,
// values SET OF ANY DEFINED BY type }, restricted to exactly one value,
// which is all Authenticode ever produces or expects.
type Attribute struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue
}

// AttributeList is a SignerInfo's set of (un)authenticated attributes.
type AttributeList []Attribute

// SignerInfo is SignerInfo ::= SEQUENCE { version INTEGER,
// issuerAndSerialNumber IssuerAndSerialNumber,
// digestAlgorithm DigestAlgorithmIdentifier,
// authenticatedAttributes [0] IMPLICIT Attributes OPTIONAL,
// digestEncryptionAlgorithm DigestEncryptionAlgorithmIdentifier,
// encryptedDigest EncryptedDigest,
// unauthenticatedAttributes [1] IMPLICIT Attributes OPTIONAL }.
type SignerInfo struct {
	Version                   int `asn1:"default:1"`
	IssuerAndSerialNumber     IssuerAndSerial
	DigestAlgorithm           pkix.AlgorithmIdentifier
	AuthenticatedAttributes   AttributeList `asn1:"optional,set,tag:0"`
	DigestEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedDigest           []byte
	UnauthenticatedAttributes AttributeList `asn1:"optional,set,tag:1"`
}

// IssuerAndSerial identifies a signer's certificate by issuer DN and
// serial number, as PKCS#7 predates subject key identifiers.
type IssuerAndSerial struct {
	IssuerName   asn1.RawValue
	SerialNumber *big.Int
}
