//
// Copyright (c) SAS Institute Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package authenticode

import (
	"crypto"
	"encoding/asn1"
	"errors"

	"github.com/sassoftware/relicsign/lib/x509tools"
)

// IndirectData is an SpcIndirectDataContent: the Microsoft wrapper that
// carries a format-specific discriminator (Data.Type/Data.Value) and the
// digest of the normalized container (MessageDigest).
type IndirectData struct {
	ContentType asn1.ObjectIdentifier // Data.Type: the PE/CAB/MSI discriminator OID
	Value       []byte                // already-DER-encoded Data.Value (ANY DEFINED BY Type)
	DigestAlg   crypto.Hash
	Digest      []byte
}

// NewPEIndirectData builds the SpcPeImageData-flavored indirect content
// for a PE image whose message imprint is imprint. pageHashAttr, if
// non-nil, is embedded as a moniker in place of the usual obsolete file
// link, carrying the per-page hash table alongside the image digest.
func NewPEIndirectData(imprint []byte, hash crypto.Hash, pageHashAttr *SpcAttributePageHashes) (*IndirectData, error) {
	file := obsoleteLink()
	imageData := SpcPeImageData{Flags: []byte{0}, File: file}
	if pageHashAttr != nil {
		serialized, err := asn1.Marshal(*pageHashAttr)
		if err != nil {
			return nil, err
		}
		setDER, err := wrap(asn1.ClassUniversal, asn1.TagSet, true, serialized)
		if err != nil {
			return nil, err
		}
		imageData.File = SpcLink{Moniker: &SpcSerializedObject{
			ClassID:        SpcUUIDPageHashes,
			SerializedData: setDER,
		}}
	}
	value, err := imageData.Marshal()
	if err != nil {
		return nil, err
	}
	return &IndirectData{
		ContentType: OidSpcPeImageData,
		Value:       value,
		DigestAlg:   hash,
		Digest:      imprint,
	}, nil
}

// NewCabIndirectData builds the SpcLink-flavored indirect content for a
// CAB archive whose message imprint is imprint.
func NewCabIndirectData(imprint []byte, hash crypto.Hash) (*IndirectData, error) {
	value, err := obsoleteLink().Marshal()
	if err != nil {
		return nil, err
	}
	return &IndirectData{
		ContentType: OidSpcCabData,
		Value:       value,
		DigestAlg:   hash,
		Digest:      imprint,
	}, nil
}

// NewMsiIndirectData builds the SpcSipInfo-flavored indirect content for
// an MSI compound file whose message imprint is imprint.
func NewMsiIndirectData(imprint []byte, hash crypto.Hash, sip SpcSipInfo) (*IndirectData, error) {
	value, err := sip.Marshal()
	if err != nil {
		return nil, err
	}
	return &IndirectData{
		ContentType: OidSpcSipInfo,
		Value:       value,
		DigestAlg:   hash,
		Digest:      imprint,
	}, nil
}

// SpcIndirectDataContentPe is the parsed shape of a SpcIndirectDataContent
// found in a PE or CAB signature. The format-specific Data field only
// matters to the signer that produced it, so verification leaves it as
// raw DER and reads just the digest out of MessageDigest.
type SpcIndirectDataContentPe struct {
	Data          asn1.RawValue
	MessageDigest DigestInfo
}

// SpcIndirectDataContentMsi is the MSI counterpart of
// SpcIndirectDataContentPe, whose Data field holds a SpcSipInfo instead of
// a SpcPeImageData or obsolete SpcLink.
type SpcIndirectDataContentMsi struct {
	Data          asn1.RawValue
	MessageDigest DigestInfo
}

// marshalData builds the inner "data SpcAttributeTypeAndOptionalValue"
// SEQUENCE.
func (d *IndirectData) marshalData() ([]byte, error) {
	return asn1.Marshal(struct {
		Type  asn1.ObjectIdentifier
		Value asn1.RawValue
	}{d.ContentType, rawValueOf(d.Value)})
}

func rawValueOf(der []byte) asn1.RawValue {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err == nil {
		raw.FullBytes = der
	}
	return raw
}

// Marshal produces the full SpcIndirectDataContent DER.
func (d *IndirectData) Marshal() ([]byte, error) {
	dataDER, err := d.marshalData()
	if err != nil {
		return nil, err
	}
	alg, ok := x509tools.PkixDigestAlgorithm(d.DigestAlg)
	if !ok {
		return nil, errors.New("authenticode: unsupported digest algorithm")
	}
	digestDER, err := asn1.Marshal(DigestInfo{DigestAlgorithm: alg, Digest: d.Digest})
	if err != nil {
		return nil, err
	}
	return asn1.Marshal(struct {
		Data          asn1.RawValue
		MessageDigest asn1.RawValue
	}{rawValueOf(dataDER), rawValueOf(digestDER)})
}

// SigningInput returns the octets that get digested into the
// AuthenticatedAttributes' messageDigest: the full IndirectData DER with
// its outermost SEQUENCE tag+length stripped off, leaving the
// concatenation of the "data" and "messageDigest" fields. This mirrors
// osslsigncode's approach of signing the SpcIndirectDataContent's content
// octets rather than its full TLV encoding.
func (d *IndirectData) SigningInput() ([]byte, error) {
	full, err := d.Marshal()
	if err != nil {
		return nil, err
	}
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(full, &raw); err != nil {
		return nil, err
	}
	return raw.Bytes, nil
}
