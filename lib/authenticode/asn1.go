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
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"unicode/utf16"
)

// Microsoft Authenticode object identifiers. See
// http://www.msfn.org/board/topic/155635-authenticode-pe/ and the
// Authenticode_PE.docx spec for the canonical assignment of these arcs.
var (
	OidSpcIndirectDataContent = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 4}
	OidSpcPeImageData         = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 15}
	OidSpcCabData             = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 25}
	OidSpcSipInfo             = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 30}
	OidSpcSpOpusInfo          = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 12}
	OidSpcStatementType       = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 11}
	OidSpcIndividualPurpose   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 21}
	OidSpcCommercialPurpose   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 22}
	OidSpcMsJavaSomething     = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 15, 1}
	OidSpcPageHashV1          = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 3, 1}
	OidSpcPageHashV2          = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 3, 2}

	// GUID that tags a SpcSerializedObject moniker as a page-hash blob,
	// per the Authenticode PE spec appendix.
	SpcUUIDPageHashes = []byte{0xa6, 0xb5, 0x86, 0xd5, 0xb4, 0xa1, 0x24, 0x66, 0xae, 0x05, 0xa2, 0x17, 0xda, 0x8e, 0x60, 0xd6}
)

// reTag re-encodes the DER value in der under a different class/tag/
// constructed-ness, without touching its content octets. Used throughout
// this file to build the IMPLICIT- and EXPLICIT-tagged CHOICE alternatives
// the Microsoft structures are full of, which encoding/asn1's struct tags
// cannot express on their own.
func reTag(der []byte, class, tag int, compound bool) ([]byte, error) {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return nil, err
	}
	return asn1.Marshal(asn1.RawValue{Class: class, Tag: tag, IsCompound: compound, Bytes: raw.Bytes})
}

func wrap(class, tag int, compound bool, content []byte) ([]byte, error) {
	return asn1.Marshal(asn1.RawValue{Class: class, Tag: tag, IsCompound: compound, Bytes: content})
}

// SpcString is the CHOICE { unicode [0] BMPString, ascii [1] IA5String }.
// Exactly one of Unicode/Ascii should be set; NewSpcString builds the
// BMPString form, which is what the signer always emits.
type SpcString struct {
	Unicode []byte // big-endian UTF-16, i.e. BMPString content octets
	Ascii   string
}

// NewSpcString builds an SpcString holding s as a BMPString.
func NewSpcString(s string) SpcString {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		buf[i*2] = byte(u >> 8)
		buf[i*2+1] = byte(u)
	}
	return SpcString{Unicode: buf}
}

func (s SpcString) Marshal() ([]byte, error) {
	if s.Unicode != nil {
		return wrap(asn1.ClassContextSpecific, 0, false, s.Unicode)
	}
	return wrap(asn1.ClassContextSpecific, 1, false, []byte(s.Ascii))
}

// String decodes an SpcString for display.
func (s SpcString) String() string {
	if s.Unicode != nil {
		units := make([]uint16, len(s.Unicode)/2)
		for i := range units {
			units[i] = uint16(s.Unicode[i*2])<<8 | uint16(s.Unicode[i*2+1])
		}
		return string(utf16.Decode(units))
	}
	return s.Ascii
}

func unmarshalSpcString(der []byte) (SpcString, error) {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return SpcString{}, err
	}
	switch raw.Tag {
	case 0:
		return SpcString{Unicode: raw.Bytes}, nil
	case 1:
		return SpcString{Ascii: string(raw.Bytes)}, nil
	default:
		return SpcString{}, errors.New("authenticode: invalid SpcString tag")
	}
}

// SpcSerializedObject is classId OCTET STRING, serializedData OCTET STRING.
type SpcSerializedObject struct {
	ClassID        []byte
	SerializedData []byte
}

func (o SpcSerializedObject) marshalBody() ([]byte, error) {
	return asn1.Marshal(struct {
		ClassID        []byte
		SerializedData []byte
	}{o.ClassID, o.SerializedData})
}

// SpcLink is the CHOICE { url [0] IA5String, moniker [1] SpcSerializedObject,
// file [2] EXPLICIT SpcString }. Exactly one alternative should be set.
type SpcLink struct {
	URL     string
	Moniker *SpcSerializedObject
	File    *SpcString
}

func (l SpcLink) Marshal() ([]byte, error) {
	switch {
	case l.File != nil:
		inner, err := l.File.Marshal()
		if err != nil {
			return nil, err
		}
		return wrap(asn1.ClassContextSpecific, 2, true, inner)
	case l.Moniker != nil:
		body, err := l.Moniker.marshalBody()
		if err != nil {
			return nil, err
		}
		retagged, err := reTag(body, asn1.ClassContextSpecific, 1, true)
		if err != nil {
			return nil, err
		}
		return retagged, nil
	default:
		return wrap(asn1.ClassContextSpecific, 0, false, []byte(l.URL))
	}
}

func unmarshalSpcLink(der []byte) (SpcLink, error) {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return SpcLink{}, err
	}
	switch raw.Tag {
	case 0:
		return SpcLink{URL: string(raw.Bytes)}, nil
	case 1:
		var obj SpcSerializedObject
		if _, err := asn1.Unmarshal(append([]byte{0x30, byte(len(raw.Bytes))}, raw.Bytes...), &obj); err != nil {
			return SpcLink{}, err
		}
		return SpcLink{Moniker: &obj}, nil
	case 2:
		s, err := unmarshalSpcString(raw.Bytes)
		if err != nil {
			return SpcLink{}, err
		}
		return SpcLink{File: &s}, nil
	default:
		return SpcLink{}, errors.New("authenticode: invalid SpcLink tag")
	}
}

// obsoleteLink is the fixed "<<<Obsolete>>>" SpcLink literal every signer
// emits in place of an actual file moniker; it is the value osslsigncode
// and signtool both hard-code for the "file" field of SpcPeImageData and
// the CAB/MSI indirect-data content.
func obsoleteLink() SpcLink {
	s := NewSpcString("<<<Obsolete>>>")
	return SpcLink{File: &s}
}

// SpcPeImageData is { flags BIT STRING, file [0] EXPLICIT SpcLink }.
type SpcPeImageData struct {
	Flags []byte // bit string content octets; always a single zero byte, zero unused bits
	File  SpcLink
}

func (d SpcPeImageData) Marshal() ([]byte, error) {
	flags, err := asn1.Marshal(asn1.BitString{Bytes: d.Flags, BitLength: 0})
	if err != nil {
		return nil, err
	}
	fileDER, err := d.File.Marshal()
	if err != nil {
		return nil, err
	}
	fileTagged, err := wrap(asn1.ClassContextSpecific, 0, true, fileDER)
	if err != nil {
		return nil, err
	}
	return asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true,
		Bytes: append(flags, fileTagged...)})
}

// SpcSipInfo describes a non-PE SIP (MSI) target. Field names match their
// positions in the structure, not their (undocumented) meaning.
type SpcSipInfo struct {
	A          int
	String     []byte // 16-byte SIP GUID, big-endian as laid out on the wire
	B, C, D, E, F int
}

func (s SpcSipInfo) Marshal() ([]byte, error) {
	return asn1.Marshal(struct {
		A             int
		String        []byte
		B, C, D, E, F int
	}{s.A, s.String, s.B, s.C, s.D, s.E, s.F})
}

// MsiSipGUID is the fixed SIP GUID osslsigncode uses to identify MSI
// content to the indirect-data content.
var MsiSipGUID = []byte{0xf1, 0x10, 0x0c, 0x00, 0x00, 0x00, 0x00, 0x00, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}

// SpcSpOpusInfo is { [0] EXPLICIT programName SpcString OPTIONAL,
// [1] EXPLICIT moreInfo SpcLink OPTIONAL }.
type SpcSpOpusInfo struct {
	ProgramName *SpcString
	MoreInfo    *SpcLink
}

func (o SpcSpOpusInfo) Marshal() ([]byte, error) {
	var body []byte
	if o.ProgramName != nil {
		inner, err := o.ProgramName.Marshal()
		if err != nil {
			return nil, err
		}
		tagged, err := wrap(asn1.ClassContextSpecific, 0, true, inner)
		if err != nil {
			return nil, err
		}
		body = append(body, tagged...)
	}
	if o.MoreInfo != nil {
		inner, err := o.MoreInfo.Marshal()
		if err != nil {
			return nil, err
		}
		tagged, err := wrap(asn1.ClassContextSpecific, 1, true, inner)
		if err != nil {
			return nil, err
		}
		body = append(body, tagged...)
	}
	return wrap(asn1.ClassUniversal, asn1.TagSequence, true, body)
}

// SpcSpStatementType is SEQUENCE { type OBJECT IDENTIFIER }, matching the
// literal DER `30 0C 06 0A 2B 06 01 04 01 82 37 02 01 {15|16}` that the
// reference implementation emits for the SPC_STATEMENT_TYPE attribute.
type SpcSpStatementType struct {
	Type asn1.ObjectIdentifier
}

// DigestInfo is AlgorithmIdentifier + OCTET STRING digest.
type DigestInfo struct {
	DigestAlgorithm pkix.AlgorithmIdentifier
	Digest          []byte
}

// SpcAttributePageHashes is the page-hash attribute embedded inside a
// SpcSerializedObject moniker tagged with SpcUUIDPageHashes.
// NewPEIndirectData embeds one when a PE file is signed with page hashes.
type SpcAttributePageHashes struct {
	Type   asn1.ObjectIdentifier
	Hashes [][]byte `asn1:"set"`
}
