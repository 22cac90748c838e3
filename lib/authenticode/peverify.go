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
	"crypto/hmac"
	"debug/pe"
	"errors"
	"fmt"
	"io"

	"github.com/sassoftware/relicsign/lib/pkcs7"
	"github.com/sassoftware/relicsign/lib/pkcs9"
	"github.com/sassoftware/relicsign/lib/x509tools"
	"github.com/sassoftware/relicsign/signers/sigerrors"
)

// WIN_CERTIFICATE.wCertificateType value for a PKCS#7 SignedData blob.
const winCertTypePKCSSignedData = 2

type winCertHeader struct {
	Length   uint32
	Revision uint16
	CertType uint16
}

type PESignature struct {
	pkcs9.TimestampedSignature
	Indirect *SpcIndirectDataContentPe
	OpusInfo *SpcSpOpusInfo
	HashFunc crypto.Hash
}

// Extract and verify the signature of a PE file. Does not check X509 chains.
func VerifyPE(f io.ReaderAt, skipDigests bool) (*PESignature, error) {
	pf, err := pe.NewFile(f)
	if err != nil {
		return nil, err
	}
	defer pf.Close()
	var certStart, certSize int64
	switch opt := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		certStart = int64(opt.DataDirectory[4].VirtualAddress)
		certSize = int64(opt.DataDirectory[4].Size)
	case *pe.OptionalHeader64:
		certStart = int64(opt.DataDirectory[4].VirtualAddress)
		certSize = int64(opt.DataDirectory[4].Size)
	default:
		return nil, sigerrors.PeMissingCertDirError{}
	}
	if certSize == 0 {
		return nil, sigerrors.NotSignedError{Type: "PE"}
	}
	var hdr winCertHeader
	if err := readBinaryAt(f, certStart, 8, &hdr); err != nil {
		return nil, err
	}
	if hdr.CertType != winCertTypePKCSSignedData {
		return nil, fmt.Errorf("authenticode: unsupported certificate type %#x", hdr.CertType)
	}
	sig, err := readNAt(f, certStart+8, int(hdr.Length)-8)
	if err != nil {
		return nil, err
	}
	psd, err := pkcs7.Unmarshal(sig)
	if err != nil {
		return nil, err
	}
	if !psd.Content.ContentInfo.ContentType.Equal(OidSpcIndirectDataContent) {
		return nil, errors.New("authenticode: not an authenticode signature")
	}
	pksig, err := psd.Content.Verify(nil, false)
	if err != nil {
		return nil, err
	}
	ts, err := pkcs9.VerifyOptionalTimestamp(pksig)
	if err != nil {
		return nil, err
	}
	indirect := new(SpcIndirectDataContentPe)
	if err := psd.Content.ContentInfo.Unmarshal(indirect); err != nil {
		return nil, err
	}
	hash, err := x509tools.PkixDigestToHashE(indirect.MessageDigest.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	opus, err := GetOpusInfo(pksig.SignerInfo)
	if err != nil {
		return nil, err
	}
	pesig := &PESignature{
		TimestampedSignature: ts,
		Indirect:             indirect,
		HashFunc:             hash,
		OpusInfo:             opus,
	}
	if !skipDigests {
		digest, err := DigestPE(io.NewSectionReader(f, 0, 1<<62), hash, false)
		if err != nil {
			return nil, err
		}
		if !hmac.Equal(digest.Imprint, indirect.MessageDigest.Digest) {
			return nil, sigerrors.DigestMismatchError{Expected: indirect.MessageDigest.Digest, Actual: digest.Imprint}
		}
	}
	return pesig, nil
}
