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
	"encoding/binary"
	"io"
	"os"

	"github.com/sassoftware/relicsign/signers/sigerrors"
)

// locatePECertTable parses just enough of a PE image's headers to find the
// certificate table data directory: its own file offset (so it can be
// zeroed) and the file offset and size of the WIN_CERTIFICATE blob it
// points to. Unlike DigestPE this does not touch section data.
func locatePECertTable(r io.ReaderAt) (posDDCert, certStart, certSize int64, err error) {
	var dos [dosHeaderSize]byte
	if _, err = r.ReadAt(dos[:], 0); err != nil {
		return
	}
	if dos[0] != 'M' || dos[1] != 'Z' {
		err = sigerrors.PeUnknownMagicError{}
		return
	}
	peStart := int64(binary.LittleEndian.Uint32(dos[0x3c:]))
	var sig [4]byte
	if _, err = r.ReadAt(sig[:], peStart); err != nil {
		return
	}
	if sig[0] != 'P' || sig[1] != 'E' || sig[2] != 0 || sig[3] != 0 {
		err = sigerrors.PeUnknownMagicError{}
		return
	}
	var fh [20]byte
	if _, err = r.ReadAt(fh[:], peStart+4); err != nil {
		return
	}
	sizeOfOptHeader := binary.LittleEndian.Uint16(fh[16:18])
	optBuf := make([]byte, sizeOfOptHeader)
	if _, err = r.ReadAt(optBuf, peStart+24); err != nil {
		return
	}
	if len(optBuf) < 2 {
		err = sigerrors.PeMissingCertDirError{}
		return
	}
	var dd4Start int64
	switch binary.LittleEndian.Uint16(optBuf[:2]) {
	case optHeaderMagicPE32:
		dd4Start = 128
	case optHeaderMagicPE32Plus:
		dd4Start = 144
	default:
		err = sigerrors.PeUnknownMagicError{}
		return
	}
	if int64(len(optBuf)) < dd4Start+8 {
		err = sigerrors.PeMissingCertDirError{}
		return
	}
	certStart = int64(binary.LittleEndian.Uint32(optBuf[dd4Start:]))
	certSize = int64(binary.LittleEndian.Uint32(optBuf[dd4Start+4:]))
	posDDCert = peStart + 24 + dd4Start
	return
}

// ExtractSignature returns the raw WIN_CERTIFICATE blob (including its
// 8-byte header) carried in a PE file's certificate table, the same
// bytes osslsigncode's extract-signature writes out verbatim.
func ExtractSignature(r io.ReaderAt, fileSize int64) ([]byte, error) {
	_, certStart, certSize, err := locatePECertTable(r)
	if err != nil {
		return nil, err
	}
	if certSize == 0 {
		return nil, sigerrors.NoSignaturePresentError{Type: "PE"}
	}
	if certStart+certSize != fileSize {
		return nil, sigerrors.PeSignatureNotAtEndError{}
	}
	return readNAt(r, certStart, int(certSize))
}

// RemoveSignature strips a PE file's certificate table in place: the data
// directory entry is zeroed, the trailing WIN_CERTIFICATE blob is
// truncated off, and the checksum is recomputed over what remains. Zero
// padding that signing inserted before the table to reach an 8-byte
// boundary is not removed, so for such a file the result is longer than
// the file as it was before signing.
func RemoveSignature(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	posDDCert, certStart, certSize, err := locatePECertTable(f)
	if err != nil {
		return err
	}
	if certSize == 0 {
		return sigerrors.NoSignaturePresentError{Type: "PE"}
	}
	if certStart+certSize != info.Size() {
		return sigerrors.PeSignatureNotAtEndError{}
	}
	var zero [8]byte
	if _, err := f.WriteAt(zero[:], posDDCert); err != nil {
		return err
	}
	if err := f.Truncate(certStart); err != nil {
		return err
	}
	return FixPEChecksum(f)
}
