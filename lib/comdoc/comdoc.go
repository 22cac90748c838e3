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

// Package comdoc implements the Microsoft Compound Document File format,
// the OLE2 container used by MSI packages to hold their streams.
//
// Reference: https://www.openoffice.org/sc/compdocfileformat.pdf
// ERRATA: the above document says the 0th sector always starts 512 bytes
// into the file. This is wrong; if SectorSize > 512 then the 0th sector
// starts SectorSize bytes into the file.
package comdoc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

type writerAt interface {
	io.WriterAt
	Truncate(size int64) error
}

// ComDoc holds an open compound document file. It is always readable;
// AddFile, DeleteFile and Close additionally require the file to have been
// opened with OpenReadWrite.
type ComDoc struct {
	File            io.ReaderAt
	Header          *Header
	SectorSize      int
	ShortSectorSize int
	FirstSector     int64
	MSAT, SAT, SSAT []SecID
	Files           []DirEnt

	rootStorage int
	rootFiles   []int
	sectorBuf   []byte

	writer  writerAt
	closer  io.Closer
	changed bool
}

// ReadPath opens the compound document file at path for reading.
func ReadPath(path string) (*ComDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	cdf, err := parse(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	cdf.closer = f
	return cdf, nil
}

// ReadFile parses f, which must already be positioned at the start of a
// compound document file, for reading. The caller retains ownership of f;
// Close will not close it.
func ReadFile(f io.ReaderAt) (*ComDoc, error) {
	return parse(f)
}

// WriteFile parses f, which must already be positioned at the start of a
// compound document file, for both reading and, via AddFile and DeleteFile,
// modification. The caller retains ownership of f; Close will not close it,
// but will flush any changes to it.
func WriteFile(f writerAt) (*ComDoc, error) {
	ra, ok := f.(io.ReaderAt)
	if !ok {
		return nil, errors.New("comdoc: writer does not support reading")
	}
	cdf, err := parse(ra)
	if err != nil {
		return nil, err
	}
	cdf.writer = f
	return cdf, nil
}

// OpenReadWrite opens the compound document file at path for reading and,
// via AddFile and DeleteFile, modification. Close must be called to commit
// any changes back to path.
func OpenReadWrite(path string) (*ComDoc, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	cdf, err := parse(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	cdf.writer = f
	cdf.closer = f
	return cdf, nil
}

func parse(f io.ReaderAt) (*ComDoc, error) {
	header := new(Header)
	r := &ComDoc{
		File:   f,
		Header: header,
	}
	hf := io.NewSectionReader(f, 0, 512)
	if err := binary.Read(hf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header.Magic[:], fileMagic) {
		return nil, errors.New("not a compound document file")
	}
	if header.ByteOrder != byteOrderMarker {
		return nil, errors.New("incorrect byte order marker")
	}
	if header.SectorSize < 5 || header.SectorSize > 28 || header.ShortSectorSize >= header.SectorSize {
		return nil, errors.New("unreasonable header values")
	}
	r.SectorSize = 1 << header.SectorSize
	r.ShortSectorSize = 1 << header.ShortSectorSize
	if r.SectorSize < 512 {
		r.FirstSector = 512
	} else {
		r.FirstSector = int64(r.SectorSize)
	}
	r.sectorBuf = make([]byte, r.SectorSize)

	if err := r.readMSAT(); err != nil {
		return nil, err
	}
	if err := r.readSAT(); err != nil {
		return nil, err
	}
	if err := r.readShortSAT(); err != nil {
		return nil, err
	}
	if err := r.readDir(); err != nil {
		return nil, err
	}
	return r, nil
}
