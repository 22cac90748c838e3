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

package magic

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
)

type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypePKCS7
	FileTypePECOFF
	FileTypeMSI
	FileTypeCAB
)

type CompressionType int

const (
	CompressedNone CompressionType = iota
	CompressedGzip
)

// Detect identifies the type of file contained in r by sniffing its first
// bytes. r must support Read; only as much as is needed to examine the
// relevant headers is consumed.
func Detect(r io.Reader) FileType {
	var buf [1024]byte
	blob := buf[:]
	n, _ := io.ReadFull(r, blob)
	blob = blob[:n]
	switch {
	case bytes.Index(blob, []byte{0x06, 0x09, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x07, 0x02}) >= 0:
		return FileTypePKCS7
	case bytes.HasPrefix(blob, []byte("MZ")):
		if len(blob) < 0x40 {
			return FileTypeUnknown
		}
		reloc := binary.LittleEndian.Uint16(blob[0x3c:0x3e])
		if int(reloc)+4 <= len(blob) && bytes.Equal(blob[reloc:reloc+4], []byte("PE\x00\x00")) {
			return FileTypePECOFF
		}
	case bytes.HasPrefix(blob, []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}):
		return FileTypeMSI
	case bytes.HasPrefix(blob, []byte("MSCF")):
		return FileTypeCAB
	}
	return FileTypeUnknown
}

// DetectCompressed is like Detect, but first unwraps a gzip envelope if one
// is present, reporting which compression (if any) was found.
func DetectCompressed(r io.Reader) (FileType, CompressionType) {
	var peek [2]byte
	br := &peekReader{r: r}
	if _, err := io.ReadFull(br, peek[:]); err != nil {
		return FileTypeUnknown, CompressedNone
	}
	full := io.MultiReader(bytes.NewReader(br.buf), r)
	if peek[0] == 0x1f && peek[1] == 0x8b {
		gz, err := gzip.NewReader(full)
		if err != nil {
			return FileTypeUnknown, CompressedNone
		}
		defer gz.Close()
		return Detect(gz), CompressedGzip
	}
	return Detect(full), CompressedNone
}

type peekReader struct {
	r   io.Reader
	buf []byte
}

func (p *peekReader) Read(d []byte) (int, error) {
	n, err := p.r.Read(d)
	p.buf = append(p.buf, d[:n]...)
	return n, err
}
