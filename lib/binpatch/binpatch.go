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

// Package binpatch builds a sparse set of byte-range replacements against
// an input file and applies them to produce a signed output, without ever
// materializing the whole file in memory.
package binpatch

import (
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path"
	"sort"
)

// MimeType identifies a serialized PatchSet returned by a remote signer,
// as opposed to a raw PKCS#7 blob.
const MimeType = "application/x-relic-binpatch"

// Dump serializes the patch set for transport back to the client that
// produced the original digest.
func (p *PatchSet) Dump() []byte {
	data, err := json.Marshal(p)
	if err != nil {
		// Patches and Blobs are always plain structs and []byte, so
		// this can't happen.
		panic(err)
	}
	return data
}

// Load deserializes a patch set produced by Dump.
func Load(blob []byte) (*PatchSet, error) {
	p := new(PatchSet)
	if err := json.Unmarshal(blob, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Patch is a single [Offset, Offset+Length) byte range in the input file
// that is replaced by the correspondingly-indexed entry in PatchSet.Blobs.
// A Length of 0 is an insertion: the blob is spliced in without consuming
// any input bytes, as used to grow a PE or CAB file's certificate table
// or reserved area.
type Patch struct {
	Offset int64
	Length int64
}

// PatchSet is an ordered collection of non-overlapping patches against a
// single input stream.
type PatchSet struct {
	Patches []Patch
	Blobs   [][]byte
}

// New returns an empty PatchSet.
func New() *PatchSet {
	return new(PatchSet)
}

// Add appends a replacement of the byte range [offset, offset+length) with
// blob. Patches may be added in any order; Apply sorts them before use.
func (p *PatchSet) Add(offset, length int64, blob []byte) {
	p.Patches = append(p.Patches, Patch{Offset: offset, Length: length})
	p.Blobs = append(p.Blobs, blob)
}

func (p *PatchSet) sorted() *PatchSet {
	sort.Sort(sorter{p})
	return p
}

// Apply writes the patched contents of infile to outstream, copying
// unmodified ranges verbatim and substituting each patch's blob for its
// byte range.
func (p *PatchSet) Apply(infile io.ReadSeeker, outstream io.Writer) error {
	p.sorted()
	if _, err := infile.Seek(0, 0); err != nil {
		return err
	}
	var pos int64
	for i, patch := range p.Patches {
		if patch.Offset < pos {
			return errors.New("binpatch: overlapping or out-of-order patch")
		}
		if patch.Offset > pos {
			if _, err := io.CopyN(outstream, infile, patch.Offset-pos); err != nil {
				return err
			}
		}
		blob := p.Blobs[i]
		if n, err := outstream.Write(blob); err != nil {
			return err
		} else if n != len(blob) {
			return io.ErrShortWrite
		}
		if patch.Length > 0 {
			if _, err := infile.Seek(patch.Offset+patch.Length, 0); err != nil {
				return err
			}
		}
		pos = patch.Offset + patch.Length
	}
	_, err := io.Copy(outstream, infile)
	return err
}

// ApplyToFile applies the patch set to infile and writes the result to
// outpath, which may be "-" to mean stdout. When outpath names a regular
// file distinct from infile, or infile itself, the output is written to a
// temporary file in the same directory and renamed into place so a failure
// midway never leaves outpath truncated.
func (p *PatchSet) ApplyToFile(infile *os.File, outpath string) error {
	if outpath == "-" {
		return p.Apply(infile, os.Stdout)
	}
	tempfile, err := ioutil.TempFile(path.Dir(outpath), path.Base(outpath))
	if err != nil {
		return err
	}
	defer func() {
		tempfile.Close()
		os.Remove(tempfile.Name())
	}()
	if err := p.Apply(infile, tempfile); err != nil {
		return err
	}
	if err := tempfile.Chmod(0644); err != nil {
		return err
	}
	if err := tempfile.Close(); err != nil {
		return err
	}
	if err := os.Remove(outpath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tempfile.Name(), outpath)
}
