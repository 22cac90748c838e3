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

package atomicfile

import (
	"errors"
	"os"
	"path"
)

// File is a file being written to a temporary path alongside its eventual
// destination. Commit renames it into place; Close without a Commit
// discards it.
type File struct {
	name     string
	tempfile *os.File
	inPlace  bool
}

func New(name string) (*File, error) {
	tempfile, err := os.CreateTemp(path.Dir(name), path.Base(name)+".tmp")
	if err != nil {
		return nil, err
	}
	return &File{name: name, tempfile: tempfile}, nil
}

func (f *File) Write(d []byte) (int, error) {
	return f.tempfile.Write(d)
}

func (f *File) GetFile() *os.File {
	return f.tempfile
}

func (f *File) Close() error {
	if f.tempfile == nil || f.inPlace {
		return nil
	}
	f.tempfile.Close()
	os.Remove(f.tempfile.Name())
	f.tempfile = nil
	return nil
}

func (f *File) Commit() error {
	if f.tempfile == nil {
		return errors.New("file is closed")
	}
	if f.inPlace {
		return nil
	}
	f.tempfile.Chmod(0644)
	f.tempfile.Close()
	if err := os.Remove(f.name); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(f.tempfile.Name(), f.name); err != nil {
		return err
	}
	f.tempfile = nil
	return nil
}

// WriteInPlace opens dest for writing, reusing src directly when it already
// refers to dest (the common case for an MSI's in-place signature
// insertion, where the caller wants to keep editing the same *os.File) and
// falling back to the write-rename strategy of New otherwise.
func WriteInPlace(src *os.File, dest string) (*File, error) {
	if same, err := samePath(src, dest); err == nil && same {
		return &File{name: dest, tempfile: src, inPlace: true}, nil
	}
	return New(dest)
}

// WriteAny picks the best strategy for writing to path: pipes and devices
// are written to directly, "-" writes to standard output, and everything
// else uses the write-rename strategy of New.
func WriteAny(path string) (*File, error) {
	if path == "-" {
		return &File{name: path, tempfile: os.Stdout, inPlace: true}, nil
	}
	if isSpecial(path) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		return &File{name: path, tempfile: f, inPlace: true}, nil
	}
	return New(path)
}

func isSpecial(path string) bool {
	if stat, err := os.Stat(path); err == nil {
		return !stat.Mode().IsRegular()
	}
	return false
}

func samePath(f *os.File, dest string) (bool, error) {
	fi1, err := f.Stat()
	if err != nil {
		return false, err
	}
	fi2, err := os.Stat(dest)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return os.SameFile(fi1, fi2), nil
}
