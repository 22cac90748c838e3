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

package signers

// Some package types can't be signed by patching a byte range of the
// input (MSI keeps its signature in a stream of its compound document), so
// their module supplies its own Transformer in place of the default
// fileProducer. The MSI one inserts the signature during Sign, and its
// Apply step does nothing.

import (
	"fmt"
	"io"
	"os"

	"github.com/sassoftware/relicsign/lib/atomicfile"
	"github.com/sassoftware/relicsign/lib/binpatch"
)

type Transformer interface {
	GetReader() (stream io.Reader, size int64, err error)
	Apply(dest, mimetype string, result io.Reader) error
}

func (s *Signer) GetTransform(f *os.File, opts SignOpts) (Transformer, error) {
	if s != nil && s.Transform != nil {
		return s.Transform(f, opts)
	}
	return fileProducer{f}, nil
}

// fileProducer is the default Transformer used by formats (PE, cabinet)
// that can be digested and patched in place without restructuring.
type fileProducer struct {
	f *os.File
}

func (p fileProducer) GetReader() (io.Reader, int64, error) {
	size, err := p.f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to seek input file: %w", err)
	}
	p.f.Seek(0, io.SeekStart)
	return p.f, size, nil
}

func (p fileProducer) Apply(dest, mimetype string, result io.Reader) error {
	if mimetype == binpatch.MimeType {
		blob, err := io.ReadAll(result)
		if err != nil {
			return err
		}
		patch, err := binpatch.Load(blob)
		if err != nil {
			return err
		}
		return patch.ApplyToFile(p.f, dest)
	}
	f, err := atomicfile.WriteAny(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f.GetFile(), result); err != nil {
		return err
	}
	return f.Commit()
}
