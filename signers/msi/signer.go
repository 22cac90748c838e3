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

package msi

// Sign Windows Installer packages. Unlike PE-COFF and cabinet files, an
// MSI's signature lives in a named stream inside its compound document
// storage, so signing edits the document in place rather than patching a
// byte range of the original file.

import (
	"io"
	"os"

	"github.com/sassoftware/relicsign/lib/authenticode"
	"github.com/sassoftware/relicsign/lib/certloader"
	"github.com/sassoftware/relicsign/lib/comdoc"
	"github.com/sassoftware/relicsign/lib/magic"
	"github.com/sassoftware/relicsign/signers"
	"github.com/sassoftware/relicsign/signers/pecoff"
)

var MsiSigner = &signers.Signer{
	Name:      "msi",
	Magic:     magic.FileTypeMSI,
	Transform: transform,
	Sign:      sign,
	Verify:    verify,
}

func init() {
	MsiSigner.Flags().Bool("no-extended-sig", false, "(MSI) Don't emit a MsiDigitalSignatureEx digest")
	pecoff.AddOpusFlags(MsiSigner)
	signers.Register(MsiSigner)
}

// msiTransformer sidesteps the byte-range patch model used for PE/cabinet:
// sign() reopens the output file at opts.Path, digests its compound
// document and inserts the signature stream there, so Apply has nothing
// left to do.
type msiTransformer struct {
	f   *os.File
	cdf *comdoc.ComDoc
}

func transform(f *os.File, opts signers.SignOpts) (signers.Transformer, error) {
	cdf, err := comdoc.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return &msiTransformer{f: f, cdf: cdf}, nil
}

func (t *msiTransformer) GetReader() (io.Reader, int64, error) {
	// The digest is computed by sign() from the document it opens itself;
	// nothing is streamed, so GetReader returns no reader and is kept only
	// for interface conformance.
	return nil, 0, nil
}

func (t *msiTransformer) Apply(dest, mimetype string, result io.Reader) error {
	return nil
}

func sign(r io.Reader, cert *certloader.Certificate, opts signers.SignOpts) ([]byte, error) {
	f, err := os.OpenFile(opts.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cdf, err := comdoc.WriteFile(f)
	if err != nil {
		return nil, err
	}
	noExtended := opts.Flags.GetBool("no-extended-sig")
	imprint, exsig, err := authenticode.DigestMSI(cdf, opts.Hash, !noExtended)
	if err != nil {
		return nil, err
	}
	ts, err := authenticode.SignMSIImprint(opts.Context(), imprint, opts.Hash, cert, pecoff.OpusFlags(opts))
	if err != nil {
		return nil, err
	}
	if err := authenticode.InsertMSISignature(cdf, ts.Raw, exsig); err != nil {
		return nil, err
	}
	if err := cdf.Close(); err != nil {
		return nil, err
	}
	opts.Audit.SetCounterSignature(ts.CounterSignature)
	opts.Audit.Attributes["msi.extended"] = !noExtended
	return opts.SetPkcs7(ts)
}

func verify(f *os.File, opts signers.VerifyOpts) (*signers.Signature, error) {
	sig, err := authenticode.VerifyMSI(f, opts.NoDigests)
	if err != nil {
		return nil, err
	}
	return &signers.Signature{
		Hash:          sig.HashFunc,
		X509Signature: &sig.TimestampedSignature,
		SigInfo:       pecoff.FormatOpus(sig.OpusInfo),
	}, nil
}
