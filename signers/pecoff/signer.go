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

package pecoff

// Sign Microsoft PE/COFF executables

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sassoftware/relicsign/lib/authenticode"
	"github.com/sassoftware/relicsign/lib/certloader"
	"github.com/sassoftware/relicsign/lib/magic"
	"github.com/sassoftware/relicsign/signers"
)

var PeSigner = &signers.Signer{
	Name:      "pe-coff",
	Aliases:   []string{"pe", "exe"},
	Magic:     magic.FileTypePECOFF,
	Sign:      sign,
	Fixup:     authenticode.FixPEChecksum,
	Verify:    verify,
}

func init() {
	PeSigner.Flags().Bool("page-hashes", false, "(PE-COFF) Add page hashes to signature")
	AddOpusFlags(PeSigner)
	signers.Register(PeSigner)
}

// AddOpusFlags registers the --description/--desc-url/--commercial flags
// shared by every Authenticode format (PE, cabinet, MSI).
func AddOpusFlags(s *signers.Signer) {
	s.Flags().String("description", "", "(Win) Set description of signed content")
	s.Flags().String("desc-url", "", "(Win) Set URL for description of signed content")
	s.Flags().Bool("commercial", false, "(Win) Mark signature as commercial rather than individual")
}

// OpusFlags reads the shared --description/--desc-url/--commercial flags
// into an authenticode.OpusParams.
func OpusFlags(opts signers.SignOpts) *authenticode.OpusParams {
	return &authenticode.OpusParams{
		Description: opts.Flags.GetString("description"),
		URL:         opts.Flags.GetString("desc-url"),
		Commercial:  opts.Flags.GetBool("commercial"),
	}
}

func sign(r io.Reader, cert *certloader.Certificate, opts signers.SignOpts) ([]byte, error) {
	pageHashes := opts.Flags.GetBool("page-hashes")
	digest, err := authenticode.DigestPE(r, opts.Hash, pageHashes)
	if err != nil {
		return nil, err
	}
	patch, ts, err := digest.Sign(opts.Context(), cert, OpusFlags(opts))
	if err != nil {
		return nil, err
	}
	opts.Audit.Attributes["pe-coff.pagehashes"] = pageHashes
	opts.Audit.SetCounterSignature(ts.CounterSignature)
	return opts.SetBinPatch(patch)
}

// FormatOpus renders the optional SpcSpOpusInfo attribute for display in
// verify output.
func FormatOpus(info *authenticode.SpcSpOpusInfo) string {
	if info == nil {
		return ""
	}
	var infos []string
	if info.ProgramName != nil {
		if desc := info.ProgramName.String(); desc != "" {
			infos = append(infos, fmt.Sprintf("[desc:%q]", desc))
		}
	}
	if info.MoreInfo != nil && info.MoreInfo.URL != "" {
		infos = append(infos, fmt.Sprintf("[url:%q]", info.MoreInfo.URL))
	}
	return strings.Join(infos, "")
}

func verify(f *os.File, opts signers.VerifyOpts) (*signers.Signature, error) {
	sig, err := authenticode.VerifyPE(f, opts.NoDigests)
	if err != nil {
		return nil, err
	}
	return &signers.Signature{
		SigInfo:       FormatOpus(sig.OpusInfo),
		Hash:          sig.HashFunc,
		X509Signature: &sig.TimestampedSignature,
	}, nil
}
