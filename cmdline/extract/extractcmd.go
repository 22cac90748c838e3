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

// Package extract implements the "extract-signature" CLI command: pull
// the raw WIN_CERTIFICATE blob out of a signed PE-COFF file without
// needing a signing key or certificate chain.
package extract

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sassoftware/relicsign/cmdline/shared"
	"github.com/sassoftware/relicsign/lib/authenticode"
	"github.com/sassoftware/relicsign/lib/magic"
	"github.com/sassoftware/relicsign/signers/sigerrors"
)

var (
	argIn  string
	argOut string
)

var ExtractCmd = &cobra.Command{
	Use:   "extract-signature [-in] INFILE [-out] OUTFILE",
	Short: "Extract the Authenticode signature from a PE-COFF file",
	Args:  cobra.MaximumNArgs(2),
	RunE:  extractCmd,
}

func init() {
	shared.RootCmd.AddCommand(ExtractCmd)
	ExtractCmd.Flags().StringVar(&argIn, "in", "", "Signed PE-COFF input file (may also be given positionally)")
	ExtractCmd.Flags().StringVar(&argOut, "out", "", "Output file for the extracted signature (may also be given positionally)")
}

func extractCmd(cmd *cobra.Command, args []string) error {
	infile, outfile, err := shared.ResolveInOut(argIn, argOut, args)
	if err != nil {
		return shared.Fail(err)
	}
	f, err := os.Open(infile)
	if err != nil {
		return shared.Fail(err)
	}
	defer f.Close()
	if magic.Detect(f) != magic.FileTypePECOFF {
		return shared.Fail(sigerrors.UnknownFormatError{})
	}
	info, err := f.Stat()
	if err != nil {
		return shared.Fail(err)
	}
	blob, err := authenticode.ExtractSignature(f, info.Size())
	if err != nil {
		return shared.Fail(err)
	}
	if err := os.WriteFile(outfile, blob, 0644); err != nil {
		return shared.Fail(err)
	}
	os.Stderr.WriteString("Succeeded\n")
	return nil
}
