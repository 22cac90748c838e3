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

// Package remove implements the "remove-signature" CLI command: strip
// the Authenticode signature from a PE-COFF file and recompute its
// checksum.
package remove

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

var RemoveCmd = &cobra.Command{
	Use:   "remove-signature [-in] INFILE [-out] OUTFILE",
	Short: "Remove the Authenticode signature from a PE-COFF file",
	Args:  cobra.MaximumNArgs(2),
	RunE:  removeCmd,
}

func init() {
	shared.RootCmd.AddCommand(RemoveCmd)
	RemoveCmd.Flags().StringVar(&argIn, "in", "", "Signed PE-COFF input file (may also be given positionally)")
	RemoveCmd.Flags().StringVar(&argOut, "out", "", "Output file with the signature removed (may also be given positionally)")
}

func removeCmd(cmd *cobra.Command, args []string) error {
	infile, outfile, err := shared.ResolveInOut(argIn, argOut, args)
	if err != nil {
		return shared.Fail(err)
	}
	f, err := shared.OpenForPatching(infile, outfile)
	if err != nil {
		return shared.FailSign(err, outfile)
	}
	defer f.Close()
	if magic.Detect(f) != magic.FileTypePECOFF {
		return shared.FailSign(sigerrors.UnknownFormatError{}, outfile)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return shared.FailSign(err, outfile)
	}
	if err := authenticode.RemoveSignature(f); err != nil {
		return shared.FailSign(err, outfile)
	}
	os.Stderr.WriteString("Succeeded\n")
	return nil
}
