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

// Package verify implements the "verify" CLI command, checking an
// Authenticode signature's integrity, and its certificate chain when
// --cacert is given, without needing access to a signing key or
// configuration file.
package verify

import (
	"crypto/x509"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sassoftware/relicsign/cmdline/shared"
	"github.com/sassoftware/relicsign/signers"
	"github.com/sassoftware/relicsign/signers/sigerrors"
)

var (
	argIn      string
	argSigType string
	argCaFile  string
	argNoChain bool
)

var VerifyCmd = &cobra.Command{
	Use:   "verify [-in] INFILE",
	Short: "Verify the Authenticode signature on a PE-COFF, cabinet, or MSI file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  verifyCmd,
}

func init() {
	shared.RootCmd.AddCommand(VerifyCmd)
	VerifyCmd.Flags().StringVar(&argIn, "in", "", "Input file to verify (may also be given positionally)")
	VerifyCmd.Flags().StringVarP(&argSigType, "sig-type", "T", "", "Specify signature type (default: auto-detect)")
	VerifyCmd.Flags().StringVar(&argCaFile, "cacert", "", "Verify the certificate chain against the given CA certificate bundle (the chain is not checked without it)")
	VerifyCmd.Flags().BoolVar(&argNoChain, "no-chain", false, "Skip X.509 certificate chain validation")
}

func verifyCmd(cmd *cobra.Command, args []string) error {
	infile, err := shared.ResolveIn(argIn, args)
	if err != nil {
		return shared.Fail(err)
	}
	mod, err := signers.ByFile(infile, argSigType)
	if err != nil {
		return shared.Fail(err)
	}
	if mod.Verify == nil && mod.VerifyStream == nil {
		return shared.Fail(fmt.Errorf("can't verify files of type: %s", mod.Name))
	}
	f, err := os.Open(infile)
	if err != nil {
		return shared.Fail(err)
	}
	defer f.Close()
	opts := signers.VerifyOpts{FileName: infile, NoChain: argNoChain}
	if argCaFile != "" {
		pool, err := loadCaFile(argCaFile)
		if err != nil {
			return shared.Fail(err)
		}
		opts.TrustedPool = pool
	}
	var sig *signers.Signature
	if mod.Verify != nil {
		sig, err = mod.Verify(f, opts)
	} else {
		sig, err = mod.VerifyStream(f, opts)
	}
	if err != nil {
		return shared.Fail(asVerifyFailure(err))
	}
	fmt.Printf("%s: signed by %s\n", infile, sig.SignerName())
	if sig.SigInfo != "" {
		fmt.Println(sig.SigInfo)
	}
	if !opts.NoChain && sig.X509Signature != nil && opts.TrustedPool != nil {
		if err := sig.X509Signature.VerifyChain(opts.TrustedPool, nil, x509.ExtKeyUsageCodeSigning); err != nil {
			return shared.Fail(sigerrors.CryptoVerifyFailedError{Err: err})
		}
		fmt.Println("Certificate chain OK")
	}
	fmt.Fprintln(os.Stderr, "Succeeded")
	return nil
}

// asVerifyFailure passes typed digest/checksum mismatches through
// unchanged, so shared.ExitCode maps them to exit status 1, and wraps
// anything else as a hard crypto failure (exit status -1).
func asVerifyFailure(err error) error {
	switch err.(type) {
	case sigerrors.DigestMismatchError, sigerrors.ChecksumMismatchError:
		return err
	default:
		return sigerrors.CryptoVerifyFailedError{Err: err}
	}
}

func loadCaFile(path string) (*x509.CertPool, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(blob) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
