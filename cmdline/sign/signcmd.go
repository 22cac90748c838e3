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

// Package sign implements the "sign" CLI command: load a signing
// certificate and key from -spc/-key, -pkcs12, or -spc/-pvk, and attach
// an Authenticode signature to a PE, cabinet, or MSI file.
package sign

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sassoftware/relicsign/cmdline/shared"
	"github.com/sassoftware/relicsign/internal/signinit"
	"github.com/sassoftware/relicsign/lib/x509tools"
	"github.com/sassoftware/relicsign/signers"
	"github.com/sassoftware/relicsign/signers/sigerrors"
)

var (
	argSpc    string
	argKey    string
	argPkcs12 string
	argPvk    string
	argPass   string
	argDigest string
	argDesc   string
	argURL    string
	argJp     string
	argComm   bool
	argTsURL  string
	argMsURL  string
	argProxy  string
	argIn     string
	argOut    string
)

var SignCmd = &cobra.Command{
	Use:   "sign ( -spc FILE -key FILE | -pkcs12 FILE | -spc FILE -pvk FILE ) [-in] INFILE [-out] OUTFILE",
	Short: "Sign a PE-COFF, cabinet, or MSI file",
	Args:  cobra.MaximumNArgs(2),
	RunE:  signCmd,
}

func init() {
	shared.RootCmd.AddCommand(SignCmd)
	SignCmd.Flags().StringVar(&argSpc, "spc", "", "DER-encoded PKCS#7 certificate chain (SPC) file")
	SignCmd.Flags().StringVar(&argKey, "key", "", "DER or PEM private key file, paired with -spc")
	SignCmd.Flags().StringVar(&argPkcs12, "pkcs12", "", "PKCS#12 container holding the key and certificate chain")
	SignCmd.Flags().StringVar(&argPvk, "pvk", "", "Microsoft PVK private key file, paired with -spc")
	SignCmd.Flags().StringVar(&argPass, "pass", "", "Password for the PKCS#12 or PVK file (prompted for if omitted)")
	SignCmd.Flags().StringVar(&argDigest, "h", shared.DefaultHash, "Digest algorithm: md5, sha1, or sha2")
	SignCmd.Flags().StringVar(&argDesc, "n", "", "Description of signed content")
	SignCmd.Flags().StringVar(&argURL, "i", "", "URL of description of signed content")
	SignCmd.Flags().StringVar(&argJp, "jp", "", "Page hash level: low (medium and high are rejected)")
	SignCmd.Flags().BoolVar(&argComm, "comm", false, "Mark signature as commercial rather than individual")
	SignCmd.Flags().StringVar(&argTsURL, "t", "", "RFC 3161 timestamp authority URL")
	SignCmd.Flags().StringVar(&argMsURL, "ts", "", "Microsoft legacy Authenticode timestamp authority URL")
	SignCmd.Flags().StringVar(&argProxy, "p", "", "HTTP/HTTPS proxy for -t/-ts")
	SignCmd.Flags().StringVar(&argIn, "in", "", "Input file (may also be given positionally)")
	SignCmd.Flags().StringVar(&argOut, "out", "", "Output file (may also be given positionally)")
	shared.AddLateHook(func() {
		signers.MergeFlags(SignCmd)
	})
}

func signCmd(cmd *cobra.Command, args []string) error {
	if err := shared.InitConfig(); err != nil {
		return shared.Fail(err)
	}
	signinit.CurrentConfig = shared.CurrentConfig
	infile, outfile, err := shared.ResolveInOut(argIn, argOut, args)
	if err != nil {
		return shared.Fail(err)
	}
	keyArgs, ts, err := parseKeyAndTimestampArgs()
	if err != nil {
		return shared.Fail(err)
	}
	hash := x509tools.HashByName(argDigest)
	if hash == 0 {
		return shared.Fail(sigerrors.ArgError{Msg: fmt.Sprintf("unsupported digest %q", argDigest)})
	}

	mod, err := signers.ByFile(infile, "")
	if err != nil {
		return shared.Fail(err)
	}
	if mod.Sign == nil {
		return shared.Fail(fmt.Errorf("can't sign files of type: %s", mod.Name))
	}
	flags, err := mod.FlagsFromCmdline(cmd.Flags())
	if err != nil {
		return shared.Fail(err)
	}
	if argDesc != "" {
		flags.Values["description"] = argDesc
	}
	if argURL != "" {
		flags.Values["desc-url"] = argURL
	}
	if argComm {
		flags.Values["commercial"] = "true"
	}
	if argJp == "low" {
		flags.Values["page-hashes"] = "true"
	}

	cert, err := signinit.LoadCertificate(signinit.KeyArgs{
		SpcFile:    keyArgs.SpcFile,
		KeyFile:    keyArgs.KeyFile,
		Pkcs12File: keyArgs.Pkcs12File,
		PvkFile:    keyArgs.PvkFile,
		Password:   keyArgs.Password,
	})
	if err != nil {
		return shared.Fail(err)
	}

	ctx := context.Background()
	opts, err := signinit.Init(ctx, mod, cert, hash, ts, outfile, flags)
	if err != nil {
		return shared.Fail(err)
	}

	f, err := shared.OpenForPatching(infile, outfile)
	if err != nil {
		return shared.FailSign(err, outfile)
	}
	defer f.Close()

	transform, err := mod.GetTransform(f, *opts)
	if err != nil {
		return shared.FailSign(err, outfile)
	}
	reader, _, err := transform.GetReader()
	if err != nil {
		return shared.FailSign(err, outfile)
	}
	blob, err := mod.Sign(reader, cert, *opts)
	if err != nil {
		return shared.FailSign(err, outfile)
	}
	mimeType := opts.Audit.GetMimeType()
	if err := transform.Apply(outfile, mimeType, bytes.NewReader(blob)); err != nil {
		return shared.FailSign(err, outfile)
	}
	if mod.Fixup != nil {
		out, err := os.OpenFile(outfile, os.O_RDWR, 0)
		if err != nil {
			return shared.FailSign(err, outfile)
		}
		if err := mod.Fixup(out); err != nil {
			out.Close()
			return shared.FailSign(err, outfile)
		}
		out.Close()
	}
	fmt.Fprintln(os.Stderr, "Succeeded")
	return nil
}

type keyAndTimestampArgs struct {
	SpcFile, KeyFile, Pkcs12File, PvkFile, Password string
}

func parseKeyAndTimestampArgs() (keyAndTimestampArgs, signinit.TimestampArgs, error) {
	var ts signinit.TimestampArgs
	if argTsURL != "" && argMsURL != "" {
		return keyAndTimestampArgs{}, ts, sigerrors.ArgError{Msg: "-t and -ts are mutually exclusive"}
	}
	if argJp == "medium" || argJp == "high" {
		return keyAndTimestampArgs{}, ts, sigerrors.ArgError{Msg: "-jp medium and -jp high are not supported"}
	}
	if argJp != "" && argJp != "low" {
		return keyAndTimestampArgs{}, ts, sigerrors.ArgError{Msg: fmt.Sprintf("invalid -jp value %q", argJp)}
	}
	haveSpcKey := argSpc != "" && argKey != ""
	haveSpcPvk := argSpc != "" && argPvk != ""
	haveP12 := argPkcs12 != ""
	count := 0
	for _, have := range []bool{haveSpcKey, haveSpcPvk, haveP12} {
		if have {
			count++
		}
	}
	if count != 1 {
		return keyAndTimestampArgs{}, ts, sigerrors.ArgError{Msg: "exactly one of -spc/-key, -spc/-pvk, or -pkcs12 is required"}
	}
	if argTsURL != "" {
		ts.URL = argTsURL
		ts.Proxy = argProxy
	} else if argMsURL != "" {
		ts.URL = argMsURL
		ts.Legacy = true
		ts.Proxy = argProxy
	}
	return keyAndTimestampArgs{
		SpcFile:    argSpc,
		KeyFile:    argKey,
		Pkcs12File: argPkcs12,
		PvkFile:    argPvk,
		Password:   argPass,
	}, ts, nil
}
