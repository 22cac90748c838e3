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

// Package signinit loads the signing key material named on the command
// line (-spc/-key, -pkcs12, or -spc/-pvk) and ties it together with a
// file format's Signer into the SignOpts a signing operation needs: a
// loaded certificate chain, an audit record, and an optional timestamper.
package signinit

import (
	"context"
	"crypto"
	"os"
	"time"

	"github.com/sassoftware/relicsign/config"
	"github.com/sassoftware/relicsign/lib/audit"
	"github.com/sassoftware/relicsign/lib/certloader"
	"github.com/sassoftware/relicsign/lib/passprompt"
	"github.com/sassoftware/relicsign/lib/pkcs9"
	"github.com/sassoftware/relicsign/lib/pkcs9/tsclient"
	"github.com/sassoftware/relicsign/lib/x509tools"
	"github.com/sassoftware/relicsign/signers"
	"github.com/sassoftware/relicsign/signers/sigerrors"
)

// KeyArgs holds the raw -spc/-key/-pkcs12/-pvk/-pass command-line values
// identifying the signing key material.
type KeyArgs struct {
	SpcFile    string
	KeyFile    string
	Pkcs12File string
	PvkFile    string
	Password   string
}

// LoadCertificate parses the signing key and certificate chain named by
// args, matching osslsigncode's three mutually exclusive key sources.
func LoadCertificate(args KeyArgs) (*certloader.Certificate, error) {
	cert, err := loadCertificate(args)
	if err != nil {
		return nil, err
	}
	if cert.Leaf != nil {
		cert.KeyName = cert.Leaf.Subject.CommonName
	}
	return cert, nil
}

func loadCertificate(args KeyArgs) (*certloader.Certificate, error) {
	prompt := passwordGetter(args.Password)
	switch {
	case args.Pkcs12File != "":
		blob, err := os.ReadFile(args.Pkcs12File)
		if err != nil {
			return nil, sigerrors.KeyLoadFailedError{Err: err}
		}
		cert, err := certloader.ParsePKCS12(blob, prompt)
		if err != nil {
			return nil, sigerrors.KeyLoadFailedError{Err: err}
		}
		return cert, nil
	case args.SpcFile != "" && args.KeyFile != "":
		cert, err := certloader.LoadX509KeyPair(args.SpcFile, args.KeyFile)
		if err != nil {
			return nil, sigerrors.KeyLoadFailedError{Err: err}
		}
		return cert, nil
	case args.SpcFile != "" && args.PvkFile != "":
		certBlob, err := os.ReadFile(args.SpcFile)
		if err != nil {
			return nil, sigerrors.KeyLoadFailedError{Err: err}
		}
		cert, err := certloader.ParseCertificates(certBlob)
		if err != nil {
			return nil, sigerrors.KeyLoadFailedError{Err: err}
		}
		pvkBlob, err := os.ReadFile(args.PvkFile)
		if err != nil {
			return nil, sigerrors.KeyLoadFailedError{Err: err}
		}
		key, err := certloader.ParsePVK(pvkBlob, prompt)
		if err != nil {
			return nil, sigerrors.KeyLoadFailedError{Err: err}
		}
		if !x509tools.SameKey(key, cert.Leaf.PublicKey) {
			return nil, sigerrors.SignerSelectionFailedError{}
		}
		cert.PrivateKey = key
		return cert, nil
	default:
		return nil, sigerrors.ArgError{Msg: "one of -pkcs12, or -spc with -key, or -spc with -pvk is required"}
	}
}

func passwordGetter(password string) passprompt.PasswordGetter {
	if password != "" {
		return passprompt.FixedPassword(password)
	}
	return passprompt.TerminalPrompt{}
}

// TimestampArgs holds the raw -t/-ts/-p command-line values selecting a
// timestamp authority for the signature.
type TimestampArgs struct {
	// URL is the timestamp authority to use. Empty means no timestamp.
	URL string
	// Legacy selects Microsoft's legacy Authenticode timestamping
	// protocol (-ts) instead of RFC 3161 (-t).
	Legacy bool
	// Proxy is an optional HTTP/HTTPS proxy URL (-p).
	Proxy string
}

// Init prepares to sign a stream with cert: it builds an audit record
// and, if requested, a timestamper for the given format module.
func Init(ctx context.Context, mod *signers.Signer, cert *certloader.Certificate, hash crypto.Hash, ts TimestampArgs, path string, flags *signers.FlagValues) (*signers.SignOpts, error) {
	if cert.Leaf == nil {
		return nil, sigerrors.ErrNoCertificate{Type: "x509"}
	}
	auditInfo := audit.New(cert.KeyName, mod.Name, hash)
	now := time.Now().UTC()
	auditInfo.SetTimestamp(now)
	auditInfo.SetX509Cert(cert.Leaf)
	if ts.URL != "" && (flags == nil || !flags.GetBool("no-timestamp")) {
		timestamper, err := getTimestamper(ts)
		if err != nil {
			return nil, err
		}
		cert.Timestamper = timestamper
	}
	opts := signers.SignOpts{
		Path:  path,
		Hash:  hash,
		Time:  now,
		Audit: auditInfo,
		Flags: flags,
	}
	opts = opts.WithContext(ctx)
	return &opts, nil
}

func getTimestamper(ts TimestampArgs) (pkcs9.Timestamper, error) {
	conf := &config.TimestampConfig{Proxy: ts.Proxy}
	if CurrentConfig != nil {
		base := CurrentConfig.GetTimestampConfig()
		conf.CaCert = base.CaCert
		conf.Timeout = base.Timeout
		conf.RateLimit = base.RateLimit
		conf.RateBurst = base.RateBurst
		conf.Memcache = base.Memcache
		if conf.Proxy == "" {
			conf.Proxy = base.Proxy
		}
	}
	if conf.Timeout == 0 {
		conf.Timeout = 60
	}
	if ts.Legacy {
		conf.MsURLs = []string{ts.URL}
	} else {
		conf.URLs = []string{ts.URL}
	}
	return tsclient.New(conf)
}

// CurrentConfig is set by the CLI entrypoint before any signing command
// runs, avoiding an import cycle with cmdline/shared. It may be nil, in
// which case timestamping uses only the values supplied on the command
// line.
var CurrentConfig *config.Config
