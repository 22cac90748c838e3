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

package x509tools

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"strings"
)

// SameKey reports whether two public keys describe the same key material,
// the way a signer certificate is matched against a raw private key. a and
// b may each be a crypto.PublicKey or a crypto.PrivateKey that implements
// Public() crypto.PublicKey.
func SameKey(a, b interface{}) bool {
	ka := publicKey(a)
	kb := publicKey(b)
	switch ka := ka.(type) {
	case *rsa.PublicKey:
		kb, ok := kb.(*rsa.PublicKey)
		return ok && ka.E == kb.E && ka.N.Cmp(kb.N) == 0
	case *ecdsa.PublicKey:
		kb, ok := kb.(*ecdsa.PublicKey)
		return ok && ka.Curve == kb.Curve && ka.X.Cmp(kb.X) == 0 && ka.Y.Cmp(kb.Y) == 0
	default:
		return false
	}
}

// publicKey unwraps key to a crypto.PublicKey if it is a private key that
// implements the standard Public() accessor; otherwise it is returned
// unchanged, since it is presumably already a public key.
func publicKey(key interface{}) interface{} {
	if signer, ok := key.(interface{ Public() crypto.PublicKey }); ok {
		return signer.Public()
	}
	return key
}

// Verify checks a raw PKCS#1v1.5 or ECDSA signature against a digest using
// pub. If hash is 0 the digest is assumed to already include its
// DigestInfo wrapper (used as a fallback for timestamp authorities that
// omit the AlgorithmIdentifier from their signed digest).
func Verify(pub crypto.PublicKey, hash crypto.Hash, digest, signature []byte) error {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(k, hash, digest, signature)
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(k, digest, signature) {
			return errors.New("x509tools: ECDSA signature verification failed")
		}
		return nil
	default:
		return errors.New("x509tools: unsupported public key type")
	}
}

// HashByName maps an Authenticode digest algorithm flag ("md5", "sha1",
// "sha2"/"sha256") to a crypto.Hash, as accepted by the -h flag.
func HashByName(name string) crypto.Hash {
	switch strings.ToLower(name) {
	case "md5":
		return crypto.MD5
	case "sha1", "sha-1":
		return crypto.SHA1
	case "sha2", "sha256", "sha-256":
		return crypto.SHA256
	case "sha384", "sha-384":
		return crypto.SHA384
	case "sha512", "sha-512":
		return crypto.SHA512
	default:
		return 0
	}
}

// LoadCertPool adds the PEM certificates in path to conf.RootCAs,
// starting from a copy of the system pool if conf has none. Used by the
// timestamp HTTP client to trust extra roots for a timestamp authority's
// TLS certificate.
func LoadCertPool(path string, conf *tls.Config) error {
	if path == "" {
		return nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if conf.RootCAs == nil {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		conf.RootCAs = pool
	}
	if !conf.RootCAs.AppendCertsFromPEM(blob) {
		return errors.New("x509tools: no certificates found in " + path)
	}
	return nil
}
