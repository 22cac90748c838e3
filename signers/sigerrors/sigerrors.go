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

// Package sigerrors holds error types shared by every file format's
// signing and verification code, so that callers further up the stack
// (the CLI, the signing server) can distinguish "not signed" from
// "corrupt" from "wrong credentials" without depending on any one
// format's package.
package sigerrors

import "fmt"

// NotSignedError indicates a file of the named Type does not carry a
// signature at all.
type NotSignedError struct {
	Type string
}

func (e NotSignedError) Error() string {
	return fmt.Sprintf("%s file is not signed", e.Type)
}

// ErrNoCertificate indicates a signature of the named Type was found but
// did not include the signing certificate needed to verify it.
type ErrNoCertificate struct {
	Type string
}

func (e ErrNoCertificate) Error() string {
	return fmt.Sprintf("%s signature does not include a certificate", e.Type)
}

// KeyNotFoundError indicates the requested signing key does not exist.
type KeyNotFoundError struct {
	Name string
}

func (e KeyNotFoundError) Error() string {
	if e.Name == "" {
		return "key not found"
	}
	return fmt.Sprintf("key %q not found", e.Name)
}

// PinIncorrectError indicates a token or key PIN was rejected.
type PinIncorrectError struct{}

func (PinIncorrectError) Error() string {
	return "incorrect PIN"
}

// ErrExist indicates an operation that would create a duplicate signature
// or entry was skipped because one already exists.
var ErrExist = fmt.Errorf("signature already exists")

// ArgError indicates a command-line argument was missing, malformed, or
// used in a combination the tool doesn't support (e.g. -t and -ts
// together, or -jp medium/high).
type ArgError struct {
	Msg string
}

func (e ArgError) Error() string {
	return e.Msg
}

// FileTooShortError indicates the input file is smaller than the minimum
// header size of any format this tool recognizes.
type FileTooShortError struct{}

func (FileTooShortError) Error() string {
	return "file is too short to be a recognized format"
}

// UnknownFormatError indicates the input file's contents and name don't
// match any supported format.
type UnknownFormatError struct{}

func (UnknownFormatError) Error() string {
	return "unrecognized input file format"
}

// CabFlagsUnsupportedError indicates a cabinet file uses a flag bit
// (reserve areas, chained next cabinet) that this tool cannot sign
// around without corrupting.
type CabFlagsUnsupportedError struct{}

func (CabFlagsUnsupportedError) Error() string {
	return "cabinet file uses unsupported header flags"
}

// PeUnknownMagicError indicates a PE optional header magic value that is
// neither PE32 nor PE32+.
type PeUnknownMagicError struct{}

func (PeUnknownMagicError) Error() string {
	return "unrecognized PE optional header magic"
}

// PeMissingCertDirError indicates a PE file's optional header does not
// carry a certificate table data directory entry, so it cannot carry an
// Authenticode signature at all.
type PeMissingCertDirError struct{}

func (PeMissingCertDirError) Error() string {
	return "PE file has no certificate table directory entry"
}

// PeSignatureNotAtEndError indicates a PE file's certificate table is not
// the last item in the file, which osslsigncode-compatible tooling
// requires in order to safely append, replace, or strip it.
type PeSignatureNotAtEndError struct{}

func (PeSignatureNotAtEndError) Error() string {
	return "PE certificate table is not located at the end of the file"
}

// NoSignaturePresentError indicates extract-signature or
// remove-signature was asked to act on a file with no signature.
type NoSignaturePresentError struct {
	Type string
}

func (e NoSignaturePresentError) Error() string {
	return fmt.Sprintf("%s file has no signature to extract or remove", e.Type)
}

// KeyLoadFailedError wraps a failure to parse or decrypt signing key
// material (wrong PKCS#12 password, malformed SPC/PVK pair, etc).
type KeyLoadFailedError struct {
	Err error
}

func (e KeyLoadFailedError) Error() string {
	return fmt.Sprintf("failed to load signing key: %s", e.Err)
}

func (e KeyLoadFailedError) Unwrap() error {
	return e.Err
}

// SignerSelectionFailedError indicates none of the certificates supplied
// in a -spc/-pkcs12 chain is the issuer matching the supplied private
// key.
type SignerSelectionFailedError struct{}

func (SignerSelectionFailedError) Error() string {
	return "no certificate in the supplied chain matches the private key"
}

// TimestampTransportError wraps a network-level failure talking to a
// timestamp authority.
type TimestampTransportError struct {
	Err error
}

func (e TimestampTransportError) Error() string {
	return fmt.Sprintf("timestamp request failed: %s", e.Err)
}

func (e TimestampTransportError) Unwrap() error {
	return e.Err
}

// TimestampFormatError indicates a timestamp authority's response could
// not be parsed.
type TimestampFormatError struct {
	Err error
}

func (e TimestampFormatError) Error() string {
	return fmt.Sprintf("timestamp response could not be parsed: %s", e.Err)
}

func (e TimestampFormatError) Unwrap() error {
	return e.Err
}

// TimestampRejectedError indicates a timestamp authority returned a
// non-zero PKIStatus for the request.
type TimestampRejectedError struct {
	Status int
}

func (e TimestampRejectedError) Error() string {
	return fmt.Sprintf("timestamp authority rejected request, status %d", e.Status)
}

// DigestMismatchError indicates a verified signature's recorded digest
// does not match the actual content digest. Exit code 1, not a hard
// failure.
type DigestMismatchError struct {
	Expected, Actual []byte
}

func (e DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch: signature has %x, file digest is %x", e.Expected, e.Actual)
}

// ChecksumMismatchError indicates a PE file's recorded checksum does not
// match its actual computed checksum.
type ChecksumMismatchError struct {
	Expected, Actual uint32
}

func (e ChecksumMismatchError) Error() string {
	return fmt.Sprintf("PE checksum mismatch: header has %#x, computed %#x", e.Expected, e.Actual)
}

// CryptoVerifyFailedError wraps a cryptographic verification failure
// (bad signature, digest algorithm mismatch) distinct from a content
// DigestMismatchError.
type CryptoVerifyFailedError struct {
	Err error
}

func (e CryptoVerifyFailedError) Error() string {
	return fmt.Sprintf("signature verification failed: %s", e.Err)
}

func (e CryptoVerifyFailedError) Unwrap() error {
	return e.Err
}
