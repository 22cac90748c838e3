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

// Package audit records structured facts about a single signing operation
// (which key, which hash, which certificate, how long it took) so they can
// be logged or persisted alongside the signature itself.
package audit

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sassoftware/relicsign/lib/pkcs9"
	"github.com/sassoftware/relicsign/lib/x509tools"
)

type Info struct {
	Attributes map[string]interface{}
	StartTime  time.Time
}

// New creates an audit record, starting with the given key name, signature
// type, and digest algorithm.
func New(keyName, sigType string, hash crypto.Hash) *Info {
	now := time.Now().UTC()
	a := make(map[string]interface{})
	a["sig.type"] = sigType
	a["sig.keyname"] = keyName
	a["sig.hash"] = hash.String()
	a["sig.timestamp"] = now
	if hostname, _ := os.Hostname(); hostname != "" {
		a["sig.hostname"] = hostname
	}
	return &Info{Attributes: a, StartTime: now}
}

// SetX509Cert records the signing certificate used for this operation.
func (info *Info) SetX509Cert(cert *x509.Certificate) {
	info.Attributes["sig.x509.subject"] = x509tools.FormatSubject(cert)
	info.Attributes["sig.x509.issuer"] = x509tools.FormatIssuer(cert)
	d := crypto.SHA1.New()
	d.Write(cert.Raw)
	info.Attributes["sig.x509.fingerprint"] = fmt.Sprintf("%x", d.Sum(nil))
}

// SetTimestamp overrides the default timestamp for this audit record.
func (info *Info) SetTimestamp(t time.Time) {
	info.Attributes["sig.timestamp"] = t.UTC()
}

// SetCounterSignature records the PKCS#9 timestamp counter-signature
// applied to this operation, if any.
func (info *Info) SetCounterSignature(cs *pkcs9.CounterSignature) {
	if cs == nil {
		return
	}
	if cs.Certificate != nil {
		info.Attributes["sig.ts.timestamper"] = x509tools.FormatSubject(cs.Certificate)
	}
	info.Attributes["sig.ts.timestamp"] = cs.SigningTime
}

// SetMimeType sets the MIME type the result of this operation will be
// returned as. This is not the MIME type of the package being signed.
func (info *Info) SetMimeType(mimeType string) {
	info.Attributes["content-type"] = mimeType
}

// GetMimeType returns the MIME type set by SetMimeType, or a generic
// fallback if none was set.
func (info *Info) GetMimeType() string {
	if v, ok := info.Attributes["content-type"].(string); ok {
		return v
	}
	return "application/octet-stream"
}

// Marshal renders the audit record as JSON, filling in the elapsed time if
// it wasn't already set explicitly.
func (info *Info) Marshal() ([]byte, error) {
	if info.Attributes["perf.elapsed.ms"] == nil && !info.StartTime.IsZero() {
		info.Attributes["perf.elapsed.ms"] = time.Since(info.StartTime).Nanoseconds() / 1e6
	}
	return json.Marshal(info.Attributes)
}

// AttrsForLog returns the subset of attributes with the given prefix, with
// the prefix stripped, as a zerolog dict suitable for attaching to a log
// event.
func (info *Info) AttrsForLog(prefix string) *zerolog.Event {
	ev := zerolog.Dict()
	for name, value := range info.Attributes {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		name = name[len(prefix):]
		if s, ok := value.(string); ok {
			ev.Str(name, s)
		} else {
			ev.Interface(name, value)
		}
	}
	return ev
}

// Parse reads an audit record back out of JSON, unwrapping a base64-sealed
// "attributes" envelope if present.
func Parse(blob []byte) (*Info, error) {
	if len(blob) == 0 {
		return nil, errors.New("missing attributes")
	}
	info := new(Info)
	if err := json.Unmarshal(blob, &info.Attributes); err != nil {
		return nil, err
	}
	if sealed, ok := info.Attributes["attributes"].(string); ok {
		raw, err := base64.StdEncoding.DecodeString(sealed)
		if err != nil {
			return nil, err
		}
		info.Attributes = nil
		if err := json.Unmarshal(raw, &info.Attributes); err != nil {
			return nil, err
		}
	}
	return info, nil
}
