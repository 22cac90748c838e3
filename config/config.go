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

package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Version and Commit are set at link time, or from the build module's
// version info when installed with `go install`. UserAgent is derived
// from Version by main once it is known.
var (
	Version   = "unknown"
	Commit    = "unknown"
	UserAgent = "relicsign/unknown"
)

// TimestampConfig configures how outgoing Authenticode signatures get
// counter-signed by a trusted time-stamp authority. Signing key material
// always comes from the -spc/-key/-pkcs12/-pvk command-line flags; this
// file only supplies defaults for the -t/-ts timestamping options.
type TimestampConfig struct {
	// URLs are tried in order for RFC 3161 time-stamp requests (-t).
	URLs []string `yaml:",omitempty"`
	// MsURLs are tried in order for Microsoft's legacy Authenticode
	// timestamping protocol (-ts).
	MsURLs []string `yaml:",omitempty"`
	// CaCert optionally names a PEM file of extra root certificates
	// trusted for the timestamp authority's TLS connection, on top of
	// the system roots.
	CaCert string `yaml:",omitempty"`
	// Proxy, if set, is an HTTP/HTTPS proxy URL used for outgoing
	// timestamp requests (the -p flag).
	Proxy string `yaml:",omitempty"`
	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:",omitempty"`
	// RateLimit caps outgoing requests per second; 0 disables limiting.
	RateLimit float64 `yaml:",omitempty"`
	RateBurst int     `yaml:",omitempty"`
	// Memcache, if set, names memcache servers used to cache timestamp
	// tokens by digest, so re-signing identical content does not consume
	// a fresh timestamp.
	Memcache []string `yaml:",omitempty"`
}

type Config struct {
	Timestamp *TimestampConfig `yaml:",omitempty"`
}

func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf := new(Config)
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// GetTimestampConfig returns the configured timestamp authority settings,
// or an empty TimestampConfig if none is configured.
func (config *Config) GetTimestampConfig() *TimestampConfig {
	if config == nil || config.Timestamp == nil {
		return &TimestampConfig{}
	}
	return config.Timestamp
}
