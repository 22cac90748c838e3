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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sassoftware/relicsign/config"
	"github.com/sassoftware/relicsign/signers/sigerrors"
)

// InitConfig loads the --config file, if any. A config file is entirely
// optional: it only ever supplies defaults for -t/-ts timestamping, so a
// missing or unspecified one just leaves CurrentConfig empty rather than
// failing the command. An explicitly-named config file that can't be
// read is still an error.
func InitConfig() error {
	if CurrentConfig != nil {
		return nil
	}
	path := ArgConfig
	explicit := path != ""
	if path == "" {
		path = config.DefaultConfig()
	}
	if path == "" {
		CurrentConfig = &config.Config{}
		return nil
	}
	conf, err := config.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			CurrentConfig = &config.Config{}
			return nil
		}
		return err
	}
	CurrentConfig = conf
	return nil
}

func OpenFile(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	} else {
		return os.Open(path)
	}
}

// OpenForPatching returns a handle to dest, ready for a signer to read
// and patch in place. If dest differs from src, src's contents are
// copied to dest first so formats that mutate a file by path (MSI)
// still see the original content regardless of where it's going.
func OpenForPatching(src, dest string) (*os.File, error) {
	if src != dest {
		in, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer in.Close()
		out, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return nil, err
		}
		if _, err := out.Seek(0, io.SeekStart); err != nil {
			out.Close()
			return nil, err
		}
		return out, nil
	}
	return os.OpenFile(dest, os.O_RDWR, 0)
}

// ExitCode returns the process exit code a given command result maps to:
// 0 on success, 1 if err is a verification mismatch, -1 for any other
// hard failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var digestErr sigerrors.DigestMismatchError
	var checksumErr sigerrors.ChecksumMismatchError
	if errors.As(err, &digestErr) || errors.As(err, &checksumErr) {
		return 1
	}
	return -1
}

// Fail prints err and exits the process with the exit code its type maps
// to. Used by commands, such as verify, that don't produce an output
// file to clean up.
func Fail(err error) error {
	if err == nil {
		return nil
	}
	fmt.Fprintln(os.Stderr, "Failed:", err)
	os.Exit(ExitCode(err))
	return err
}

// FailSign prints err, removes outPath if the failure was a hard failure
// rather than a verification mismatch, and exits the process.
func FailSign(err error, outPath string) error {
	if err == nil {
		return nil
	}
	code := ExitCode(err)
	if code != 1 && outPath != "" {
		os.Remove(outPath)
	}
	fmt.Fprintln(os.Stderr, "Failed:", err)
	os.Exit(code)
	return err
}
