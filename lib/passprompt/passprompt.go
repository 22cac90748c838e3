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

// Package passprompt abstracts prompting for a password or PIN, so that
// callers deep in certificate-loading code don't need to know whether
// they're talking to a terminal or a fixed value supplied on the
// command line.
package passprompt

import (
	"errors"
	"fmt"
	"os"

	"github.com/howeyc/gopass"
)

// PasswordGetter returns a password for the given prompt, or an error if
// none could be obtained.
type PasswordGetter interface {
	GetPasswd(prompt string) (string, error)
}

// TerminalPrompt reads a password interactively from the controlling
// terminal, echoing prompts to stderr.
type TerminalPrompt struct{}

func (TerminalPrompt) GetPasswd(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := gopass.GetPasswd()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// FixedPassword always returns the same value, for use with --password
// flags or when a password is unnecessary.
type FixedPassword string

func (f FixedPassword) GetPasswd(string) (string, error) {
	return string(f), nil
}

// ErrAborted is returned by PasswordGetter implementations that give up
// after too many failed attempts.
var ErrAborted = errors.New("passprompt: aborted")
