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

import "github.com/sassoftware/relicsign/signers/sigerrors"

// ResolveInOut merges the -in/-out flag values with positional arguments,
// per the "[-in] INFILE [-out] OUTFILE" syntax shared by sign,
// extract-signature, and remove-signature.
func ResolveInOut(argIn, argOut string, args []string) (infile, outfile string, err error) {
	infile, outfile = argIn, argOut
	pos := args
	if infile == "" {
		if len(pos) == 0 {
			return "", "", sigerrors.ArgError{Msg: "input file is required"}
		}
		infile, pos = pos[0], pos[1:]
	}
	if outfile == "" {
		if len(pos) == 0 {
			return "", "", sigerrors.ArgError{Msg: "output file is required"}
		}
		outfile, pos = pos[0], pos[1:]
	}
	if len(pos) != 0 {
		return "", "", sigerrors.ArgError{Msg: "too many arguments"}
	}
	return infile, outfile, nil
}

// ResolveIn merges the -in flag value with a positional argument, per the
// "[-in] INFILE" syntax used by verify, which takes no output file.
func ResolveIn(argIn string, args []string) (infile string, err error) {
	infile = argIn
	pos := args
	if infile == "" {
		if len(pos) == 0 {
			return "", sigerrors.ArgError{Msg: "input file is required"}
		}
		infile, pos = pos[0], pos[1:]
	}
	if len(pos) != 0 {
		return "", sigerrors.ArgError{Msg: "too many arguments"}
	}
	return infile, nil
}
