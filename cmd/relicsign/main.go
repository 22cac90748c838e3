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

package main

import (
	"runtime/debug"
	"strings"

	"github.com/sassoftware/relicsign/cmdline/shared"
	"github.com/sassoftware/relicsign/config"

	_ "github.com/sassoftware/relicsign/cmdline/extract"
	_ "github.com/sassoftware/relicsign/cmdline/remove"
	_ "github.com/sassoftware/relicsign/cmdline/sign"
	_ "github.com/sassoftware/relicsign/cmdline/verify"

	_ "github.com/sassoftware/relicsign/signers/cab"
	_ "github.com/sassoftware/relicsign/signers/msi"
	_ "github.com/sassoftware/relicsign/signers/pecoff"
)

var (
	version = "unknown" // set this at link time
	commit  = "unknown" // set this at link time
)

func main() {
	if version != "unknown" {
		config.Version = version
		config.Commit = commit
	} else if bi, ok := debug.ReadBuildInfo(); ok {
		if strings.HasPrefix(bi.Main.Version, "v") {
			config.Version = bi.Main.Version
			config.Commit = bi.Main.Sum
		}
	}

	config.UserAgent = "relicsign/" + config.Version
	shared.Main()
}
