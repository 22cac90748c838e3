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

package pkcs9

import (
	"crypto/x509/pkix"
	"encoding/asn1"
)

// generalNameDirectoryName is the GeneralName CHOICE tag for directoryName,
// the only alternative a commercial TSA is ever observed to send.
const generalNameDirectoryName = 4

// DirectoryName decodes tsa, the TSTInfo.TSA field, as an X.501 Name, if
// the TSA identified itself that way. ok is false for any other
// alternative or if tsa is absent.
func DirectoryName(tsa asn1.RawValue) (name pkix.RDNSequence, ok bool) {
	if len(tsa.FullBytes) == 0 && len(tsa.Bytes) == 0 {
		return nil, false
	}
	var inner asn1.RawValue
	if _, err := asn1.Unmarshal(tsa.Bytes, &inner); err != nil {
		return nil, false
	}
	if inner.Tag != generalNameDirectoryName {
		return nil, false
	}
	if _, err := asn1.Unmarshal(inner.Bytes, &name); err != nil {
		return nil, false
	}
	return name, true
}
