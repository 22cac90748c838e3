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

package pkcs7

import (
	"encoding/asn1"
	"errors"
)

var errNoContent = errors.New("pkcs7: no content present")

// marshaler is implemented by the hand-rolled Microsoft ASN.1 structures
// that encoding/asn1's reflection can't express directly (CHOICE types,
// nested explicit tags).
type marshaler interface {
	Marshal() ([]byte, error)
}

// marshalAny encodes v to DER, using v's own Marshal method when present
// and falling back to encoding/asn1 reflection otherwise.
func marshalAny(v interface{}) ([]byte, error) {
	if m, ok := v.(marshaler); ok {
		return m.Marshal()
	}
	return asn1.Marshal(v)
}

// wrapSet wraps der, the full TLV of a single element, as the sole member
// of a DER SET.
func wrapSet(der []byte) asn1.RawValue {
	return asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSet, IsCompound: true, Bytes: der}
}
