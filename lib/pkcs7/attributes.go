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
	"bytes"
	"encoding/asn1"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// Exists reports whether an attribute of the given type is present.
func (l AttributeList) Exists(oid asn1.ObjectIdentifier) bool {
	for _, a := range l {
		if a.Type.Equal(oid) {
			return true
		}
	}
	return false
}

// Add appends a new attribute holding value, DER-encoded the same way
// SetContent/AddAuthenticatedAttribute do.
func (l *AttributeList) Add(oid asn1.ObjectIdentifier, value interface{}) error {
	der, err := marshalAny(value)
	if err != nil {
		return err
	}
	*l = append(*l, Attribute{Type: oid, Value: wrapSet(der)})
	return nil
}

// ErrNoAttribute is returned by GetOne and GetAll when oid is not present
// in the attribute list, so callers can distinguish "absent" from a
// decoding failure with a type assertion or errors.As.
type ErrNoAttribute struct {
	OID asn1.ObjectIdentifier
}

func (e ErrNoAttribute) Error() string {
	return fmt.Sprintf("pkcs7: attribute %s not found", e.OID)
}

// GetOne decodes the single value of the attribute oid into out. It is an
// error for the attribute to be missing or to have more than one value.
func (l AttributeList) GetOne(oid asn1.ObjectIdentifier, out interface{}) error {
	var found *Attribute
	for i := range l {
		if !l[i].Type.Equal(oid) {
			continue
		}
		if found != nil {
			return fmt.Errorf("pkcs7: multiple values for attribute %s", oid)
		}
		found = &l[i]
	}
	if found == nil {
		return ErrNoAttribute{oid}
	}
	return unmarshalAttrValue(found.Value, out)
}

// GetAll decodes every value of the attribute oid into outSlice, which
// must be a pointer to a slice.
func (l AttributeList) GetAll(oid asn1.ObjectIdentifier, outSlice interface{}) error {
	rv := reflect.ValueOf(outSlice)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return errors.New("pkcs7: GetAll requires a pointer to a slice")
	}
	elemType := rv.Elem().Type().Elem()
	result := reflect.MakeSlice(rv.Elem().Type(), 0, 0)
	for i := range l {
		if !l[i].Type.Equal(oid) {
			continue
		}
		ptr := reflect.New(elemType)
		if err := unmarshalAttrValue(l[i].Value, ptr.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, ptr.Elem())
	}
	rv.Elem().Set(result)
	return nil
}

// unmarshalAttrValue decodes the sole member of an attribute's value SET.
func unmarshalAttrValue(raw asn1.RawValue, out interface{}) error {
	_, err := asn1.Unmarshal(raw.Bytes, out)
	return err
}

// Bytes returns the canonical DER encoding of l as a SET OF Attribute,
// with members sorted into ascending order by encoding as DER requires.
// This is the exact byte sequence that gets hashed to produce a
// SignerInfo's signature over its authenticated attributes.
func (l AttributeList) Bytes() ([]byte, error) {
	if len(l) == 0 {
		return nil, errNoContent
	}
	encoded := make([][]byte, len(l))
	for i, a := range l {
		der, err := asn1.Marshal(a)
		if err != nil {
			return nil, err
		}
		encoded[i] = der
	}
	sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })
	var body []byte
	for _, der := range encoded {
		body = append(body, der...)
	}
	full := asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSet, IsCompound: true, Bytes: body}
	return asn1.Marshal(full)
}

// sorted returns a copy of l with its members in the canonical DER SET
// order used by Bytes, so the attributes embedded in the final SignerInfo
// match the order that was hashed to produce its signature.
func (l AttributeList) sorted() (AttributeList, error) {
	type entry struct {
		attr Attribute
		der  []byte
	}
	entries := make([]entry, len(l))
	for i, a := range l {
		der, err := asn1.Marshal(a)
		if err != nil {
			return nil, err
		}
		entries[i] = entry{a, der}
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].der, entries[j].der) < 0 })
	out := make(AttributeList, len(entries))
	for i, e := range entries {
		out[i] = e.attr
	}
	return out, nil
}

// marshalUnsortedSet marshals l as a SET OF Attribute in its existing
// order, without the canonical DER sort that Bytes applies. Used by
// round-tripping tests that want to observe the raw member order.
func marshalUnsortedSet(l AttributeList) ([]byte, error) {
	return asn1.MarshalWithParams(l, "set")
}
