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

package certloader

import (
	"crypto/rc4"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/sassoftware/relicsign/lib/passprompt"
)

// Microsoft's legacy "PVK" private key container, as produced by the old
// signcode.exe/makecert.exe tools and consumed by osslsigncode's -pvk
// option. There is no public spec; this follows the file layout OpenSSL's
// pvkfmt.c and Wine's crypt32 document:
//
//	uint32 magic      0xb0b5f11e
//	uint32 reserved   0
//	uint32 keytype
//	uint32 encrypted  nonzero if the key blob below is RC4-encrypted
//	uint32 saltlen
//	uint32 keylen
//	byte   salt[saltlen]
//	byte   keyblob[keylen]   // a CryptoAPI PRIVATEKEYBLOB, RC4-encrypted
//	                         // past its first 8-byte BLOBHEADER if
//	                         // encrypted is set
var pvkMagic = uint32(0xb0b5f11e)

const pvkHeaderSize = 24

// rsa2Magic is the RSAPUBKEY.magic value CryptoAPI stamps on a
// PRIVATEKEYBLOB ("RSA2" read little-endian).
var rsa2Magic = uint32(0x32415352)

// ParsePVK parses a Microsoft PVK private key container, prompting for a
// password if the key blob is encrypted.
func ParsePVK(blob []byte, prompt passprompt.PasswordGetter) (*rsa.PrivateKey, error) {
	if len(blob) < pvkHeaderSize {
		return nil, errors.New("PVK file is too short")
	}
	if binary.LittleEndian.Uint32(blob[0:4]) != pvkMagic {
		return nil, errors.New("not a PVK file")
	}
	encrypted := binary.LittleEndian.Uint32(blob[12:16]) != 0
	saltLen := int(binary.LittleEndian.Uint32(blob[16:20]))
	keyLen := int(binary.LittleEndian.Uint32(blob[20:24]))
	if saltLen < 0 || keyLen < 8 || len(blob) < pvkHeaderSize+saltLen+keyLen {
		return nil, errors.New("PVK file is truncated")
	}
	salt := blob[pvkHeaderSize : pvkHeaderSize+saltLen]
	keyBlob := make([]byte, keyLen)
	copy(keyBlob, blob[pvkHeaderSize+saltLen:pvkHeaderSize+saltLen+keyLen])

	if !encrypted || saltLen == 0 {
		return parsePrivateKeyBlob(keyBlob)
	}

	var triedEmpty bool
	for {
		password, err := prompt.GetPasswd("Password for PVK: ")
		if err != nil {
			return nil, err
		} else if password == "" {
			if triedEmpty {
				return nil, errors.New("aborted")
			}
			triedEmpty = true
		}
		decrypted := decryptPVKBlob(keyBlob, salt, password)
		key, err := parsePrivateKeyBlob(decrypted)
		if err == nil {
			return key, nil
		}
	}
}

// decryptPVKBlob derives an RC4 key from the salt and password the same
// way CryptoAPI's CryptDeriveKey does for PVK files, and decrypts every
// byte of blob after the first 8 (the BLOBHEADER, which is never
// encrypted).
func decryptPVKBlob(blob, salt []byte, password string) []byte {
	out := make([]byte, len(blob))
	copy(out, blob)
	if len(blob) <= 8 {
		return out
	}
	h := sha1.New()
	h.Write(salt)
	h.Write([]byte(password))
	digest := h.Sum(nil)
	c, err := rc4.NewCipher(digest[:16])
	if err != nil {
		return out
	}
	c.XORKeyStream(out[8:], blob[8:])
	return out
}

// parsePrivateKeyBlob decodes a CryptoAPI PRIVATEKEYBLOB holding an RSA
// key: an 8-byte BLOBHEADER, a 12-byte RSAPUBKEY, then the modulus and
// the rest of the RSA CRT parameters, all stored as little-endian byte
// arrays (the reverse of the big-endian convention math/big expects).
func parsePrivateKeyBlob(blob []byte) (*rsa.PrivateKey, error) {
	if len(blob) < 20 {
		return nil, errors.New("PVK key blob is too short")
	}
	if blob[0] != 0x07 { // PRIVATEKEYBLOB
		return nil, errors.New("PVK key blob is not a private key blob")
	}
	if binary.LittleEndian.Uint32(blob[8:12]) != rsa2Magic {
		return nil, errors.New("PVK key blob is not an RSA private key")
	}
	bitlen := int(binary.LittleEndian.Uint32(blob[12:16]))
	pubExp := binary.LittleEndian.Uint32(blob[16:20])
	if bitlen <= 0 || bitlen%16 != 0 {
		return nil, errors.New("PVK key blob has an invalid bit length")
	}
	modLen := bitlen / 8
	halfLen := bitlen / 16
	need := 20 + modLen + halfLen*5
	if len(blob) < need {
		return nil, errors.New("PVK key blob is truncated")
	}
	pos := 20
	readField := func(n int) *big.Int {
		field := reversed(blob[pos : pos+n])
		pos += n
		return new(big.Int).SetBytes(field)
	}
	modulus := readField(modLen)
	prime1 := readField(halfLen)
	prime2 := readField(halfLen)
	// exponent1, exponent2, and coefficient are redundant with prime1 and
	// prime2 once rsa.PrivateKey.Precompute is called, and CryptoAPI's
	// layout doesn't match crypto/rsa's CRTValue fields directly, so skip
	// straight to the private exponent.
	pos += halfLen * 3
	privExp := readField(modLen)

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: modulus,
			E: int(pubExp),
		},
		D:      privExp,
		Primes: []*big.Int{prime1, prime2},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
