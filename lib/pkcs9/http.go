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
	"bytes"
	"crypto"
	"crypto/hmac"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/sassoftware/relicsign/lib/pkcs7"
	"github.com/sassoftware/relicsign/lib/x509tools"
)

// NewRequest builds a RFC 3161 TimeStampReq over imprint, which was
// digested with hash, along with the HTTP POST request that carries it to
// url. Callers still need to set a User-Agent and attach a context before
// sending it.
func NewRequest(url string, hash crypto.Hash, imprint []byte) (*TimeStampReq, *http.Request, error) {
	alg, ok := x509tools.PkixDigestAlgorithm(hash)
	if !ok {
		return nil, nil, errors.New("pkcs9: unknown digest algorithm")
	}
	msg := &TimeStampReq{
		Version: 1,
		MessageImprint: MessageImprint{
			HashAlgorithm: alg,
			HashedMessage: imprint,
		},
		Nonce:   x509tools.MakeSerial(),
		CertReq: true,
	}
	body, err := asn1.Marshal(*msg)
	if err != nil {
		return nil, nil, err
	}
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/timestamp-query")
	return msg, httpReq, nil
}

// ParseResponse parses a RFC 3161 TSA's HTTP response body and sanity
// checks it against the nonce and message imprint in msg, the request that
// produced it, returning the embedded time-stamp token.
func (msg *TimeStampReq) ParseResponse(body []byte) (*pkcs7.ContentInfoSignedData, error) {
	respmsg := new(TimeStampResp)
	if rest, err := asn1.Unmarshal(body, respmsg); err != nil {
		return nil, fmt.Errorf("pkcs9: unmarshalling response: %s", err)
	} else if len(rest) != 0 {
		return nil, errors.New("pkcs9: trailing bytes in response")
	} else if respmsg.Status.Status > StatusGrantedWithMods {
		return nil, fmt.Errorf("pkcs9: request denied: status=%d failureInfo=%x", respmsg.Status.Status, respmsg.Status.FailInfo.Bytes)
	}
	if err := sanityCheckToken(msg, &respmsg.TimeStampToken); err != nil {
		return nil, fmt.Errorf("pkcs9: token sanity check failed: %s", err)
	}
	return &respmsg.TimeStampToken, nil
}

// sanityCheckToken verifies that a token's inner TSTInfo actually answers
// the request it was issued for, before the caller goes on to check its
// signature and certificate chain.
func sanityCheckToken(req *TimeStampReq, psd *pkcs7.ContentInfoSignedData) error {
	if _, err := psd.Content.Verify(nil, false); err != nil {
		return err
	}
	info, err := UnpackTokenInfo(psd)
	if err != nil {
		return err
	}
	if req.Nonce.Cmp(info.Nonce) != 0 {
		return errors.New("request nonce mismatch")
	}
	if !hmac.Equal(info.MessageImprint.HashedMessage, req.MessageImprint.HashedMessage) {
		return errors.New("message imprint mismatch")
	}
	return nil
}

// UnpackTokenInfo decodes the TSTInfo carried inside a time-stamp token.
func UnpackTokenInfo(psd *pkcs7.ContentInfoSignedData) (*TSTInfo, error) {
	infobytes, err := psd.Content.ContentInfo.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pkcs9: unpack TSTInfo: %s", err)
	}
	info := new(TSTInfo)
	if _, err := asn1.Unmarshal(infobytes, info); err != nil {
		return nil, fmt.Errorf("pkcs9: unpack TSTInfo: %s", err)
	}
	return info, nil
}

// NewLegacyRequest builds the HTTP POST request for Microsoft's older,
// pre-RFC-3161 Authenticode timestamping protocol: the ASCII hex encoding
// of the signature's encrypted digest, sent with the
// application/octet-stream content type that signtool uses.
func NewLegacyRequest(url string, encryptedDigest []byte) (*http.Request, error) {
	body := []byte(hex.EncodeToString(encryptedDigest))
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	return httpReq, nil
}

// ParseLegacyResponse decodes a legacy Authenticode timestamp server's
// response: the base64 encoding of a detached PKCS#7 SignedData counter
// signature over the request body.
func ParseLegacyResponse(body []byte) (*pkcs7.ContentInfoSignedData, error) {
	der, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(body)))
	if err != nil {
		return nil, fmt.Errorf("pkcs9: decoding legacy timestamp response: %w", err)
	}
	psd := new(pkcs7.ContentInfoSignedData)
	if _, err := asn1.Unmarshal(der, psd); err != nil {
		return nil, fmt.Errorf("pkcs9: unmarshalling legacy timestamp response: %w", err)
	}
	return psd, nil
}
