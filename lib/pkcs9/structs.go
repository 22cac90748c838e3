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

// Package pkcs9 implements RFC 3161 time-stamp requests and responses, and
// the attributes used to embed a time-stamp token as a PKCS#7
// counter-signature.
package pkcs9

import (
	"context"
	"crypto"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/sassoftware/relicsign/lib/pkcs7"
)

var (
	// RFC 3161
	OidContentTypeTSTInfo     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}
	OidAttributeTimeStampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}
	// PKCS#9
	OidAttributeCounterSign = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 6}
	// Microsoft's pre-RFC-3161 Authenticode timestamping service uses this
	// OID for the same purpose as OidAttributeTimeStampToken.
	OidSpcTimeStampToken = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 3, 3, 1}
)

// PKIStatus values, RFC 3161 section 2.4.2.
const (
	StatusGranted             = 0
	StatusGrantedWithMods     = 1
	StatusRejection           = 2
	StatusWaiting             = 3
	StatusRevocationWarning   = 4
	StatusRevocationNotification = 5
)

// MessageImprint is MessageImprint ::= SEQUENCE { hashAlgorithm
// AlgorithmIdentifier, hashedMessage OCTET STRING }.
type MessageImprint struct {
	HashAlgorithm pkix.AlgorithmIdentifier
	HashedMessage []byte
}

// TimeStampReq is TimeStampReq ::= SEQUENCE { version INTEGER,
// messageImprint MessageImprint, reqPolicy TSAPolicyId OPTIONAL,
// nonce INTEGER OPTIONAL, certReq BOOLEAN DEFAULT FALSE,
// extensions [0] IMPLICIT Extensions OPTIONAL }.
type TimeStampReq struct {
	Version        int
	MessageImprint MessageImprint
	ReqPolicy      asn1.ObjectIdentifier `asn1:"optional"`
	Nonce          *big.Int              `asn1:"optional"`
	CertReq        bool                  `asn1:"optional"`
	Extensions     []pkix.Extension      `asn1:"optional,explicit,tag:0"`
}

// PKIFreeText is PKIFreeText ::= SEQUENCE SIZE (1..MAX) OF UTF8String.
type PKIFreeText []string

// PKIStatusInfo is PKIStatusInfo ::= SEQUENCE { status PKIStatus,
// statusString PKIFreeText OPTIONAL, failInfo PKIFailureInfo OPTIONAL }.
type PKIStatusInfo struct {
	Status       int
	StatusString PKIFreeText  `asn1:"optional"`
	FailInfo     asn1.BitString `asn1:"optional"`
}

// TimeStampResp is TimeStampResp ::= SEQUENCE { status PKIStatusInfo,
// timeStampToken TimeStampToken OPTIONAL }, where TimeStampToken is itself
// a ContentInfo wrapping a SignedData whose content is a TSTInfo.
type TimeStampResp struct {
	Status         PKIStatusInfo
	TimeStampToken pkcs7.ContentInfoSignedData `asn1:"optional"`
}

// Accuracy is Accuracy ::= SEQUENCE { seconds INTEGER OPTIONAL,
// millis [0] INTEGER OPTIONAL, micros [1] INTEGER OPTIONAL }.
type Accuracy struct {
	Seconds int `asn1:"optional"`
	Millis  int `asn1:"optional,explicit,tag:0"`
	Micros  int `asn1:"optional,explicit,tag:1"`
}

// TSTInfo is TSTInfo ::= SEQUENCE { version INTEGER,
// policy TSAPolicyId, messageImprint MessageImprint,
// serialNumber INTEGER, genTime GeneralizedTime,
// accuracy Accuracy OPTIONAL, ordering BOOLEAN DEFAULT FALSE,
// nonce INTEGER OPTIONAL, tsa [0] EXPLICIT GeneralName OPTIONAL,
// extensions [1] IMPLICIT Extensions OPTIONAL }.
type TSTInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint MessageImprint
	SerialNumber   *big.Int
	GenTime        time.Time        `asn1:"generalized"`
	Accuracy       Accuracy         `asn1:"optional"`
	Ordering       bool             `asn1:"optional"`
	Nonce          *big.Int         `asn1:"optional"`
	// TSA holds the DER of whichever GeneralName alternative the TSA chose
	// to identify itself, tag and content octets both, with the
	// surrounding EXPLICIT [0] wrapper stripped off by Unmarshal. See
	// DirectoryName for decoding the common case.
	TSA        asn1.RawValue    `asn1:"optional,explicit,tag:0"`
	Extensions []pkix.Extension `asn1:"optional,explicit,tag:1"`
}

// Request describes a time-stamp to obtain over a signature's
// EncryptedDigest: Hash names the digest algorithm already used by the
// signature (and thus the one the TSA is asked to use for its own
// MessageImprint), and Legacy selects Microsoft's older non-RFC-3161
// Authenticode timestamping protocol, which the URLs in
// config.TimestampConfig.MsURLs serve, instead of RFC 3161 itself.
type Request struct {
	EncryptedDigest []byte
	Hash            crypto.Hash
	Legacy          bool
}

// Timestamper requests a time-stamp token (or legacy Authenticode
// counter-signature) over req and returns the raw ContentInfoSignedData
// received from the TSA, unverified.
type Timestamper interface {
	Timestamp(ctx context.Context, req *Request) (*pkcs7.ContentInfoSignedData, error)
}
