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

package authenticode

import (
	"context"
	"crypto"

	"github.com/sassoftware/relicsign/lib/certloader"
	"github.com/sassoftware/relicsign/lib/pkcs7"
	"github.com/sassoftware/relicsign/lib/pkcs9"
)

type OpusParams struct {
	Description string
	URL         string
	// Commercial selects the commercial SpcStatementType OID instead of
	// the default individual one (the -comm flag).
	Commercial bool
}

func signIndirect(ctx context.Context, indirect interface{}, hash crypto.Hash, cert *certloader.Certificate, params *OpusParams) (*pkcs9.TimestampedSignature, error) {
	sig := pkcs7.NewBuilder(cert.Signer(), cert.Chain(), hash)
	if err := sig.SetContent(OidSpcIndirectDataContent, indirect); err != nil {
		return nil, err
	}
	if err := addOpusAttrs(sig, params); err != nil {
		return nil, err
	}
	psd, err := sig.Sign()
	if err != nil {
		return nil, err
	}
	return pkcs9.TimestampAndMarshal(ctx, psd, cert.Timestamper, false)
}

func addOpusAttrs(sig *pkcs7.SignatureBuilder, params *OpusParams) error {
	purpose := OidSpcIndividualPurpose
	if params != nil && params.Commercial {
		purpose = OidSpcCommercialPurpose
	}
	if err := sig.AddAuthenticatedAttribute(OidSpcStatementType, SpcSpStatementType{Type: purpose}); err != nil {
		return err
	}
	var info SpcSpOpusInfo
	if params != nil {
		if params.Description != "" {
			name := NewSpcString(params.Description)
			info.ProgramName = &name
		}
		if params.URL != "" {
			info.MoreInfo = &SpcLink{URL: params.URL}
		}
	}
	if err := sig.AddAuthenticatedAttribute(OidSpcSpOpusInfo, info); err != nil {
		return err
	}
	return nil
}

func SignSip(ctx context.Context, imprint []byte, hash crypto.Hash, sipInfo SpcSipInfo, cert *certloader.Certificate, params *OpusParams) (*pkcs9.TimestampedSignature, error) {
	indirect, err := NewMsiIndirectData(imprint, hash, sipInfo)
	if err != nil {
		return nil, err
	}
	return signIndirect(ctx, indirect, hash, cert, params)
}

// GetOpusInfo extracts the optional SpcSpOpusInfo authenticated attribute
// from a verified SignerInfo, returning nil if the signature didn't carry
// one.
func GetOpusInfo(si *pkcs7.SignerInfo) (*SpcSpOpusInfo, error) {
	var info SpcSpOpusInfo
	if err := si.AuthenticatedAttributes.GetOne(OidSpcSpOpusInfo, &info); err != nil {
		if _, ok := err.(pkcs7.ErrNoAttribute); ok {
			return nil, nil
		}
		return nil, err
	}
	return &info, nil
}
