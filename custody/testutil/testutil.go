// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package testutil contains fakes for unit tests.
package testutil

import (
	"context"
	"hash/crc32"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var (
	// TestKEKName is a test Cloud KMS key name.
	TestKEKName = "projects/test/locations/test/keyRings/test/cryptoKeys/test"
	// TestHSMKEKName is a test key name for an HSM-protected key.
	TestHSMKEKName = "projects/test/locations/test/keyRings/test/cryptoKeys/testHsm"
	// TestSoftwareKEKName is a test key name for a software-protected key.
	TestSoftwareKEKName = "projects/test/locations/test/keyRings/test/cryptoKeys/testSoftware"
)

func crc32c(data []byte) uint32 {
	return crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli))
}

// FakeKeyManagementClient is a fake version of Cloud KMS Key Management client.
type FakeKeyManagementClient struct {
	kms.KeyManagementClient

	EncryptFunc func(context.Context, *kmspb.EncryptRequest, ...gax.CallOption) (*kmspb.EncryptResponse, error)
	DecryptFunc func(context.Context, *kmspb.DecryptRequest, ...gax.CallOption) (*kmspb.DecryptResponse, error)
}

func keyMarker(name string) byte {
	switch name {
	case TestHSMKEKName:
		return 'H'
	case TestSoftwareKEKName:
		return 'S'
	default:
		return 'U'
	}
}

// FakeKMSWrap returns a fake wrapped share: the share XORed with 0x5A
// followed by a marker for the key.
func FakeKMSWrap(unwrapped []byte, name string) []byte {
	out := make([]byte, 0, len(unwrapped)+1)
	for _, b := range unwrapped {
		out = append(out, b^0x5A)
	}
	return append(out, keyMarker(name))
}

// FakeKMSUnwrap reverses FakeKMSWrap. A share wrapped under another key
// unwraps to garbage.
func FakeKMSUnwrap(wrapped []byte, name string) []byte {
	if len(wrapped) == 0 || wrapped[len(wrapped)-1] != keyMarker(name) {
		return []byte("nonsenseee")
	}
	out := make([]byte, 0, len(wrapped)-1)
	for _, b := range wrapped[:len(wrapped)-1] {
		out = append(out, b^0x5A)
	}
	return out
}

// ValidEncryptResponse returns a fake successful response for CloudKMS Encrypt.
func ValidEncryptResponse(req *kmspb.EncryptRequest) *kmspb.EncryptResponse {
	wrappedShare := FakeKMSWrap(req.GetPlaintext(), req.GetName())

	return &kmspb.EncryptResponse{
		Name:                    req.GetName(),
		Ciphertext:              wrappedShare,
		CiphertextCrc32C:        wrapperspb.Int64(int64(crc32c(wrappedShare))),
		VerifiedPlaintextCrc32C: req.GetPlaintextCrc32C().GetValue() == int64(crc32c(req.GetPlaintext())),
	}
}

// Encrypt calls EncryptFunc if applicable. Otherwise returns a fake Encrypt response.
func (f *FakeKeyManagementClient) Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error) {
	if f.EncryptFunc != nil {
		return f.EncryptFunc(ctx, req, opts...)
	}

	return ValidEncryptResponse(req), nil
}

// ValidDecryptResponse returns a fake successful response for CloudKMS Decrypt.
func ValidDecryptResponse(req *kmspb.DecryptRequest) *kmspb.DecryptResponse {
	unwrappedShare := FakeKMSUnwrap(req.GetCiphertext(), req.GetName())

	return &kmspb.DecryptResponse{
		Plaintext:       unwrappedShare,
		PlaintextCrc32C: wrapperspb.Int64(int64(crc32c(unwrappedShare))),
	}
}

// Decrypt calls DecryptFunc if applicable. Otherwise returns a fake Decrypt response.
func (f *FakeKeyManagementClient) Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error) {
	if f.DecryptFunc != nil {
		return f.DecryptFunc(ctx, req, opts...)
	}

	return ValidDecryptResponse(req), nil
}

// Close is a no-op. Needed to implement the KMS Client interface.
func (f *FakeKeyManagementClient) Close() error {
	return nil
}
