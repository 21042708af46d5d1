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

// Package cloudkms wraps wallet shares with Cloud KMS keys.
package cloudkms

import (
	"context"
	"fmt"
	"hash/crc32"
	"sync"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/shardkeep/shardkeep/custody/errs"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client defines an interface compatible with Cloud KMS client.
type Client interface {
	Encrypt(context.Context, *kmspb.EncryptRequest, ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(context.Context, *kmspb.DecryptRequest, ...gax.CallOption) (*kmspb.DecryptResponse, error)
	Close() error
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func crc32c(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// WrapOpts names the share to wrap and the key to wrap it with.
type WrapOpts struct {
	Share   []byte
	KeyName string
	RPCOpts []gax.CallOption
}

// WrapShare uses a KMS client to wrap the given share using Cloud KMS.
func WrapShare(ctx context.Context, client Client, opts WrapOpts) ([]byte, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil client specified", errs.ErrInvalidInput)
	}
	req := &kmspb.EncryptRequest{
		Name:            opts.KeyName,
		Plaintext:       opts.Share,
		PlaintextCrc32C: wrapperspb.Int64(int64(crc32c(opts.Share))),
	}

	result, err := client.Encrypt(ctx, req, opts.RPCOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}

	if !result.GetVerifiedPlaintextCrc32C() {
		return nil, fmt.Errorf("%w: Encrypt: request corrupted in-transit", errs.ErrIntegrity)
	}
	if int64(crc32c(result.GetCiphertext())) != result.GetCiphertextCrc32C().GetValue() {
		return nil, fmt.Errorf("%w: Encrypt: response corrupted in-transit", errs.ErrIntegrity)
	}
	return result.GetCiphertext(), nil
}

// UnwrapOpts names the wrapped share and the key that wrapped it.
type UnwrapOpts struct {
	Share   []byte
	KeyName string
	RPCOpts []gax.CallOption
}

// UnwrapShare uses a KMS client to unwrap the given share using Cloud KMS.
func UnwrapShare(ctx context.Context, client Client, opts UnwrapOpts) ([]byte, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil client specified", errs.ErrInvalidInput)
	}
	req := &kmspb.DecryptRequest{
		Name:             opts.KeyName,
		Ciphertext:       opts.Share,
		CiphertextCrc32C: wrapperspb.Int64(int64(crc32c(opts.Share))),
	}

	result, err := client.Decrypt(ctx, req, opts.RPCOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt ciphertext: %w", err)
	}

	if int64(crc32c(result.GetPlaintext())) != result.GetPlaintextCrc32C().GetValue() {
		return nil, fmt.Errorf("%w: Decrypt: response corrupted in-transit", errs.ErrIntegrity)
	}
	return result.GetPlaintext(), nil
}

// ClientFactory manages singleton instances of KMS Clients mapped to JSON credentials.
type ClientFactory struct {
	Version string

	mu           sync.Mutex
	clients      map[string]Client
	newKMSClient func(context.Context, ...option.ClientOption) (*kms.KeyManagementClient, error)
}

// NewClientFactory initializes a ClientFactory reporting the provided version.
func NewClientFactory(version string) *ClientFactory {
	return &ClientFactory{
		Version:      version,
		clients:      make(map[string]Client),
		newKMSClient: kms.NewKeyManagementClient,
	}
}

func (m *ClientFactory) createClient(ctx context.Context, credentials string) (Client, error) {
	// Set user agent for Cloud KMS API calls.
	ua := "shardkeep/"
	if m.Version != "" {
		ua += m.Version
	} else {
		ua += "dev"
	}

	opts := []option.ClientOption{option.WithUserAgent(ua)}

	// If credentials were specified, include them in the options.
	if len(credentials) != 0 {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
	}

	return m.newKMSClient(ctx, opts...)
}

// Client returns a KMS Client initialized with the provided credentials. If a client
// with these credentials already exists, it returns that.
func (m *ClientFactory) Client(ctx context.Context, credentials string) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clients == nil {
		m.clients = make(map[string]Client)
	}

	client, ok := m.clients[credentials]
	if !ok {
		var err error
		client, err = m.createClient(ctx, credentials)
		if err != nil {
			return nil, fmt.Errorf("error creating new KMS client: %v", err)
		}
		m.clients[credentials] = client
	}

	return client, nil
}

// Close iterates through all the clients in the map and closes them.
func (m *ClientFactory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for creds, client := range m.clients {
		if err := client.Close(); err != nil {
			return err
		}
		delete(m.clients, creds)
	}
	return nil
}
