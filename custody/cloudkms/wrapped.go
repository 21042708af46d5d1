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

package cloudkms

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/golang/glog"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/internal/zeroize"
	"github.com/shardkeep/shardkeep/custody/store"
)

// WrappedStore is a store.Repository that wraps every share with a Cloud KMS
// key before handing the record to an inner repository, and unwraps shares
// read back from it. Share hashes are kept over the unwrapped shares.
type WrappedStore struct {
	inner   store.Repository
	client  Client
	keyName string
}

var _ store.Repository = (*WrappedStore)(nil)

// NewWrappedStore returns a WrappedStore using the KMS key keyName.
func NewWrappedStore(inner store.Repository, client Client, keyName string) (*WrappedStore, error) {
	if inner == nil || client == nil {
		return nil, fmt.Errorf("%w: wrapped store needs an inner repository and a KMS client", errs.ErrInvalidInput)
	}
	if keyName == "" {
		return nil, fmt.Errorf("%w: empty KMS key name", errs.ErrInvalidInput)
	}
	return &WrappedStore{inner: inner, client: client, keyName: keyName}, nil
}

// Put implements store.Repository.
func (w *WrappedStore) Put(ctx context.Context, r *store.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	wrapped := r.Clone()
	for i, text := range r.Shares {
		share, err := hex.DecodeString(text)
		if err != nil {
			return fmt.Errorf("%w: share %d is not valid hex", errs.ErrValidation, i)
		}
		ciphertext, err := WrapShare(ctx, w.client, WrapOpts{Share: share, KeyName: w.keyName})
		zeroize.Bytes(share)
		if err != nil {
			return fmt.Errorf("wrapping share %d: %w", i, err)
		}
		wrapped.Shares[i] = hex.EncodeToString(ciphertext)
	}
	glog.V(1).Infof("cloudkms: wrapped %d shares for user %q with %s", len(wrapped.Shares), r.UserID, w.keyName)
	return w.inner.Put(ctx, wrapped)
}

// Get implements store.Repository.
func (w *WrappedStore) Get(ctx context.Context, userID string) (*store.Record, error) {
	stored, err := w.inner.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	r := stored.Clone()
	for i, text := range r.Shares {
		ciphertext, err := hex.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("%w: wrapped share %d is not valid hex", errs.ErrValidation, i)
		}
		share, err := UnwrapShare(ctx, w.client, UnwrapOpts{Share: ciphertext, KeyName: w.keyName})
		if err != nil {
			return nil, fmt.Errorf("unwrapping share %d: %w", i, err)
		}
		r.Shares[i] = hex.EncodeToString(share)
		zeroize.Bytes(share)
	}
	return r, nil
}
