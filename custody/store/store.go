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

// Package store defines the durable share repository used by the custody
// packages and an in-memory implementation.
//
// A Record binds a user to a public key and to the shares of the matching
// private key. Records are written once and never mutated.
package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/shares"
)

// Repository is durable keyed storage of per-user share sets.
type Repository interface {
	// Get returns the record for userID, or an error wrapping errs.ErrNotFound.
	Get(ctx context.Context, userID string) (*Record, error)
	// Put stores r, or returns an error wrapping errs.ErrConflict if
	// r.UserID already has a record.
	Put(ctx context.Context, r *Record) error
}

// Record is the persisted form of a wallet.
type Record struct {
	WalletID string `json:"walletId"`
	UserID   string `json:"userId"`
	// PublicKey is the base58 text of the Ed25519 public key.
	PublicKey string `json:"publicKey"`
	Threshold int    `json:"threshold"`
	// Shares holds hex(value || X) for every share.
	Shares []string `json:"shares"`
	// ShareHashes holds hex(SHA-256(value || X)) for every share, computed
	// before any wrapping so it checks the share that reaches the combiner.
	ShareHashes []string  `json:"shareHashes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewRecord builds the record for a freshly split key.
func NewRecord(userID, publicKey string, set shares.ShareSet) *Record {
	r := &Record{
		WalletID:  uuid.NewString(),
		UserID:    userID,
		PublicKey: publicKey,
		Threshold: set.Threshold,
		CreatedAt: time.Now().UTC(),
	}
	for _, s := range set.Shares {
		encoded := shares.EncodeShare(s)
		r.Shares = append(r.Shares, hex.EncodeToString(encoded))
		r.ShareHashes = append(r.ShareHashes, hex.EncodeToString(shares.HashShare(encoded)))
	}
	return r
}

// Validate checks the record is structurally complete.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil record", errs.ErrValidation)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: record has no user ID", errs.ErrValidation)
	}
	if r.PublicKey == "" {
		return fmt.Errorf("%w: record for %q has no public key", errs.ErrValidation, r.UserID)
	}
	if r.Threshold != shares.Threshold {
		return fmt.Errorf("%w: record for %q has threshold %d, policy requires %d", errs.ErrValidation, r.UserID, r.Threshold, shares.Threshold)
	}
	if len(r.Shares) != len(r.ShareHashes) {
		return fmt.Errorf("%w: record for %q has %d shares but %d hashes", errs.ErrValidation, r.UserID, len(r.Shares), len(r.ShareHashes))
	}
	return nil
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Shares = append([]string(nil), r.Shares...)
	c.ShareHashes = append([]string(nil), r.ShareHashes...)
	return &c
}

// ShareSet decodes the stored shares, checking each against its stored hash.
// A share that fails its hash is reported as errs.ErrValidation.
func (r *Record) ShareSet() (shares.ShareSet, error) {
	if err := r.Validate(); err != nil {
		return shares.ShareSet{}, err
	}
	set := shares.ShareSet{Threshold: r.Threshold}
	for i, text := range r.Shares {
		encoded, err := hex.DecodeString(text)
		if err != nil {
			set.Wipe()
			return shares.ShareSet{}, fmt.Errorf("%w: share %d is not valid hex", errs.ErrValidation, i)
		}
		hash, err := hex.DecodeString(r.ShareHashes[i])
		if err != nil || !shares.ValidateShare(encoded, hash) {
			set.Wipe()
			return shares.ShareSet{}, fmt.Errorf("%w: share %d does not match its stored hash", errs.ErrValidation, i)
		}
		s, err := shares.DecodeShare(encoded)
		if err != nil {
			set.Wipe()
			return shares.ShareSet{}, fmt.Errorf("share %d: %w", i, err)
		}
		set.Shares = append(set.Shares, s)
	}
	return set, nil
}
