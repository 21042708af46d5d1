// Copyright 2021 Google LLC
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

// Package shares splits wallet signing keys into share sets and converts
// shares to and from their storage encoding.
//
// The current custody policy is 3-of-3: every share is required to rebuild a
// key. The threshold travels with each ShareSet so a t-of-n policy can be
// introduced without changing stored data.
package shares

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/finitefield"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/secrets"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/shamir"
	"github.com/shardkeep/shardkeep/custody/internal/zeroize"
)

const (
	// KeyBytes is the size of a wallet signing key: an Ed25519 private key,
	// 32-byte seed followed by the 32-byte public key.
	KeyBytes = 64
	// NumShares is the number of shares every key is split into.
	NumShares = 3
	// Threshold is the number of shares required to rebuild a key.
	Threshold = NumShares
)

// Share is one fragment of a split key. X is the evaluation point (1..NumShares).
type Share struct {
	X     int
	Value []byte
}

// Wipe zeroes the share payload.
func (s Share) Wipe() {
	zeroize.Bytes(s.Value)
}

// ShareSet is the set of shares produced by one split plus the number of
// shares needed to combine them.
type ShareSet struct {
	Threshold int
	Shares    []Share
}

// Wipe zeroes every share payload in the set.
func (s ShareSet) Wipe() {
	for _, share := range s.Shares {
		share.Wipe()
	}
}

func metadata(threshold int) secrets.Metadata {
	return secrets.Metadata{
		Field:     finitefield.GF8,
		NumShares: NumShares,
		Threshold: threshold,
	}
}

// SplitKey splits a KeyBytes-long signing key into NumShares shares.
func SplitKey(key []byte) (ShareSet, error) {
	return split(key, func(md secrets.Metadata) (secrets.Split, error) {
		return shamir.SplitSecret(md, key)
	})
}

// SplitKeyWithReader is SplitKey drawing polynomial coefficients from rnd.
func SplitKeyWithReader(key []byte, rnd io.Reader) (ShareSet, error) {
	return split(key, func(md secrets.Metadata) (secrets.Split, error) {
		return shamir.SplitSecretWithReader(md, key, rnd)
	})
}

func split(key []byte, do func(secrets.Metadata) (secrets.Split, error)) (ShareSet, error) {
	// Validate data length is KeyBytes.
	if len(key) != KeyBytes {
		return ShareSet{}, fmt.Errorf("%w: key has length %d, expected %d", errs.ErrInvalidInput, len(key), KeyBytes)
	}

	sp, err := do(metadata(Threshold))
	if err != nil {
		return ShareSet{}, fmt.Errorf("error splitting key: %w", err)
	}

	// Validate the returned data.
	if sp.SecretLen != KeyBytes || len(sp.Shares) != NumShares {
		sp.Wipe()
		return ShareSet{}, fmt.Errorf("split returned %d shares of a %d byte secret, expected %d of %d", len(sp.Shares), sp.SecretLen, NumShares, KeyBytes)
	}

	set := ShareSet{Threshold: sp.Metadata.Threshold, Shares: make([]Share, 0, len(sp.Shares))}
	for _, s := range sp.Shares {
		set.Shares = append(set.Shares, Share{X: s.X, Value: s.Value})
	}
	return set, nil
}

// Combine rebuilds the key from set. Note that this does not guarantee the
// shares are correct (SSS will succeed at "reconstructing" data from even
// faulty shares), so integrity checks are done separately by comparing the
// derived public key.
//
// The caller owns the returned key and must wipe it.
func Combine(set ShareSet) ([]byte, error) {
	if set.Threshold != Threshold {
		return nil, fmt.Errorf("%w: share set threshold is %d, policy requires %d", errs.ErrThreshold, set.Threshold, Threshold)
	}
	if len(set.Shares) < NumShares {
		return nil, fmt.Errorf("%w: got %d shares, need all %d", errs.ErrThreshold, len(set.Shares), NumShares)
	}
	if len(set.Shares) > NumShares {
		return nil, fmt.Errorf("%w: got %d shares, expected exactly %d", errs.ErrValidation, len(set.Shares), NumShares)
	}
	seen := make(map[int]bool, len(set.Shares))
	for _, s := range set.Shares {
		if seen[s.X] {
			return nil, fmt.Errorf("%w: duplicate share index %d", errs.ErrValidation, s.X)
		}
		seen[s.X] = true
	}
	sp := secrets.Split{
		Metadata:  metadata(set.Threshold),
		SecretLen: len(set.Shares[0].Value),
		Shares:    make([]secrets.Share, 0, len(set.Shares)),
	}
	for _, s := range set.Shares {
		sp.Shares = append(sp.Shares, secrets.Share{X: s.X, Value: s.Value})
	}

	key, err := shamir.Reconstruct(sp)
	if err != nil {
		return nil, fmt.Errorf("error combining key shares: %w", err)
	}
	if len(key) != KeyBytes {
		zeroize.Bytes(key)
		return nil, fmt.Errorf("%w: reconstituted key has length %d, expected %d", errs.ErrValidation, len(key), KeyBytes)
	}
	return key, nil
}

// EncodeShare returns the storage form of s: the payload followed by X as a
// trailing byte, the layout used by hashicorp/vault's shamir package.
func EncodeShare(s Share) []byte {
	out := make([]byte, 0, len(s.Value)+1)
	out = append(out, s.Value...)
	return append(out, byte(s.X))
}

// DecodeShare splits an encoded share into the value and the X field (last byte).
func DecodeShare(b []byte) (Share, error) {
	if len(b) < 2 {
		return Share{}, fmt.Errorf("%w: encoded share too short (%d bytes)", errs.ErrValidation, len(b))
	}
	x := int(b[len(b)-1])
	if x == 0 {
		return Share{}, fmt.Errorf("%w: encoded share has X = 0", errs.ErrValidation)
	}
	value := make([]byte, len(b)-1)
	copy(value, b)
	return Share{X: x, Value: value}, nil
}

// EncodeShareHex returns the hexadecimal text form of EncodeShare(s).
func EncodeShareHex(s Share) string {
	return hex.EncodeToString(EncodeShare(s))
}

// DecodeShareHex parses the output of EncodeShareHex.
func DecodeShareHex(text string) (Share, error) {
	b, err := hex.DecodeString(text)
	if err != nil {
		return Share{}, fmt.Errorf("%w: share is not valid hex: %v", errs.ErrValidation, err)
	}
	defer zeroize.Bytes(b)
	return DecodeShare(b)
}

// HashShare performs a SHA-256 hash on the provided share.
func HashShare(share []byte) []byte {
	hash := sha256.Sum256(share)
	return hash[:]
}

// ValidateShare performs HashShare on the provided share, then returns whether
// the result is equal to the provided hash.
func ValidateShare(share []byte, expectedHash []byte) bool {
	actualHash := HashShare(share)
	return subtle.ConstantTimeCompare(actualHash, expectedHash) == 1
}
