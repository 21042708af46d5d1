// Copyright 2022 Google LLC
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

package shamirgeneric_test

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/finitefield"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/internal/field/gf8"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/internal/shamirgeneric"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/secrets"
)

func getRandomBytes(t *testing.T, n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		t.Fatalf("Failed to read random bytes: %v", err)
	}
	return b
}

func createMetadata(threshold, numShares int) secrets.Metadata {
	return secrets.Metadata{
		Field:     finitefield.GF8,
		NumShares: numShares,
		Threshold: threshold,
	}
}

func TestSplitReconstructWorks(t *testing.T) {
	secret := []byte("abcdefghijklmnopqrstuvwxyz123456")
	split, err := shamirgeneric.SplitSecret(createMetadata(3, 3), secret, gf8.New(), rand.Reader)
	if err != nil {
		t.Fatalf("shamirgeneric.SplitSecret() err = %v, want nil", err)
	}
	recon, err := shamirgeneric.Reconstruct(split, gf8.New())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := recon, secret; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", hex.EncodeToString(got), hex.EncodeToString(want))
	}
}

func TestSplitReconstructLargeValues(t *testing.T) {
	secret := getRandomBytes(t, 300)
	split, err := shamirgeneric.SplitSecret(createMetadata(50, 80), secret, gf8.New(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	recon, err := shamirgeneric.Reconstruct(split, gf8.New())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := recon, secret; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", hex.EncodeToString(got), hex.EncodeToString(want))
	}
}

func TestSplitProducesFixedCoordinatesAndSecretLengthPayloads(t *testing.T) {
	secret := getRandomBytes(t, 64)
	split, err := shamirgeneric.SplitSecret(createMetadata(3, 3), secret, gf8.New(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if split.SecretLen != len(secret) {
		t.Errorf("SecretLen = %d, want %d", split.SecretLen, len(secret))
	}
	for i, s := range split.Shares {
		if s.X != i+1 {
			t.Errorf("Shares[%d].X = %d, want %d", i, s.X, i+1)
		}
		if len(s.Value) != len(secret) {
			t.Errorf("len(Shares[%d].Value) = %d, want %d", i, len(s.Value), len(secret))
		}
	}
}

func TestSplitWithDeterministicReader(t *testing.T) {
	// Coefficients are consumed two per secret byte: (a1, a2) for each position.
	rnd := bytes.NewReader([]byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80})
	split, err := shamirgeneric.SplitSecret(createMetadata(3, 3), []byte{1, 2, 3, 4}, gf8.New(), rnd)
	if err != nil {
		t.Fatal(err)
	}
	want := []secrets.Share{
		{Value: []byte{49, 114, 51, 244}, X: 1},
		{Value: []byte{161, 121, 56, 210}, X: 2},
		{Value: []byte{145, 9, 8, 34}, X: 3},
	}
	if diff := cmp.Diff(want, split.Shares); diff != "" {
		t.Errorf("SplitSecret() shares mismatch (-want +got):\n%s", diff)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestSplitWithFailingReaderFails(t *testing.T) {
	_, err := shamirgeneric.SplitSecret(createMetadata(3, 3), []byte("secret"), gf8.New(), failingReader{})
	if !errors.Is(err, errs.ErrRandomness) {
		t.Fatalf("SplitSecret() err = %v, want %v", err, errs.ErrRandomness)
	}
}

func TestSplitInvalidInputFails(t *testing.T) {
	for _, tc := range []struct {
		name     string
		metadata secrets.Metadata
		secret   []byte
	}{
		{name: "empty secret", metadata: createMetadata(3, 3), secret: nil},
		{name: "one share", metadata: createMetadata(1, 1), secret: []byte("s")},
		{name: "threshold one", metadata: createMetadata(1, 3), secret: []byte("s")},
		{name: "threshold above shares", metadata: createMetadata(4, 3), secret: []byte("s")},
		{name: "too many shares", metadata: createMetadata(3, 256), secret: []byte("s")},
		{name: "wrong field", metadata: secrets.Metadata{NumShares: 3, Threshold: 3}, secret: []byte("s")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := shamirgeneric.SplitSecret(tc.metadata, tc.secret, gf8.New(), rand.Reader)
			if !errors.Is(err, errs.ErrInvalidInput) {
				t.Errorf("SplitSecret() err = %v, want %v", err, errs.ErrInvalidInput)
			}
		})
	}
}

func removeAtIndex(s []secrets.Share, index int) []secrets.Share {
	return append(s[:index], s[index+1:]...)
}

func TestReconstructWithoutAllShares(t *testing.T) {
	secret := []byte("abcdefghijklmnopqrstuvwxyz123456")
	split, err := shamirgeneric.SplitSecret(createMetadata(4, 6), secret, gf8.New(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	split.Shares = removeAtIndex(split.Shares, 5)
	split.Shares = removeAtIndex(split.Shares, 0)
	// swapping the order shouldn't matter.
	split.Shares[0], split.Shares[2] = split.Shares[2], split.Shares[0]
	recon, err := shamirgeneric.Reconstruct(split, gf8.New())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := recon, secret; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", hex.EncodeToString(got), hex.EncodeToString(want))
	}
}

func TestReconstructWithAlteredValueChangesResult(t *testing.T) {
	secret := getRandomBytes(t, 32)
	split, err := shamirgeneric.SplitSecret(createMetadata(3, 3), secret, gf8.New(), rand.Reader)
	if err != nil {
		t.Fatalf("shamirgeneric.SplitSecret() err = %v, want nil", err)
	}
	split.Shares[1].Value[7] ^= 0x01
	recon, err := shamirgeneric.Reconstruct(split, gf8.New())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := recon, secret; bytes.Equal(got, want) {
		t.Errorf("reconstructing altered value should not recover the secret")
	}
	if got, want := recon[7], secret[7]; got == want {
		t.Errorf("byte 7 unchanged after altering the share at that position")
	}
}

func TestReconstructWithLessSharesThanThresholdFails(t *testing.T) {
	secret := []byte("abcdefghijklmnopqrstuvwxyz123456")
	split, err := shamirgeneric.SplitSecret(createMetadata(3, 3), secret, gf8.New(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	split.Shares = removeAtIndex(split.Shares, 2)
	if _, err := shamirgeneric.Reconstruct(split, gf8.New()); !errors.Is(err, errs.ErrThreshold) {
		t.Fatalf("Reconstruct() err = %v, want %v", err, errs.ErrThreshold)
	}
}

func TestReconstructInvalidSharesFails(t *testing.T) {
	value := func() []byte { return []byte{1, 2, 3, 4} }
	for _, tc := range []struct {
		name   string
		shares []secrets.Share
	}{
		{
			name:   "duplicate index",
			shares: []secrets.Share{{X: 1, Value: value()}, {X: 1, Value: value()}, {X: 3, Value: value()}},
		},
		{
			name:   "zero index",
			shares: []secrets.Share{{X: 0, Value: value()}, {X: 2, Value: value()}, {X: 3, Value: value()}},
		},
		{
			name:   "index beyond split",
			shares: []secrets.Share{{X: 1, Value: value()}, {X: 2, Value: value()}, {X: 9, Value: value()}},
		},
		{
			name:   "length mismatch",
			shares: []secrets.Share{{X: 1, Value: value()}, {X: 2, Value: []byte{1, 2}}, {X: 3, Value: value()}},
		},
		{
			name:   "too many shares",
			shares: []secrets.Share{{X: 1, Value: value()}, {X: 2, Value: value()}, {X: 3, Value: value()}, {X: 3, Value: value()}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			split := secrets.Split{Metadata: createMetadata(3, 3), Shares: tc.shares, SecretLen: 4}
			if _, err := shamirgeneric.Reconstruct(split, gf8.New()); !errors.Is(err, errs.ErrValidation) {
				t.Errorf("Reconstruct() err = %v, want %v", err, errs.ErrValidation)
			}
		})
	}
}

func TestReconstructFromStaticShares(t *testing.T) {
	split := secrets.Split{
		Shares: []secrets.Share{
			{Value: []byte{145, 9, 8, 34}, X: 3},
			{Value: []byte{49, 114, 51, 244}, X: 1},
			{Value: []byte{161, 121, 56, 210}, X: 2},
		},
		Metadata:  createMetadata(3, 3),
		SecretLen: 4,
	}
	recon, err := shamirgeneric.Reconstruct(split, gf8.New())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := recon, []byte{1, 2, 3, 4}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", hex.EncodeToString(got), hex.EncodeToString(want))
	}
}

func TestReconstructFromStaticSharesWithLessThanN(t *testing.T) {
	// f(x) = 0xAB + 0x53 * x evaluated at 1, 2 and 3.
	split := secrets.Split{
		Shares: []secrets.Share{
			{Value: []byte{248}, X: 1},
			{Value: []byte{94}, X: 3},
		},
		Metadata:  createMetadata(2, 3),
		SecretLen: 1,
	}
	recon, err := shamirgeneric.Reconstruct(split, gf8.New())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := recon, []byte{0xAB}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", hex.EncodeToString(got), hex.EncodeToString(want))
	}
}
