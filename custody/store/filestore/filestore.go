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

// Package filestore is a store.Repository keeping one file per user in a
// local directory.
//
// A wallet file is a fixed header followed by a JSON envelope. The public key,
// wallet metadata and share hashes are stored in the clear. Shares are stored
// either as hex text or, when the store has an encryption key, sealed with
// streaming AES-GCM-HKDF whose associated data covers the cleartext fields.
package filestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/internal/zeroize"
	"github.com/shardkeep/shardkeep/custody/store"
)

// Magic identifies a wallet file.
var Magic = [15]byte{'S', 'H', 'A', 'R', 'D', 'K', 'E', 'E', 'P', 'W', 'A', 'L', 'L', 'E', 'T'}

const (
	// Version is the wallet file format this package writes.
	Version uint8 = 1

	fileSuffix = ".wallet"
)

// Header starts every wallet file.
type Header struct {
	Magic   [15]byte // len(Magic) == 15
	Version uint8    // 1 byte
}

type envelope struct {
	WalletID    string    `json:"walletId"`
	UserID      string    `json:"userId"`
	PublicKey   string    `json:"publicKey"`
	Threshold   int       `json:"threshold"`
	ShareHashes []string  `json:"shareHashes"`
	CreatedAt   time.Time `json:"createdAt"`

	Shares       []string `json:"shares,omitempty"`
	SealedShares []byte   `json:"sealedShares,omitempty"`
}

func readHeader(input io.Reader) (*Header, error) {
	var header Header
	if err := binary.Read(input, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: failed to read wallet file header: %v", errs.ErrValidation, err)
	}
	if !bytes.Equal(header.Magic[:], Magic[:]) {
		return nil, fmt.Errorf("%w: data is not a wallet file", errs.ErrValidation)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: unsupported wallet file version %d", errs.ErrValidation, header.Version)
	}
	return &header, nil
}

func writeHeader(output io.Writer) error {
	return binary.Write(output, binary.LittleEndian, Header{Magic: Magic, Version: Version})
}

// Option configures a Store.
type Option func(*Store) error

// WithEncryptionKey seals share payloads with key, which must be KeyBytes long.
func WithEncryptionKey(key []byte) Option {
	return func(s *Store) error {
		if len(key) != KeyBytes {
			return fmt.Errorf("%w: encryption key is %d bytes, want %d", errs.ErrInvalidInput, len(key), KeyBytes)
		}
		s.key = append([]byte(nil), key...)
		return nil
	}
}

// Store is a directory of wallet files.
type Store struct {
	dir string
	key []byte
}

var _ store.Repository = (*Store)(nil)

// New returns a Store rooted at dir, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty store directory", errs.ErrInvalidInput)
	}
	s := &Store{dir: dir}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %v", err)
	}
	return s, nil
}

// Close wipes the encryption key held by the store.
func (s *Store) Close() {
	zeroize.Bytes(s.key)
}

// path maps a user ID to a file name safe for any ID text.
func (s *Store) path(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+fileSuffix)
}

// Get implements store.Repository.
func (s *Store) Get(_ context.Context, userID string) (*store.Record, error) {
	f, err := os.Open(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("user %q: %w", userID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening wallet file: %v", err)
	}
	defer f.Close()

	if _, err := readHeader(f); err != nil {
		return nil, err
	}
	var env envelope
	if err := json.NewDecoder(f).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decoding wallet file: %v", errs.ErrValidation, err)
	}
	if env.UserID != userID {
		return nil, fmt.Errorf("%w: wallet file holds user %q, want %q", errs.ErrValidation, env.UserID, userID)
	}

	shareText, err := s.openShares(&env)
	if err != nil {
		return nil, err
	}
	return &store.Record{
		WalletID:    env.WalletID,
		UserID:      env.UserID,
		PublicKey:   env.PublicKey,
		Threshold:   env.Threshold,
		Shares:      shareText,
		ShareHashes: env.ShareHashes,
		CreatedAt:   env.CreatedAt,
	}, nil
}

func (s *Store) openShares(env *envelope) ([]string, error) {
	if env.SealedShares == nil {
		return env.Shares, nil
	}
	if s.key == nil {
		return nil, fmt.Errorf("%w: wallet file is sealed but the store has no encryption key", errs.ErrValidation)
	}
	aad, err := envelopeAAD(env)
	if err != nil {
		return nil, err
	}
	plaintext, err := aeadDecrypt(s.key, env.SealedShares, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: unsealing shares: %v", errs.ErrIntegrity, err)
	}
	defer zeroize.Bytes(plaintext)

	var shareText []string
	if err := json.Unmarshal(plaintext, &shareText); err != nil {
		return nil, fmt.Errorf("%w: decoding sealed shares: %v", errs.ErrValidation, err)
	}
	return shareText, nil
}

// Put implements store.Repository. The file is written to a temporary name
// and linked into place, so a second Put for the same user fails with
// errs.ErrConflict and readers never see a partial file.
func (s *Store) Put(_ context.Context, r *store.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	env := &envelope{
		WalletID:    r.WalletID,
		UserID:      r.UserID,
		PublicKey:   r.PublicKey,
		Threshold:   r.Threshold,
		ShareHashes: r.ShareHashes,
		CreatedAt:   r.CreatedAt,
	}
	if err := s.sealShares(env, r.Shares); err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	if err := writeHeader(buf); err != nil {
		return fmt.Errorf("writing wallet file header: %v", err)
	}
	if err := json.NewEncoder(buf).Encode(env); err != nil {
		return fmt.Errorf("encoding wallet file: %v", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary wallet file: %v", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temporary wallet file: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temporary wallet file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary wallet file: %v", err)
	}

	if err := os.Link(tmp.Name(), s.path(r.UserID)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("user %q: %w", r.UserID, errs.ErrConflict)
		}
		return fmt.Errorf("linking wallet file: %v", err)
	}
	glog.V(1).Infof("filestore: wrote wallet %s for user %q", r.WalletID, r.UserID)
	return nil
}

func (s *Store) sealShares(env *envelope, shareText []string) error {
	if s.key == nil {
		env.Shares = shareText
		return nil
	}
	plaintext, err := json.Marshal(shareText)
	if err != nil {
		return fmt.Errorf("encoding shares: %v", err)
	}
	defer zeroize.Bytes(plaintext)

	aad, err := envelopeAAD(env)
	if err != nil {
		return err
	}
	env.SealedShares, err = aeadEncrypt(s.key, plaintext, aad)
	if err != nil {
		return fmt.Errorf("sealing shares: %v", err)
	}
	return nil
}
