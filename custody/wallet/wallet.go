// Copyright 2026 The Shardkeep Authors
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

// Package wallet implements custodial Solana-style wallets whose signing keys
// exist only as shares between operations.
//
// Every operation that needs the private key goes through keyguard, so the
// key is rebuilt for that operation alone and wiped before the user's lock is
// released.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/mr-tron/base58"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/history"
	"github.com/shardkeep/shardkeep/custody/internal/zeroize"
	"github.com/shardkeep/shardkeep/custody/keyguard"
	"github.com/shardkeep/shardkeep/custody/shares"
	"github.com/shardkeep/shardkeep/custody/store"
)

const (
	// LamportsPerSOL is the number of lamports in one SOL.
	LamportsPerSOL = 1_000_000_000
	// FeeReserveLamports must remain in a wallet after a transfer to pay the
	// network fee.
	FeeReserveLamports = 200_000
)

// Ledger is the chain a wallet transacts on.
type Ledger interface {
	// Balance returns the balance of a base58 address in lamports.
	Balance(ctx context.Context, address string) (uint64, error)
	// TransferMessage returns the message from must sign to move lamports to to.
	TransferMessage(ctx context.Context, from, to string, lamports uint64) ([]byte, error)
	// Submit sends a signed message and returns its transaction signature.
	Submit(ctx context.Context, message, signature []byte) (string, error)
}

// Service manages wallets for many users.
type Service struct {
	guard   *keyguard.Guard
	repo    store.Repository
	ledger  Ledger
	history history.Log
	now     func() time.Time
}

// New returns a Service storing keys through guard. ledger may be nil, in
// which case Balance and Transfer fail.
func New(guard *keyguard.Guard, ledger Ledger, log history.Log) *Service {
	if log == nil {
		log = history.NewMemory()
	}
	return &Service{
		guard:   guard,
		repo:    guard.Repository(),
		ledger:  ledger,
		history: log,
		now:     time.Now,
	}
}

// Create generates a new key for userID, stores its shares and returns the
// base58 public key.
func (s *Service) Create(ctx context.Context, userID string) (string, error) {
	var pub string
	err := s.guard.WithUserLock(ctx, userID, func(ctx context.Context) error {
		if err := s.ensureAbsent(ctx, userID); err != nil {
			return err
		}
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("%w: generating key: %v", errs.ErrRandomness, err)
		}
		defer zeroize.Bytes(key)

		pub, err = s.persist(ctx, userID, key)
		return err
	})
	if err != nil {
		return "", err
	}
	glog.Infof("wallet: created wallet %s for user %q", pub, userID)
	return pub, nil
}

// Import stores shares of an existing key for userID. key is either a 32-byte
// Ed25519 seed or a 64-byte private key whose public half matches its seed.
// The caller keeps ownership of key and should wipe it.
func (s *Service) Import(ctx context.Context, userID string, key []byte) (string, error) {
	var priv ed25519.PrivateKey
	switch len(key) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(key)
	case ed25519.PrivateKeySize:
		priv = ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
		if subtle.ConstantTimeCompare(priv[ed25519.SeedSize:], key[ed25519.SeedSize:]) != 1 {
			zeroize.Bytes(priv)
			return "", fmt.Errorf("%w: public half does not match the seed", errs.ErrInvalidInput)
		}
	default:
		return "", fmt.Errorf("%w: private key is %d bytes, want %d or %d", errs.ErrInvalidInput, len(key), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	defer zeroize.Bytes(priv)

	var pub string
	err := s.guard.WithUserLock(ctx, userID, func(ctx context.Context) error {
		if err := s.ensureAbsent(ctx, userID); err != nil {
			return err
		}
		var err error
		pub, err = s.persist(ctx, userID, priv)
		return err
	})
	if err != nil {
		return "", err
	}
	glog.Infof("wallet: imported wallet %s for user %q", pub, userID)
	return pub, nil
}

// ParsePrivateKey decodes private key text as hex, falling back to base58.
// The returned slice should be wiped by the caller.
func ParsePrivateKey(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty private key", errs.ErrInvalidInput)
	}
	if key, err := hex.DecodeString(text); err == nil {
		return key, nil
	}
	key, err := base58.Decode(text)
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: private key is neither hex nor base58", errs.ErrInvalidInput)
	}
	return key, nil
}

func (s *Service) ensureAbsent(ctx context.Context, userID string) error {
	_, err := s.repo.Get(ctx, userID)
	switch {
	case err == nil:
		return fmt.Errorf("user %q: %w", userID, errs.ErrConflict)
	case errors.Is(err, errs.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) persist(ctx context.Context, userID string, key ed25519.PrivateKey) (string, error) {
	set, err := shares.SplitKey(key)
	if err != nil {
		return "", err
	}
	defer set.Wipe()

	pub := base58.Encode(key[ed25519.SeedSize:])
	if err := s.repo.Put(ctx, store.NewRecord(userID, pub, set)); err != nil {
		return "", err
	}
	return pub, nil
}

// PublicKey returns userID's base58 public key.
func (s *Service) PublicKey(ctx context.Context, userID string) (string, error) {
	r, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return r.PublicKey, nil
}

// Sign signs payload with userID's key.
func (s *Service) Sign(ctx context.Context, userID string, payload []byte) ([]byte, error) {
	return keyguard.WithReconstructedKey(ctx, s.guard, userID, Ed25519Signer(payload))
}

// Balance returns userID's balance in lamports.
func (s *Service) Balance(ctx context.Context, userID string) (uint64, error) {
	if s.ledger == nil {
		return 0, errors.New("no ledger configured")
	}
	pub, err := s.PublicKey(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, pub)
}

// Transfer sends lamports from userID's wallet to the base58 address to and
// returns the transaction signature. The balance must cover the amount plus
// FeeReserveLamports.
func (s *Service) Transfer(ctx context.Context, userID, to string, lamports uint64) (string, error) {
	if s.ledger == nil {
		return "", errors.New("no ledger configured")
	}
	if err := ValidateAddress(to); err != nil {
		return "", err
	}
	if lamports == 0 || lamports > ^uint64(0)-FeeReserveLamports {
		return "", fmt.Errorf("%w: %d lamports", errs.ErrInvalidAmount, lamports)
	}

	// One hold of the user's lock covers the balance check through submission.
	var from, txID string
	err := s.guard.WithSession(ctx, userID, func(ctx context.Context, sess *keyguard.Session) error {
		var err error
		from, err = s.PublicKey(ctx, userID)
		if err != nil {
			return err
		}
		balance, err := s.ledger.Balance(ctx, from)
		if err != nil {
			return fmt.Errorf("reading balance: %w", err)
		}
		if balance < lamports+FeeReserveLamports {
			return fmt.Errorf("%w: balance %d lamports, need %d plus %d reserve", errs.ErrInsufficientFunds, balance, lamports, FeeReserveLamports)
		}

		message, err := s.ledger.TransferMessage(ctx, from, to, lamports)
		if err != nil {
			return fmt.Errorf("building transfer: %w", err)
		}
		sig, err := keyguard.WithSessionKey(ctx, sess, Ed25519Signer(message))
		if err != nil {
			return err
		}
		txID, err = s.ledger.Submit(ctx, message, sig)
		if err != nil {
			return fmt.Errorf("submitting transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	glog.Infof("wallet: user %q sent %d lamports to %s in %s", userID, lamports, to, txID)

	s.record(ctx, userID, history.Entry{Kind: history.Send, Lamports: lamports, Counterparty: to, Signature: txID})
	if recipient, ok := s.userByAddress(ctx, to); ok {
		s.record(ctx, recipient, history.Entry{Kind: history.Receive, Lamports: lamports, Counterparty: from, Signature: txID})
	}
	return txID, nil
}

// record appends to history. The transfer has already been submitted, so a
// history failure is logged rather than returned.
func (s *Service) record(ctx context.Context, userID string, e history.Entry) {
	e.Time = s.now().UTC()
	if err := s.history.Append(ctx, userID, e); err != nil {
		glog.Errorf("wallet: recording %s of %d lamports for user %q: %v", e.Kind, e.Lamports, userID, err)
	}
}

// userByAddress finds the local user owning address, when the repository can
// list users.
func (s *Service) userByAddress(ctx context.Context, address string) (string, bool) {
	lister, ok := s.repo.(interface{ Users() []string })
	if !ok {
		return "", false
	}
	for _, id := range lister.Users() {
		r, err := s.repo.Get(ctx, id)
		if err == nil && r.PublicKey == address {
			return id, true
		}
	}
	return "", false
}

// History returns userID's transfers in the order they happened.
func (s *Service) History(ctx context.Context, userID string) ([]history.Entry, error) {
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.history.List(ctx, userID)
}

// ValidateAddress checks that address is a base58 Ed25519 public key.
func ValidateAddress(address string) error {
	b, err := base58.Decode(address)
	if err != nil || len(b) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: %q", errs.ErrInvalidRecipient, address)
	}
	return nil
}
