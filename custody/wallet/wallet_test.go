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

package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/tink/go/subtle/random"
	"github.com/mr-tron/base58"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/history"
	"github.com/shardkeep/shardkeep/custody/keyguard"
	"github.com/shardkeep/shardkeep/custody/store"
	"github.com/shardkeep/shardkeep/custody/testutil"
)

var testTime = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *testutil.FakeLedger) {
	t.Helper()
	guard, err := keyguard.New(store.NewMemory())
	if err != nil {
		t.Fatalf("keyguard.New() = %v", err)
	}
	ledger := testutil.NewFakeLedger()
	s := New(guard, ledger, history.NewMemory())
	s.now = func() time.Time { return testTime }
	return s, ledger
}

func verify(t *testing.T, address string, msg, sig []byte) bool {
	t.Helper()
	pub, err := base58.Decode(address)
	if err != nil {
		t.Fatalf("base58.Decode(%q) = %v", address, err)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

func TestCreateAndSign(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	pub, err := s.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if err := ValidateAddress(pub); err != nil {
		t.Fatalf("Create() returned invalid address %q: %v", pub, err)
	}
	got, err := s.PublicKey(ctx, "alice")
	if err != nil {
		t.Fatalf("PublicKey() = %v", err)
	}
	if got != pub {
		t.Errorf("PublicKey() = %q, want %q", got, pub)
	}

	msg := []byte("hello")
	sig, err := s.Sign(ctx, "alice", msg)
	if err != nil {
		t.Fatalf("Sign() = %v", err)
	}
	if !verify(t, pub, msg, sig) {
		t.Error("Sign() signature does not verify under the wallet public key")
	}
}

func TestCreateTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	first, err := s.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if _, err := s.Create(ctx, "alice"); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("second Create() = %v, want %v", err, errs.ErrConflict)
	}
	if got, _ := s.PublicKey(ctx, "alice"); got != first {
		t.Errorf("PublicKey() after conflicting Create() = %q, want %q", got, first)
	}
}

func TestConcurrentCreateMakesOneWallet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.Create(ctx, "alice")
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range results {
		switch {
		case err == nil:
			created++
		case !errors.Is(err, errs.ErrConflict):
			t.Errorf("Create() = %v, want nil or %v", err, errs.ErrConflict)
		}
	}
	if created != 1 {
		t.Errorf("%d concurrent Create() calls succeeded, want 1", created)
	}
}

func TestImport(t *testing.T) {
	key := ed25519.NewKeyFromSeed(random.GetRandomBytes(ed25519.SeedSize))
	wantPub := base58.Encode(key.Public().(ed25519.PublicKey))
	mismatched := append(ed25519.PrivateKey(nil), key...)
	mismatched[40] ^= 0xFF

	for _, tc := range []struct {
		name    string
		key     []byte
		wantErr error
	}{
		{name: "full private key", key: key},
		{name: "seed", key: key.Seed()},
		{name: "public half does not match", key: mismatched, wantErr: errs.ErrInvalidInput},
		{name: "wrong length", key: key[:40], wantErr: errs.ErrInvalidInput},
		{name: "empty", key: nil, wantErr: errs.ErrInvalidInput},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newTestService(t)
			input := append([]byte(nil), tc.key...)

			pub, err := s.Import(ctx, "alice", input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("Import() = %v, want %v", err, tc.wantErr)
				}
				if _, err := s.PublicKey(ctx, "alice"); !errors.Is(err, errs.ErrNotFound) {
					t.Errorf("PublicKey() after failed Import() = %v, want %v", err, errs.ErrNotFound)
				}
				return
			}
			if err != nil {
				t.Fatalf("Import() = %v", err)
			}
			if pub != wantPub {
				t.Errorf("Import() = %q, want %q", pub, wantPub)
			}
			if !cmp.Equal(input, tc.key) {
				t.Error("Import() modified the caller's key")
			}

			msg := []byte("imported")
			sig, err := s.Sign(ctx, "alice", msg)
			if err != nil {
				t.Fatalf("Sign() = %v", err)
			}
			if !cmp.Equal(sig, ed25519.Sign(key, msg)) {
				t.Error("Sign() with imported key differs from signing with the original key")
			}
		})
	}
}

func TestImportExistingUserConflicts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	if _, err := s.Create(ctx, "alice"); err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if _, err := s.Import(ctx, "alice", random.GetRandomBytes(ed25519.SeedSize)); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("Import() = %v, want %v", err, errs.ErrConflict)
	}
}

func TestParsePrivateKey(t *testing.T) {
	key := ed25519.NewKeyFromSeed(random.GetRandomBytes(ed25519.SeedSize))
	for _, tc := range []struct {
		name    string
		text    string
		want    []byte
		wantErr bool
	}{
		{name: "hex", text: hex.EncodeToString(key), want: key},
		{name: "hex with whitespace", text: "  " + hex.EncodeToString(key) + "\n", want: key},
		{name: "base58", text: base58.Encode(key), want: key},
		{name: "garbage", text: "not a key!", wantErr: true},
		{name: "empty", text: "", wantErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePrivateKey(tc.text)
			if tc.wantErr {
				if !errors.Is(err, errs.ErrInvalidInput) {
					t.Errorf("ParsePrivateKey(%q) = %v, want %v", tc.text, err, errs.ErrInvalidInput)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrivateKey() = %v", err)
			}
			if !cmp.Equal(got, tc.want) {
				t.Errorf("ParsePrivateKey() = %x, want %x", got, tc.want)
			}
		})
	}
}

func TestUnknownUser(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	if _, err := s.PublicKey(ctx, "nobody"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("PublicKey() = %v, want %v", err, errs.ErrNotFound)
	}
	if _, err := s.Sign(ctx, "nobody", []byte("x")); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Sign() = %v, want %v", err, errs.ErrNotFound)
	}
	if _, err := s.Balance(ctx, "nobody"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Balance() = %v, want %v", err, errs.ErrNotFound)
	}
	if _, err := s.History(ctx, "nobody"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("History() = %v, want %v", err, errs.ErrNotFound)
	}
	to := base58.Encode(make([]byte, ed25519.PublicKeySize))
	if _, err := s.Transfer(ctx, "nobody", to, 1); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Transfer() = %v, want %v", err, errs.ErrNotFound)
	}
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	s, ledger := newTestService(t)

	alice, err := s.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create(alice) = %v", err)
	}
	bob, err := s.Create(ctx, "bob")
	if err != nil {
		t.Fatalf("Create(bob) = %v", err)
	}
	ledger.Fund(alice, LamportsPerSOL)

	const amount = LamportsPerSOL / 2
	txID, err := s.Transfer(ctx, "alice", bob, amount)
	if err != nil {
		t.Fatalf("Transfer() = %v", err)
	}

	if got, _ := s.Balance(ctx, "alice"); got != LamportsPerSOL-amount {
		t.Errorf("Balance(alice) = %d, want %d", got, LamportsPerSOL-amount)
	}
	if got, _ := s.Balance(ctx, "bob"); got != amount {
		t.Errorf("Balance(bob) = %d, want %d", got, amount)
	}
	if len(ledger.Submitted) != 1 {
		t.Fatalf("ledger accepted %d messages, want 1", len(ledger.Submitted))
	}

	sent, err := s.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History(alice) = %v", err)
	}
	wantSent := []history.Entry{{Kind: history.Send, Lamports: amount, Counterparty: bob, Signature: txID, Time: testTime}}
	if diff := cmp.Diff(wantSent, sent); diff != "" {
		t.Errorf("History(alice) returned diff (-want +got):\n%s", diff)
	}

	received, err := s.History(ctx, "bob")
	if err != nil {
		t.Fatalf("History(bob) = %v", err)
	}
	wantReceived := []history.Entry{{Kind: history.Receive, Lamports: amount, Counterparty: alice, Signature: txID, Time: testTime}}
	if diff := cmp.Diff(wantReceived, received); diff != "" {
		t.Errorf("History(bob) returned diff (-want +got):\n%s", diff)
	}
}

// overlapLedger counts how many Balance reads are in flight at once.
type overlapLedger struct {
	*testutil.FakeLedger
	inFlight, maxInFlight atomic.Int32
}

func (l *overlapLedger) Balance(ctx context.Context, address string) (uint64, error) {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		m := l.maxInFlight.Load()
		if n <= m || l.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	// Leave room for a second transfer to reach the ledger.
	time.Sleep(20 * time.Millisecond)
	return l.FakeLedger.Balance(ctx, address)
}

func TestConcurrentTransfersCannotOverspend(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestService(t)
	ledger := &overlapLedger{FakeLedger: fake}
	s.ledger = ledger

	alice, err := s.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	const amount = 600_000
	// Enough for one transfer plus the reserve, not for two.
	fake.Fund(alice, 2*amount)
	to := base58.Encode(random.GetRandomBytes(ed25519.PublicKeySize))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.Transfer(ctx, "alice", to, amount)
		}(i)
	}
	wg.Wait()

	sent := 0
	for _, err := range results {
		switch {
		case err == nil:
			sent++
		case !errors.Is(err, errs.ErrInsufficientFunds):
			t.Errorf("Transfer() = %v, want nil or %v", err, errs.ErrInsufficientFunds)
		}
	}
	if sent != 1 {
		t.Errorf("%d concurrent Transfer() calls succeeded, want 1", sent)
	}
	if got := ledger.maxInFlight.Load(); got != 1 {
		t.Errorf("%d balance reads overlapped for one user, want 1", got)
	}
	if got, _ := fake.Balance(ctx, alice); got != amount {
		t.Errorf("Balance(alice) = %d, want %d", got, amount)
	}
}

func TestTransferToExternalAddress(t *testing.T) {
	ctx := context.Background()
	s, ledger := newTestService(t)
	alice, err := s.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	ledger.Fund(alice, LamportsPerSOL)
	external := base58.Encode(random.GetRandomBytes(ed25519.PublicKeySize))

	if _, err := s.Transfer(ctx, "alice", external, 1_000); err != nil {
		t.Fatalf("Transfer() = %v", err)
	}
	got, err := s.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History() = %v", err)
	}
	if diff := cmp.Diff([]history.Entry{{Kind: history.Send, Lamports: 1_000, Counterparty: external}}, got,
		cmpopts.IgnoreFields(history.Entry{}, "Signature", "Time")); diff != "" {
		t.Errorf("History() returned diff (-want +got):\n%s", diff)
	}
}

func TestTransferFailures(t *testing.T) {
	valid := base58.Encode(make([]byte, ed25519.PublicKeySize))
	submitErr := errors.New("blockhash expired")

	for _, tc := range []struct {
		name      string
		fund      uint64
		to        string
		lamports  uint64
		submitErr error
		wantErr   error
	}{
		{
			name:     "recipient not base58",
			fund:     LamportsPerSOL,
			to:       "0OIl",
			lamports: 1,
			wantErr:  errs.ErrInvalidRecipient,
		},
		{
			name:     "recipient wrong length",
			fund:     LamportsPerSOL,
			to:       base58.Encode([]byte{1, 2, 3}),
			lamports: 1,
			wantErr:  errs.ErrInvalidRecipient,
		},
		{
			name:     "zero amount",
			fund:     LamportsPerSOL,
			to:       valid,
			lamports: 0,
			wantErr:  errs.ErrInvalidAmount,
		},
		{
			name:     "balance below amount plus reserve",
			fund:     1_000_000,
			to:       valid,
			lamports: 1_000_000 - FeeReserveLamports + 1,
			wantErr:  errs.ErrInsufficientFunds,
		},
		{
			name:      "submit rejected",
			fund:      LamportsPerSOL,
			to:        valid,
			lamports:  1,
			submitErr: submitErr,
			wantErr:   submitErr,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s, ledger := newTestService(t)
			alice, err := s.Create(ctx, "alice")
			if err != nil {
				t.Fatalf("Create() = %v", err)
			}
			ledger.Fund(alice, tc.fund)
			ledger.SubmitErr = tc.submitErr

			if _, err := s.Transfer(ctx, "alice", tc.to, tc.lamports); !errors.Is(err, tc.wantErr) {
				t.Errorf("Transfer() = %v, want %v", err, tc.wantErr)
			}
			if got, _ := s.Balance(ctx, "alice"); got != tc.fund {
				t.Errorf("Balance() after failed Transfer() = %d, want %d", got, tc.fund)
			}
			if h, _ := s.History(ctx, "alice"); len(h) != 0 {
				t.Errorf("History() after failed Transfer() = %v, want empty", h)
			}
		})
	}
}

func TestTransferExactReserve(t *testing.T) {
	ctx := context.Background()
	s, ledger := newTestService(t)
	alice, err := s.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	ledger.Fund(alice, 1_000_000)
	to := base58.Encode(random.GetRandomBytes(ed25519.PublicKeySize))

	if _, err := s.Transfer(ctx, "alice", to, 1_000_000-FeeReserveLamports); err != nil {
		t.Errorf("Transfer() leaving exactly the reserve = %v, want nil", err)
	}
}

func TestNoLedger(t *testing.T) {
	guard, err := keyguard.New(store.NewMemory())
	if err != nil {
		t.Fatalf("keyguard.New() = %v", err)
	}
	s := New(guard, nil, nil)
	ctx := context.Background()
	if _, err := s.Create(ctx, "alice"); err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if _, err := s.Balance(ctx, "alice"); err == nil {
		t.Error("Balance() without a ledger succeeded")
	}
	if _, err := s.Transfer(ctx, "alice", base58.Encode(make([]byte, 32)), 1); err == nil {
		t.Error("Transfer() without a ledger succeeded")
	}
	if h, err := s.History(ctx, "alice"); err != nil || len(h) != 0 {
		t.Errorf("History() = %v, %v, want empty, nil", h, err)
	}
}
