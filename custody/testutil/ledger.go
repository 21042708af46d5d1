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

package testutil

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mr-tron/base58"
)

// ErrBadSignature is returned by FakeLedger.Submit for a signature that does
// not verify under the sender's address.
var ErrBadSignature = errors.New("signature verification failed")

// FakeLedger is an in-memory ledger of lamport balances keyed by base58
// address. Transfer messages are plain text and signatures are checked with
// Ed25519 against the sender's address.
type FakeLedger struct {
	mu       sync.Mutex
	balances map[string]uint64
	// Submitted holds every accepted message in order.
	Submitted [][]byte

	// SubmitErr, if set, is returned by Submit without applying the transfer.
	SubmitErr error
}

// NewFakeLedger returns an empty FakeLedger.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{balances: make(map[string]uint64)}
}

// Fund credits lamports to address.
func (l *FakeLedger) Fund(address string, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] += lamports
}

// Balance returns the balance of address.
func (l *FakeLedger) Balance(_ context.Context, address string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[address], nil
}

// TransferMessage returns the message a sender signs to move lamports.
func (l *FakeLedger) TransferMessage(_ context.Context, from, to string, lamports uint64) ([]byte, error) {
	return []byte(fmt.Sprintf("transfer:%s:%s:%d", from, to, lamports)), nil
}

func parseTransfer(message []byte) (from, to string, lamports uint64, err error) {
	parts := strings.Split(string(message), ":")
	if len(parts) != 4 || parts[0] != "transfer" {
		return "", "", 0, fmt.Errorf("malformed transfer message %q", message)
	}
	lamports, err = strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("malformed amount in %q: %v", message, err)
	}
	return parts[1], parts[2], lamports, nil
}

// Submit verifies signature and applies the transfer. It returns the base58
// signature as the transaction ID.
func (l *FakeLedger) Submit(_ context.Context, message, signature []byte) (string, error) {
	if l.SubmitErr != nil {
		return "", l.SubmitErr
	}
	from, to, lamports, err := parseTransfer(message)
	if err != nil {
		return "", err
	}
	pub, err := base58.Decode(from)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("sender %q is not an Ed25519 address", from)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, signature) {
		return "", ErrBadSignature
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < lamports {
		return "", fmt.Errorf("insufficient funds: %d < %d", l.balances[from], lamports)
	}
	l.balances[from] -= lamports
	l.balances[to] += lamports
	l.Submitted = append(l.Submitted, append([]byte(nil), message...))
	return base58.Encode(signature), nil
}
