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

// Package history records the transfers a wallet sends and receives.
package history

import (
	"context"
	"sync"
	"time"
)

// Kind is the direction of a transfer relative to the wallet owner.
type Kind string

const (
	// Send is a transfer out of the owner's wallet.
	Send Kind = "send"
	// Receive is a transfer into the owner's wallet.
	Receive Kind = "receive"
)

// Entry is one transfer in a user's history.
type Entry struct {
	Kind Kind `json:"kind"`
	// Lamports is the transferred amount.
	Lamports uint64 `json:"lamports"`
	// Counterparty is the base58 address of the other side.
	Counterparty string    `json:"counterparty"`
	Signature    string    `json:"signature"`
	Time         time.Time `json:"time"`
}

// Log stores per-user transfer history in append order.
type Log interface {
	Append(ctx context.Context, userID string, e Entry) error
	List(ctx context.Context, userID string) ([]Entry, error)
}

// Memory is a Log held in process memory.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

var _ Log = (*Memory)(nil)

// NewMemory returns an empty in-memory Log.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]Entry)}
}

// Append implements Log.
func (m *Memory) Append(_ context.Context, userID string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = append(m.entries[userID], e)
	return nil
}

// List implements Log. A user with no transfers has an empty history.
func (m *Memory) List(_ context.Context, userID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries[userID]...), nil
}
