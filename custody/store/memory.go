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

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shardkeep/shardkeep/custody/errs"
)

// Memory is a Repository held in process memory.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Repository = (*Memory)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*Record)}
}

// Get implements Repository.
func (m *Memory) Get(_ context.Context, userID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[userID]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", userID, errs.ErrNotFound)
	}
	return r.Clone(), nil
}

// Put implements Repository.
func (m *Memory) Put(_ context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.UserID]; ok {
		return fmt.Errorf("user %q: %w", r.UserID, errs.ErrConflict)
	}
	m.records[r.UserID] = r.Clone()
	return nil
}

// Users returns the IDs of every stored user.
func (m *Memory) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.records))
	for id := range m.records {
		out = append(out, id)
	}
	return out
}
