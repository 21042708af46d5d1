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

// Package redisstore keeps wallet records and transfer history in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/history"
	"github.com/shardkeep/shardkeep/custody/store"
)

// DefaultPrefix is prepended to every key unless another prefix is given.
const DefaultPrefix = "shardkeep:"

// Store is a store.Repository and history.Log backed by a Redis client.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ store.Repository = (*Store)(nil)
	_ history.Log      = (*Store)(nil)
)

// New returns a Store using client. An empty prefix selects DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) walletKey(userID string) string {
	return s.prefix + "wallet:" + userID
}

func (s *Store) historyKey(userID string) string {
	return s.prefix + "history:" + userID
}

// Get implements store.Repository.
func (s *Store) Get(ctx context.Context, userID string) (*store.Record, error) {
	data, err := s.client.Get(ctx, s.walletKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("user %q: %w", userID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var r store.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal wallet: %v", errs.ErrValidation, err)
	}
	if r.UserID != userID {
		return nil, fmt.Errorf("%w: wallet key holds user %q, want %q", errs.ErrValidation, r.UserID, userID)
	}
	return &r, nil
}

// Put implements store.Repository. Records never expire.
func (s *Store) Put(ctx context.Context, r *store.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.walletKey(r.UserID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %q: %w", r.UserID, errs.ErrConflict)
	}
	glog.V(1).Infof("redisstore: wrote wallet %s for user %q", r.WalletID, r.UserID)
	return nil
}

// Append implements history.Log.
func (s *Store) Append(ctx context.Context, userID string, e history.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	if err := s.client.RPush(ctx, s.historyKey(userID), data).Err(); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// List implements history.Log.
func (s *Store) List(ctx context.Context, userID string) ([]history.Entry, error) {
	items, err := s.client.LRange(ctx, s.historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	entries := make([]history.Entry, 0, len(items))
	for i, item := range items {
		var e history.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("%w: history entry %d: %v", errs.ErrValidation, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
