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

// Package keyguard rebuilds a user's signing key from stored shares for the
// duration of a single operation.
//
// The key exists in memory only while the operation passed to
// WithReconstructedKey runs. It is zeroed on every exit path and never
// cached. Operations for the same user are serialized.
package keyguard

import (
	"context"
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/internal/zeroize"
	"github.com/shardkeep/shardkeep/custody/shares"
	"github.com/shardkeep/shardkeep/custody/store"
	"golang.org/x/sync/semaphore"
)

// Secret is a reconstructed private key: the 32-byte Ed25519 seed followed by
// the 32-byte public key. It is only valid inside the operation it is passed
// to and must not be retained or copied out.
type Secret []byte

// Seed returns the Ed25519 seed half of the key.
func (s Secret) Seed() []byte {
	return s[:ed25519.SeedSize]
}

// PrivateKey views the secret as an ed25519.PrivateKey. The returned value
// shares memory with s.
func (s Secret) PrivateKey() ed25519.PrivateKey {
	return ed25519.PrivateKey(s)
}

// Option configures a Guard.
type Option func(*Guard)

// WithoutIntegrityCheck skips comparing the reconstructed key with the stored
// public key.
func WithoutIntegrityCheck() Option {
	return func(g *Guard) { g.integrity = false }
}

// WithRegisterer registers the guard's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(g *Guard) { g.registerer = reg }
}

type userLock struct {
	sem  *semaphore.Weighted
	refs int
}

// Guard owns the share repository and the per-user locks.
type Guard struct {
	repo       store.Repository
	integrity  bool
	registerer prometheus.Registerer
	metrics    *metrics

	mu    sync.Mutex
	locks map[string]*userLock

	// onReconstruct, if set, sees the key buffer right after combination.
	onReconstruct func([]byte)
}

// New returns a Guard reading shares from repo.
func New(repo store.Repository, opts ...Option) (*Guard, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: nil repository", errs.ErrInvalidInput)
	}
	g := &Guard{
		repo:      repo,
		integrity: true,
		locks:     make(map[string]*userLock),
	}
	for _, opt := range opts {
		opt(g)
	}
	m, err := newMetrics(g.registerer)
	if err != nil {
		return nil, fmt.Errorf("registering keyguard metrics: %w", err)
	}
	g.metrics = m
	return g, nil
}

// Repository returns the repository the guard reads from.
func (g *Guard) Repository() store.Repository {
	return g.repo
}

func (g *Guard) lock(ctx context.Context, userID string) (func(), error) {
	g.mu.Lock()
	l, ok := g.locks[userID]
	if !ok {
		l = &userLock{sem: semaphore.NewWeighted(1)}
		g.locks[userID] = l
	}
	l.refs++
	g.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		g.unref(userID, l)
		return nil, err
	}
	return func() {
		l.sem.Release(1)
		g.unref(userID, l)
	}, nil
}

func (g *Guard) unref(userID string, l *userLock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(g.locks, userID)
	}
}

// WithUserLock runs fn while holding userID's lock. It is the same lock
// WithReconstructedKey takes, so fn never overlaps a reconstruction for that
// user.
func (g *Guard) WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	return g.WithSession(ctx, userID, func(ctx context.Context, _ *Session) error {
		return fn(ctx)
	})
}

// Session is held by code running under a user's lock. It lets a multi-step
// operation (read state, sign, submit) rebuild the key without releasing the
// lock in between.
type Session struct {
	g      *Guard
	userID string
	ended  atomic.Bool
}

// UserID returns the user whose lock the session holds.
func (s *Session) UserID() string {
	return s.userID
}

// WithSession runs fn while holding userID's lock. The session passed to fn
// is only usable until fn returns.
func (g *Guard) WithSession(ctx context.Context, userID string, fn func(ctx context.Context, s *Session) error) error {
	release, err := g.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	if err := ctx.Err(); err != nil {
		return err
	}
	s := &Session{g: g, userID: userID}
	defer s.ended.Store(true)
	return fn(ctx, s)
}

// WithReconstructedKey rebuilds userID's key, runs op against it exactly
// once and returns op's result.
//
// Errors from the repository and the combiner are returned before op runs.
// Errors from op are returned unchanged. The key buffer is zeroed before the
// user's lock is released, whether or not op succeeds.
func WithReconstructedKey[T any](ctx context.Context, g *Guard, userID string, op func(ctx context.Context, key Secret) (T, error)) (result T, err error) {
	start := time.Now()
	reqID := uuid.NewString()
	opRan := false
	defer func() { g.finish(reqID, userID, start, err, opRan) }()

	release, err := g.lock(ctx, userID)
	if err != nil {
		return result, err
	}
	defer release()
	if err := ctx.Err(); err != nil {
		return result, err
	}
	glog.V(1).Infof("keyguard[%s]: user %q: lock acquired", reqID, userID)

	return withKey(ctx, g, userID, op, &opRan)
}

// WithSessionKey is WithReconstructedKey for a caller that already holds the
// user's lock through s. It fails with errs.ErrInvalidInput once the session
// has ended.
func WithSessionKey[T any](ctx context.Context, s *Session, op func(ctx context.Context, key Secret) (T, error)) (result T, err error) {
	if s.ended.Load() {
		return result, fmt.Errorf("%w: session for user %q has ended", errs.ErrInvalidInput, s.userID)
	}
	start := time.Now()
	reqID := uuid.NewString()
	opRan := false
	defer func() { s.g.finish(reqID, s.userID, start, err, opRan) }()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return withKey(ctx, s.g, s.userID, op, &opRan)
}

// withKey must be called with userID's lock held.
func withKey[T any](ctx context.Context, g *Guard, userID string, op func(ctx context.Context, key Secret) (T, error), opRan *bool) (result T, err error) {
	key, err := g.reconstruct(ctx, userID)
	if err != nil {
		return result, err
	}
	defer zeroize.Bytes(key)

	*opRan = true
	return op(ctx, Secret(key))
}

func (g *Guard) finish(reqID, userID string, start time.Time, err error, opRan bool) {
	outcome := outcomeOf(err, opRan)
	g.metrics.observe(outcome, time.Since(start))
	if err != nil {
		glog.Warningf("keyguard[%s]: user %q: %s: %v", reqID, userID, outcome, err)
		return
	}
	glog.V(1).Infof("keyguard[%s]: user %q: completed in %v", reqID, userID, time.Since(start))
}

func (g *Guard) reconstruct(ctx context.Context, userID string) ([]byte, error) {
	rec, err := g.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	set, err := rec.ShareSet()
	if err != nil {
		return nil, err
	}
	defer set.Wipe()

	key, err := shares.Combine(set)
	if err != nil {
		return nil, err
	}
	if g.onReconstruct != nil {
		g.onReconstruct(key)
	}
	if g.integrity {
		if err := checkIntegrity(key, rec.PublicKey); err != nil {
			zeroize.Bytes(key)
			return nil, err
		}
	}
	return key, nil
}

// checkIntegrity confirms key is the private key for the base58 public key
// stored alongside its shares. Both the public key derived from the seed and
// the public half embedded in key must match.
func checkIntegrity(key []byte, storedPub string) error {
	want, err := base58.Decode(storedPub)
	if err != nil || len(want) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: stored public key is not a base58 Ed25519 key", errs.ErrValidation)
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	defer zeroize.Bytes(derived)

	derivedOK := subtle.ConstantTimeCompare(derived[ed25519.SeedSize:], want)
	embeddedOK := subtle.ConstantTimeCompare(key[ed25519.SeedSize:], want)
	if derivedOK&embeddedOK != 1 {
		return fmt.Errorf("%w: reconstructed key does not match the stored public key", errs.ErrIntegrity)
	}
	return nil
}

func outcomeOf(err error, opRan bool) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if opRan {
			return "op_error"
		}
		return "canceled"
	case opRan:
		return "op_error"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrThreshold):
		return "threshold"
	case errors.Is(err, errs.ErrIntegrity):
		return "integrity"
	case errors.Is(err, errs.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
