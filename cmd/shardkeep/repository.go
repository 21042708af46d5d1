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

package main

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shardkeep/shardkeep/constants"
	"github.com/shardkeep/shardkeep/custody/cloudkms"
	"github.com/shardkeep/shardkeep/custody/config"
	"github.com/shardkeep/shardkeep/custody/history"
	"github.com/shardkeep/shardkeep/custody/keyguard"
	"github.com/shardkeep/shardkeep/custody/store"
	"github.com/shardkeep/shardkeep/custody/store/filestore"
	"github.com/shardkeep/shardkeep/custody/store/redisstore"
	"github.com/shardkeep/shardkeep/custody/wallet"
)

// kmsClientFunc returns the Cloud KMS client for a set of credentials.
type kmsClientFunc func(ctx context.Context, credentials string) (cloudkms.Client, error)

// openRepository builds the repository described by cfg. Backends that keep
// transfer history durably also return it as a history.Log; for the others
// the log is nil. The returned function releases their resources.
func openRepository(ctx context.Context, cfg *config.Config, kmsClient kmsClientFunc) (store.Repository, history.Log, func(), error) {
	var (
		repo    store.Repository
		log     history.Log
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		glog.Warning("Using the memory store: wallets are lost when the process exits")
		repo = store.NewMemory()
	case config.BackendFile:
		key, err := cfg.FileEncryptionKey()
		if err != nil {
			return nil, nil, nil, err
		}
		var opts []filestore.Option
		if key != nil {
			opts = append(opts, filestore.WithEncryptionKey(key))
		}
		fileStore, err := filestore.New(cfg.Store.File.Dir, opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, fileStore.Close)
		repo = fileStore
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				glog.Warningf("Failed to close redis client: %v", err)
			}
		})
		redisStore := redisstore.New(client, cfg.Store.Redis.Prefix)
		repo, log = redisStore, redisStore
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.KMS != nil {
		creds, err := cfg.KMSCredentials()
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		client, err := kmsClient(ctx, creds)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		wrapped, err := cloudkms.NewWrappedStore(repo, client, cfg.KMS.KeyName)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		repo = wrapped
	}
	return repo, log, closeAll, nil
}

// openService loads the configuration at path and returns a wallet service
// over the configured repository. If metricsFile is set, cleanup writes the
// guard's metrics there in the Prometheus text format.
func openService(ctx context.Context, path, metricsFile string) (*wallet.Service, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	factory := cloudkms.NewClientFactory(constants.Version)
	repo, log, closeRepo, err := openRepository(ctx, cfg, factory.Client)
	if err != nil {
		factory.Close()
		return nil, nil, err
	}
	reg := prometheus.NewRegistry()
	cleanup := func() {
		if metricsFile != "" {
			if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
				glog.Warningf("Failed to write metrics to %s: %v", metricsFile, err)
			}
		}
		closeRepo()
		if err := factory.Close(); err != nil {
			glog.Warningf("Failed to close KMS clients: %v", err)
		}
	}

	opts := []keyguard.Option{keyguard.WithRegisterer(reg)}
	if !cfg.IntegrityCheckEnabled() {
		glog.Warning("Integrity check disabled: reconstructed keys are not compared with stored public keys")
		opts = append(opts, keyguard.WithoutIntegrityCheck())
	}
	guard, err := keyguard.New(repo, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return wallet.New(guard, nil, log), cleanup, nil
}
