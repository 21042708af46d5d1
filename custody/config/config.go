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

// Package config loads shardkeep's YAML configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shardkeep/shardkeep/custody/errs"
	"sigs.k8s.io/yaml"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// DefaultName is the configuration file name looked up in the user config
// directory.
const DefaultName = "shardkeep.yaml"

// Config is the top-level configuration.
type Config struct {
	Store StoreConfig `json:"store"`
	// KMS, if set, wraps every share with a Cloud KMS key before it is stored.
	KMS *KMSConfig `json:"kms,omitempty"`
	// IntegrityCheck compares each reconstructed key with the stored public
	// key. Defaults to true.
	IntegrityCheck *bool `json:"integrityCheck,omitempty"`
}

// StoreConfig selects and configures the share repository.
type StoreConfig struct {
	Backend string      `json:"backend"`
	File    FileConfig  `json:"file"`
	Redis   RedisConfig `json:"redis"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	Dir string `json:"dir"`
	// EncryptionKey is a hex-encoded 32-byte key sealing shares at rest.
	EncryptionKey string `json:"encryptionKey,omitempty"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix,omitempty"`
}

// KMSConfig names the Cloud KMS key used to wrap shares.
type KMSConfig struct {
	KeyName string `json:"keyName"`
	// CredentialsFile is a service account JSON file. Application default
	// credentials are used when empty.
	CredentialsFile string `json:"credentialsFile,omitempty"`
}

// DefaultPath returns the configuration path under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultName
	}
	return filepath.Join(dir, DefaultName)
}

func defaultFileDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shardkeep-wallets"
	}
	return filepath.Join(dir, "shardkeep", "wallets")
}

// Default returns the configuration used when no file is present: a
// plaintext file store under the user config directory.
func Default() *Config {
	return &Config{Store: StoreConfig{Backend: BackendFile, File: FileConfig{Dir: defaultFileDir()}}}
}

// Parse decodes YAML configuration, fills defaults and validates it.
// Unknown fields are rejected.
func Parse(yamlBytes []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(yamlBytes, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", errs.ErrInvalidInput, err)
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendFile
	}
	if cfg.Store.Backend == BackendFile && cfg.Store.File.Dir == "" {
		cfg.Store.File.Dir = defaultFileDir()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	yamlBytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}
	return Parse(yamlBytes)
}

// Validate checks that the selected backend is fully configured.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.File.Dir == "" {
			return fmt.Errorf("%w: file backend needs store.file.dir", errs.ErrInvalidInput)
		}
		if c.Store.File.EncryptionKey != "" {
			if _, err := c.FileEncryptionKey(); err != nil {
				return err
			}
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: redis backend needs store.redis.addr", errs.ErrInvalidInput)
		}
		if c.Store.Redis.DB < 0 {
			return fmt.Errorf("%w: store.redis.db must not be negative", errs.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", errs.ErrInvalidInput, c.Store.Backend)
	}
	if c.KMS != nil && c.KMS.KeyName == "" {
		return fmt.Errorf("%w: kms needs keyName", errs.ErrInvalidInput)
	}
	return nil
}

// IntegrityCheckEnabled reports whether reconstructed keys are checked
// against their stored public keys.
func (c *Config) IntegrityCheckEnabled() bool {
	return c.IntegrityCheck == nil || *c.IntegrityCheck
}

// FileEncryptionKey decodes the file backend key. It returns nil when shares
// are stored unsealed.
func (c *Config) FileEncryptionKey() ([]byte, error) {
	if c.Store.File.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Store.File.EncryptionKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("%w: store.file.encryptionKey must be 64 hex characters", errs.ErrInvalidInput)
	}
	return key, nil
}

// KMSCredentials returns the contents of the configured credentials file, or
// "" to use application default credentials.
func (c *Config) KMSCredentials() (string, error) {
	if c.KMS == nil || c.KMS.CredentialsFile == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.KMS.CredentialsFile)
	if err != nil {
		return "", fmt.Errorf("failed to read KMS credentials: %v", err)
	}
	return string(b), nil
}
