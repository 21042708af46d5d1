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

	"github.com/shardkeep/shardkeep/custody/keyguard"
)

// Ed25519Signer returns a keyguard operation that signs payload. The
// signature does not alias the key.
func Ed25519Signer(payload []byte) func(context.Context, keyguard.Secret) ([]byte, error) {
	return func(_ context.Context, key keyguard.Secret) ([]byte, error) {
		return ed25519.Sign(key.PrivateKey(), payload), nil
	}
}
