// Copyright 2024 Google LLC
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

// Package finitefield names the finite fields a share set can be built over.
//
// The ID is persisted alongside every share set, so values must never be
// renumbered.
package finitefield

import "fmt"

// ID represents a finite field supported by the secret sharing library.
type ID int

const (
	// Unspecified is the zero value and is rejected by split and combine.
	Unspecified ID = iota
	// GF8 is GF(2^8) reduced by x^8 + x^4 + x^3 + x + 1.
	GF8 ID = 2
)

func (id ID) String() string {
	switch id {
	case GF8:
		return "GF8"
	case Unspecified:
		return "unspecified"
	default:
		return fmt.Sprintf("unknown finite field ID: %d", int(id))
	}
}
