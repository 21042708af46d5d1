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

// Package errs defines the error kinds shared by the custody packages.
//
// Components wrap these values with fmt.Errorf and %w, so callers branch with
// errors.Is regardless of how much context was added on the way up.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a secret passed to split is empty or has the wrong length,
	// or when split parameters are inconsistent.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRandomness is returned when the secure random source fails. It is never retried.
	ErrRandomness = errors.New("secure randomness unavailable")
	// ErrThreshold is returned when fewer distinct shares than the threshold are supplied.
	ErrThreshold = errors.New("not enough shares")
	// ErrValidation is returned for duplicate share indices, mismatched payload lengths,
	// malformed encodings and share hash mismatches.
	ErrValidation = errors.New("invalid shares")
	// ErrNotFound is returned when no share set exists for a user.
	ErrNotFound = errors.New("wallet not found")
	// ErrConflict is returned when a user already has a share set.
	ErrConflict = errors.New("wallet already exists")
	// ErrIntegrity is returned when the reconstructed key does not match the stored public key.
	ErrIntegrity = errors.New("reconstructed key does not match stored public key")
	// ErrInsufficientFunds is returned when a balance cannot cover a transfer and its fee reserve.
	ErrInsufficientFunds = errors.New("insufficient balance")
)

// Refinements of ErrInvalidInput for transfer requests.
var (
	ErrInvalidRecipient = fmt.Errorf("invalid recipient address: %w", ErrInvalidInput)
	ErrInvalidAmount    = fmt.Errorf("invalid amount: %w", ErrInvalidInput)
)

// Kind returns the taxonomy value err wraps, or nil if it wraps none of them.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidInput,
		ErrRandomness,
		ErrThreshold,
		ErrValidation,
		ErrNotFound,
		ErrConflict,
		ErrIntegrity,
		ErrInsufficientFunds,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// UserMessage returns the text a conversational front end shows for err.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRecipient):
		return "Invalid public key. Please enter a valid recipient's public key."
	case errors.Is(err, ErrInvalidAmount):
		return "Invalid amount. Please enter a valid number for the amount of SOL to send."
	}
	switch Kind(err) {
	case nil:
		if err == nil {
			return ""
		}
		return "Transaction failed. Please try again."
	case ErrNotFound:
		return "You don't have a wallet yet. Please generate one first."
	case ErrConflict:
		return "You already have a wallet."
	case ErrInvalidInput:
		return "Invalid private key format. Please check it and try again."
	case ErrInsufficientFunds:
		return "Insufficient balance. Transaction cancelled."
	default:
		return "Internal error. Your wallet could not be used right now."
	}
}
