// Copyright 2022 Google LLC
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

// Package shamirgeneric implements shamir secret sharing with a generic group structure.
package shamirgeneric

import (
	"fmt"
	"io"

	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/internal/field"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/secrets"
)

// maxShares is the number of distinct non-zero x-coordinates in GF(2^8).
const maxShares = 255

// SplitSecret splits a secret into n shares where t or more shares can be combined to reconstruct
// the original secret using shamir secret sharing. Polynomial coefficients are read from rnd,
// which must be a cryptographically secure source; a read failure is reported as
// errs.ErrRandomness and nothing is returned.
func SplitSecret(metadata secrets.Metadata, secret []byte, gf field.GaloisField, rnd io.Reader) (secrets.Split, error) {
	if err := validateSplitInput(metadata, secret, gf); err != nil {
		return secrets.Split{}, err
	}
	threshold := metadata.Threshold
	numShares := metadata.NumShares

	xVals := make([]field.Element, numShares)
	for i := range xVals {
		var err error
		if xVals[i], err = gf.CreateElement(i + 1); err != nil {
			return secrets.Split{}, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
		}
	}

	// The `secret` can be an arbitrary length byte array, but each element in a field is of
	// a finite size, hence the `secret` is split into a set of elements in the field.
	subsecrets := gf.DecodeElements(secret)
	defer clear(subsecrets)

	shares := make([]secrets.Share, numShares)
	for i := range shares {
		shares[i] = secrets.Share{
			X:     i + 1,
			Value: make([]byte, 0, len(secret)),
		}
	}

	// For each subsecret we build a polynomial of degree N, where N is `threshold - 1`.
	// Each subsecret is the constant coefficient in the polynomial and every other coefficient
	// is a fresh uniformly random field element:
	// subsecret + R_1 * x^1 + R_2 * X^2 + ... + R_N * X^N
	coefficients := make([]field.Element, threshold)
	defer clear(coefficients)
	for _, subsecret := range subsecrets {
		coefficients[0] = subsecret
		for i := 1; i < threshold; i++ {
			var err error
			if coefficients[i], err = gf.NewRandom(rnd); err != nil {
				secrets.Split{Shares: shares}.Wipe()
				return secrets.Split{}, fmt.Errorf("%w: %v", errs.ErrRandomness, err)
			}
		}
		for i, xi := range xVals {
			// shares is a set of encoded field elements. Each field element is the evaluation of a
			// different polynomial where the constant term of each polynomial represents a subsecret.
			// shares[0] = 			[ F1(1), F2(1), ..., FN(1) ]
			// shares[1] = 			[ F1(2), F2(2), ..., FN(2) ]
			// shares[N - 1] = 	[ F1(N), F2(N), ..., FN(N) ]
			shares[i].Value = append(shares[i].Value, evaluatePolynomial(coefficients, xi, gf).Bytes()...)
		}
	}
	return secrets.Split{
		Shares:    shares,
		Metadata:  metadata,
		SecretLen: len(secret),
	}, nil
}

// evaluates a polynomial at `x` where `coefficients` take the form:
// f(x) = c[n-1] * x^(n-1) + c[n-2] * x^(n-2) + ... + c[1] * x^1 + c[0]
// using Horner's rule over the finite field.
func evaluatePolynomial(coefficients []field.Element, x field.Element, gf field.GaloisField) field.Element {
	sum := coefficients[len(coefficients)-1]
	for i := len(coefficients) - 2; i >= 0; i-- {
		sum = sum.Multiply(x).Add(coefficients[i])
	}
	return sum
}

// Reconstruct reconstructs a secret from exactly `threshold` distinct shares using shamir secret
// sharing. Supplying fewer shares than the threshold fails with errs.ErrThreshold; duplicate
// x-coordinates or inconsistent payloads fail with errs.ErrValidation.
//
// The caller owns the returned slice and is expected to wipe it.
func Reconstruct(splitSecret secrets.Split, gf field.GaloisField) ([]byte, error) {
	if err := validateReconstructInput(splitSecret, gf); err != nil {
		return nil, err
	}
	// We only need `threshold` shares to reconstruct the secret.
	shares := splitSecret.Shares[:splitSecret.Metadata.Threshold]
	xVals := make([]field.Element, 0, len(shares))
	for _, s := range shares {
		xi, err := gf.CreateElement(s.X)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
		}
		xVals = append(xVals, xi)
	}
	// Precompute the Lagrange coefficients before performing polynomial interpolation.
	coefficients, err := lagrangeCoefficients(xVals)
	if err != nil {
		return nil, err
	}
	// Calculate the number of field elements per secret share based on the share size.
	numSubSecrets := len(shares[0].Value) / gf.ElementSize()
	subsecrets := make([]field.Element, numSubSecrets)
	defer clear(subsecrets)
	yVals := make([]field.Element, len(xVals))
	defer clear(yVals)
	for i := 0; i < numSubSecrets; i++ {
		for j, s := range shares {
			yVals[j], err = gf.ReadElement(s.Value, i)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
			}
		}
		// interpolatePolynomial recovers the C[0] coefficient, the geometric interpretation
		// of the intersection with the Y axis.
		subsecrets[i] = interpolatePolynomial(coefficients, yVals, gf)
	}
	// combine the subsecret field elements into the original secret.
	return gf.EncodeElements(subsecrets, splitSecret.SecretLen)
}

// performs lagrange polynomial interpolation at x = 0 from a set of points:
// ∑i={1,n} y[i] * ( ∏j={1,n,j≠i} ( (x[j]) / ( x[j] - x[i]) ) )
// lagrange coefficients (∏j={1,n,j≠i} ( (x[j]) / ( x[j] - x[i] ) )) are precalculated
// and the y coordinates are used to compute the sum.
func interpolatePolynomial(lagCoeff []field.Element, yVals []field.Element, gf field.GaloisField) field.Element {
	// ∑i={1,n} y[i] * lagrange_coefficient[i]
	sum := yVals[0].Multiply(lagCoeff[0])
	for i := 1; i < len(yVals); i++ {
		sum = sum.Add(yVals[i].Multiply(lagCoeff[i]))
	}
	return sum
}

// recovers the coefficients to perform lagrange polynomial interpolation using the x coordinates.
// ∏j={1,n,j≠i} ( (x[j]) / ( x[j] - x[i] ) )
func lagrangeCoefficients(x []field.Element) ([]field.Element, error) {
	if len(x) < 2 {
		return nil, fmt.Errorf("%w: must have at least 2 values", errs.ErrThreshold)
	}
	out := make([]field.Element, len(x))
	for i := range x {
		var num, den field.Element
		for j := range x {
			if i == j {
				continue
			}
			diff := x[j].Subtract(x[i])
			if diff.IsZero() {
				return nil, fmt.Errorf("%w: all shares should be unique points", errs.ErrValidation)
			}
			if num == nil {
				num, den = x[j], diff
				continue
			}
			num = num.Multiply(x[j])
			den = den.Multiply(diff)
		}
		inv, err := den.Inverse()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
		}
		out[i] = num.Multiply(inv)
	}
	return out, nil
}

func validateSplitInput(metadata secrets.Metadata, secret []byte, gf field.GaloisField) error {
	if len(secret) == 0 {
		return fmt.Errorf("%w: secret must not be empty", errs.ErrInvalidInput)
	}
	if metadata.NumShares < 2 {
		return fmt.Errorf("%w: numShares must be larger than 1", errs.ErrInvalidInput)
	}
	if metadata.NumShares > maxShares {
		return fmt.Errorf("%w: numShares must be at most %d", errs.ErrInvalidInput, maxShares)
	}
	if metadata.Threshold < 2 {
		return fmt.Errorf("%w: threshold must be larger than 1", errs.ErrInvalidInput)
	}
	if metadata.Threshold > metadata.NumShares {
		return fmt.Errorf("%w: threshold should be smaller than or equal to numShares", errs.ErrInvalidInput)
	}
	if metadata.Field != gf.FieldID() {
		return fmt.Errorf("%w: field ID mismatch", errs.ErrInvalidInput)
	}
	if len(secret)%gf.ElementSize() != 0 {
		return fmt.Errorf("%w: secret length %d is not a multiple of the element size", errs.ErrInvalidInput, len(secret))
	}
	return nil
}

func validateReconstructInput(splitSecret secrets.Split, gf field.GaloisField) error {
	md := splitSecret.Metadata
	if md.Field != gf.FieldID() {
		return fmt.Errorf("%w: field ID mismatch", errs.ErrValidation)
	}
	if md.Threshold < 2 {
		return fmt.Errorf("%w: threshold should be at least 2", errs.ErrValidation)
	}
	if md.NumShares < md.Threshold || md.NumShares > maxShares {
		return fmt.Errorf("%w: threshold %d incompatible with %d shares", errs.ErrValidation, md.Threshold, md.NumShares)
	}
	if len(splitSecret.Shares) < md.Threshold {
		return fmt.Errorf("%w: need at least %d shares to reconstruct the secret, got: %d", errs.ErrThreshold, md.Threshold, len(splitSecret.Shares))
	}
	if len(splitSecret.Shares) > md.NumShares {
		return fmt.Errorf("%w: got %d shares for a split of %d", errs.ErrValidation, len(splitSecret.Shares), md.NumShares)
	}
	// Each share carries one element per secret element, so its payload is as
	// long as the secret itself.
	wantLen := splitSecret.SecretLen
	if wantLen == 0 {
		return fmt.Errorf("%w: empty secret length", errs.ErrValidation)
	}
	seen := make(map[int]bool, len(splitSecret.Shares))
	for i, s := range splitSecret.Shares {
		if s.X < 1 || s.X > md.NumShares {
			return fmt.Errorf("%w: share %d has invalid X value %d", errs.ErrValidation, i, s.X)
		}
		if seen[s.X] {
			return fmt.Errorf("%w: duplicate share index %d", errs.ErrValidation, s.X)
		}
		seen[s.X] = true
		if len(s.Value) != wantLen {
			return fmt.Errorf("%w: share %d has length %d, want %d", errs.ErrValidation, s.X, len(s.Value), wantLen)
		}
	}
	return nil
}
