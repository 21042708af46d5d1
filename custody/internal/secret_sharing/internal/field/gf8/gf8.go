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

// Package gf8 implements with a field with characteristic 2^8 (GF(2^8)).
//
// Elements are single bytes reduced by x^8 + x^4 + x^3 + x + 1, the field used
// by AES. Share sets record finitefield.GF8 so that split and combine always
// agree on this polynomial.
package gf8

import (
	"fmt"
	"io"

	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/finitefield"
	"github.com/shardkeep/shardkeep/custody/internal/secret_sharing/internal/field"
)

type element byte

// Add element `a` and returns a new element in GF(2^8).
func (e element) Add(a field.Element) field.Element {
	return e ^ a.(element)
}

// Subtract element `a` and returns a new element in GF(2^8).
func (e element) Subtract(a field.Element) field.Element {
	return e.Add(a)
}

// irreducible polynomial (x^8 + x^4 + x^3 + x + 1)
// (x^8 + x^4 + x^3 + x + 1) = {0x01 0x1B}
// we deal with uint8 so we only need 0x1B
const irreduciblePolynomial = 0x1B

// Multiply by element `a` and returns a new element.
func (e element) Multiply(a field.Element) field.Element {
	return element(mul(byte(e), byte(a.(element))))
}

// mul avoids pre-computed tables and data dependent branches so that
// multiplying secret bytes leaks nothing through timing or cache state.
func mul(x, y byte) byte {
	var product uint8

	// Similar steps to:
	// https://en.wikipedia.org/wiki/Finite_field_arithmetic#Multiplication
	// Negating a single bit yields a mask of all zeros or all ones, which
	// replaces the branches with ANDs.
	for i := 7; i >= 0; i-- {
		// if MSB in current product is set, mod is irreduciblePolynomial, else 0
		mod := (-(product >> 7)) & irreduciblePolynomial

		// multiply coefficient x[i] with every coefficient in y
		xiTimesY := -((x >> i) & 1) & y

		// reduce by irreduciblePolynomial if the MSB was set and shift.
		product = xiTimesY ^ mod ^ (product << 1)
	}
	return product
}

// Inverse returns an element that's the multiplicative inverse.
// Zero has no inverse and yields an error.
func (e element) Inverse() (field.Element, error) {
	if e == 0 {
		return nil, fmt.Errorf("inverse of zero is not defined")
	}
	// e^-1 == e^254 in GF(2^8).
	// multiplication chain reference: https://crypto.stackexchange.com/a/40140
	x := byte(e)
	b := mul(x, x) // e^2
	c := mul(x, b) // e^3

	b = mul(c, c) // e^6   = (e^3)^2
	b = mul(b, b) // e^12  = (e^6)^2
	c = mul(b, c) // e^15  = (e^12) * (e^3)
	b = mul(b, b) // e^24  = (e^12)^2
	b = mul(b, b) // e^48  = (e^24)^2
	b = mul(b, c) // e^63  = (e^48) * (e^15)
	b = mul(b, b) // e^126 = (e^63)^2
	b = mul(x, b) // e^127 = (e^126) * e

	// e^254 = (e^127)^2
	return element(mul(b, b)), nil
}

// IsZero reports whether e is the additive identity.
func (e element) IsZero() bool {
	return e == 0
}

// Bytes returns a big endian representation of the element value as a byte array.
func (e element) Bytes() []byte {
	return []byte{byte(e)}
}

type gf8Field struct{}

// New creates a new GF8.
func New() field.GaloisField { return &gf8Field{} }

var _ field.GaloisField = (*gf8Field)(nil)

// CreateElement creates a new field element from an integer.
// Returns an error when i is outside [0, 255].
func (e *gf8Field) CreateElement(i int) (field.Element, error) {
	if i < 0 || i > 255 {
		return nil, fmt.Errorf("field element %d does not fit in %d byte", i, e.ElementSize())
	}
	return element(i), nil
}

// NewRandom reads one byte from r. Every byte value is a field element, so
// the result is uniform whenever r is.
func (e *gf8Field) NewRandom(r io.Reader) (field.Element, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return element(0), fmt.Errorf("reading random field element: %w", err)
	}
	out := element(b[0])
	b[0] = 0
	return out, nil
}

// ReadElement reads an element from a big endian encoded byte array `b` at an offset `i`.
func (e *gf8Field) ReadElement(b []byte, i int) (field.Element, error) {
	if i < 0 || i >= len(b) {
		return element(0), fmt.Errorf("offset %d out of range for b (len = %d)", i, len(b))
	}
	return element(b[i]), nil
}

// EncodeElements encodes a set of field elements into a byte array of size `secLen` .
func (e *gf8Field) EncodeElements(parts []field.Element, secLen int) ([]byte, error) {
	if secLen != len(parts) {
		return nil, fmt.Errorf("can't encode elements (len = %d) into secret len (%d)", len(parts), secLen)
	}
	elems := make([]byte, secLen)
	for i, e := range parts {
		elems[i] = byte(e.(element))
	}
	return elems, nil
}

// DecodeElements decodes a byte array into a set of elements in GF(2^8).
func (e *gf8Field) DecodeElements(in []byte) []field.Element {
	elems := make([]field.Element, len(in))
	for i, b := range in {
		elems[i] = element(b)
	}
	return elems
}

func (e *gf8Field) ElementSize() int {
	return 1
}

func (e *gf8Field) FieldID() finitefield.ID {
	return finitefield.GF8
}
