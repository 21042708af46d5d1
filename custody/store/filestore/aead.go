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

package filestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/tink/go/streamingaead/subtle"
)

const (
	// KeyBytes is the size of the at-rest encryption key.
	KeyBytes = 32

	// Parameters for streaming AEAD, required by Tink's subtle API.
	aeadHKDFAlg            = "SHA256"
	aeadSegmentSize        = 4096
	aeadFirstSegmentOffset = 0
)

func newCipher(key []byte) (*subtle.AESGCMHKDF, error) {
	cipher, err := subtle.NewAESGCMHKDF(key, aeadHKDFAlg, KeyBytes, aeadSegmentSize, aeadFirstSegmentOffset)
	if err != nil {
		return nil, fmt.Errorf("unable to create new cipher: %v", err)
	}
	return cipher, nil
}

func aeadEncrypt(key, plaintext, aad []byte) ([]byte, error) {
	cipher, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	ciphertextBuf := &bytes.Buffer{}
	writer, err := cipher.NewEncryptingWriter(ciphertextBuf, aad)
	if err != nil {
		return nil, fmt.Errorf("unable to create an encrypt writer: %v", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("unable to write to the encrypt writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error closing writer: %v", err)
	}

	return ciphertextBuf.Bytes(), nil
}

func aeadDecrypt(key, ciphertext, aad []byte) ([]byte, error) {
	cipher, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	reader, err := cipher.NewDecryptingReader(bytes.NewReader(ciphertext), aad)
	if err != nil {
		return nil, fmt.Errorf("unable to create decrypt reader: %v", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading plaintext: %v", err)
	}
	return plaintext, nil
}

// envelopeAAD binds the cleartext part of a wallet file to its sealed shares.
// The serialization scheme is as follows (given n := len(env.ShareHashes)):
//
//	len(env.UserID)              || env.UserID
//	|| len(env.WalletID)         || env.WalletID
//	|| len(env.PublicKey)        || env.PublicKey
//	|| env.Threshold
//	|| len(env.ShareHashes[0])   || env.ShareHashes[0]
//	...
//	|| len(env.ShareHashes[n-1]) || env.ShareHashes[n-1]
//
// Every length and the threshold are little-endian uint64.
func envelopeAAD(env *envelope) ([]byte, error) {
	buf := new(bytes.Buffer)
	writeField := func(name, v string) error {
		if err := binary.Write(buf, binary.LittleEndian, uint64(len(v))); err != nil {
			return fmt.Errorf("unable to serialize length of %s: %v", name, err)
		}
		if _, err := buf.WriteString(v); err != nil {
			return fmt.Errorf("unable to serialize %s: %v", name, err)
		}
		return nil
	}

	for _, f := range []struct{ name, v string }{
		{"user ID", env.UserID},
		{"wallet ID", env.WalletID},
		{"public key", env.PublicKey},
	} {
		if err := writeField(f.name, f.v); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, uint64(env.Threshold)); err != nil {
		return nil, fmt.Errorf("unable to serialize threshold: %v", err)
	}
	for i, h := range env.ShareHashes {
		if err := writeField(fmt.Sprintf("share hash %d", i), h); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
