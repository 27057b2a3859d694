// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestPurpose: Validates Argon2id hashing round trip and salting.
// Scope: Unit Test
// Security: Credential storage
// Expected: Two hashes of the same password differ; both verify; a wrong password does not.
// Test Case ID: HSH-01
func TestArgon2Hasher_HashAndVerify(t *testing.T) {
	h := fastHasher()

	first, err := h.Hash("Password1!")
	require.NoError(t, err)
	second, err := h.Hash("Password1!")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	for _, encoded := range []string{first, second} {
		ok, err := h.Verify("Password1!", encoded)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := h.Verify("Password2!", first)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPurpose: Validates that hashes produced by earlier bcrypt deployments still verify.
// Scope: Unit Test
// Security: Credential migration
// Expected: bcrypt hashes verify for the right password and fail for a wrong one.
// Test Case ID: HSH-02
func TestArgon2Hasher_VerifyBcrypt(t *testing.T) {
	h := fastHasher()
	legacy, err := bcrypt.GenerateFromPassword([]byte("Password1!"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify("Password1!", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPurpose: Validates that structurally valid but degenerate Argon2 hashes are rejected instead of compared.
// Scope: Unit Test
// Security: A corrupt hash row must not verify every password
// Expected: Verify returns an error and false, including for an empty key section.
// Test Case ID: HSH-03
func TestArgon2Hasher_VerifyMalformed(t *testing.T) {
	h := fastHasher()
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$2b$10$short",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$",
		"$argon2id$v=19$m=1024,t=1,p=1$$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=1024,t=0,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=0$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		ok, err := h.Verify("Password1!", encoded)
		assert.Error(t, err, encoded)
		assert.False(t, ok, encoded)
	}
}
