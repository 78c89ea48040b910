package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2HashService()

	secret := "village-circle-2024!"
	hash, err := svc.Hash(secret)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Format check
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v="), "hash should start with $argon2id$v=")

	match, err := svc.Verify(secret, hash)
	require.NoError(t, err)
	assert.True(t, match, "correct secret should verify")
}

func TestArgon2HashService_VerifyWrongSecret(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("correct-secret")
	require.NoError(t, err)

	match, err := svc.Verify("wrong-secret", hash)
	require.NoError(t, err)
	assert.False(t, match, "wrong secret should not verify")
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2HashService()

	hash1, err := svc.Hash("same-secret")
	require.NoError(t, err)

	hash2, err := svc.Hash("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "same secret should produce different hashes (different salts)")
}

func TestArgon2HashService_VerifyInvalidFormat(t *testing.T) {
	svc := NewArgon2HashService()

	_, err := svc.Verify("secret", "not-a-valid-hash")
	assert.Error(t, err)
}

func TestArgon2HashService_HashContainsParams(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("test")
	require.NoError(t, err)

	assert.Contains(t, hash, "m=65536,t=1,p=4", "hash should contain Argon2id params")
}

func TestArgon2HashService_LongSecret(t *testing.T) {
	svc := NewArgon2HashService()

	longSecret := strings.Repeat("a", 1000)
	hash, err := svc.Hash(longSecret)
	require.NoError(t, err)

	match, err := svc.Verify(longSecret, hash)
	require.NoError(t, err)
	assert.True(t, match)
}
