package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(DefaultHasherConfig())

	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=19456,t=2,p=1$"))

	ok, err := h.Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(DefaultHasherConfig())

	first, err := h.Hash("same secret")
	require.NoError(t, err)
	second, err := h.Hash("same secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyUsesEmbeddedParameters(t *testing.T) {
	// A digest produced with one cost configuration must still verify under
	// a hasher configured differently.
	old := NewHasher(HasherConfig{MemoryKiB: 8192, Time: 1, Parallelism: 1})
	encoded, err := old.Hash("migrated secret")
	require.NoError(t, err)

	current := NewHasher(DefaultHasherConfig())
	ok, err := current.Verify("migrated secret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher(DefaultHasherConfig())

	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not phc", "plainhash"},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"missing params", "$argon2id$v=19$m=19456,t=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=19456,t=2,p=1$!!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Verify("anything", tt.encoded)
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}

func TestNewHasherZeroValuesFallBack(t *testing.T) {
	h := NewHasher(HasherConfig{})

	encoded, err := h.Hash("secret value")
	require.NoError(t, err)
	assert.Contains(t, encoded, "m=19456,t=2,p=1")
}
