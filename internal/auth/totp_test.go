package auth

import (
	"encoding/base32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the shared secret from the RFC 6238 test vectors, base32
// encoded without padding.
var rfcSecret = base32.StdEncoding.WithPadding(base32.NoPadding).
	EncodeToString([]byte("12345678901234567890"))

func TestVerifyKnownVectors(t *testing.T) {
	totp := NewTOTP("HousingNest")

	// Six-digit truncations of the RFC 6238 SHA1 vectors.
	tests := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}

	for _, tt := range tests {
		ok, err := totp.Verify(rfcSecret, tt.code, time.Unix(tt.unix, 0))
		require.NoError(t, err)
		assert.True(t, ok, "code %s at t=%d", tt.code, tt.unix)
	}
}

func TestVerifyDriftWindow(t *testing.T) {
	totp := NewTOTP("HousingNest")

	// Code for the step containing t=59 is accepted one step later and one
	// step earlier, but not two steps out.
	ok, err := totp.Verify(rfcSecret, "287082", time.Unix(89, 0))
	require.NoError(t, err)
	assert.True(t, ok, "previous step within window")

	ok, err = totp.Verify(rfcSecret, "287082", time.Unix(29, 0))
	require.NoError(t, err)
	assert.True(t, ok, "next step within window")

	ok, err = totp.Verify(rfcSecret, "287082", time.Unix(149, 0))
	require.NoError(t, err)
	assert.False(t, ok, "two steps out must fail")
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	totp := NewTOTP("HousingNest")

	for _, code := range []string{"", "12345", "1234567", "28708a", "28 082"} {
		ok, err := totp.Verify(rfcSecret, code, time.Unix(59, 0))
		require.NoError(t, err)
		assert.False(t, ok, "code %q", code)
	}
}

func TestVerifyMalformedSecret(t *testing.T) {
	totp := NewTOTP("HousingNest")

	_, err := totp.Verify("not base32 !!!", "287082", time.Unix(59, 0))
	assert.Error(t, err)
}

func TestGenerateSecret(t *testing.T) {
	totp := NewTOTP("HousingNest")

	first, err := totp.GenerateSecret()
	require.NoError(t, err)
	second, err := totp.GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(first)
	require.NoError(t, err)
	assert.Len(t, raw, 20)
}

func TestProvisionURI(t *testing.T) {
	totp := NewTOTP("HousingNest")

	uri := totp.ProvisionURI("ABC234", "owner@example.com")
	assert.Contains(t, uri, "otpauth://totp/HousingNest:owner@example.com")
	assert.Contains(t, uri, "secret=ABC234")
	assert.Contains(t, uri, "issuer=HousingNest")
	assert.Contains(t, uri, "period=30")
	assert.Contains(t, uri, "digits=6")
}
