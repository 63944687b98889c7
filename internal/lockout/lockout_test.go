package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDurationProgression(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{4, 0},
		{5, 1 * time.Minute},
		{6, 2 * time.Minute},
		{7, 4 * time.Minute},
		{8, 8 * time.Minute},
		{9, 15 * time.Minute},
		{10, 15 * time.Minute},
		{100, 15 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.LockDuration(tt.failures), "failures=%d", tt.failures)
	}
}

func TestLockedUntil(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, p.LockedUntil(4, now))

	until := p.LockedUntil(6, now)
	require.NotNil(t, until)
	assert.Equal(t, now.Add(2*time.Minute), *until)
}

func TestCustomPolicy(t *testing.T) {
	p := Policy{Threshold: 3, BaseLock: 30 * time.Second, MaxLock: 2 * time.Minute}

	assert.Equal(t, time.Duration(0), p.LockDuration(2))
	assert.Equal(t, 30*time.Second, p.LockDuration(3))
	assert.Equal(t, 1*time.Minute, p.LockDuration(4))
	assert.Equal(t, 2*time.Minute, p.LockDuration(5))
	assert.Equal(t, 2*time.Minute, p.LockDuration(6))
}
