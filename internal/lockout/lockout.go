// Package lockout implements the progressive account lockout policy: after a
// failure threshold, each further failure doubles the lock duration up to a
// cap. The arithmetic lives here; the atomic counter increment lives in the
// identity repository so concurrent failures across replicas never lose a
// count.
package lockout

import "time"

// Default policy parameters.
const (
	DefaultThreshold = 5
	DefaultBaseLock  = 1 * time.Minute
	DefaultMaxLock   = 15 * time.Minute
)

// Policy computes lock durations from consecutive failure counts.
type Policy struct {
	Threshold int
	BaseLock  time.Duration
	MaxLock   time.Duration
}

// DefaultPolicy returns the production lockout parameters.
func DefaultPolicy() Policy {
	return Policy{
		Threshold: DefaultThreshold,
		BaseLock:  DefaultBaseLock,
		MaxLock:   DefaultMaxLock,
	}
}

// LockDuration returns how long the account locks after the given consecutive
// failure count, or zero when the count is below the threshold. The first
// lock lasts BaseLock; each subsequent failure doubles it up to MaxLock.
func (p Policy) LockDuration(failureCount int) time.Duration {
	if failureCount < p.Threshold {
		return 0
	}

	exponent := failureCount - p.Threshold
	// 2^exponent saturates quickly; beyond 30 doublings the cap always wins.
	if exponent > 30 {
		return p.MaxLock
	}

	d := p.BaseLock << uint(exponent)
	if d > p.MaxLock {
		return p.MaxLock
	}
	return d
}

// LockedUntil returns the lock expiry for the given failure count, or nil
// when no lock applies.
func (p Policy) LockedUntil(failureCount int, now time.Time) *time.Time {
	d := p.LockDuration(failureCount)
	if d == 0 {
		return nil
	}
	until := now.Add(d)
	return &until
}
