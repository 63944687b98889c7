// Package repository defines the persistence interfaces for identities,
// org memberships, and opaque tokens. Implementations live in the postgres
// subpackage; services depend only on these interfaces.
package repository

import (
	"context"
	"time"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
)

// IdentityRepository persists authenticatable accounts.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)

	// IncrementFailedLogins atomically bumps the consecutive failure count
	// and returns the new value, so concurrent failures across replicas
	// never lose a count.
	IncrementFailedLogins(ctx context.Context, id string) (int, error)

	// SetLockedUntil applies a lock expiry computed from the failure count.
	SetLockedUntil(ctx context.Context, id string, until time.Time) error

	// ResetLoginState clears the failure count and lock and records a
	// successful login, all in one statement.
	ResetLoginState(ctx context.Context, id string, lastLoginAt time.Time) error

	SetPasswordHash(ctx context.Context, id, hash string) error
	SetMFASecret(ctx context.Context, id, secret string) error
	EnableMFA(ctx context.Context, id string) error
}

// MembershipRepository persists the identity-to-organization edges that
// source the roles and org_ids access-token claims.
type MembershipRepository interface {
	Create(ctx context.Context, m *domain.OrgMembership) error
	ListByIdentity(ctx context.Context, identityID string) ([]domain.OrgMembership, error)
}

// TokenRepository persists opaque tokens. Consumption and revocation are
// conditional updates so exactly one concurrent presenter wins.
type TokenRepository interface {
	Insert(ctx context.Context, t *domain.OpaqueToken) error

	// InsertBatchReplacing revokes every usable token with the given purpose
	// and subject, then inserts the batch, in a single transaction.
	InsertBatchReplacing(ctx context.Context, tokens []*domain.OpaqueToken, purpose domain.TokenPurpose, subjectRef string) error

	GetByID(ctx context.Context, id string) (*domain.OpaqueToken, error)

	// ConsumeByID marks the token consumed iff it is still usable. Returns
	// pkg/errors.ErrNotFound when another presenter already won or the token
	// is expired, revoked, or consumed.
	ConsumeByID(ctx context.Context, id string) error

	// RevokeByID marks the token revoked iff it is still usable. Revoking a
	// token that is already terminal is not an error.
	RevokeByID(ctx context.Context, id string) error

	// RevokeBySession revokes every token belonging to a refresh session,
	// terminal or not yet consumed alike.
	RevokeBySession(ctx context.Context, sessionID string) error
}
