package domain

import "time"

// AuthDomain distinguishes the two isolated authentication realms. Tokens
// signed for one domain are never valid in the other.
type AuthDomain string

const (
	DomainTenant AuthDomain = "tenant"
	DomainAdmin  AuthDomain = "admin"
)

// Role values carried in org memberships and access-token claims.
const (
	RoleOwner         = "OWNER"
	RoleManager       = "MANAGER"
	RoleTenant        = "TENANT"
	RolePlatformAdmin = "ADMIN_PLATFORM"
)

// Identity is an authenticatable account. Email and PasswordHash are
// nullable: an invite-claimed account can exist before a password is set,
// and such accounts always fail password login with a generic error.
// Identities are never hard-deleted.
type Identity struct {
	ID               string
	Email            *string
	PasswordHash     *string
	FailedLoginCount int
	LockedUntil      *time.Time
	MFAEnabled       bool
	MFASecret        *string
	PlatformAdmin    bool
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LockedAt reports whether the identity is locked out at the given instant.
func (i *Identity) LockedAt(now time.Time) bool {
	return i.LockedUntil != nil && now.Before(*i.LockedUntil)
}

// OrgMembership links an identity to an organization with a role. The
// membership edge is the source of the roles and org_ids access-token claims.
type OrgMembership struct {
	IdentityID string
	OrgID      string
	Role       string
	CreatedAt  time.Time
}

// TokenPair is the result of a completed authentication: a short-lived
// signed access token and an opaque refresh bearer.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// LoginResult is either a completed token pair or an MFA challenge holding a
// short-lived pending assertion.
type LoginResult struct {
	MFARequired bool
	TempToken   string
	Tokens      *TokenPair
}

// DeviceInfo carries request audit metadata recorded against issued
// refresh tokens.
type DeviceInfo struct {
	UserAgent string
	IPAddress string
}
