package domain

import "time"

// TokenPurpose partitions the opaque-token namespace. A bearer issued for
// one purpose can never be redeemed for another.
type TokenPurpose string

const (
	PurposeRefresh      TokenPurpose = "REFRESH"
	PurposeMagicLink    TokenPurpose = "MAGIC_LINK"
	PurposeInvite       TokenPurpose = "INVITE"
	PurposeRecoveryCode TokenPurpose = "RECOVERY_CODE"
	PurposeInvoiceLink  TokenPurpose = "INVOICE_LINK"
)

// OpaqueToken is the stored half of a split bearer token. ID is the public
// lookup half stored in plaintext and indexed; SecretHash is the argon2id
// digest of the secret half. The secret itself is never persisted.
//
// A token is usable iff ConsumedAt and RevokedAt are both nil and the
// current time is before ExpiresAt. Consumption and revocation are terminal.
type OpaqueToken struct {
	ID            string
	SecretHash    string
	Purpose       TokenPurpose
	SubjectRef    string
	SessionID     *string
	RotatedFromID *string
	UserAgent     *string
	IPAddress     *string
	Metadata      []byte
	IssuedAt      time.Time
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
	RevokedAt     *time.Time
}

// UsableAt reports whether the token can still be redeemed at the given instant.
func (t *OpaqueToken) UsableAt(now time.Time) bool {
	return t.ConsumedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// InviteMetadata is the payload stored alongside INVITE tokens and returned
// to the collaborator on claim.
type InviteMetadata struct {
	OrgID     string `json:"org_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	InvitedBy string `json:"invited_by"`
}
