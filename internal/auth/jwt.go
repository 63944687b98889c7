package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
)

// AccessClaims are the claims carried by a signed access token. Downstream
// services authorize against Roles and OrgIDs without calling back here.
type AccessClaims struct {
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles"`
	OrgIDs []string `json:"org_ids"`
	Domain string   `json:"domain"`
	jwt.RegisteredClaims
}

// MFAPendingClaims are the claims of the short-lived assertion issued after
// a correct password when TOTP confirmation is still outstanding. The
// mfa_pending marker makes it unusable as an access token.
type MFAPendingClaims struct {
	MFAPending bool   `json:"mfa_pending"`
	Domain     string `json:"domain"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates tokens for a single auth domain. The tenant
// and platform-admin domains each get their own manager with an isolated
// signing key, so a token from one realm never validates in the other.
type JWTManager struct {
	secret        []byte
	domain        domain.AuthDomain
	accessExpiry  time.Duration
	pendingExpiry time.Duration
}

// NewJWTManager creates a manager for one auth domain.
func NewJWTManager(secret string, authDomain domain.AuthDomain, accessExpiry, pendingExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		domain:        authDomain,
		accessExpiry:  accessExpiry,
		pendingExpiry: pendingExpiry,
	}
}

// AccessExpiry returns the configured access-token lifetime.
func (m *JWTManager) AccessExpiry() time.Duration {
	return m.accessExpiry
}

// GenerateAccessToken creates a signed HS256 access token for the identity.
func (m *JWTManager) GenerateAccessToken(identityID, email string, roles, orgIDs []string) (string, error) {
	now := time.Now().UTC()
	claims := &AccessClaims{
		Email:  email,
		Roles:  roles,
		OrgIDs: orgIDs,
		Domain: string(m.domain),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessExpiry)),
			Issuer:    "identity-service",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// GenerateMFAPendingToken creates the temporary assertion returned when a
// password check succeeds but the account requires a second factor.
func (m *JWTManager) GenerateMFAPendingToken(identityID string) (string, error) {
	now := time.Now().UTC()
	claims := &MFAPendingClaims{
		MFAPending: true,
		Domain:     string(m.domain),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.pendingExpiry)),
			Issuer:    "identity-service",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign mfa pending token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses and validates an access token. Tokens carrying
// the mfa_pending marker or signed for another domain are rejected.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, m.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	if claims.Domain != string(m.domain) {
		return nil, fmt.Errorf("access token domain mismatch")
	}

	// An MFA-pending assertion parses as AccessClaims with no roles; reject
	// anything carrying the pending marker.
	var pending struct {
		MFAPending bool `json:"mfa_pending"`
	}
	if raw, _, perr := jwt.NewParser().ParseUnverified(tokenString, &MFAPendingClaims{}); perr == nil {
		if pc, ok := raw.Claims.(*MFAPendingClaims); ok {
			pending.MFAPending = pc.MFAPending
		}
	}
	if pending.MFAPending {
		return nil, fmt.Errorf("mfa pending token is not an access token")
	}

	return claims, nil
}

// ValidateMFAPendingToken parses and validates a pending assertion, returning
// the identity id it was issued for.
func (m *JWTManager) ValidateMFAPendingToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &MFAPendingClaims{}, m.keyFunc)
	if err != nil {
		return "", fmt.Errorf("parse mfa pending token: %w", err)
	}

	claims, ok := token.Claims.(*MFAPendingClaims)
	if !ok || !token.Valid || !claims.MFAPending {
		return "", fmt.Errorf("invalid mfa pending token")
	}
	if claims.Domain != string(m.domain) {
		return "", fmt.Errorf("mfa pending token domain mismatch")
	}

	return claims.Subject, nil
}

func (m *JWTManager) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return m.secret, nil
}
