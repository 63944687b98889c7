package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKeyType string

const (
	identityIDKey contextKeyType = "identity_id"
	rolesKey      contextKeyType = "roles"
	orgIDsKey     contextKeyType = "org_ids"
)

// Claims is the verified identity extracted by the auth middleware and
// handed to downstream authorization: who the caller is, which roles they
// hold, and which organizations those roles apply to.
type Claims struct {
	IdentityID string   `json:"identity_id"`
	Email      string   `json:"email,omitempty"`
	Roles      []string `json:"roles"`
	OrgIDs     []string `json:"org_ids"`
}

// TokenValidator is a function that validates an access token and returns
// claims. The service injects its own validation logic, so this package
// stays free of signing-key knowledge.
type TokenValidator func(token string) (*Claims, error)

// Auth middleware validates bearer access tokens and injects identity claims
// into the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeAuthError(w, "invalid authorization header format")
				return
			}

			claims, err := validate(parts[1])
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityIDKey, claims.IdentityID)
			ctx = context.WithValue(ctx, rolesKey, claims.Roles)
			ctx = context.WithValue(ctx, orgIDsKey, claims.OrgIDs)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Predicate is a single authorization check evaluated against a request and
// the claims already placed in its context.
type Predicate func(r *http.Request) bool

// Require returns middleware that evaluates the given predicates in order
// and rejects the request with 403 as soon as one fails.
func Require(predicates ...Predicate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range predicates {
				if !p(r) {
					writeForbidden(w)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HasAnyRole is a Predicate satisfied when the caller holds at least one of
// the given roles.
func HasAnyRole(roles ...string) Predicate {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}
	return func(r *http.Request) bool {
		for _, role := range RolesFromContext(r.Context()) {
			if _, ok := roleSet[role]; ok {
				return true
			}
		}
		return false
	}
}

// MemberOfOrg is a Predicate satisfied when the caller belongs to the
// organization named by the given request extractor, typically a URL
// parameter lookup.
func MemberOfOrg(orgIDFromRequest func(*http.Request) string) Predicate {
	return func(r *http.Request) bool {
		orgID := orgIDFromRequest(r)
		if orgID == "" {
			return false
		}
		for _, id := range OrgIDsFromContext(r.Context()) {
			if id == orgID {
				return true
			}
		}
		return false
	}
}

// RequireAnyRole is shorthand for Require(HasAnyRole(roles...)).
func RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return Require(HasAnyRole(roles...))
}

// IdentityIDFromContext extracts the authenticated identity id from the
// request context.
func IdentityIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(identityIDKey).(string); ok {
		return id
	}
	return ""
}

// RolesFromContext extracts the caller's roles from the request context.
func RolesFromContext(ctx context.Context) []string {
	if roles, ok := ctx.Value(rolesKey).([]string); ok {
		return roles
	}
	return nil
}

// OrgIDsFromContext extracts the caller's organization ids from the request context.
func OrgIDsFromContext(ctx context.Context) []string {
	if ids, ok := ctx.Value(orgIDsKey).([]string); ok {
		return ids
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": message,
	})
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "FORBIDDEN",
		"message": "insufficient permissions",
	})
}
