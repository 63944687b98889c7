package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func passValidator(claims *Claims) TokenValidator {
	return func(token string) (*Claims, error) {
		return claims, nil
	}
}

func failValidator() TokenValidator {
	return func(token string) (*Claims, error) {
		return nil, errors.New("bad token")
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	handler := Auth(failValidator())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_MalformedHeader(t *testing.T) {
	handler := Auth(failValidator())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "NotBearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := Auth(failValidator())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InjectsClaims(t *testing.T) {
	claims := &Claims{
		IdentityID: "id-1",
		Roles:      []string{"OWNER"},
		OrgIDs:     []string{"org-1"},
	}

	var gotID string
	var gotRoles, gotOrgs []string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = IdentityIDFromContext(r.Context())
		gotRoles = RolesFromContext(r.Context())
		gotOrgs = OrgIDsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := Auth(passValidator(claims))(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "id-1", gotID)
	assert.Equal(t, []string{"OWNER"}, gotRoles)
	assert.Equal(t, []string{"org-1"}, gotOrgs)
}

func TestHasAnyRole(t *testing.T) {
	claims := &Claims{IdentityID: "id-1", Roles: []string{"MANAGER"}}

	allowed := Auth(passValidator(claims))(Require(HasAnyRole("OWNER", "MANAGER"))(okHandler()))
	denied := Auth(passValidator(claims))(Require(HasAnyRole("OWNER"))(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")

	rec := httptest.NewRecorder()
	allowed.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	denied.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMemberOfOrg(t *testing.T) {
	claims := &Claims{IdentityID: "id-1", OrgIDs: []string{"org-1", "org-2"}}

	fromQuery := func(r *http.Request) string { return r.URL.Query().Get("org") }
	handler := Auth(passValidator(claims))(Require(MemberOfOrg(fromQuery))(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/?org=org-2", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/?org=org-9", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A missing org parameter never authorizes.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
