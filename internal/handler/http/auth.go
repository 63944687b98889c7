// Package http exposes the identity service over HTTP using chi.
package http

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/service"
	"github.com/GlennOnyango/housing-nest-be/pkg/httputil"
	"github.com/GlennOnyango/housing-nest-be/pkg/validator"
)

// AuthHandler handles HTTP requests for one auth domain's endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates an auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterOwnerRequest is the JSON request body for owner registration.
type RegisterOwnerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the JSON request body for password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyTOTPRequest is the JSON request body for completing an MFA challenge.
type VerifyTOTPRequest struct {
	TempToken string `json:"temp_token" validate:"required"`
	Code      string `json:"code" validate:"required"`
}

// RefreshRequest is the JSON request body for token refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// MagicLinkRequest is the JSON request body for requesting a magic link.
type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ConsumeTokenRequest is the JSON request body for redeeming an opaque bearer.
type ConsumeTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// --- Response types ---

// TokenPairResponse is the JSON shape of an issued session.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResponse is either a completed session or an MFA challenge.
type LoginResponse struct {
	MFARequired bool               `json:"mfa_required"`
	TempToken   string             `json:"temp_token,omitempty"`
	Tokens      *TokenPairResponse `json:"tokens,omitempty"`
}

// RegisterOwnerResponse wraps the created identity with its first session.
type RegisterOwnerResponse struct {
	IdentityID string             `json:"identity_id"`
	OrgID      string             `json:"org_id"`
	Tokens     *TokenPairResponse `json:"tokens"`
}

func toTokenPairResponse(p *domain.TokenPair) *TokenPairResponse {
	if p == nil {
		return nil
	}
	return &TokenPairResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    p.ExpiresIn,
	}
}

func toLoginResponse(res *domain.LoginResult) LoginResponse {
	return LoginResponse{
		MFARequired: res.MFARequired,
		TempToken:   res.TempToken,
		Tokens:      toTokenPairResponse(res.Tokens),
	}
}

// deviceInfo extracts the audit metadata recorded against issued refresh
// tokens.
func deviceInfo(r *http.Request) domain.DeviceInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return domain.DeviceInfo{
		UserAgent: r.UserAgent(),
		IPAddress: ip,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// --- Handlers ---

// RegisterOwner handles POST /api/v1/auth/register-owner
func (h *AuthHandler) RegisterOwner(w http.ResponseWriter, r *http.Request) {
	var req RegisterOwnerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.RegisterOwner(r.Context(), service.RegisterOwnerInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: RegisterOwnerResponse{
			IdentityID: res.Identity.ID,
			OrgID:      res.OrgID,
			Tokens:     toTokenPairResponse(res.Tokens),
		},
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Device:   deviceInfo(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toLoginResponse(res)})
}

// VerifyTOTP handles POST /api/v1/auth/verify-totp
func (h *AuthHandler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyTOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := h.service.VerifyTOTP(r.Context(), service.VerifyTOTPInput{
		TempToken: req.TempToken,
		Code:      req.Code,
		Device:    deviceInfo(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toTokenPairResponse(pair)})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken, deviceInfo(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toTokenPairResponse(pair)})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestMagicLink handles POST /api/v1/auth/request-magic-link
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req MagicLinkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.RequestMagicLink(r.Context(), req.Email, deviceInfo(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	// The response never reveals whether the address has an account.
	w.WriteHeader(http.StatusNoContent)
}

// ConsumeMagicLink handles POST /api/v1/auth/consume-magic-link
func (h *AuthHandler) ConsumeMagicLink(w http.ResponseWriter, r *http.Request) {
	var req ConsumeTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.ConsumeMagicLink(r.Context(), req.Token, deviceInfo(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toLoginResponse(res)})
}
