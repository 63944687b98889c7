package http

import (
	"log/slog"
	"net/http"

	"github.com/GlennOnyango/housing-nest-be/internal/service"
	"github.com/GlennOnyango/housing-nest-be/pkg/httputil"
	"github.com/GlennOnyango/housing-nest-be/pkg/middleware"
)

// MFAHandler handles the authenticated MFA enrollment endpoints.
type MFAHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewMFAHandler creates an MFA HTTP handler.
func NewMFAHandler(svc *service.AuthService, logger *slog.Logger) *MFAHandler {
	return &MFAHandler{service: svc, logger: logger}
}

// EnableMFARequest is the JSON request body for confirming MFA enrollment.
type EnableMFARequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// MFASetupResponse carries the enrollment material. It is shown exactly once.
type MFASetupResponse struct {
	Secret        string   `json:"secret"`
	ProvisionURI  string   `json:"provision_uri"`
	RecoveryCodes []string `json:"recovery_codes"`
}

// Setup handles POST /api/v1/auth/mfa/setup
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	identityID := middleware.IdentityIDFromContext(r.Context())

	res, err := h.service.SetupMFA(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: MFASetupResponse{
			Secret:        res.Secret,
			ProvisionURI:  res.ProvisionURI,
			RecoveryCodes: res.RecoveryCodes,
		},
	})
}

// Enable handles POST /api/v1/auth/mfa/enable
func (h *MFAHandler) Enable(w http.ResponseWriter, r *http.Request) {
	var req EnableMFARequest
	if !decodeBody(w, r, &req) {
		return
	}

	identityID := middleware.IdentityIDFromContext(r.Context())
	if err := h.service.EnableMFA(r.Context(), identityID, req.Code); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"status": "enabled"},
	})
}

// RegenerateRecoveryCodes handles POST /api/v1/auth/mfa/recovery-codes
func (h *MFAHandler) RegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	identityID := middleware.IdentityIDFromContext(r.Context())

	codes, err := h.service.RegenerateRecoveryCodes(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]any{"recovery_codes": codes},
	})
}
