package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GlennOnyango/housing-nest-be/internal/service"
	"github.com/GlennOnyango/housing-nest-be/pkg/httputil"
	"github.com/GlennOnyango/housing-nest-be/pkg/middleware"
)

// LinkHandler handles the collaborator link endpoints: org invites and
// public invoice-access links.
type LinkHandler struct {
	service *service.LinkService
	logger  *slog.Logger
}

// NewLinkHandler creates a link HTTP handler.
func NewLinkHandler(svc *service.LinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{service: svc, logger: logger}
}

// IssueInviteRequest is the JSON request body for inviting a collaborator.
type IssueInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=MANAGER TENANT"`
}

// ClaimInviteResponse is the outcome of redeeming an invite.
type ClaimInviteResponse struct {
	IdentityID string `json:"identity_id"`
	OrgID      string `json:"org_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

// IssueInvite handles POST /api/v1/orgs/{orgID}/invites
func (h *LinkHandler) IssueInvite(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParseUUID(w, chi.URLParam(r, "orgID"))
	if !ok {
		return
	}

	var req IssueInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bearer, err := h.service.IssueInvite(r.Context(), service.IssueInviteInput{
		OrgID:     orgID.String(),
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: middleware.IdentityIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: map[string]string{"invite_token": bearer},
	})
}

// ClaimInvite handles POST /api/v1/invites/claim
func (h *LinkHandler) ClaimInvite(w http.ResponseWriter, r *http.Request) {
	var req ConsumeTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.ClaimInvite(r.Context(), req.Token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: ClaimInviteResponse{
			IdentityID: res.IdentityID,
			OrgID:      res.OrgID,
			Email:      res.Email,
			Role:       res.Role,
		},
	})
}

// IssueInvoiceLink handles POST /api/v1/invoices/{invoiceID}/link
func (h *LinkHandler) IssueInvoiceLink(w http.ResponseWriter, r *http.Request) {
	bearer, err := h.service.IssueInvoiceLink(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: map[string]string{"link_token": bearer},
	})
}

// ConsumeInvoiceLink handles POST /api/v1/public/invoice-access
func (h *LinkHandler) ConsumeInvoiceLink(w http.ResponseWriter, r *http.Request) {
	var req ConsumeTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	invoiceID, err := h.service.ConsumeInvoiceLink(r.Context(), req.Token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"invoice_id": invoiceID},
	})
}
