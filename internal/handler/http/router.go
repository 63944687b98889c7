package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/service"
	"github.com/GlennOnyango/housing-nest-be/pkg/health"
	"github.com/GlennOnyango/housing-nest-be/pkg/middleware"
)

// NewRouter creates a chi router with all identity service routes registered.
// The tenant and admin services are mounted under separate prefixes and each
// realm's routes only accept tokens signed for that realm.
func NewRouter(
	tenantAuth *service.AuthService,
	adminAuth *service.AuthService,
	links *service.LinkService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("identity"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	tenantValidator := claimsValidator(tenantAuth)
	adminValidator := claimsValidator(adminAuth)

	// Tenant auth endpoints (public)
	tenantHandler := NewAuthHandler(tenantAuth, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register-owner", tenantHandler.RegisterOwner)
		r.Post("/login", tenantHandler.Login)
		r.Post("/verify-totp", tenantHandler.VerifyTOTP)
		r.Post("/refresh", tenantHandler.Refresh)
		r.Post("/logout", tenantHandler.Logout)
		r.Post("/request-magic-link", tenantHandler.RequestMagicLink)
		r.Post("/consume-magic-link", tenantHandler.ConsumeMagicLink)
	})

	// Tenant MFA enrollment (auth required)
	tenantMFA := NewMFAHandler(tenantAuth, logger)
	r.Route("/api/v1/auth/mfa", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tenantValidator))

		r.Post("/setup", tenantMFA.Setup)
		r.Post("/enable", tenantMFA.Enable)
		r.Post("/recovery-codes", tenantMFA.RegenerateRecoveryCodes)
	})

	// Admin auth endpoints. No registration and no magic links in this realm.
	adminHandler := NewAuthHandler(adminAuth, logger)
	r.Route("/api/v1/admin/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/login", adminHandler.Login)
		r.Post("/verify-totp", adminHandler.VerifyTOTP)
		r.Post("/refresh", adminHandler.Refresh)
		r.Post("/logout", adminHandler.Logout)
	})

	adminMFA := NewMFAHandler(adminAuth, logger)
	r.Route("/api/v1/admin/auth/mfa", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(adminValidator))

		r.Post("/setup", adminMFA.Setup)
		r.Post("/enable", adminMFA.Enable)
		r.Post("/recovery-codes", adminMFA.RegenerateRecoveryCodes)
	})

	// Collaborator link endpoints
	linkHandler := NewLinkHandler(links, logger)

	r.Route("/api/v1/orgs/{orgID}/invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tenantValidator))
		r.Use(middleware.Require(
			middleware.HasAnyRole(domain.RoleOwner, domain.RoleManager),
			middleware.MemberOfOrg(func(r *http.Request) string {
				return chi.URLParam(r, "orgID")
			}),
		))

		r.Post("/", linkHandler.IssueInvite)
	})

	r.Route("/api/v1/invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/claim", linkHandler.ClaimInvite)
	})

	r.Route("/api/v1/invoices/{invoiceID}/link", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tenantValidator))
		r.Use(middleware.RequireAnyRole(domain.RoleOwner, domain.RoleManager))

		r.Post("/", linkHandler.IssueInvoiceLink)
	})

	r.Route("/api/v1/public", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/invoice-access", linkHandler.ConsumeInvoiceLink)
	})

	return r
}

// claimsValidator bridges an auth domain's token validation to the transport
// middleware.
func claimsValidator(svc *service.AuthService) middleware.TokenValidator {
	return func(tokenString string) (*middleware.Claims, error) {
		claims, err := svc.ValidateAccessToken(tokenString)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			IdentityID: claims.Subject,
			Email:      claims.Email,
			Roles:      claims.Roles,
			OrgIDs:     claims.OrgIDs,
		}, nil
	}
}
