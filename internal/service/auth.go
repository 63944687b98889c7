// Package service implements the auth orchestrators: credential
// verification with progressive lockout, the TOTP second factor, session
// issuance with refresh rotation, and the collaborator link flows.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GlennOnyango/housing-nest-be/internal/auth"
	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/event"
	"github.com/GlennOnyango/housing-nest-be/internal/lockout"
	"github.com/GlennOnyango/housing-nest-be/internal/ratelimit"
	"github.com/GlennOnyango/housing-nest-be/internal/repository"
	"github.com/GlennOnyango/housing-nest-be/internal/token"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

const (
	minPasswordLength = 8

	// invalidCredentialsMsg is deliberately identical for unknown email,
	// wrong password, and passwordless accounts.
	invalidCredentialsMsg = "invalid email or password"

	invalidTokenMsg = "invalid or expired token"
)

// AuthConfig carries the per-domain parameters of an auth orchestrator.
type AuthConfig struct {
	Domain          domain.AuthDomain
	RefreshTTL      time.Duration
	MagicLinkTTL    time.Duration
	RecoveryCodeTTL time.Duration
	RecoveryCodes   int
}

// AuthService orchestrates authentication for one auth domain. The service
// is instantiated twice, once for tenants and once for platform admins, each
// with its own JWT manager so signing keys never cross realms.
type AuthService struct {
	cfg         AuthConfig
	identities  repository.IdentityRepository
	memberships repository.MembershipRepository
	tokens      *token.Store
	hasher      *auth.Hasher
	totp        *auth.TOTP
	jwt         *auth.JWTManager
	policy      lockout.Policy
	limiter     *ratelimit.Limiter
	producer    *event.Producer
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService creates an auth orchestrator for one domain. The limiter
// may be nil for domains without magic-link login.
func NewAuthService(
	cfg AuthConfig,
	identities repository.IdentityRepository,
	memberships repository.MembershipRepository,
	tokens *token.Store,
	hasher *auth.Hasher,
	totp *auth.TOTP,
	jwtManager *auth.JWTManager,
	policy lockout.Policy,
	limiter *ratelimit.Limiter,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		cfg:         cfg,
		identities:  identities,
		memberships: memberships,
		tokens:      tokens,
		hasher:      hasher,
		totp:        totp,
		jwt:         jwtManager,
		policy:      policy,
		limiter:     limiter,
		producer:    producer,
		logger:      logger,
		now:         time.Now,
	}
}

// --- Input types ---

// RegisterOwnerInput holds the parameters for bootstrapping an owner account
// with its organization membership.
type RegisterOwnerInput struct {
	Email    string
	Password string
}

// LoginInput holds the parameters for password login.
type LoginInput struct {
	Email    string
	Password string
	Device   domain.DeviceInfo
}

// VerifyTOTPInput holds the parameters for completing an MFA challenge.
type VerifyTOTPInput struct {
	TempToken string
	Code      string
	Device    domain.DeviceInfo
}

// RegisterOwnerResult is the outcome of owner registration.
type RegisterOwnerResult struct {
	Identity *domain.Identity
	OrgID    string
	Tokens   *domain.TokenPair
}

// --- Operations ---

// RegisterOwner creates an owner identity, its organization membership, and
// an initial session. Tenant domain only.
func (s *AuthService) RegisterOwner(ctx context.Context, in RegisterOwnerInput) (*RegisterOwnerResult, error) {
	if s.cfg.Domain != domain.DomainTenant {
		return nil, apperrors.Forbidden("registration is not available in this domain")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput("password must be at least 8 characters")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now().UTC()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	identity := &domain.Identity{
		ID:           uuid.New().String(),
		Email:        &email,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	orgID := uuid.New().String()
	membership := &domain.OrgMembership{
		IdentityID: identity.ID,
		OrgID:      orgID,
		Role:       domain.RoleOwner,
		CreatedAt:  now,
	}
	if err := s.memberships.Create(ctx, membership); err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(ctx, identity, domain.DeviceInfo{})
	if err != nil {
		return nil, err
	}

	if perr := s.producer.PublishIdentityRegistered(ctx, event.IdentityRegisteredData{
		ID:    identity.ID,
		Email: email,
		OrgID: orgID,
		Role:  domain.RoleOwner,
	}); perr != nil {
		s.logger.ErrorContext(ctx, "failed to publish identity.registered",
			slog.String("identity_id", identity.ID),
			slog.String("error", perr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "owner registered",
		slog.String("identity_id", identity.ID),
		slog.String("org_id", orgID),
	)

	return &RegisterOwnerResult{Identity: identity, OrgID: orgID, Tokens: pair}, nil
}

// Login verifies a password. The outcome for unknown email, passwordless
// account, and wrong password is byte-identical. A locked account
// short-circuits before any hashing work. Accounts with MFA enabled receive
// a short-lived pending assertion instead of a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			loginsTotal.WithLabelValues(string(s.cfg.Domain), "invalid").Inc()
			return nil, apperrors.Unauthorized(invalidCredentialsMsg)
		}
		return nil, err
	}

	if s.cfg.Domain == domain.DomainAdmin && !identity.PlatformAdmin {
		loginsTotal.WithLabelValues(string(s.cfg.Domain), "invalid").Inc()
		return nil, apperrors.Unauthorized(invalidCredentialsMsg)
	}

	if identity.LockedAt(s.now()) {
		loginsTotal.WithLabelValues(string(s.cfg.Domain), "locked").Inc()
		return nil, apperrors.Locked("account temporarily locked")
	}

	if identity.PasswordHash == nil {
		loginsTotal.WithLabelValues(string(s.cfg.Domain), "invalid").Inc()
		return nil, apperrors.Unauthorized(invalidCredentialsMsg)
	}

	ok, err := s.hasher.Verify(in.Password, *identity.PasswordHash)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		s.registerFailure(ctx, identity)
		loginsTotal.WithLabelValues(string(s.cfg.Domain), "invalid").Inc()
		return nil, apperrors.Unauthorized(invalidCredentialsMsg)
	}

	if identity.MFAEnabled {
		temp, terr := s.jwt.GenerateMFAPendingToken(identity.ID)
		if terr != nil {
			return nil, apperrors.Internal(terr)
		}
		loginsTotal.WithLabelValues(string(s.cfg.Domain), "mfa_pending").Inc()
		return &domain.LoginResult{MFARequired: true, TempToken: temp}, nil
	}

	if err := s.identities.ResetLoginState(ctx, identity.ID, s.now().UTC()); err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(ctx, identity, in.Device)
	if err != nil {
		return nil, err
	}

	loginsTotal.WithLabelValues(string(s.cfg.Domain), "success").Inc()
	return &domain.LoginResult{Tokens: pair}, nil
}

// VerifyTOTP completes an MFA challenge. The code may be a TOTP code or a
// recovery-code bearer; recovery codes are consumed exactly once. A wrong
// code counts toward the lockout policy like a wrong password.
func (s *AuthService) VerifyTOTP(ctx context.Context, in VerifyTOTPInput) (*domain.TokenPair, error) {
	identityID, err := s.jwt.ValidateMFAPendingToken(in.TempToken)
	if err != nil {
		return nil, apperrors.Unauthorized(invalidTokenMsg)
	}

	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(invalidTokenMsg)
		}
		return nil, err
	}

	if identity.LockedAt(s.now()) {
		return nil, apperrors.Locked("account temporarily locked")
	}
	if !identity.MFAEnabled || identity.MFASecret == nil {
		return nil, apperrors.Unauthorized(invalidTokenMsg)
	}

	verified := false
	if strings.Contains(in.Code, ".") {
		verified = s.consumeRecoveryCode(ctx, identity.ID, in.Code)
	} else {
		verified, err = s.totp.Verify(*identity.MFASecret, in.Code, s.now())
		if err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	if !verified {
		s.registerFailure(ctx, identity)
		loginsTotal.WithLabelValues(string(s.cfg.Domain), "invalid").Inc()
		return nil, apperrors.Unauthorized("invalid verification code")
	}

	if err := s.identities.ResetLoginState(ctx, identity.ID, s.now().UTC()); err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(ctx, identity, in.Device)
	if err != nil {
		return nil, err
	}

	loginsTotal.WithLabelValues(string(s.cfg.Domain), "success").Inc()
	return pair, nil
}

// Refresh rotates a refresh bearer into a fresh token pair within the same
// session. Presenting a superseded bearer revokes the entire session.
func (s *AuthService) Refresh(ctx context.Context, bearer string, device domain.DeviceInfo) (*domain.TokenPair, error) {
	tok, err := s.tokens.Consume(ctx, domain.PurposeRefresh, bearer)
	if err != nil {
		if errors.Is(err, token.ErrReuseDetected) {
			s.handleReuse(ctx, tok)
			return nil, apperrors.Unauthorized(invalidTokenMsg)
		}
		if errors.Is(err, token.ErrNotFound) {
			return nil, apperrors.Unauthorized(invalidTokenMsg)
		}
		return nil, err
	}

	if tok.SessionID == nil {
		return nil, apperrors.Unauthorized(invalidTokenMsg)
	}

	identity, err := s.identities.GetByID(ctx, tok.SubjectRef)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(invalidTokenMsg)
		}
		return nil, err
	}

	if s.cfg.Domain == domain.DomainAdmin && !identity.PlatformAdmin {
		return nil, apperrors.Unauthorized(invalidTokenMsg)
	}
	if identity.LockedAt(s.now()) {
		return nil, apperrors.Locked("account temporarily locked")
	}

	return s.issueTokensInSession(ctx, identity, device, *tok.SessionID, &tok.ID)
}

// Logout revokes a refresh bearer. It is idempotent and never reveals
// whether the bearer existed.
func (s *AuthService) Logout(ctx context.Context, bearer string) error {
	return s.tokens.Revoke(ctx, domain.PurposeRefresh, bearer)
}

// RequestMagicLink mints a single-use login bearer and hands it to the
// notification collaborator via an event. The response never reveals whether
// the email is registered, and requests are rate limited per address.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string, device domain.DeviceInfo) error {
	if s.cfg.Domain != domain.DomainTenant {
		return apperrors.Forbidden("magic link login is not available in this domain")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			// A limiter outage must not take magic-link login down with it.
			s.logger.ErrorContext(ctx, "magic link rate limiter unavailable",
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			s.logger.WarnContext(ctx, "magic link request rate limited")
			return nil
		}
	}

	bearer, _, err := s.tokens.Issue(ctx, token.IssueParams{
		Purpose:    domain.PurposeMagicLink,
		SubjectRef: email,
		TTL:        s.cfg.MagicLinkTTL,
		Device:     device,
	})
	if err != nil {
		return apperrors.Internal(err)
	}

	if perr := s.producer.PublishMagicLinkRequested(ctx, event.MagicLinkRequestedData{
		Email:  email,
		Bearer: bearer,
	}); perr != nil {
		s.logger.ErrorContext(ctx, "failed to publish auth.magic_link_requested",
			slog.String("error", perr.Error()),
		)
	}

	return nil
}

// ConsumeMagicLink redeems a magic-link bearer. An identity is created on
// first use for an address with no account yet. MFA-enabled accounts still
// face the TOTP challenge.
func (s *AuthService) ConsumeMagicLink(ctx context.Context, bearer string, device domain.DeviceInfo) (*domain.LoginResult, error) {
	if s.cfg.Domain != domain.DomainTenant {
		return nil, apperrors.Forbidden("magic link login is not available in this domain")
	}

	tok, err := s.tokens.Consume(ctx, domain.PurposeMagicLink, bearer)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, apperrors.Unauthorized(invalidTokenMsg)
		}
		return nil, err
	}

	email := tok.SubjectRef
	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		now := s.now().UTC()
		identity = &domain.Identity{
			ID:        uuid.New().String(),
			Email:     &email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if cerr := s.identities.Create(ctx, identity); cerr != nil {
			return nil, cerr
		}
		s.logger.InfoContext(ctx, "identity created via magic link",
			slog.String("identity_id", identity.ID),
		)
	}

	if identity.LockedAt(s.now()) {
		return nil, apperrors.Locked("account temporarily locked")
	}

	if identity.MFAEnabled {
		temp, terr := s.jwt.GenerateMFAPendingToken(identity.ID)
		if terr != nil {
			return nil, apperrors.Internal(terr)
		}
		return &domain.LoginResult{MFARequired: true, TempToken: temp}, nil
	}

	if err := s.identities.ResetLoginState(ctx, identity.ID, s.now().UTC()); err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(ctx, identity, device)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResult{Tokens: pair}, nil
}

// ValidateAccessToken exposes the domain's token validation for transport
// middleware.
func (s *AuthService) ValidateAccessToken(tokenString string) (*auth.AccessClaims, error) {
	return s.jwt.ValidateAccessToken(tokenString)
}

// --- internals ---

// registerFailure records a failed verification attempt and applies a lock
// when the policy says so. It runs on a detached context: a caller hanging
// up must not lose the failure count.
func (s *AuthService) registerFailure(ctx context.Context, identity *domain.Identity) {
	ctx = context.WithoutCancel(ctx)

	count, err := s.identities.IncrementFailedLogins(ctx, identity.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record login failure",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	until := s.policy.LockedUntil(count, s.now().UTC())
	if until == nil {
		return
	}

	if err := s.identities.SetLockedUntil(ctx, identity.ID, *until); err != nil {
		s.logger.ErrorContext(ctx, "failed to apply lockout",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	lockoutsTotal.WithLabelValues(string(s.cfg.Domain)).Inc()
	s.logger.WarnContext(ctx, "account locked out",
		slog.String("identity_id", identity.ID),
		slog.Int("failure_count", count),
		slog.Time("locked_until", *until),
	)

	if perr := s.producer.PublishLockedOut(ctx, event.LockedOutData{
		IdentityID:   identity.ID,
		FailureCount: count,
		LockedUntil:  until.Format(time.RFC3339),
	}); perr != nil {
		s.logger.ErrorContext(ctx, "failed to publish auth.locked_out",
			slog.String("identity_id", identity.ID),
			slog.String("error", perr.Error()),
		)
	}
}

// consumeRecoveryCode redeems a recovery-code bearer for the identity. A
// code belonging to a different identity does not verify.
func (s *AuthService) consumeRecoveryCode(ctx context.Context, identityID, bearer string) bool {
	tok, err := s.tokens.Consume(ctx, domain.PurposeRecoveryCode, bearer)
	if err != nil {
		return false
	}
	return tok.SubjectRef == identityID
}

// handleReuse revokes the session of a replayed refresh token and raises the
// alarm. The presenter still sees the generic invalid-token outcome.
func (s *AuthService) handleReuse(ctx context.Context, tok *domain.OpaqueToken) {
	if tok == nil || tok.SessionID == nil {
		return
	}

	tokenReuseTotal.WithLabelValues(string(s.cfg.Domain)).Inc()
	s.logger.WarnContext(ctx, "refresh token reuse detected, revoking session",
		slog.String("identity_id", tok.SubjectRef),
		slog.String("session_id", *tok.SessionID),
	)

	if err := s.tokens.RevokeSession(context.WithoutCancel(ctx), *tok.SessionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke session after reuse",
			slog.String("session_id", *tok.SessionID),
			slog.String("error", err.Error()),
		)
	}

	if perr := s.producer.PublishTokenReuseDetected(ctx, event.TokenReuseDetectedData{
		IdentityID: tok.SubjectRef,
		SessionID:  *tok.SessionID,
		TokenID:    tok.ID,
	}); perr != nil {
		s.logger.ErrorContext(ctx, "failed to publish auth.token_reuse_detected",
			slog.String("error", perr.Error()),
		)
	}
}

// issueTokens starts a new refresh session and returns its first token pair.
func (s *AuthService) issueTokens(ctx context.Context, identity *domain.Identity, device domain.DeviceInfo) (*domain.TokenPair, error) {
	return s.issueTokensInSession(ctx, identity, device, uuid.New().String(), nil)
}

func (s *AuthService) issueTokensInSession(ctx context.Context, identity *domain.Identity, device domain.DeviceInfo, sessionID string, rotatedFromID *string) (*domain.TokenPair, error) {
	roles, orgIDs, err := s.claimsFor(ctx, identity)
	if err != nil {
		return nil, err
	}

	email := ""
	if identity.Email != nil {
		email = *identity.Email
	}

	access, err := s.jwt.GenerateAccessToken(identity.ID, email, roles, orgIDs)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	refresh, _, err := s.tokens.Issue(ctx, token.IssueParams{
		Purpose:       domain.PurposeRefresh,
		SubjectRef:    identity.ID,
		TTL:           s.cfg.RefreshTTL,
		SessionID:     &sessionID,
		RotatedFromID: rotatedFromID,
		Device:        device,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwt.AccessExpiry().Seconds()),
	}, nil
}

func (s *AuthService) claimsFor(ctx context.Context, identity *domain.Identity) (roles, orgIDs []string, err error) {
	if s.cfg.Domain == domain.DomainAdmin {
		return []string{domain.RolePlatformAdmin}, nil, nil
	}

	memberships, err := s.memberships.ListByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]struct{})
	for _, m := range memberships {
		if _, ok := seen[m.Role]; !ok {
			seen[m.Role] = struct{}{}
			roles = append(roles, m.Role)
		}
		orgIDs = append(orgIDs, m.OrgID)
	}
	return roles, orgIDs, nil
}
