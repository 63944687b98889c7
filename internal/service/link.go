package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/event"
	"github.com/GlennOnyango/housing-nest-be/internal/repository"
	"github.com/GlennOnyango/housing-nest-be/internal/token"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

// LinkConfig carries the lifetimes of collaborator-issued bearers.
type LinkConfig struct {
	InviteTTL      time.Duration
	InvoiceLinkTTL time.Duration
}

// LinkService issues and redeems the opaque bearers used by collaborator
// subsystems: organization invites and public invoice-access links. It is
// exported as a Go API as well as over HTTP, so collaborators share one
// token store instead of inventing their own matching schemes.
type LinkService struct {
	cfg         LinkConfig
	identities  repository.IdentityRepository
	memberships repository.MembershipRepository
	tokens      *token.Store
	producer    *event.Producer
	logger      *slog.Logger
	now         func() time.Time
}

// NewLinkService creates the collaborator link service.
func NewLinkService(
	cfg LinkConfig,
	identities repository.IdentityRepository,
	memberships repository.MembershipRepository,
	tokens *token.Store,
	producer *event.Producer,
	logger *slog.Logger,
) *LinkService {
	return &LinkService{
		cfg:         cfg,
		identities:  identities,
		memberships: memberships,
		tokens:      tokens,
		producer:    producer,
		logger:      logger,
		now:         time.Now,
	}
}

// IssueInviteInput holds the parameters for inviting a collaborator into an
// organization.
type IssueInviteInput struct {
	OrgID     string
	Email     string
	Role      string
	InvitedBy string
}

// ClaimInviteResult is the outcome of redeeming an invite bearer.
type ClaimInviteResult struct {
	IdentityID string
	OrgID      string
	Email      string
	Role       string
}

// IssueInvite mints a single-use invite bearer carrying the org, email, and
// role it grants. The bearer reaches the invitee through the notification
// collaborator, never through the issuing response alone.
func (s *LinkService) IssueInvite(ctx context.Context, in IssueInviteInput) (string, error) {
	if in.Role != domain.RoleManager && in.Role != domain.RoleTenant {
		return "", apperrors.InvalidInput("invite role must be MANAGER or TENANT")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	meta, err := json.Marshal(domain.InviteMetadata{
		OrgID:     in.OrgID,
		Email:     email,
		Role:      in.Role,
		InvitedBy: in.InvitedBy,
	})
	if err != nil {
		return "", apperrors.Internal(err)
	}

	bearer, _, err := s.tokens.Issue(ctx, token.IssueParams{
		Purpose:    domain.PurposeInvite,
		SubjectRef: uuid.New().String(),
		TTL:        s.cfg.InviteTTL,
		Metadata:   meta,
	})
	if err != nil {
		return "", apperrors.Internal(err)
	}

	if perr := s.producer.PublishInviteIssued(ctx, event.InviteIssuedData{
		OrgID:     in.OrgID,
		Email:     email,
		Role:      in.Role,
		InvitedBy: in.InvitedBy,
		Bearer:    bearer,
	}); perr != nil {
		s.logger.ErrorContext(ctx, "failed to publish auth.invite_issued",
			slog.String("org_id", in.OrgID),
			slog.String("error", perr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "invite issued",
		slog.String("org_id", in.OrgID),
		slog.String("role", in.Role),
	)

	return bearer, nil
}

// ClaimInvite redeems an invite bearer: the invitee's identity is created on
// first contact and the membership edge the invite grants is written.
func (s *LinkService) ClaimInvite(ctx context.Context, bearer string) (*ClaimInviteResult, error) {
	tok, err := s.tokens.Consume(ctx, domain.PurposeInvite, bearer)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid or expired invite")
		}
		return nil, err
	}

	var meta domain.InviteMetadata
	if err := json.Unmarshal(tok.Metadata, &meta); err != nil {
		return nil, apperrors.Internal(err)
	}

	identity, err := s.identities.GetByEmail(ctx, meta.Email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		now := s.now().UTC()
		email := meta.Email
		identity = &domain.Identity{
			ID:        uuid.New().String(),
			Email:     &email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if cerr := s.identities.Create(ctx, identity); cerr != nil {
			return nil, cerr
		}
	}

	membership := &domain.OrgMembership{
		IdentityID: identity.ID,
		OrgID:      meta.OrgID,
		Role:       meta.Role,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.memberships.Create(ctx, membership); err != nil {
		// Claiming an invite into an org the identity already belongs to
		// still succeeds; the invite is simply spent.
		if !errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "invite claimed",
		slog.String("identity_id", identity.ID),
		slog.String("org_id", meta.OrgID),
	)

	return &ClaimInviteResult{
		IdentityID: identity.ID,
		OrgID:      meta.OrgID,
		Email:      meta.Email,
		Role:       meta.Role,
	}, nil
}

// IssueInvoiceLink mints a single-use public access bearer for an invoice.
func (s *LinkService) IssueInvoiceLink(ctx context.Context, invoiceID string) (string, error) {
	bearer, _, err := s.tokens.Issue(ctx, token.IssueParams{
		Purpose:    domain.PurposeInvoiceLink,
		SubjectRef: invoiceID,
		TTL:        s.cfg.InvoiceLinkTTL,
	})
	if err != nil {
		return "", apperrors.Internal(err)
	}

	s.logger.InfoContext(ctx, "invoice link issued",
		slog.String("invoice_id", invoiceID),
	)

	return bearer, nil
}

// ConsumeInvoiceLink redeems an invoice-access bearer and returns the
// invoice id it grants access to.
func (s *LinkService) ConsumeInvoiceLink(ctx context.Context, bearer string) (string, error) {
	tok, err := s.tokens.Consume(ctx, domain.PurposeInvoiceLink, bearer)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return "", apperrors.Unauthorized("invalid or expired link")
		}
		return "", err
	}

	return tok.SubjectRef, nil
}
