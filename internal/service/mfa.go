package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/token"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

// MFASetupResult carries the enrollment material returned once at setup.
// The secret and recovery codes are never retrievable again.
type MFASetupResult struct {
	Secret        string
	ProvisionURI  string
	RecoveryCodes []string
}

// SetupMFA provisions a TOTP secret and a fresh recovery-code set for an
// identity that does not have MFA enabled yet. The secret stays provisional
// until EnableMFA confirms the authenticator produces matching codes.
func (s *AuthService) SetupMFA(ctx context.Context, identityID string) (*MFASetupResult, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.MFAEnabled {
		return nil, apperrors.Conflict("mfa is already enabled")
	}
	if identity.Email == nil {
		return nil, apperrors.Conflict("mfa requires an account with an email address")
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.identities.SetMFASecret(ctx, identityID, secret); err != nil {
		return nil, err
	}

	codes, err := s.issueRecoveryCodes(ctx, identityID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "mfa setup initiated",
		slog.String("identity_id", identityID),
	)

	return &MFASetupResult{
		Secret:        secret,
		ProvisionURI:  s.totp.ProvisionURI(secret, *identity.Email),
		RecoveryCodes: codes,
	}, nil
}

// EnableMFA confirms the provisional secret with a live TOTP code and turns
// enforcement on.
func (s *AuthService) EnableMFA(ctx context.Context, identityID, code string) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.MFAEnabled {
		return apperrors.Conflict("mfa is already enabled")
	}
	if identity.MFASecret == nil {
		return apperrors.InvalidInput("mfa setup has not been started")
	}

	ok, err := s.totp.Verify(*identity.MFASecret, code, s.now())
	if err != nil {
		return apperrors.Internal(err)
	}
	if !ok {
		return apperrors.Unauthorized("invalid verification code")
	}

	if err := s.identities.EnableMFA(ctx, identityID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "mfa enabled",
		slog.String("identity_id", identityID),
	)

	return nil
}

// RegenerateRecoveryCodes replaces the identity's recovery-code set. The old
// set stops working the moment the new one exists.
func (s *AuthService) RegenerateRecoveryCodes(ctx context.Context, identityID string) ([]string, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !identity.MFAEnabled {
		return nil, apperrors.Conflict("mfa is not enabled")
	}

	codes, err := s.issueRecoveryCodes(ctx, identityID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "recovery codes regenerated",
		slog.String("identity_id", identityID),
	)

	return codes, nil
}

func (s *AuthService) issueRecoveryCodes(ctx context.Context, identityID string) ([]string, error) {
	codes, err := s.tokens.IssueBatch(ctx, token.IssueParams{
		Purpose:    domain.PurposeRecoveryCode,
		SubjectRef: identityID,
		TTL:        s.cfg.RecoveryCodeTTL,
	}, s.cfg.RecoveryCodes)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
		return nil, apperrors.Internal(err)
	}
	return codes, nil
}
