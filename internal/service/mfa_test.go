package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/token"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

func TestSetupMFA(t *testing.T) {
	f := newAuthFixture(t, domain.DomainTenant)
	i := f.seedIdentity(t, "owner@example.com", "s3cret-pass")
	ctx := context.Background()

	res, err := f.svc.SetupMFA(ctx, i.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Secret)
	assert.True(t, strings.HasPrefix(res.ProvisionURI, "otpauth://totp/"))
	assert.Contains(t, res.ProvisionURI, "owner%40example.com")
	assert.Len(t, res.RecoveryCodes, 8)

	// Setup stores the secret but does not enforce MFA yet.
	stored, err := f.identities.GetByID(ctx, i.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.MFASecret)
	assert.Equal(t, res.Secret, *stored.MFASecret)
	assert.False(t, stored.MFAEnabled)
}

func TestSetupMFA_AlreadyEnabled(t *testing.T) {
	f := newAuthFixture(t, domain.DomainTenant)
	i := f.seedIdentity(t, "owner@example.com", "s3cret-pass", func(id *domain.Identity) {
		id.MFAEnabled = true
		sec := rfcTOTPSecret
		id.MFASecret = &sec
	})

	_, err := f.svc.SetupMFA(context.Background(), i.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestEnableMFA(t *testing.T) {
	f := newAuthFixture(t, domain.DomainTenant)
	i := f.seedIdentity(t, "owner@example.com", "s3cret-pass", func(id *domain.Identity) {
		sec := rfcTOTPSecret
		id.MFASecret = &sec
	})
	ctx := context.Background()
	f.clock.Set(time.Unix(59, 0))

	err := f.svc.EnableMFA(ctx, i.ID, "287082")
	require.NoError(t, err)

	stored, err := f.identities.GetByID(ctx, i.ID)
	require.NoError(t, err)
	assert.True(t, stored.MFAEnabled)
}

func TestEnableMFA_WrongCode(t *testing.T) {
	f := newAuthFixture(t, domain.DomainTenant)
	i := f.seedIdentity(t, "owner@example.com", "s3cret-pass", func(id *domain.Identity) {
		sec := rfcTOTPSecret
		id.MFASecret = &sec
	})
	f.clock.Set(time.Unix(59, 0))

	err := f.svc.EnableMFA(context.Background(), i.ID, "000000")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	stored, err := f.identities.GetByID(context.Background(), i.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
}

func TestEnableMFA_SetupNotStarted(t *testing.T) {
	f := newAuthFixture(t, domain.DomainTenant)
	i := f.seedIdentity(t, "owner@example.com", "s3cret-pass")

	err := f.svc.EnableMFA(context.Background(), i.ID, "287082")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegenerateRecoveryCodes_ReplacesOldSet(t *testing.T) {
	f := newAuthFixture(t, domain.DomainTenant)
	i := f.seedIdentity(t, "owner@example.com", "s3cret-pass", func(id *domain.Identity) {
		id.MFAEnabled = true
		sec := rfcTOTPSecret
		id.MFASecret = &sec
	})
	ctx := context.Background()

	first, err := f.svc.RegenerateRecoveryCodes(ctx, i.ID)
	require.NoError(t, err)
	require.Len(t, first, 8)

	second, err := f.svc.RegenerateRecoveryCodes(ctx, i.ID)
	require.NoError(t, err)
	require.Len(t, second, 8)

	// The first set died the moment the second was written.
	_, err = f.store.Consume(ctx, domain.PurposeRecoveryCode, first[0])
	assert.ErrorIs(t, err, token.ErrNotFound)

	_, err = f.store.Consume(ctx, domain.PurposeRecoveryCode, second[0])
	assert.NoError(t, err)
}

func TestRegenerateRecoveryCodes_RequiresEnabledMFA(t *testing.T) {
	f := newAuthFixture(t, domain.DomainTenant)
	i := f.seedIdentity(t, "owner@example.com", "s3cret-pass")

	_, err := f.svc.RegenerateRecoveryCodes(context.Background(), i.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
