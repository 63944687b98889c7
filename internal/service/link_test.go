package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/token"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

type linkFixture struct {
	svc         *LinkService
	identities  *fakeIdentityRepo
	memberships *mockMembershipRepository
	store       *token.Store
}

func newLinkFixture(t *testing.T) *linkFixture {
	t.Helper()

	identities := newFakeIdentityRepo()
	memberships := &mockMembershipRepository{}
	store := token.NewStore(newMemTokenRepo(), testHasher())

	svc := NewLinkService(
		LinkConfig{
			InviteTTL:      7 * 24 * time.Hour,
			InvoiceLinkTTL: 30 * 24 * time.Hour,
		},
		identities,
		memberships,
		store,
		newTestEventProducer(),
		newTestLogger(),
	)

	return &linkFixture{
		svc:         svc,
		identities:  identities,
		memberships: memberships,
		store:       store,
	}
}

func TestIssueInvite_RejectsOwnerRole(t *testing.T) {
	f := newLinkFixture(t)

	for _, role := range []string{domain.RoleOwner, domain.RolePlatformAdmin, "JANITOR", ""} {
		_, err := f.svc.IssueInvite(context.Background(), IssueInviteInput{
			OrgID:     "org-1",
			Email:     "new@example.com",
			Role:      role,
			InvitedBy: "id-owner",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "role %q", role)
	}
}

func TestClaimInvite_CreatesIdentityAndMembership(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()

	f.memberships.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.OrgMembership) bool {
		return m.OrgID == "org-1" && m.Role == domain.RoleTenant
	})).Return(nil)

	bearer, err := f.svc.IssueInvite(ctx, IssueInviteInput{
		OrgID:     "org-1",
		Email:     "Tenant@Example.com",
		Role:      domain.RoleTenant,
		InvitedBy: "id-owner",
	})
	require.NoError(t, err)
	require.NotEmpty(t, bearer)

	res, err := f.svc.ClaimInvite(ctx, bearer)
	require.NoError(t, err)
	assert.Equal(t, "org-1", res.OrgID)
	assert.Equal(t, "tenant@example.com", res.Email)
	assert.Equal(t, domain.RoleTenant, res.Role)

	created, err := f.identities.GetByEmail(ctx, "tenant@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.IdentityID)
	assert.Nil(t, created.PasswordHash)

	// Single use.
	_, err = f.svc.ClaimInvite(ctx, bearer)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	f.memberships.AssertExpectations(t)
}

func TestClaimInvite_ExistingMemberStillSpendsInvite(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()

	f.memberships.On("Create", mock.Anything, mock.Anything).
		Return(apperrors.AlreadyExists("membership", "identity_id", "id-x"))

	bearer, err := f.svc.IssueInvite(ctx, IssueInviteInput{
		OrgID:     "org-1",
		Email:     "manager@example.com",
		Role:      domain.RoleManager,
		InvitedBy: "id-owner",
	})
	require.NoError(t, err)

	res, err := f.svc.ClaimInvite(ctx, bearer)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, res.Role)
}

func TestClaimInvite_GarbageBearer(t *testing.T) {
	f := newLinkFixture(t)

	_, err := f.svc.ClaimInvite(context.Background(), "garbage")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestInvoiceLink_RoundTrip(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()

	bearer, err := f.svc.IssueInvoiceLink(ctx, "invoice-42")
	require.NoError(t, err)

	invoiceID, err := f.svc.ConsumeInvoiceLink(ctx, bearer)
	require.NoError(t, err)
	assert.Equal(t, "invoice-42", invoiceID)

	_, err = f.svc.ConsumeInvoiceLink(ctx, bearer)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
