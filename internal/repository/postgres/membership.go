package postgres

import (
	"context"
	"fmt"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/pkg/database"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

// MembershipRepository implements repository.MembershipRepository using PostgreSQL.
type MembershipRepository struct {
	db database.DBTX
}

// NewMembershipRepository creates a new PostgreSQL-backed membership repository.
func NewMembershipRepository(db database.DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create inserts a membership edge.
func (r *MembershipRepository) Create(ctx context.Context, m *domain.OrgMembership) error {
	query := `
		INSERT INTO org_memberships (identity_id, org_id, role, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, m.IdentityID, m.OrgID, m.Role, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("membership", "org_id", m.OrgID)
		}
		return fmt.Errorf("insert membership: %w", err)
	}

	return nil
}

// ListByIdentity returns every membership edge for an identity.
func (r *MembershipRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.OrgMembership, error) {
	query := `
		SELECT identity_id, org_id, role, created_at
		FROM org_memberships
		WHERE identity_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []domain.OrgMembership
	for rows.Next() {
		var m domain.OrgMembership
		if err := rows.Scan(&m.IdentityID, &m.OrgID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return memberships, nil
}
