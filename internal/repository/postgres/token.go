package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/pkg/database"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

// usableCond guards every consumption and revocation so terminal states are
// permanent and exactly one concurrent presenter wins.
const usableCond = `consumed_at IS NULL AND revoked_at IS NULL AND expires_at > now()`

// TokenRepository implements repository.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db database.DBTX
}

// NewTokenRepository creates a new PostgreSQL-backed opaque token repository.
func NewTokenRepository(db database.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Insert persists a freshly issued token.
func (r *TokenRepository) Insert(ctx context.Context, t *domain.OpaqueToken) error {
	query := `
		INSERT INTO opaque_tokens (id, secret_hash, purpose, subject_ref, session_id, rotated_from_id, user_agent, ip_address, metadata, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.SecretHash,
		t.Purpose,
		t.SubjectRef,
		t.SessionID,
		t.RotatedFromID,
		t.UserAgent,
		t.IPAddress,
		t.Metadata,
		t.IssuedAt,
		t.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("token", "id", t.ID)
		}
		return fmt.Errorf("insert token: %w", err)
	}

	return nil
}

// InsertBatchReplacing revokes every usable token with the given purpose and
// subject, then inserts the batch, inside one transaction. Used for recovery
// code regeneration so the old set and new set never coexist.
func (r *TokenRepository) InsertBatchReplacing(ctx context.Context, tokens []*domain.OpaqueToken, purpose domain.TokenPurpose, subjectRef string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	revoke := `
		UPDATE opaque_tokens
		SET revoked_at = now()
		WHERE purpose = $1 AND subject_ref = $2 AND ` + usableCond

	if _, err := tx.Exec(ctx, revoke, purpose, subjectRef); err != nil {
		return fmt.Errorf("revoke prior batch: %w", err)
	}

	insert := `
		INSERT INTO opaque_tokens (id, secret_hash, purpose, subject_ref, session_id, rotated_from_id, user_agent, ip_address, metadata, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, t := range tokens {
		if _, err := tx.Exec(ctx, insert,
			t.ID, t.SecretHash, t.Purpose, t.SubjectRef, t.SessionID, t.RotatedFromID,
			t.UserAgent, t.IPAddress, t.Metadata, t.IssuedAt, t.ExpiresAt,
		); err != nil {
			return fmt.Errorf("insert batch token: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch replace: %w", err)
	}

	return nil
}

// GetByID retrieves a token by its public lookup half, terminal or not.
func (r *TokenRepository) GetByID(ctx context.Context, id string) (*domain.OpaqueToken, error) {
	query := `
		SELECT id, secret_hash, purpose, subject_ref, session_id, rotated_from_id, user_agent, ip_address, metadata, issued_at, expires_at, consumed_at, revoked_at
		FROM opaque_tokens
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetToken", query)

	var t domain.OpaqueToken
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.SecretHash,
		&t.Purpose,
		&t.SubjectRef,
		&t.SessionID,
		&t.RotatedFromID,
		&t.UserAgent,
		&t.IPAddress,
		&t.Metadata,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.ConsumedAt,
		&t.RevokedAt,
	)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}

	return &t, nil
}

// ConsumeByID marks the token consumed iff it is still usable.
func (r *TokenRepository) ConsumeByID(ctx context.Context, id string) error {
	query := `
		UPDATE opaque_tokens
		SET consumed_at = now()
		WHERE id = $1 AND ` + usableCond

	ctx, end := database.TraceQuery(ctx, "ConsumeToken", query)
	ct, err := r.db.Exec(ctx, query, id)
	end(err)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// RevokeByID marks the token revoked iff it is still usable. A token that is
// already terminal stays as it is and no error is returned.
func (r *TokenRepository) RevokeByID(ctx context.Context, id string) error {
	query := `
		UPDATE opaque_tokens
		SET revoked_at = now()
		WHERE id = $1 AND ` + usableCond

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

// RevokeBySession revokes every not-yet-terminal token in a refresh session.
func (r *TokenRepository) RevokeBySession(ctx context.Context, sessionID string) error {
	query := `
		UPDATE opaque_tokens
		SET revoked_at = now()
		WHERE session_id = $1 AND consumed_at IS NULL AND revoked_at IS NULL`

	ctx, end := database.TraceQuery(ctx, "RevokeSession", query)
	_, err := r.db.Exec(ctx, query, sessionID)
	end(err)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}
