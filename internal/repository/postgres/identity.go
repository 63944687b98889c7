package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/pkg/database"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

// IdentityRepository implements repository.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	db database.DBTX
}

// NewIdentityRepository creates a new PostgreSQL-backed identity repository.
func NewIdentityRepository(db database.DBTX) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Create inserts a new identity.
func (r *IdentityRepository) Create(ctx context.Context, i *domain.Identity) error {
	query := `
		INSERT INTO identities (id, email, password_hash, failed_login_count, locked_until, mfa_enabled, mfa_secret, platform_admin, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		i.ID,
		i.Email,
		i.PasswordHash,
		i.FailedLoginCount,
		i.LockedUntil,
		i.MFAEnabled,
		i.MFASecret,
		i.PlatformAdmin,
		i.LastLoginAt,
		i.CreatedAt,
		i.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			email := ""
			if i.Email != nil {
				email = *i.Email
			}
			return apperrors.AlreadyExists("identity", "email", email)
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

// GetByID retrieves an identity by its id.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	query := `
		SELECT id, email, password_hash, failed_login_count, locked_until, mfa_enabled, mfa_secret, platform_admin, last_login_at, created_at, updated_at
		FROM identities
		WHERE id = $1`

	return r.scanIdentity(ctx, query, id)
}

// GetByEmail retrieves an identity by its email address.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	query := `
		SELECT id, email, password_hash, failed_login_count, locked_until, mfa_enabled, mfa_secret, platform_admin, last_login_at, created_at, updated_at
		FROM identities
		WHERE email = $1`

	return r.scanIdentity(ctx, query, email)
}

// IncrementFailedLogins atomically bumps the failure count and returns the
// new value. The read-modify-write happens inside the statement, so
// concurrent failures across replicas all land.
func (r *IdentityRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE identities
		SET failed_login_count = failed_login_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_count`

	var count int
	err := r.db.QueryRow(ctx, query, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("increment failed logins: %w", err)
	}

	return count, nil
}

// SetLockedUntil applies a lockout expiry.
func (r *IdentityRepository) SetLockedUntil(ctx context.Context, id string, until time.Time) error {
	query := `
		UPDATE identities
		SET locked_until = $1, updated_at = now()
		WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, until, id)
	if err != nil {
		return fmt.Errorf("set locked until: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", id)
	}

	return nil
}

// ResetLoginState clears the failure count and lock and records the login
// time in one statement.
func (r *IdentityRepository) ResetLoginState(ctx context.Context, id string, lastLoginAt time.Time) error {
	query := `
		UPDATE identities
		SET failed_login_count = 0, locked_until = NULL, last_login_at = $1, updated_at = now()
		WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, lastLoginAt, id)
	if err != nil {
		return fmt.Errorf("reset login state: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", id)
	}

	return nil
}

// SetPasswordHash replaces the stored password digest.
func (r *IdentityRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	query := `
		UPDATE identities
		SET password_hash = $1, updated_at = now()
		WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, hash, id)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", id)
	}

	return nil
}

// SetMFASecret stores a provisional TOTP secret prior to enablement.
func (r *IdentityRepository) SetMFASecret(ctx context.Context, id, secret string) error {
	query := `
		UPDATE identities
		SET mfa_secret = $1, updated_at = now()
		WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, secret, id)
	if err != nil {
		return fmt.Errorf("set mfa secret: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", id)
	}

	return nil
}

// EnableMFA flips the enabled flag for an identity that has a provisional
// secret stored.
func (r *IdentityRepository) EnableMFA(ctx context.Context, id string) error {
	query := `
		UPDATE identities
		SET mfa_enabled = TRUE, updated_at = now()
		WHERE id = $1 AND mfa_secret IS NOT NULL`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("enable mfa: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", id)
	}

	return nil
}

func (r *IdentityRepository) scanIdentity(ctx context.Context, query string, args ...any) (*domain.Identity, error) {
	var i domain.Identity

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&i.ID,
		&i.Email,
		&i.PasswordHash,
		&i.FailedLoginCount,
		&i.LockedUntil,
		&i.MFAEnabled,
		&i.MFASecret,
		&i.PlatformAdmin,
		&i.LastLoginAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &i, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
