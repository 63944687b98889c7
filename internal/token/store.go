package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/repository"
	apperrors "github.com/GlennOnyango/housing-nest-be/pkg/errors"
)

// ErrNotFound is the single outcome for every unredeemable bearer: unknown
// id, wrong secret, wrong purpose, expired, consumed, or revoked. Callers
// must not be able to distinguish these cases.
var ErrNotFound = errors.New("token not found")

// ErrReuseDetected is returned when a refresh bearer with a matching secret
// is presented after its token reached a terminal state. The caller revokes
// the session and still surfaces ErrNotFound to the presenter.
var ErrReuseDetected = errors.New("token reuse detected")

// Hasher is the secret-digest dependency of the store.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
}

// IssueParams describes a token to mint.
type IssueParams struct {
	Purpose       domain.TokenPurpose
	SubjectRef    string
	TTL           time.Duration
	SessionID     *string
	RotatedFromID *string
	Device        domain.DeviceInfo
	Metadata      []byte
}

// Store mints and redeems split opaque tokens. Only the argon2id digest of
// the secret half is persisted; lookup is O(1) by the plaintext public id.
type Store struct {
	repo   repository.TokenRepository
	hasher Hasher
	now    func() time.Time
}

// NewStore creates a token store.
func NewStore(repo repository.TokenRepository, hasher Hasher) *Store {
	return &Store{repo: repo, hasher: hasher, now: time.Now}
}

// Issue mints a fresh bearer and persists its stored half. The returned
// string is the only copy of the secret that will ever exist.
func (s *Store) Issue(ctx context.Context, p IssueParams) (string, *domain.OpaqueToken, error) {
	bearer, tok, err := s.mint(p)
	if err != nil {
		return "", nil, err
	}

	if err := s.repo.Insert(ctx, tok); err != nil {
		return "", nil, fmt.Errorf("persist token: %w", err)
	}

	return bearer.String(), tok, nil
}

// IssueBatch mints n bearers of one purpose for one subject, atomically
// replacing any usable tokens the subject already holds for that purpose.
// Used for recovery codes, where regeneration must invalidate the old set.
func (s *Store) IssueBatch(ctx context.Context, p IssueParams, n int) ([]string, error) {
	bearers := make([]string, 0, n)
	tokens := make([]*domain.OpaqueToken, 0, n)

	for i := 0; i < n; i++ {
		bearer, tok, err := s.mint(p)
		if err != nil {
			return nil, err
		}
		bearers = append(bearers, bearer.String())
		tokens = append(tokens, tok)
	}

	if err := s.repo.InsertBatchReplacing(ctx, tokens, p.Purpose, p.SubjectRef); err != nil {
		return nil, fmt.Errorf("persist token batch: %w", err)
	}

	return bearers, nil
}

// Consume redeems a bearer exactly once. The secret is verified outside any
// transaction; the terminal transition is a conditional update, so of any
// number of concurrent presenters exactly one receives the token and the
// rest get ErrNotFound.
//
// For REFRESH tokens, a matching secret presented against an already
// terminal token returns ErrReuseDetected instead, carrying the stored token
// so the caller can revoke the session.
func (s *Store) Consume(ctx context.Context, purpose domain.TokenPurpose, bearer string) (*domain.OpaqueToken, error) {
	b, err := ParseBearer(bearer)
	if err != nil {
		return nil, ErrNotFound
	}

	tok, err := s.repo.GetByID(ctx, b.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if tok.Purpose != purpose {
		return nil, ErrNotFound
	}

	ok, err := s.hasher.Verify(b.Secret, tok.SecretHash)
	if err != nil || !ok {
		return nil, ErrNotFound
	}

	// The secret matched. A terminal refresh token at this point is a replay
	// of a bearer that was genuinely held, which is the reuse signal.
	if !tok.UsableAt(s.now()) {
		if purpose == domain.PurposeRefresh && tok.ConsumedAt != nil {
			return tok, ErrReuseDetected
		}
		return nil, ErrNotFound
	}

	if err := s.repo.ConsumeByID(ctx, tok.ID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Lost the race to a concurrent presenter.
			return nil, ErrNotFound
		}
		return nil, err
	}

	return tok, nil
}

// Revoke invalidates a bearer if it exists and its secret matches. It is
// idempotent and never reports whether anything was revoked, so logout
// cannot be used to probe the token namespace.
func (s *Store) Revoke(ctx context.Context, purpose domain.TokenPurpose, bearer string) error {
	b, err := ParseBearer(bearer)
	if err != nil {
		return nil
	}

	tok, err := s.repo.GetByID(ctx, b.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if tok.Purpose != purpose {
		return nil
	}

	if ok, verr := s.hasher.Verify(b.Secret, tok.SecretHash); verr != nil || !ok {
		return nil
	}

	return s.repo.RevokeByID(ctx, tok.ID)
}

// RevokeSession revokes every outstanding token of a refresh session.
func (s *Store) RevokeSession(ctx context.Context, sessionID string) error {
	return s.repo.RevokeBySession(ctx, sessionID)
}

func (s *Store) mint(p IssueParams) (Bearer, *domain.OpaqueToken, error) {
	bearer, err := NewBearer()
	if err != nil {
		return Bearer{}, nil, err
	}

	hash, err := s.hasher.Hash(bearer.Secret)
	if err != nil {
		return Bearer{}, nil, fmt.Errorf("hash token secret: %w", err)
	}

	now := s.now().UTC()
	tok := &domain.OpaqueToken{
		ID:            bearer.ID,
		SecretHash:    hash,
		Purpose:       p.Purpose,
		SubjectRef:    p.SubjectRef,
		SessionID:     p.SessionID,
		RotatedFromID: p.RotatedFromID,
		Metadata:      p.Metadata,
		IssuedAt:      now,
		ExpiresAt:     now.Add(p.TTL),
	}
	if p.Device.UserAgent != "" {
		ua := p.Device.UserAgent
		tok.UserAgent = &ua
	}
	if p.Device.IPAddress != "" {
		ip := p.Device.IPAddress
		tok.IPAddress = &ip
	}

	return bearer, tok, nil
}
