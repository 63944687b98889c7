// Package token implements the opaque-token store: split bearer tokens whose
// public half is a plaintext lookup key and whose secret half is persisted
// only as an argon2id digest.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	idBytes     = 16
	secretBytes = 32
)

// ErrMalformedBearer is returned when a presented bearer string does not
// decode into an id and secret pair. Callers collapse it into the same
// not-found outcome as an unknown token.
var ErrMalformedBearer = errors.New("malformed bearer token")

// Bearer is a decoded split token. The wire format is
// base64url(id) + "." + base64url(secret), both unpadded.
type Bearer struct {
	ID     string
	Secret string
}

// String re-encodes the bearer into its wire form.
func (b Bearer) String() string {
	return b.ID + "." + b.Secret
}

// NewBearer generates a fresh bearer: a 128-bit public id and a 256-bit
// secret, independently random.
func NewBearer() (Bearer, error) {
	id := make([]byte, idBytes)
	if _, err := rand.Read(id); err != nil {
		return Bearer{}, fmt.Errorf("generate token id: %w", err)
	}
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return Bearer{}, fmt.Errorf("generate token secret: %w", err)
	}

	enc := base64.RawURLEncoding
	return Bearer{
		ID:     enc.EncodeToString(id),
		Secret: enc.EncodeToString(secret),
	}, nil
}

// ParseBearer splits and validates a presented bearer string. Both halves
// must be valid unpadded base64url of the expected lengths.
func ParseBearer(s string) (Bearer, error) {
	idPart, secretPart, ok := strings.Cut(s, ".")
	if !ok || idPart == "" || secretPart == "" {
		return Bearer{}, ErrMalformedBearer
	}

	enc := base64.RawURLEncoding
	id, err := enc.DecodeString(idPart)
	if err != nil || len(id) != idBytes {
		return Bearer{}, ErrMalformedBearer
	}
	secret, err := enc.DecodeString(secretPart)
	if err != nil || len(secret) != secretBytes {
		return Bearer{}, ErrMalformedBearer
	}

	return Bearer{ID: idPart, Secret: secretPart}, nil
}
