package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id defaults, sized for interactive logins.
const (
	DefaultMemoryKiB   uint32 = 19456
	DefaultTimeCost    uint32 = 2
	DefaultParallelism uint8  = 1

	saltLength uint32 = 16
	keyLength  uint32 = 32
)

// ErrInvalidHash is returned when a stored digest is not a well-formed
// argon2id PHC string.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// HasherConfig tunes the argon2id cost parameters.
type HasherConfig struct {
	MemoryKiB   uint32
	Time        uint32
	Parallelism uint8
}

// DefaultHasherConfig returns the production cost parameters.
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{
		MemoryKiB:   DefaultMemoryKiB,
		Time:        DefaultTimeCost,
		Parallelism: DefaultParallelism,
	}
}

// Hasher derives and verifies argon2id digests in PHC string format. It is
// used for passwords and for the secret half of every opaque token, so a
// leaked database never yields a usable secret.
type Hasher struct {
	cfg HasherConfig
}

// NewHasher creates a hasher with the given cost parameters, falling back to
// defaults for zero values.
func NewHasher(cfg HasherConfig) *Hasher {
	if cfg.MemoryKiB == 0 {
		cfg.MemoryKiB = DefaultMemoryKiB
	}
	if cfg.Time == 0 {
		cfg.Time = DefaultTimeCost
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = DefaultParallelism
	}
	return &Hasher{cfg: cfg}
}

// Hash derives an argon2id digest of the secret and encodes it as a PHC
// string, e.g. $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(secret), salt, h.cfg.Time, h.cfg.MemoryKiB, h.cfg.Parallelism, keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.MemoryKiB,
		h.cfg.Time,
		h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify recomputes the digest with the parameters embedded in the stored
// PHC string and compares in constant time. A malformed stored hash returns
// ErrInvalidHash; a well-formed mismatch returns (false, nil).
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	memory, time, parallelism, salt, hash, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), salt, time, memory, parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(computed, hash) == 1, nil
}

func decodePHC(encoded string) (memory, time uint32, parallelism uint8, salt, hash []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	for _, p := range params {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return 0, 0, 0, nil, nil, ErrInvalidHash
		}
		switch kv[0] {
		case "m":
			v, perr := strconv.ParseUint(kv[1], 10, 32)
			if perr != nil {
				return 0, 0, 0, nil, nil, ErrInvalidHash
			}
			memory = uint32(v)
		case "t":
			v, perr := strconv.ParseUint(kv[1], 10, 32)
			if perr != nil {
				return 0, 0, 0, nil, nil, ErrInvalidHash
			}
			time = uint32(v)
		case "p":
			v, perr := strconv.ParseUint(kv[1], 10, 8)
			if perr != nil {
				return 0, 0, 0, nil, nil, ErrInvalidHash
			}
			parallelism = uint8(v)
		default:
			return 0, 0, 0, nil, nil, ErrInvalidHash
		}
	}
	if memory == 0 || time == 0 || parallelism == 0 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}

	return memory, time, parallelism, salt, hash, nil
}
