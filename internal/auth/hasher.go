package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/loan-advisor-api/internal/config"
)

const (
	argon2KeyLen = 32
	saltLen      = 16
)

var ErrUnsupportedHash = errors.New("unsupported password hash format")

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)

	// Verify returns (true, nil) on match, (false, nil) on mismatch and an
	// error only when the stored hash cannot be parsed.
	Verify(password, encodedHash string) (bool, error)

	// NeedsRehash reports whether the stored hash was produced with a
	// different algorithm or weaker parameters than currently configured.
	NeedsRehash(encodedHash string) bool
}

type argon2Params struct {
	time    uint32
	memory  uint32
	threads uint8
}

// PasswordHasher hashes with the configured algorithm and verifies any
// supported format, so switching algorithms keeps existing accounts working.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
	argon2     argon2Params
}

func NewPasswordHasher(cfg config.HasherConfig) (*PasswordHasher, error) {
	h := &PasswordHasher{
		algorithm:  cfg.Algorithm,
		bcryptCost: cfg.BcryptCost,
		argon2: argon2Params{
			time:    cfg.Argon2Time,
			memory:  cfg.Argon2MemoryKB,
			threads: cfg.Argon2Threads,
		},
	}

	switch cfg.Algorithm {
	case config.HasherBcrypt:
		if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost)
		}
	case config.HasherArgon2id:
		if cfg.Argon2Time == 0 || cfg.Argon2MemoryKB == 0 || cfg.Argon2Threads == 0 {
			return nil, errors.New("argon2id time, memory and threads must be positive")
		}
	default:
		return nil, fmt.Errorf("unsupported password hasher %q", cfg.Algorithm)
	}

	return h, nil
}

// Hash creates a salted hash of the password with the configured algorithm
func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.algorithm == config.HasherArgon2id {
		return h.hashArgon2id(password)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// Verify checks a password against a stored bcrypt or argon2id hash
func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2id(password, encodedHash)
	case isBcryptHash(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("bcrypt: %w", err)
		}
		return true, nil
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsRehash reports whether encodedHash differs from the configured algorithm or parameters
func (h *PasswordHasher) NeedsRehash(encodedHash string) bool {
	if h.algorithm == config.HasherBcrypt {
		if !isBcryptHash(encodedHash) {
			return true
		}
		cost, err := bcrypt.Cost([]byte(encodedHash))
		return err != nil || cost < h.bcryptCost
	}

	params, _, _, err := decodeArgon2id(encodedHash)
	if err != nil {
		return true
	}
	return params.time < h.argon2.time || params.memory < h.argon2.memory || params.threads < h.argon2.threads
}

func isBcryptHash(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

// hashArgon2id encodes as $argon2id$v=19$m=65536,t=3,p=4$salt$hash
func (h *PasswordHasher) hashArgon2id(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		h.argon2.time,
		h.argon2.memory,
		h.argon2.threads,
		argon2KeyLen,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.argon2.memory,
		h.argon2.time,
		h.argon2.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(password, encodedHash string) (bool, error) {
	params, salt, expected, err := decodeArgon2id(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		params.time,
		params.memory,
		params.threads,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(expected, computed) == 1, nil
}

func decodeArgon2id(encodedHash string) (argon2Params, []byte, []byte, error) {
	var params argon2Params

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrUnsupportedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedHash, version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
	if threads == 0 || threads > 255 {
		return params, nil, nil, fmt.Errorf("%w: threads %d out of range", ErrUnsupportedHash, threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
	if len(hash) == 0 {
		return params, nil, nil, fmt.Errorf("%w: empty key", ErrUnsupportedHash)
	}

	params = argon2Params{time: time, memory: memory, threads: uint8(threads)}
	return params, salt, hash, nil
}
