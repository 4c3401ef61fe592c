package shroud

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Hasher performs one-way hashing.
type Hasher interface {
	// Hash returns the hex-encoded hash of plaintext.
	Hash(plaintext []byte) (string, error)
}

// errInvalidUTF8 is returned by the token hasher for malformed input.
var errInvalidUTF8 = errors.New("invalid utf-8")

// saltedSHA256 hashes value || salt with SHA-256.
type saltedSHA256 struct {
	salt []byte
}

// SaltedSHA256 returns a hasher computing hex(sha256(plaintext || salt)).
// Plaintext must be valid UTF-8.
func SaltedSHA256(salt []byte) Hasher {
	return &saltedSHA256{salt: salt}
}

func (h *saltedSHA256) Hash(plaintext []byte) (string, error) {
	if !utf8.Valid(plaintext) {
		return "", errInvalidUTF8
	}
	d := sha256.New()
	d.Write(plaintext)
	d.Write(h.salt)
	return hex.EncodeToString(d.Sum(nil)), nil
}

// sha256Hasher implements unsalted SHA-256 hashing.
// Use for fingerprinting/identification, NOT for secrets with low entropy.
type sha256Hasher struct{}

// SHA256Hasher returns a SHA-256 hasher.
// The result is a hex-encoded 64-character string.
func SHA256Hasher() Hasher {
	return &sha256Hasher{}
}

func (h *sha256Hasher) Hash(plaintext []byte) (string, error) {
	sum := sha256.Sum256(plaintext)
	return hex.EncodeToString(sum[:]), nil
}

// PasswordHash selects the master password verifier format.
type PasswordHash string

const (
	// PasswordSHA256 stores the hex SHA-256 of the password.
	PasswordSHA256 PasswordHash = "sha256"

	// PasswordBcrypt stores a bcrypt hash of the password.
	PasswordBcrypt PasswordHash = "bcrypt"
)

// passwordVerifier creates and checks master password verifiers.
type passwordVerifier interface {
	create(password []byte) (string, error)
	verify(stored string, password []byte) bool
}

type sha256Verifier struct{}

func (sha256Verifier) create(password []byte) (string, error) {
	return SHA256Hasher().Hash(password)
}

func (sha256Verifier) verify(stored string, password []byte) bool {
	got, _ := SHA256Hasher().Hash(password)
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(stored)), []byte(got)) == 1
}

// bcryptCost is the work factor for new bcrypt verifiers.
const bcryptCost = bcrypt.DefaultCost

type bcryptVerifier struct {
	cost int
}

func (v bcryptVerifier) create(password []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(password, v.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash failed: %w", err)
	}
	return string(hash), nil
}

func (bcryptVerifier) verify(stored string, password []byte) bool {
	return bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(stored)), password) == nil
}

// verifierFor picks the verifier matching a stored hash. Bcrypt hashes are
// recognized by their "$2" prefix; everything else is hex SHA-256.
func verifierFor(stored string) passwordVerifier {
	if strings.HasPrefix(strings.TrimSpace(stored), "$2") {
		return bcryptVerifier{cost: bcryptCost}
	}
	return sha256Verifier{}
}

// KDF selects the password-based key derivation function.
type KDF string

const (
	// KDFPBKDF2 derives keys with PBKDF2-HMAC-SHA256.
	KDFPBKDF2 KDF = "pbkdf2"

	// KDFArgon2 derives keys with Argon2id.
	KDFArgon2 KDF = "argon2"
)

// MinIterations is the lowest accepted PBKDF2 iteration count.
const MinIterations = 100_000

// Upper bounds accepted from a blob header.
const (
	maxIterations   = 10_000_000
	maxArgon2Memory = 4 * 1024 * 1024 // 4 GiB in KiB
)

// keySize is the AES-256 key length.
const keySize = 32

// Argon2Params configures Argon2id key derivation.
type Argon2Params struct {
	Time    uint32 // Number of iterations
	Memory  uint32 // Memory usage in KiB
	Threads uint8  // Parallelism factor
}

// DefaultArgon2Params returns recommended Argon2id parameters.
// Based on OWASP recommendations for password hashing.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024, // 64 MiB
		Threads: 4,
	}
}

// keyDeriver stretches a password into an AES-256 key.
type keyDeriver interface {
	derive(password, salt []byte) []byte
	label() string
}

type pbkdf2Deriver struct {
	iterations int
}

func (d pbkdf2Deriver) derive(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, d.iterations, keySize, sha256.New)
}

func (d pbkdf2Deriver) label() string {
	return fmt.Sprintf("PBKDF2-SHA256/%d", d.iterations)
}

type argon2Deriver struct {
	params Argon2Params
}

func (d argon2Deriver) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, d.params.Time, d.params.Memory, d.params.Threads, keySize)
}

func (d argon2Deriver) label() string {
	return fmt.Sprintf("Argon2id/t=%d,m=%d,p=%d", d.params.Time, d.params.Memory, d.params.Threads)
}

// parseKeyDerivation rebuilds the deriver named by a blob's key_derivation
// field, so blobs stay readable after the vault's default changes.
func parseKeyDerivation(s string) (keyDeriver, error) {
	switch {
	case strings.HasPrefix(s, "PBKDF2-SHA256/"):
		var iterations int
		if _, err := fmt.Sscanf(s, "PBKDF2-SHA256/%d", &iterations); err != nil || iterations < MinIterations || iterations > maxIterations {
			return nil, fmt.Errorf("unsupported key derivation %q", s)
		}
		return pbkdf2Deriver{iterations: iterations}, nil
	case strings.HasPrefix(s, "Argon2id/"):
		var p Argon2Params
		if _, err := fmt.Sscanf(s, "Argon2id/t=%d,m=%d,p=%d", &p.Time, &p.Memory, &p.Threads); err != nil || p.Time == 0 || p.Memory == 0 || p.Memory > maxArgon2Memory || p.Threads == 0 {
			return nil, fmt.Errorf("unsupported key derivation %q", s)
		}
		return argon2Deriver{params: p}, nil
	default:
		return nil, fmt.Errorf("unsupported key derivation %q", s)
	}
}
