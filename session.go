package shroud

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// saltSize is the per-column salt length in bytes.
const saltSize = 16

// Session holds the per-run secrets of one processing batch.
//
// Every sensitive column gets its own random salt, created on first use, so
// tokens from different runs cannot be correlated. Columns marked as join keys
// share one stable salt for the lifetime of the session so that the same key
// tokenizes identically in both tables and pseudonymized views stay joinable.
// That is the only linkability the session permits, and it ends with Close.
//
// Salts live only in memory. A Session never prints them; its String method
// returns only the session id.
type Session struct {
	id      string
	created time.Time

	mu       sync.Mutex
	salts    map[string][]byte
	joinKeys map[string]bool
	joinSalt []byte
	closed   bool
}

// NewSession creates a session with a fresh join-key salt.
func NewSession() (*Session, error) {
	joinSalt, err := randomBytes(saltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session salt: %w", err)
	}
	return &Session{
		id:       uuid.NewString(),
		created:  time.Now(),
		salts:    make(map[string][]byte),
		joinKeys: make(map[string]bool),
		joinSalt: joinSalt,
	}, nil
}

// ID returns the session identifier recorded in PrivacyMetadata.
func (s *Session) ID() string {
	return s.id
}

// Created returns the session creation time.
func (s *Session) Created() time.Time {
	return s.created
}

// MarkJoinKey declares columns whose tokens must stay joinable across tables.
func (s *Session) MarkJoinKey(columns ...string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range columns {
		s.joinKeys[c] = true
	}
	return s
}

// IsJoinKey reports whether the column was marked as a join key.
func (s *Session) IsJoinKey(column string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinKeys[column]
}

// salt returns the salt for a column, creating it on first use.
// The returned slice is owned by the session and must not be retained.
func (s *Session) salt(column string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, s.closedError()
	}
	if s.joinKeys[column] {
		return s.joinSalt, nil
	}
	if salt, ok := s.salts[column]; ok {
		return salt, nil
	}
	salt, err := randomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	s.salts[column] = salt
	return salt, nil
}

// Err returns a non-nil error once the session has been closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closedError()
	}
	return nil
}

func (s *Session) closedError() error {
	return fmt.Errorf("session %s is closed", s.id)
}

// Close zeroes and drops every salt. A closed session cannot tokenize.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, salt := range s.salts {
		clear(salt)
		delete(s.salts, k)
	}
	clear(s.joinSalt)
	s.joinSalt = nil
	s.closed = true
}

// String implements fmt.Stringer without exposing salts.
func (s *Session) String() string {
	return "Session(" + s.id + ")"
}

// GoString implements fmt.GoStringer without exposing salts.
func (s *Session) GoString() string {
	return s.String()
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
