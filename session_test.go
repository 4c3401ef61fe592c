package shroud

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestSession_SaltPerColumn(t *testing.T) {
	s, err := NewSession()
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	defer s.Close()

	email, _ := s.salt("email")
	name, _ := s.salt("name")
	again, _ := s.salt("email")

	if len(email) != saltSize {
		t.Errorf("salt length = %d, want %d", len(email), saltSize)
	}
	if bytes.Equal(email, name) {
		t.Error("columns should get independent salts")
	}
	if !bytes.Equal(email, again) {
		t.Error("a column's salt should be stable within the session")
	}
}

func TestSession_JoinKeysShareSalt(t *testing.T) {
	s, _ := NewSession()
	defer s.Close()
	s.MarkJoinKey("account_id", "customer_ref")

	a, _ := s.salt("account_id")
	b, _ := s.salt("customer_ref")
	if !bytes.Equal(a, b) {
		t.Error("join keys should share one salt")
	}
	if !s.IsJoinKey("account_id") || s.IsJoinKey("email") {
		t.Error("IsJoinKey() mismatch")
	}
}

func TestSession_Independent(t *testing.T) {
	s1, _ := NewSession()
	s2, _ := NewSession()
	defer s1.Close()
	defer s2.Close()

	a, _ := s1.salt("email")
	b, _ := s2.salt("email")
	if bytes.Equal(a, b) {
		t.Error("sessions should not share salts")
	}
	if s1.ID() == s2.ID() {
		t.Error("sessions should have distinct ids")
	}
}

func TestSession_Close(t *testing.T) {
	s, _ := NewSession()
	salt, _ := s.salt("email")
	if err := s.Err(); err != nil {
		t.Fatalf("Err() on open session = %v", err)
	}
	s.Close()

	if err := s.Err(); err == nil {
		t.Error("Err() after Close() should fail")
	}

	if !bytes.Equal(salt, make([]byte, saltSize)) {
		t.Error("Close() should zero salts")
	}
	if _, err := s.salt("email"); err == nil {
		t.Error("salt() after Close() should fail")
	}
}

func TestSession_String(t *testing.T) {
	s, _ := NewSession()
	defer s.Close()
	salt, _ := s.salt("email")

	for _, out := range []string{s.String(), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s)} {
		if !strings.Contains(out, s.ID()) {
			t.Errorf("%q should contain the session id", out)
		}
		if strings.Contains(out, fmt.Sprintf("%x", salt)) {
			t.Errorf("%q should not expose salts", out)
		}
	}
}
