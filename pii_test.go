package shroud

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPIIType_String(t *testing.T) {
	tests := []struct {
		typ  PIIType
		want string
	}{
		{Other, "other"},
		{Identifier, "identifier"},
		{PersonName, "person_name"},
		{Email, "email"},
		{NationalID, "national_id"},
		{Phone, "phone"},
		{PIIType(99), "PIIType(99)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPIIType_Sensitive(t *testing.T) {
	if Other.Sensitive() {
		t.Error("Other should not be sensitive")
	}
	for _, typ := range piiPrecedence {
		if !typ.Sensitive() {
			t.Errorf("%s should be sensitive", typ)
		}
	}
	if PIIType(99).Sensitive() {
		t.Error("unknown types should not be sensitive")
	}
}

func TestParsePIIType(t *testing.T) {
	for typ, name := range piiTypeNames {
		got, err := ParsePIIType(name)
		if err != nil {
			t.Fatalf("ParsePIIType(%q) error: %v", name, err)
		}
		if got != typ {
			t.Errorf("ParsePIIType(%q) = %v, want %v", name, got, typ)
		}
	}

	if _, err := ParsePIIType("ssn"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ParsePIIType(ssn) error = %v, want ErrInvalidConfig", err)
	}
}

func TestPIIType_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]PIIType{"email": Email})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(data) != `{"email":"email"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var back map[string]PIIType
	if err := json.Unmarshal([]byte(`{"id":"national_id"}`), &back); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if back["id"] != NationalID {
		t.Errorf("Unmarshal() = %v, want national_id", back["id"])
	}

	if _, err := json.Marshal(PIIType(42)); err == nil {
		t.Error("Marshal() of unknown type should fail")
	}
}

func TestIsValidMode(t *testing.T) {
	tests := []struct {
		mode PrivacyMode
		want bool
	}{
		{ModeRaw, true},
		{ModePseudonymized, true},
		{ModeMasked, true},
		{"encrypted", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := IsValidMode(tt.mode); got != tt.want {
				t.Errorf("IsValidMode(%q) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestIsValidStrategy(t *testing.T) {
	tests := []struct {
		strategy MergeStrategy
		want     bool
	}{
		{MergeInner, true},
		{MergeLeft, true},
		{MergeRight, true},
		{MergeOuter, true},
		{"cross", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			if got := IsValidStrategy(tt.strategy); got != tt.want {
				t.Errorf("IsValidStrategy(%q) = %v, want %v", tt.strategy, got, tt.want)
			}
		})
	}
}
