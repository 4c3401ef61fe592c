package shroud

import "testing"

func TestEmailMasker(t *testing.T) {
	m := EmailMasker()

	tests := []struct {
		input string
		want  string
	}{
		{"john.doe@example.com", "j***@*****.com"},
		{"a@b.co", "a***@*****.co"},
		{"mary@mail.example.org", "m***@*****.org"},
		{"étienne@example.fr", "é***@*****.fr"},
		{"@example.com", RedactedToken},
		{"invalid", RedactedToken},
		{"john@localhost", RedactedToken},
		{"john@example.", RedactedToken},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := m.Mask(tt.input); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNameMasker(t *testing.T) {
	m := NameMasker()

	tests := []struct {
		input string
		want  string
	}{
		{"John Doe", "J***"},
		{"Mary", "M***"},
		{"Chan Tai Man", "C***"},
		{"Zoë", "Z***"},
		{"J", RedactedToken},
		{"   ", RedactedToken},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := m.Mask(tt.input); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNationalIDMasker(t *testing.T) {
	m := NationalIDMasker()

	tests := []struct {
		input string
		want  string
	}{
		{"A123456(3)", "A******(3)"},
		{"AB987654(3)", "A******(3)"},
		{"G123456(A)", "G******(A)"},
		{"A1234563", "A******(3)"},
		{"A1", RedactedToken},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := m.Mask(tt.input); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPhoneMasker(t *testing.T) {
	m := PhoneMasker()

	tests := []struct {
		input string
		want  string
	}{
		{"+852 9123 4567", "+852 ****4567"},
		{"+1-555-123-4567", "+1 ****4567"},
		{"+44 (20) 7946 0958", "+44 ****0958"},
		{"9123 4567", "****4567"},
		{"+85291234567", "+852 ****4567"},
		{"+6591234567", "+65 ****4567"},
		{"+8613812345678", "+86 ****5678"},
		{"+14155552671", "+1 ****2671"},
		{"+99991234567", "****4567"},
		{"(555) 123-4567", "****4567"},
		{"+852 1234", RedactedToken},
		{"123", RedactedToken},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := m.Mask(tt.input); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIdentifierMasker(t *testing.T) {
	m := IdentifierMasker()

	tests := []struct {
		input string
		want  string
	}{
		{"ACC001", "ACC*01"},
		{"CUST-00042", "CUS*****42"},
		{"ACC01", RedactedToken},
		{"AB", RedactedToken},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := m.Mask(tt.input); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMaskerFunc(t *testing.T) {
	m := MaskerFunc(func(string) string { return "x" })
	if m.Mask("anything") != "x" {
		t.Error("MaskerFunc should call the function")
	}
}

func TestBuiltinMaskers(t *testing.T) {
	maskers := builtinMaskers()
	for _, typ := range piiPrecedence {
		if maskers[typ] == nil {
			t.Errorf("no builtin masker for %s", typ)
		}
	}
	if _, ok := maskers[Other]; ok {
		t.Error("Other should have no masker")
	}
}

func TestExtractDigits(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+852 9123-4567", "85291234567"},
		{"abc", ""},
		{"A123456(3)", "1234563"},
	}
	for _, tt := range tests {
		if got := extractDigits(tt.input); got != tt.want {
			t.Errorf("extractDigits(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
