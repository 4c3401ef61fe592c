package shroud

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := newConfigError("threshold", "must be within [0,1]")

	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("ConfigError should wrap ErrInvalidConfig")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As should find ConfigError")
	}
	if ce.Option != "threshold" {
		t.Errorf("Option = %q, want threshold", ce.Option)
	}
	if got := err.Error(); got != "invalid configuration: threshold: must be within [0,1]" {
		t.Errorf("Error() = %q", got)
	}
}

func TestConfigError_Formats(t *testing.T) {
	tests := []struct {
		err  *ConfigError
		want string
	}{
		{&ConfigError{Err: ErrInvalidConfig}, "invalid configuration"},
		{&ConfigError{Err: ErrInvalidConfig, Option: "codec"}, "invalid configuration: codec"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestCellError(t *testing.T) {
	err := &CellError{Err: ErrPseudonymization, Table: "customers", Column: "email", Row: 4, Reason: "invalid_utf8"}

	if !errors.Is(err, ErrPseudonymization) {
		t.Error("CellError should wrap ErrPseudonymization")
	}
	msg := err.Error()
	for _, part := range []string{"customers", "email", "row 4", "invalid_utf8"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
}

func TestFieldError(t *testing.T) {
	err := &FieldError{Err: ErrClassificationAmbiguous, Column: "notes"}
	if !errors.Is(err, ErrClassificationAmbiguous) {
		t.Error("FieldError should wrap ErrClassificationAmbiguous")
	}
	if !strings.Contains(err.Error(), "notes") {
		t.Errorf("Error() = %q, missing column", err.Error())
	}
}

func TestVaultError(t *testing.T) {
	h := Handle("rs_9b2f3c1e-0f5a-4d8e-9c61-3f2a7b5d4e10")

	err := newVaultError(ErrDecryptionIntegrity, opRetrieve, h, nil)
	if !errors.Is(err, ErrDecryptionIntegrity) {
		t.Error("VaultError should wrap its sentinel")
	}
	want := "vault retrieve " + string(h) + ": decryption integrity failure"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	withCause := newVaultError(ErrVaultIO, opStore, "", errors.New("disk full"))
	if withCause.Error() != "vault store: vault i/o failure: disk full" {
		t.Errorf("Error() = %q", withCause.Error())
	}
}

func TestMergeError(t *testing.T) {
	schema := &MergeError{Err: ErrSchemaMismatch, Side: "right", Key: "account_id"}
	if !errors.Is(schema, ErrSchemaMismatch) {
		t.Error("MergeError should wrap ErrSchemaMismatch")
	}
	if !strings.Contains(schema.Error(), "right") || !strings.Contains(schema.Error(), "account_id") {
		t.Errorf("Error() = %q, should name side and key", schema.Error())
	}

	masked := &MergeError{Err: ErrSchemaMismatch, Side: "left", Key: "account_id", Reason: "masked values are not unique"}
	if !errors.Is(masked, ErrSchemaMismatch) || !strings.Contains(masked.Error(), "masked values are not unique") {
		t.Errorf("Error() = %q, should carry the reason", masked.Error())
	}

	mode := &MergeError{Err: ErrPrivacyModeMismatch, LeftMode: ModeRaw, RightMode: ModePseudonymized, Requested: ModeRaw}
	if !errors.Is(mode, ErrPrivacyModeMismatch) {
		t.Error("MergeError should wrap ErrPrivacyModeMismatch")
	}
	if !strings.Contains(mode.Error(), "right=pseudonymized") {
		t.Errorf("Error() = %q, should name modes", mode.Error())
	}
}
