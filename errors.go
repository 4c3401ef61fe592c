package shroud

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrClassificationAmbiguous indicates a column scored above zero but below the
	// sensitivity threshold. It is informational; the column is treated as non-sensitive.
	ErrClassificationAmbiguous = errors.New("classification ambiguous")

	// ErrPseudonymization indicates a single cell could not be tokenized.
	// The cell is replaced with SentinelToken and the batch continues.
	ErrPseudonymization = errors.New("pseudonymization failed")

	// ErrDecryptionIntegrity indicates a stored record set could not be opened.
	// Tampering, corruption and wrong master passwords all surface as this error.
	ErrDecryptionIntegrity = errors.New("decryption integrity failure")

	// ErrMasterPassword indicates a store was attempted with a password that does
	// not match the vault's password verifier.
	ErrMasterPassword = errors.New("master password rejected")

	// ErrPrivacyModeMismatch indicates inputs are in different privacy modes.
	ErrPrivacyModeMismatch = errors.New("privacy mode mismatch")

	// ErrSchemaMismatch indicates a required column is missing.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrSessionMismatch indicates pseudonymized inputs come from different
	// sessions, so their tokens can never match.
	ErrSessionMismatch = errors.New("privacy session mismatch")

	// ErrNotFound indicates no stored record set exists for a handle.
	ErrNotFound = errors.New("record set not found")

	// ErrInvalidHandle indicates a handle is malformed.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrUnprotected indicates a table without privacy protection was offered
	// to an external-facing consumer.
	ErrUnprotected = errors.New("table is not privacy protected")

	// ErrVaultIO indicates the vault could not read or write its files.
	ErrVaultIO = errors.New("vault i/o failure")

	// ErrInvalidConfig indicates an option or rule has an invalid value.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigError represents a configuration error.
// It wraps a sentinel error with the option or rule that was rejected.
type ConfigError struct {
	Err    error  // Underlying sentinel error (ErrInvalidConfig)
	Option string // Option or rule name that triggered the error
	Reason string // Human readable reason
}

func (e *ConfigError) Error() string {
	if e.Option != "" && e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", e.Err.Error(), e.Option, e.Reason)
	}
	if e.Option != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Option)
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FieldError reports a per-column condition, such as an ambiguous classification.
type FieldError struct {
	Err    error
	Column string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s (column %s)", e.Err.Error(), e.Column)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// CellError represents a failure on a single cell.
// It never carries the cell value.
type CellError struct {
	Err    error  // Underlying sentinel error (ErrPseudonymization)
	Table  string // Table name
	Column string // Column name
	Row    int    // Zero-based row index
	Reason string // Short machine-friendly reason ("invalid_utf8", "token_collision")
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%s: table %s column %s row %d: %s", e.Err.Error(), e.Table, e.Column, e.Row, e.Reason)
}

func (e *CellError) Unwrap() error {
	return e.Err
}

// VaultError represents a vault operation failure.
// The reason behind an integrity failure is deliberately absent; it is only
// reported through the shroud.vault.denied signal.
type VaultError struct {
	Err    error  // Underlying sentinel error
	Op     string // store, retrieve, delete, verify, list
	Handle Handle // Handle involved, if any
	Cause  error  // Underlying I/O error, if any
}

func (e *VaultError) Error() string {
	msg := "vault " + e.Op
	if e.Handle != "" {
		msg += " " + string(e.Handle)
	}
	msg += ": " + e.Err.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *VaultError) Unwrap() error {
	return e.Err
}

// MergeError represents a refused merge.
type MergeError struct {
	Err       error       // ErrPrivacyModeMismatch, ErrSchemaMismatch or ErrSessionMismatch
	Side      string      // "left", "right" or "" when both are involved
	Key       string      // Join key column
	Reason    string      // Why the key cannot be joined, when it exists on both sides
	LeftMode  PrivacyMode // Mode of the left input
	RightMode PrivacyMode // Mode of the right input
	Requested PrivacyMode // Mode the caller asked for
}

func (e *MergeError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("%s: join key %q: %s", e.Err.Error(), e.Key, e.Reason)
	case errors.Is(e.Err, ErrSchemaMismatch):
		return fmt.Sprintf("%s: %s table has no join key %q", e.Err.Error(), e.Side, e.Key)
	}
	return fmt.Sprintf("%s: left=%s right=%s requested=%s", e.Err.Error(), e.LeftMode, e.RightMode, e.Requested)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// newConfigError creates a ConfigError for a rejected option.
func newConfigError(option, reason string) error {
	return &ConfigError{
		Err:    ErrInvalidConfig,
		Option: option,
		Reason: reason,
	}
}

// newVaultError creates a VaultError.
func newVaultError(sentinel error, op string, h Handle, cause error) error {
	return &VaultError{
		Err:    sentinel,
		Op:     op,
		Handle: h,
		Cause:  cause,
	}
}
