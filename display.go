package shroud

import (
	"context"
	"fmt"
	"time"
)

// Source yields the authoritative table a display is derived from.
// DisplayMasker loads from its Source on every call and never caches.
type Source interface {
	Load(ctx context.Context) (*Table, error)
}

// TableSource serves an in-memory raw table.
type TableSource struct {
	Table *Table
}

// Load returns a copy of the table.
func (s TableSource) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Table == nil {
		return nil, newConfigError("source", "table must not be nil")
	}
	return s.Table.Clone(), nil
}

// VaultSource serves a record set from the vault. Each Load is a Retrieve
// and is counted in the blob's access log.
type VaultSource struct {
	Vault    *Vault
	Handle   Handle
	Password string
}

// Load retrieves the record set.
func (s VaultSource) Load(ctx context.Context) (*Table, error) {
	if s.Vault == nil {
		return nil, newConfigError("source", "vault must not be nil")
	}
	return s.Vault.Retrieve(ctx, s.Handle, s.Password)
}

// DisplayMaskerOption configures a DisplayMasker.
type DisplayMaskerOption func(*DisplayMasker) error

// WithMasker replaces the masker used for one PII type.
func WithMasker(t PIIType, m Masker) DisplayMaskerOption {
	return func(d *DisplayMasker) error {
		if !t.Sensitive() {
			return newConfigError("masker", fmt.Sprintf("type %s is not a sensitive type", t))
		}
		if m == nil {
			return newConfigError("masker", "must not be nil")
		}
		d.maskers[t] = m
		return nil
	}
}

// DisplayMasker renders tables for local display with partial redaction.
type DisplayMasker struct {
	maskers map[PIIType]Masker
}

// NewDisplayMasker creates a DisplayMasker with the builtin maskers.
func NewDisplayMasker(opts ...DisplayMaskerOption) (*DisplayMasker, error) {
	d := &DisplayMasker{maskers: builtinMaskers()}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Mask loads the table from src and returns its display form.
//
// With reveal false every sensitive cell is partially redacted. With reveal
// true the original values are returned unchanged. The source must yield a
// raw table; pseudonymized tokens cannot be revealed, so any other mode fails
// with ErrPrivacyModeMismatch. Repeated calls yield the same cells; only the
// AppliedAt time of the recorded transform differs.
func (d *DisplayMasker) Mask(ctx context.Context, src Source, desc Descriptors, reveal bool) (*Table, error) {
	start := time.Now()
	t, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	if t.Mode() != ModeRaw {
		return nil, fmt.Errorf("%w: display source is %s, want %s", ErrPrivacyModeMismatch, t.Mode(), ModeRaw)
	}

	if reveal {
		t.Privacy.Mode = ModeRaw
		t.Privacy.record(TransformReveal, time.Now(), desc.Sensitive())
		emitMaskComplete(ctx, t.Name, ModeRaw, 0, 0, time.Since(start))
		return t, nil
	}

	out, masked, redacted := d.mask(t, desc)
	emitMaskComplete(ctx, t.Name, ModeMasked, masked, redacted, time.Since(start))
	return out, nil
}

// MaskTable returns a masked copy of a raw table without loading from a source.
func (d *DisplayMasker) MaskTable(t *Table, desc Descriptors) (*Table, error) {
	if t == nil {
		return nil, newConfigError("table", "must not be nil")
	}
	if t.Mode() != ModeRaw {
		return nil, fmt.Errorf("%w: cannot mask a %s table", ErrPrivacyModeMismatch, t.Mode())
	}
	out, _, _ := d.mask(t, desc)
	return out, nil
}

// mask applies the dispatch table to every sensitive column of a copy of t.
func (d *DisplayMasker) mask(t *Table, desc Descriptors) (*Table, int, int) {
	out := t.Clone()
	masked, redacted := 0, 0
	columns := make([]string, 0, len(t.Columns))

	for j, col := range t.Columns {
		fd := desc.Lookup(col.Name)
		if !fd.Sensitive() {
			continue
		}
		columns = append(columns, col.Name)
		m, ok := d.maskers[fd.Type]

		for _, row := range out.Rows {
			if j >= len(row) || row[j].Empty() {
				continue
			}
			v := RedactedToken
			if ok {
				v = m.Mask(row[j].Value)
			}
			if v == RedactedToken {
				redacted++
			} else {
				masked++
			}
			row[j] = Str(v)
		}
	}

	out.Privacy.Mode = ModeMasked
	out.Privacy.record(TransformMask, time.Now(), columns)
	return out, masked, redacted
}
