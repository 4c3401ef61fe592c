package shroud

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Processed holds every view a pipeline run derives from one raw table.
type Processed struct {
	Handle        Handle      // Vault handle of the raw table
	Descriptors   Descriptors // Column classification
	Pseudonymized *Table      // Safe for external reasoning services
	Masked        *Table      // Safe for local display
	Report        *Report     // Pseudonymization cell failures
}

// Pipeline runs classification, vault storage, pseudonymization and masking
// over a raw table.
type Pipeline struct {
	classifier    *Classifier
	pseudonymizer *Pseudonymizer
	masker        *DisplayMasker
	vault         *Vault
}

// NewPipeline wires the components. All are required.
func NewPipeline(c *Classifier, p *Pseudonymizer, m *DisplayMasker, v *Vault) (*Pipeline, error) {
	switch {
	case c == nil:
		return nil, newConfigError("pipeline", "classifier is required")
	case p == nil:
		return nil, newConfigError("pipeline", "pseudonymizer is required")
	case m == nil:
		return nil, newConfigError("pipeline", "masker is required")
	case v == nil:
		return nil, newConfigError("pipeline", "vault is required")
	}
	return &Pipeline{classifier: c, pseudonymizer: p, masker: m, vault: v}, nil
}

// Process classifies t, stores the raw table in the vault, and derives the
// pseudonymized and masked views. Pinned descriptors, such as those from
// TypedDescriptors, override the classifier for their columns.
//
// The raw table is never returned; it can be read back only through the
// vault with the master password.
func (p *Pipeline) Process(ctx context.Context, s *Session, t *Table, password string, pinned ...Descriptors) (*Processed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, newConfigError("session", "must not be nil")
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, newConfigError("table", "must not be nil")
	}
	if t.Mode() != ModeRaw {
		return nil, fmt.Errorf("%w: cannot process a %s table", ErrPrivacyModeMismatch, t.Mode())
	}

	desc := p.classifier.Classify(ctx, t)
	for _, pin := range pinned {
		for col, d := range pin {
			if t.ColumnIndex(col) >= 0 {
				desc[col] = d
			}
		}
	}

	classified := t.Clone()
	classified.Privacy.record(TransformClassify, time.Now(), desc.Sensitive())

	h, err := p.vault.Store(ctx, classified, password)
	if err != nil {
		return nil, err
	}

	pseudo, report, err := p.pseudonymizer.Pseudonymize(ctx, s, classified, desc)
	if err != nil {
		return nil, p.discard(ctx, h, err)
	}

	masked, err := p.masker.MaskTable(classified, desc)
	if err != nil {
		return nil, p.discard(ctx, h, err)
	}

	return &Processed{
		Handle:        h,
		Descriptors:   desc,
		Pseudonymized: pseudo,
		Masked:        masked,
		Report:        report,
	}, nil
}

// discard deletes a blob stored by a run that failed afterwards, so no
// record set is left behind without a handle. The deletion runs even when
// ctx is already cancelled.
func (p *Pipeline) discard(ctx context.Context, h Handle, cause error) error {
	if _, err := p.vault.Delete(context.WithoutCancel(ctx), h); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to discard %s: %w", h, err))
	}
	return cause
}

// Reveal returns the display view of a stored table: masked, or the original
// values when reveal is true. It re-reads the vault on every call.
func (p *Pipeline) Reveal(ctx context.Context, h Handle, password string, desc Descriptors, reveal bool) (*Table, error) {
	return p.masker.Mask(ctx, VaultSource{Vault: p.vault, Handle: h, Password: password}, desc, reveal)
}
