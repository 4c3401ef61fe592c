package shroud

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Token lengths in hex characters.
const (
	DefaultTokenLength = 10
	minTokenLength     = 8
	maxTokenLength     = 64
)

// SentinelToken replaces a cell that could not be tokenized.
const SentinelToken = "#PSEUDO_ERR"

// Cell failure reasons.
const (
	reasonInvalidUTF8    = "invalid_utf8"
	reasonTokenCollision = "token_collision"
)

// PseudonymizerOption configures a Pseudonymizer.
type PseudonymizerOption func(*Pseudonymizer) error

// WithTokenLength sets the number of hex characters kept from each digest.
func WithTokenLength(n int) PseudonymizerOption {
	return func(p *Pseudonymizer) error {
		if n < minTokenLength || n > maxTokenLength {
			return newConfigError("token length", fmt.Sprintf("must be within [%d,%d]", minTokenLength, maxTokenLength))
		}
		p.tokenLength = n
		return nil
	}
}

// Pseudonymizer replaces sensitive cells with irreversible salted tokens.
// It holds no secrets; salts come from the Session.
type Pseudonymizer struct {
	tokenLength int
}

// NewPseudonymizer creates a Pseudonymizer.
func NewPseudonymizer(opts ...PseudonymizerOption) (*Pseudonymizer, error) {
	p := &Pseudonymizer{tokenLength: DefaultTokenLength}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// TokenLength returns the configured token length.
func (p *Pseudonymizer) TokenLength() int {
	return p.tokenLength
}

// Report summarizes one pseudonymization run.
type Report struct {
	Tokenized   int          // Cells replaced by a token
	Failures    []*CellError // Cells replaced by SentinelToken
	FlaggedRows []int        // Rows containing at least one failure, sorted
}

// Failed returns the number of cells that fell back to SentinelToken.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Err aggregates the cell failures, or returns nil when there were none.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, f := range r.Failures {
		result = multierror.Append(result, f)
	}
	return result.ErrorOrNil()
}

// Pseudonymize returns a copy of t in which every cell of a sensitive column
// holds hex(sha256(value || salt)) truncated to the token length.
//
// Null and empty cells pass through. A cell that cannot be hashed, or whose
// token equals its input, becomes SentinelToken and its row is flagged; the
// batch continues. The returned error covers whole-call failures only:
// cancellation, a closed session or a table that is not raw.
func (p *Pseudonymizer) Pseudonymize(ctx context.Context, s *Session, t *Table, d Descriptors) (*Table, *Report, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if s == nil {
		return nil, nil, newConfigError("session", "must not be nil")
	}
	if err := s.Err(); err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, newConfigError("table", "must not be nil")
	}
	if t.Mode() != ModeRaw {
		return nil, nil, fmt.Errorf("%w: cannot pseudonymize a %s table", ErrPrivacyModeMismatch, t.Mode())
	}

	out := t.Clone()
	report := &Report{}

	columns := make([]string, 0, len(t.Columns))
	for j, col := range t.Columns {
		if !d.Lookup(col.Name).Sensitive() {
			continue
		}
		salt, err := s.salt(col.Name)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, col.Name)
		hasher := SaltedSHA256(salt)

		for i, row := range out.Rows {
			if j >= len(row) || row[j].Empty() {
				continue
			}
			token, reason := p.token(hasher, row[j].Value)
			if reason != "" {
				row[j] = Str(SentinelToken)
				out.Privacy.flag(i)
				report.Failures = append(report.Failures, &CellError{
					Err:    ErrPseudonymization,
					Table:  t.Name,
					Column: col.Name,
					Row:    i,
					Reason: reason,
				})
				continue
			}
			row[j] = Str(token)
			report.Tokenized++
		}
	}

	slices.Sort(out.Privacy.FlaggedRows)
	report.FlaggedRows = slices.Clone(out.Privacy.FlaggedRows)

	out.Privacy.Mode = ModePseudonymized
	out.Privacy.SessionID = s.ID()
	out.Privacy.record(TransformPseudonymize, time.Now(), columns)

	emitPseudonymizeComplete(ctx, t.Name, s.ID(), report.Tokenized, report.Failed(), time.Since(start), report.Err())
	return out, report, nil
}

// token derives the token for one value, or the reason it could not.
func (p *Pseudonymizer) token(h Hasher, value string) (string, string) {
	sum, err := h.Hash([]byte(value))
	if err != nil {
		if errors.Is(err, errInvalidUTF8) {
			return "", reasonInvalidUTF8
		}
		return "", err.Error()
	}
	token := sum[:p.tokenLength]
	if token == value {
		return "", reasonTokenCollision
	}
	return token, ""
}
