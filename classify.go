package shroud

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Classifier defaults.
const (
	DefaultThreshold  = 0.5
	DefaultSampleSize = 10
)

// SensitiveFieldDescriptor is the classification of one column.
// Descriptors are computed per table and never persisted.
type SensitiveFieldDescriptor struct {
	Column          string   `json:"column" yaml:"column"`
	Type            PIIType  `json:"type" yaml:"type"`
	Confidence      float64  `json:"confidence" yaml:"confidence"`
	MatchedPatterns []string `json:"matched_patterns,omitempty" yaml:"matched_patterns,omitempty"`

	// Ambiguous is set when the best score was non-zero but under the threshold.
	Ambiguous bool `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`
}

// Sensitive reports whether the column is subject to masking and pseudonymization.
func (d SensitiveFieldDescriptor) Sensitive() bool {
	return d.Type.Sensitive()
}

// Err returns a FieldError wrapping ErrClassificationAmbiguous for ambiguous
// columns, and nil otherwise.
func (d SensitiveFieldDescriptor) Err() error {
	if !d.Ambiguous {
		return nil
	}
	return &FieldError{Err: ErrClassificationAmbiguous, Column: d.Column}
}

// Descriptors maps column names to their classification.
type Descriptors map[string]SensitiveFieldDescriptor

// Sensitive returns the sensitive column names, sorted.
func (d Descriptors) Sensitive() []string {
	cols := lo.Keys(lo.PickBy(d, func(_ string, desc SensitiveFieldDescriptor) bool {
		return desc.Sensitive()
	}))
	sort.Strings(cols)
	return cols
}

// Ambiguous returns the ambiguous column names, sorted.
func (d Descriptors) Ambiguous() []string {
	cols := lo.Keys(lo.PickBy(d, func(_ string, desc SensitiveFieldDescriptor) bool {
		return desc.Ambiguous
	}))
	sort.Strings(cols)
	return cols
}

// Lookup returns the descriptor for a column, treating unknown columns as Other.
func (d Descriptors) Lookup(column string) SensitiveFieldDescriptor {
	if desc, ok := d[column]; ok {
		return desc
	}
	return SensitiveFieldDescriptor{Column: column, Type: Other}
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier) error

// WithThreshold sets the minimum confidence for a column to count as sensitive.
func WithThreshold(threshold float64) ClassifierOption {
	return func(c *Classifier) error {
		if threshold < 0 || threshold > 1 {
			return newConfigError("threshold", "must be within [0,1]")
		}
		c.threshold = threshold
		return nil
	}
}

// WithSampleSize sets how many non-empty values per column are inspected.
func WithSampleSize(n int) ClassifierOption {
	return func(c *Classifier) error {
		if n < 1 {
			return newConfigError("sample size", "must be positive")
		}
		c.sampleSize = n
		return nil
	}
}

// WithRules appends rules to the builtin set.
func WithRules(rules ...Rule) ClassifierOption {
	return func(c *Classifier) error {
		for _, r := range rules {
			if err := r.compile(); err != nil {
				return err
			}
			c.rules = append(c.rules, r)
		}
		return nil
	}
}

// WithRuleSet applies a parsed rules document.
func WithRuleSet(rs RuleSet) ClassifierOption {
	return func(c *Classifier) error {
		if rs.Threshold != nil {
			if err := WithThreshold(*rs.Threshold)(c); err != nil {
				return err
			}
		}
		return WithRules(rs.Rules...)(c)
	}
}

// Classifier scores table columns for sensitivity.
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules      []Rule
	threshold  float64
	sampleSize int
}

// NewClassifier creates a Classifier with the builtin rules.
func NewClassifier(opts ...ClassifierOption) (*Classifier, error) {
	c := &Classifier{
		threshold:  DefaultThreshold,
		sampleSize: DefaultSampleSize,
	}
	for _, r := range DefaultRules() {
		if err := r.compile(); err != nil {
			return nil, err
		}
		c.rules = append(c.rules, r)
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Threshold returns the configured sensitivity threshold.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify returns a descriptor for every column of t. It never fails:
// empty tables yield Other with zero confidence for every column, and a nil
// table yields no descriptors.
func (c *Classifier) Classify(ctx context.Context, t *Table) Descriptors {
	if t == nil {
		return Descriptors{}
	}
	start := time.Now()
	out := make(Descriptors, len(t.Columns))
	for j, col := range t.Columns {
		out[col.Name] = c.classifyColumn(col.Name, c.sample(t, j))
	}
	emitClassifyComplete(ctx, t.Name, len(t.Columns), len(out.Sensitive()), len(out.Ambiguous()), time.Since(start))
	return out
}

// sample collects up to sampleSize trimmed, non-empty values of column j.
func (c *Classifier) sample(t *Table, j int) []string {
	values := make([]string, 0, c.sampleSize)
	for _, row := range t.Rows {
		if len(values) == c.sampleSize {
			break
		}
		if j >= len(row) || row[j].Empty() {
			continue
		}
		if v := strings.TrimSpace(row[j].Value); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// typeScore accumulates evidence for one PII type.
type typeScore struct {
	score   float64
	matched []string
}

func (c *Classifier) classifyColumn(name string, values []string) SensitiveFieldDescriptor {
	desc := SensitiveFieldDescriptor{Column: name, Type: Other}
	if len(values) == 0 {
		return desc
	}

	tokens := strings.Split(normalizeColumnName(name), "_")
	scores := make(map[PIIType]*typeScore)

	for i := range c.rules {
		r := &c.rules[i]
		s, ok := scores[r.Type]
		if !ok {
			s = &typeScore{}
			scores[r.Type] = s
		}

		if kw, ok := r.matchKeyword(tokens); ok {
			s.score += r.KeywordWeight
			s.matched = append(s.matched, "keyword:"+kw)
		}

		hits := lo.CountBy(values, r.matchValue)
		if hits > 0 {
			s.score += r.PatternWeight * float64(hits) / float64(len(values))
			s.matched = append(s.matched, "pattern:"+r.Name)
		}
	}

	best, bestScore := Other, 0.0
	for _, t := range piiPrecedence {
		s, ok := scores[t]
		if !ok {
			continue
		}
		if clamp01(s.score) > bestScore {
			best, bestScore = t, clamp01(s.score)
		}
	}

	desc.Confidence = bestScore
	if best == Other {
		return desc
	}
	if bestScore < c.threshold {
		desc.Ambiguous = true
		return desc
	}
	desc.Type = best
	desc.MatchedPatterns = scores[best].matched
	return desc
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// columnFolder strips diacritics: NFD decompose, drop nonspacing marks, recompose.
var columnFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeColumnName lower-cases a column name, strips diacritics and turns
// every run of non letter/digit characters into a single "_".
// "Given Name" -> "given_name", "E-Mail" -> "e_mail", "CustomerID" -> "customer_id".
func normalizeColumnName(name string) string {
	folded, _, err := transform.String(columnFolder, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded) + 4)
	pendingSep := false
	prev := rune(0)
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			// Split camel case boundaries: customerID -> customer_id.
			if unicode.IsUpper(r) && prev != 0 && unicode.IsLower(prev) {
				pendingSep = true
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			prev = r
		default:
			pendingSep = true
			prev = 0
		}
	}
	return b.String()
}

// ValidHKID reports whether s is a Hong Kong identity card number with a
// correct check digit. Parentheses around the check digit are optional.
func ValidHKID(s string) bool {
	s = strings.ToUpper(strings.NewReplacer("(", "", ")", "", " ", "").Replace(s))
	if len(s) != 8 && len(s) != 9 {
		return false
	}

	prefix := s[:len(s)-7]
	digits := s[len(prefix) : len(s)-1]
	check := s[len(s)-1]

	sum := 0
	if len(prefix) == 1 {
		// A single-letter prefix is padded with a space, valued 36.
		sum += 36 * 9
		prefix = " " + prefix
	}
	for i := 0; i < 2; i++ {
		ch := prefix[i]
		if ch == ' ' {
			continue
		}
		if ch < 'A' || ch > 'Z' {
			return false
		}
		sum += int(ch-'A'+10) * (9 - i)
	}
	for i := 0; i < 6; i++ {
		ch := digits[i]
		if ch < '0' || ch > '9' {
			return false
		}
		sum += int(ch-'0') * (7 - i)
	}

	var want byte
	switch r := (11 - sum%11) % 11; r {
	case 10:
		want = 'A'
	default:
		want = byte('0' + r)
	}
	return check == want
}

// plausiblePhone requires 8 to 15 digits, the E.164 subscriber range.
func plausiblePhone(s string) bool {
	n := len(extractDigits(s))
	return n >= 8 && n <= 15
}
