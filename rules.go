package shroud

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxRulesSize is the maximum accepted rules file size (1MB).
const maxRulesSize = 1 * 1024 * 1024

// Rule scores one PII type for a column.
//
// A column whose normalized name contains any keyword (as whole "_" separated
// tokens) gains KeywordWeight. Each sampled value matching any pattern, and
// passing Validate when set, contributes PatternWeight divided by the sample size.
type Rule struct {
	Name          string   `yaml:"name"`
	Type          PIIType  `yaml:"type"`
	Keywords      []string `yaml:"keywords,omitempty"`
	Patterns      []string `yaml:"patterns,omitempty"`
	KeywordWeight float64  `yaml:"keyword_weight"`
	PatternWeight float64  `yaml:"pattern_weight"`

	// Validate optionally confirms a pattern match, such as a check digit.
	Validate func(value string) bool `yaml:"-"`

	compiled []*regexp.Regexp
	keywords [][]string
}

// compile validates the rule and prepares its matchers.
func (r *Rule) compile() error {
	if r.Name == "" {
		return newConfigError("rule", "name is required")
	}
	if !r.Type.Sensitive() {
		return newConfigError("rule "+r.Name, fmt.Sprintf("type %s is not a sensitive type", r.Type))
	}
	if r.KeywordWeight < 0 || r.KeywordWeight > 1 || r.PatternWeight < 0 || r.PatternWeight > 1 {
		return newConfigError("rule "+r.Name, "weights must be within [0,1]")
	}
	if len(r.Keywords) == 0 && len(r.Patterns) == 0 {
		return newConfigError("rule "+r.Name, "needs at least one keyword or pattern")
	}

	r.compiled = make([]*regexp.Regexp, 0, len(r.Patterns))
	for _, p := range r.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return newConfigError("rule "+r.Name, fmt.Sprintf("bad pattern: %v", err))
		}
		r.compiled = append(r.compiled, re)
	}

	r.keywords = make([][]string, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		tokens := strings.Split(normalizeColumnName(kw), "_")
		if len(tokens) == 0 || tokens[0] == "" {
			continue
		}
		r.keywords = append(r.keywords, tokens)
	}
	return nil
}

// matchKeyword returns the first keyword found in the tokenized column name.
func (r *Rule) matchKeyword(tokens []string) (string, bool) {
	for _, kw := range r.keywords {
		if containsRun(tokens, kw) {
			return strings.Join(kw, "_"), true
		}
	}
	return "", false
}

// matchValue reports whether a sampled value satisfies the rule's patterns.
func (r *Rule) matchValue(value string) bool {
	for _, re := range r.compiled {
		if re.MatchString(value) {
			return r.Validate == nil || r.Validate(value)
		}
	}
	return false
}

// containsRun reports whether run appears as a contiguous subsequence of tokens.
func containsRun(tokens, run []string) bool {
	if len(run) > len(tokens) {
		return false
	}
	for i := 0; i+len(run) <= len(tokens); i++ {
		match := true
		for j := range run {
			if tokens[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// DefaultRules returns the builtin rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:          "email",
			Type:          Email,
			Keywords:      []string{"email", "e_mail", "mail", "email_address"},
			Patterns:      []string{`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`},
			KeywordWeight: 0.5,
			PatternWeight: 0.6,
		},
		{
			Name:          "hkid",
			Type:          NationalID,
			Keywords:      []string{"hkid", "national_id", "id_number", "identity", "id_card"},
			Patterns:      []string{`^[A-Z]{1,2}[0-9]{6}\(?[0-9A]\)?$`},
			KeywordWeight: 0.5,
			PatternWeight: 0.6,
			Validate:      ValidHKID,
		},
		{
			Name:          "phone",
			Type:          Phone,
			Keywords:      []string{"phone", "mobile", "tel", "telephone", "contact_number"},
			Patterns:      []string{`^\+?[0-9][0-9 ()\-]{6,18}[0-9]$`},
			KeywordWeight: 0.4,
			PatternWeight: 0.4,
			Validate:      plausiblePhone,
		},
		{
			Name:          "account",
			Type:          Identifier,
			Keywords:      []string{"account", "acct", "customer_id", "client_id", "member_id"},
			Patterns:      []string{`^[A-Z]{2,5}[-_]?[0-9]{3,12}$`},
			KeywordWeight: 0.5,
			PatternWeight: 0.4,
		},
		{
			Name:          "person_name",
			Type:          PersonName,
			Keywords:      []string{"name", "given", "family", "surname", "first_name", "last_name", "full_name"},
			Patterns:      []string{`^\p{Lu}\p{Ll}+$`, `^\p{Lu}\p{Ll}+( \p{Lu}\p{Ll}+){1,2}$`},
			KeywordWeight: 0.5,
			PatternWeight: 0.3,
		},
	}
}

// rulesFile is the on-disk rules document.
type rulesFile struct {
	Threshold *float64 `yaml:"threshold,omitempty"`
	Rules     []Rule   `yaml:"rules"`
}

// RuleSet is a parsed rules document.
type RuleSet struct {
	Threshold *float64
	Rules     []Rule
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) (RuleSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to stat rules file: %w", err)
	}
	if info.Size() > maxRulesSize {
		return RuleSet{}, fmt.Errorf("rules file size (%d bytes) exceeds maximum allowed size (%d bytes)", info.Size(), maxRulesSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	return ParseRules(f)
}

// ParseRules decodes a YAML rules document. Unknown fields are rejected.
//
//	threshold: 0.6
//	rules:
//	  - name: staff_number
//	    type: identifier
//	    keywords: [staff_no]
//	    patterns: ['^S[0-9]{5}$']
//	    keyword_weight: 0.5
//	    pattern_weight: 0.4
func ParseRules(r io.Reader) (RuleSet, error) {
	decoder := yaml.NewDecoder(io.LimitReader(r, maxRulesSize))
	decoder.KnownFields(true)

	var doc rulesFile
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return RuleSet{}, fmt.Errorf("failed to parse rules: %w", err)
	}

	if doc.Threshold != nil && (*doc.Threshold < 0 || *doc.Threshold > 1) {
		return RuleSet{}, newConfigError("threshold", "must be within [0,1]")
	}
	for i := range doc.Rules {
		if err := doc.Rules[i].compile(); err != nil {
			return RuleSet{}, err
		}
	}
	return RuleSet{Threshold: doc.Threshold, Rules: doc.Rules}, nil
}
