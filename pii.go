package shroud

import "fmt"

// PIIType is the closed set of personal data categories the classifier can infer.
type PIIType int

const (
	// Other marks a column with no detected personal data.
	Other PIIType = iota

	// Identifier covers account and customer identifiers (ACC001, CUST-00042).
	Identifier

	// PersonName covers given, family and full names.
	PersonName

	// Email covers email addresses.
	Email

	// NationalID covers national identity numbers such as HKID (A123456(3)).
	NationalID

	// Phone covers telephone numbers.
	Phone
)

// piiTypeNames maps each PIIType to its wire name.
var piiTypeNames = map[PIIType]string{
	Other:      "other",
	Identifier: "identifier",
	PersonName: "person_name",
	Email:      "email",
	NationalID: "national_id",
	Phone:      "phone",
}

// piiPrecedence orders types for tie breaking: earlier wins on equal confidence.
var piiPrecedence = []PIIType{NationalID, Email, Phone, Identifier, PersonName}

func (t PIIType) String() string {
	if name, ok := piiTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PIIType(%d)", int(t))
}

// Sensitive reports whether the type carries personal data.
func (t PIIType) Sensitive() bool {
	return t != Other && IsValidPIIType(t)
}

// MarshalText implements encoding.TextMarshaler.
func (t PIIType) MarshalText() ([]byte, error) {
	if !IsValidPIIType(t) {
		return nil, fmt.Errorf("unknown pii type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PIIType) UnmarshalText(text []byte) error {
	parsed, err := ParsePIIType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParsePIIType parses a wire name such as "email" or "national_id".
func ParsePIIType(s string) (PIIType, error) {
	for t, name := range piiTypeNames {
		if name == s {
			return t, nil
		}
	}
	return Other, newConfigError("pii type", fmt.Sprintf("unknown type %q", s))
}

// IsValidPIIType returns true if the type is a known PII type.
func IsValidPIIType(t PIIType) bool {
	_, ok := piiTypeNames[t]
	return ok
}

// PrivacyMode is the representation state of a record set.
type PrivacyMode string

const (
	// ModeRaw holds original values. Raw tables never leave the local trust boundary.
	ModeRaw PrivacyMode = "raw"

	// ModePseudonymized holds irreversible tokens in sensitive columns.
	ModePseudonymized PrivacyMode = "pseudonymized"

	// ModeMasked holds display-redacted values in sensitive columns.
	ModeMasked PrivacyMode = "masked"
)

// validModes contains all valid privacy modes.
var validModes = map[PrivacyMode]bool{
	ModeRaw:           true,
	ModePseudonymized: true,
	ModeMasked:        true,
}

// IsValidMode returns true if the mode is a known privacy mode.
func IsValidMode(m PrivacyMode) bool {
	return validModes[m]
}

// MergeStrategy selects the join semantics.
type MergeStrategy string

const (
	// MergeInner keeps only rows with a key on both sides.
	MergeInner MergeStrategy = "inner"

	// MergeLeft keeps every left row.
	MergeLeft MergeStrategy = "left"

	// MergeRight keeps every right row.
	MergeRight MergeStrategy = "right"

	// MergeOuter keeps every row from both sides.
	MergeOuter MergeStrategy = "outer"
)

// validStrategies contains all valid merge strategies.
var validStrategies = map[MergeStrategy]bool{
	MergeInner: true,
	MergeLeft:  true,
	MergeRight: true,
	MergeOuter: true,
}

// IsValidStrategy returns true if the strategy is a known merge strategy.
func IsValidStrategy(s MergeStrategy) bool {
	return validStrategies[s]
}
