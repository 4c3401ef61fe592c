package shroud

import (
	"strings"
	"unicode"
)

// RedactedToken replaces a value too short to mask partially.
const RedactedToken = "****"

// Masker applies type-aware partial redaction.
type Masker interface {
	// Mask returns the display form of a non-empty value.
	Mask(value string) string
}

// MaskerFunc adapts a function to the Masker interface.
type MaskerFunc func(value string) string

func (f MaskerFunc) Mask(value string) string {
	return f(value)
}

// emailMasker masks email format: john.doe@example.com -> j***@*****.com
type emailMasker struct{}

// EmailMasker returns a masker for email addresses.
// Preserves the first character of the local part and the top-level domain.
func EmailMasker() Masker {
	return &emailMasker{}
}

func (m *emailMasker) Mask(value string) string {
	atIdx := strings.LastIndex(value, "@")
	if atIdx < 1 {
		return RedactedToken
	}
	domain := value[atIdx+1:]
	dotIdx := strings.LastIndex(domain, ".")
	if dotIdx < 1 || dotIdx == len(domain)-1 {
		return RedactedToken
	}

	first, _ := firstRune(value)
	return first + "***@*****." + domain[dotIdx+1:]
}

// nameMasker masks names: John Doe -> J***
type nameMasker struct{}

// NameMasker returns a masker for personal names.
// Preserves the first letter only, so word count and length are hidden.
func NameMasker() Masker {
	return &nameMasker{}
}

func (m *nameMasker) Mask(value string) string {
	value = strings.TrimSpace(value)
	first, n := firstRune(value)
	if n < 2 {
		return RedactedToken
	}
	return first + "***"
}

// nationalIDMasker masks identity numbers: A123456(3) -> A******(3)
type nationalIDMasker struct{}

// NationalIDMasker returns a masker for national identity numbers.
// Preserves the first character and the check character.
func NationalIDMasker() Masker {
	return &nationalIDMasker{}
}

func (m *nationalIDMasker) Mask(value string) string {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value)
	runes := []rune(compact)
	if len(runes) < 3 {
		return RedactedToken
	}
	return string(runes[0]) + "******(" + string(runes[len(runes)-1]) + ")"
}

// phoneMasker masks phone format: +852 9123 4567 -> +852 ****4567
type phoneMasker struct{}

// PhoneMasker returns a masker for phone numbers.
// Preserves the country code and the last 4 digits. A code written without a
// separator ("+85291234567") is recognised when it is a known calling code.
func PhoneMasker() Masker {
	return &phoneMasker{}
}

func (m *phoneMasker) Mask(value string) string {
	value = strings.TrimSpace(value)
	code := countryCode(value)
	digits := extractDigits(value)
	local := digits[max(len(code)-1, 0):]
	if len(local) < 5 {
		return RedactedToken
	}

	last4 := local[len(local)-4:]
	if code == "" {
		return "****" + last4
	}
	return code + " ****" + last4
}

// countryCode returns "+<digits>" for the calling code that value starts
// with, or "" when there is none. A digit run followed by a separator is taken
// as written; an unbroken run is matched against callingCodes.
func countryCode(value string) string {
	if !strings.HasPrefix(value, "+") {
		return ""
	}
	end := 1
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	if end == 1 {
		return ""
	}
	if end < len(value) {
		if end-1 > 3 {
			return ""
		}
		return value[:end]
	}
	// Calling codes are prefix-free, so the first match is the only one.
	for n := 1; n <= 3 && n < end-1; n++ {
		if callingCodes[value[1:1+n]] {
			return value[:1+n]
		}
	}
	return ""
}

// callingCodes holds the ITU calling codes recognised without a separator.
var callingCodes = map[string]bool{
	"1": true, "7": true,
	"20": true, "27": true, "30": true, "31": true, "32": true, "33": true, "34": true,
	"36": true, "39": true, "40": true, "41": true, "43": true, "44": true, "45": true,
	"46": true, "47": true, "48": true, "49": true, "51": true, "52": true, "54": true,
	"55": true, "56": true, "57": true, "60": true, "61": true, "62": true, "63": true,
	"64": true, "65": true, "66": true, "81": true, "82": true, "84": true, "86": true,
	"90": true, "91": true, "92": true, "94": true, "95": true, "98": true,
	"351": true, "353": true, "358": true, "852": true, "853": true, "855": true,
	"856": true, "880": true, "886": true, "960": true, "966": true, "971": true,
	"972": true, "974": true,
}

// identifierMasker masks identifiers: ACC00042 -> ACC***42
type identifierMasker struct{}

// IdentifierMasker returns a masker for account and customer identifiers.
// Preserves the first 3 and last 2 characters.
func IdentifierMasker() Masker {
	return &identifierMasker{}
}

func (m *identifierMasker) Mask(value string) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) < 6 {
		return RedactedToken
	}
	return string(runes[:3]) + strings.Repeat("*", len(runes)-5) + string(runes[len(runes)-2:])
}

// extractDigits returns only the digit characters from a string.
func extractDigits(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// firstRune returns the first rune of s as a string and the rune count of s.
func firstRune(s string) (string, int) {
	runes := []rune(s)
	if len(runes) == 0 {
		return "", 0
	}
	return string(runes[0]), len(runes)
}

// builtinMaskers returns the default masker dispatch table.
func builtinMaskers() map[PIIType]Masker {
	return map[PIIType]Masker{
		Email:      EmailMasker(),
		PersonName: NameMasker(),
		NationalID: NationalIDMasker(),
		Phone:      PhoneMasker(),
		Identifier: IdentifierMasker(),
	}
}
