package normalize

import (
	"regexp"
	"strings"
)

// Grammar names reported in Plate.Grammar.
const (
	GrammarStandard      = "standard"
	GrammarDistrictFirst = "district-first"
	GrammarBH            = "bh-series"
	GrammarOld           = "old"
	GrammarDiplomatic    = "diplomatic"
	GrammarTemporary     = "temporary"
	GrammarFallback      = "fallback"
)

// Plate is the outcome of parsing recognizer text.
type Plate struct {
	// Canonical is the hyphenated registration, or the best available
	// reconstruction when Matched is false.
	Canonical string `json:"canonical"`
	Grammar   string `json:"grammar"`
	// Matched is true when one of the registration grammars accepted the
	// text.
	Matched bool `json:"matched"`
}

type grammar struct {
	name   string
	re     *regexp.Regexp
	state  int // submatch index of the state code, 0 if none
	format func(m []string) string
}

// Tried in order; the first match wins.
var grammars = []grammar{
	{
		name:  GrammarStandard,
		re:    regexp.MustCompile(`^([A-Z]{2})(\d{1,2})([A-Z]{1,3})(\d{3,4})$`),
		state: 1,
		format: func(m []string) string {
			return join(m[1], pad(m[2], 2), m[3], pad(m[4], 4))
		},
	},
	{
		name:  GrammarDistrictFirst,
		// Without a series the number must be four digits, so diplomatic
		// plates such as 12-DL-345 are left to the diplomatic grammar.
		re:    regexp.MustCompile(`^(\d{1,2})([A-Z]{2})(?:([A-Z]{1,2})(\d{3,4})|(\d{4}))$`),
		state: 2,
		format: func(m []string) string {
			number := m[4]
			if number == "" {
				number = m[5]
			}
			return join(pad(m[1], 2), m[2], m[3], pad(number, 4))
		},
	},
	{
		name: GrammarBH,
		re:   regexp.MustCompile(`^(\d{2})BH(\d{4})([A-Z]{1,2})$`),
		format: func(m []string) string {
			return m[1] + "BH" + m[2] + m[3]
		},
	},
	{
		name:  GrammarOld,
		re:    regexp.MustCompile(`^([A-Z]{2})(\d{1,2})(\d{4})$`),
		state: 1,
		format: func(m []string) string {
			return join(m[1], pad(m[2], 2), m[3])
		},
	},
	{
		name: GrammarDiplomatic,
		re:   regexp.MustCompile(`^(\d{1,3})([A-Z]{1,2})(\d{1,3})$`),
		format: func(m []string) string {
			return join(m[1], m[2], m[3])
		},
	},
	{
		name:  GrammarTemporary,
		re:    regexp.MustCompile(`^([A-Z]{2})(\d{1,2})([A-Z]{1,4})(\d{5,6})$`),
		state: 1,
		format: func(m []string) string {
			return join(m[1], pad(m[2], 2), m[3], m[4])
		},
	},
}

// GrammarNames lists the registration grammars in match order.
func GrammarNames() []string {
	names := make([]string, len(grammars))
	for i, g := range grammars {
		names[i] = g.name
	}
	return names
}

// Clean uppercases s and drops everything outside [A-Z0-9].
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse cleans raw, corrects the state prefix and matches the registration
// grammars. Unmatched text is passed through the fallback reconstruction.
func Parse(raw string) Plate {
	cleaned := Clean(raw)
	text := CorrectStatePrefix(cleaned)

	for _, g := range grammars {
		m := g.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if g.state > 0 && !IsStateCode(m[g.state]) {
			continue
		}
		return Plate{Canonical: g.format(m), Grammar: g.name, Matched: true}
	}
	return Plate{Canonical: reconstruct(cleaned, text), Grammar: GrammarFallback}
}

// Normalize returns the canonical form of raw.
func Normalize(raw string) string {
	return Parse(raw).Canonical
}

// IsValid reports whether raw matches a registration grammar after cleaning
// and prefix correction.
func IsValid(raw string) bool {
	return Parse(raw).Matched
}

// reconstruct rebuilds STATE-DISTRICT[-SERIES]-NUMBER from text that no
// grammar accepted. It first trusts the leading state code, then scans for a
// state code further in (recognizers often pick up frame edges or stickers
// before the plate), and finally gives up and returns cleaned.
func reconstruct(cleaned, text string) string {
	if len(text) >= 2 && IsStateCode(text[:2]) {
		if s, ok := rebuild(text); ok {
			return s
		}
	}
	for i := 1; i+2 < len(text); i++ {
		if IsStateCode(text[i:i+2]) && isDigit(text[i+2]) {
			if s, ok := rebuild(text[i:]); ok {
				return s
			}
		}
	}
	return cleaned
}

// rebuild expects text to start with a state code.
func rebuild(text string) (string, bool) {
	state, rest := text[:2], text[2:]

	district, rest := leading(rest, isDigit, 2)
	if district == "" {
		return "", false
	}
	series, rest := leading(rest, isLetter, len(rest))
	number := trailingDigits(rest)
	if number == "" {
		return "", false
	}
	return join(state, pad(district, 2), series, pad(number, 4)), true
}

// leading splits off up to n leading bytes of s that satisfy ok.
func leading(s string, ok func(byte) bool, n int) (string, string) {
	i := 0
	for i < len(s) && i < n && ok(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// trailingDigits returns the last run of digits in s. Letters after it are
// dropped as noise.
func trailingDigits(s string) string {
	end := len(s)
	for end > 0 && !isDigit(s[end-1]) {
		end--
	}
	start := end
	for start > 0 && isDigit(s[start-1]) {
		start--
	}
	return s[start:end]
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' }

// pad left-pads a digit string with zeros to width n.
func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

// join hyphenates the non-empty parts.
func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "-")
}
