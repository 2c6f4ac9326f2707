package normalize

// StateCodes is the closed set of state and union-territory prefixes.
var StateCodes = []string{
	"AN", "AP", "AR", "AS", "BR", "CG", "CH", "DD", "DL", "DN",
	"GA", "GJ", "HP", "HR", "JH", "JK", "KA", "KL", "LA", "LD",
	"MH", "ML", "MN", "MP", "MZ", "NL", "OD", "OR", "PB", "PY",
	"RJ", "SK", "TN", "TR", "TS", "UK", "UP", "WB",
}

var stateSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(StateCodes))
	for _, c := range StateCodes {
		m[c] = struct{}{}
	}
	return m
}()

// IsStateCode reports whether code is a known two-letter prefix.
func IsStateCode(code string) bool {
	_, ok := stateSet[code]
	return ok
}

// misreads maps two-character prefixes the recognizer commonly produces to the
// state code that was on the plate. No key starts with a digit, so prefixes of
// district-first, BH-series and diplomatic plates are never rewritten.
var misreads = map[string]string{
	"K1": "KL",
	"KI": "KL",
	"K4": "KA",
	"M0": "MH",
	"D1": "DL",
	"DI": "DL",
	"G1": "GJ",
	"H8": "HR",
	"R1": "RJ",
	"RI": "RJ",
	"W8": "WB",
	"T1": "TN",
	"O0": "OD",
}

// CorrectStatePrefix replaces a known misread of the first two characters of
// cleaned text. Text that already starts with a state code is returned as is.
func CorrectStatePrefix(s string) string {
	if len(s) < 2 || IsStateCode(s[:2]) {
		return s
	}
	if fixed, ok := misreads[s[:2]]; ok {
		return fixed + s[2:]
	}
	return s
}
