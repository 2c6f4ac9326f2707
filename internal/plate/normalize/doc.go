// Package normalize converts recognizer output into canonical Indian vehicle
// registration strings.
//
// Text is cleaned to [A-Z0-9], a misread state prefix is corrected, and the
// result is matched against the registration grammars in priority order. When
// nothing matches, a best-effort reconstruction is returned instead. The
// package never returns an error: the worst case is the cleaned input.
package normalize
