package driver

import "strings"

// txPolicy decides whether statements stand alone or get grouped into an
// implicit transaction. Derived from the configured autocommit mode and
// isolation level, never stored on its own.
type txPolicy struct {
	mode      AutocommitMode
	isolation string
}

// autocommit reports whether statements should stand alone. In legacy mode
// the answer is inferred: autocommit iff no isolation level is configured.
// An explicit mode wins over the inference.
func (p txPolicy) autocommit() bool {
	if p.mode == AutocommitLegacy {
		return p.isolation == ""
	}
	return p.mode == AutocommitOn
}

var dmlPrefixes = []string{"INSERT", "UPDATE", "DELETE", "REPLACE"}

func firstWord(query string) string {
	if f := strings.Fields(query); len(f) > 0 {
		return f[0]
	}
	return ""
}

// isDataModifying classifies a statement by prefix on the trimmed,
// case-folded text. A heuristic, not a parser.
func isDataModifying(query string) bool {
	s := strings.ToUpper(strings.TrimSpace(query))
	for _, p := range dmlPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
