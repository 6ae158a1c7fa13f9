package registrar

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// factNamespace scopes the name-based UUIDs of conversation facts.
var factNamespace = uuid.MustParse("3b0c9f5e-1d8a-4c6e-9f27-6a41d0e8b2c5")

// slug lowercases s and collapses every run of non-alphanumeric runes into
// one underscore, trimming underscores at both ends.
func slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// factID is a version 5 UUID over the case-folded subject and statement.
func factID(subject, statement string) string {
	key := strings.ToLower(subject) + "|" + strings.ToLower(statement)
	return "fact_" + uuid.NewSHA1(factNamespace, []byte(key)).String()
}
