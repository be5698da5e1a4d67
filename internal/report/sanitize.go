package report

import (
	"fmt"
	"strings"
)

// SanitizeHeaders maps raw export column labels to storage-safe, unique
// identifiers. Spaces become underscores, "%" becomes "Percent", "$"
// becomes "Dollar", and anything else non-alphanumeric is dropped. Labels
// that come out empty or digit-leading get a positional placeholder name.
//
// The result is deduplicated: exports can carry visually distinct headers
// that collapse to the same sanitized name, and each must still become its
// own destination column. The returned slice always has the same length as
// the input and contains no repeated elements.
func SanitizeHeaders(headers []string) []string {
	out := make([]string, 0, len(headers))
	seen := make(map[string]bool, len(headers))

	for i, header := range headers {
		clean := sanitizeOne(header, i)

		if seen[clean] {
			base := clean
			for n := 1; ; n++ {
				clean = fmt.Sprintf("%s_%d", base, n)
				if !seen[clean] {
					break
				}
			}
		}
		seen[clean] = true
		out = append(out, clean)
	}

	return out
}

func sanitizeOne(header string, pos int) string {
	s := strings.TrimSpace(header)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "%", "Percent")
	s = strings.ReplaceAll(s, "$", "Dollar")

	var b strings.Builder
	for _, r := range s {
		if r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s = b.String()

	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return fmt.Sprintf("Column_%d", pos)
	}
	return s
}
