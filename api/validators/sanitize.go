package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, folds runs of whitespace into one space,
// drops control characters and cuts the result to maxLen runes. A
// non-positive maxLen disables the cut.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	count := 0
	space := false
	for _, r := range strings.TrimSpace(input) {
		if maxLen > 0 && count >= maxLen {
			break
		}
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space {
			if maxLen > 0 && count+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			count++
			space = false
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
