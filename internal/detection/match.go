package detection

import "strings"

// ContainsAll reports whether text contains every keyword, ignoring case.
// An empty keyword list matches any text.
func ContainsAll(text string, keywords []string) bool {
	folded := strings.ToLower(text)
	for _, keyword := range keywords {
		if !strings.Contains(folded, strings.ToLower(keyword)) {
			return false
		}
	}
	return true
}
