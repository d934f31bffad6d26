package utils

// Truncate shortens s to at most maxLen runes, ending with "..." when cut.
// A non-positive maxLen leaves s unchanged.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
