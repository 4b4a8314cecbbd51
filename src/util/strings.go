package util

// Truncate clips s to at most n bytes, for log lines that quote
// arbitrary payloads.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
