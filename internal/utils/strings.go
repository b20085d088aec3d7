package utils

// TruncateLeft shortens s to at most n bytes by keeping its tail, which for
// archive paths is the part that tells entries apart.
func TruncateLeft(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 2 {
		return s[len(s)-n:]
	}
	return ".." + s[len(s)-n+2:]
}
