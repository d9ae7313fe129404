package logger

import "strings"

// RedactEmail masks an address for logging, keeping the domain and the
// first two characters of longer local parts:
// "john.doe@example.com" becomes "jo***@example.com", while "ab@example.com"
// and anything that is not an address collapse to a fully masked form.
func RedactEmail(email string) string {
	local, host, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(host, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + host
	}
	return "***@" + host
}
