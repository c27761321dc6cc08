package utils

import "strings"

// ExtractTokenFromHeader pulls the bearer token out of an Authorization
// header value. Returns "" when the header is not a bearer scheme.
func ExtractTokenFromHeader(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
