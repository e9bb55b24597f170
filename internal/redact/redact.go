// Package redact strips sensitive fragments from strings before they reach
// logs or error responses: connection strings, tokens, credentials, SQL
// fragments, file paths, and addresses that infrastructure errors tend to
// carry.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	RedactedHostPlaceholder       = "[REDACTED_HOST]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
)

// Patterns for the data our stack can leak through wrapped errors: pgx and
// go-redis connection errors carry URLs and host:port pairs, the jwt library
// can echo token fragments, and SQL errors can quote the statement.
var (
	connStringRegex = regexp.MustCompile(`(?i)(postgres(ql)?|redis|rediss|mysql)://[^\s]+`)
	passwordRegex   = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]['"]?)[^'"&\s]{3,}`)
	secretRegex     = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|jwt[_-]?secret)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`)
	jwtRegex        = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	unixPathRegex   = regexp.MustCompile(`(/[\w.-]+){2,}`)
	sqlRegex        = regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE|WHERE)(?:[\s\w,*()='"$]+)?`)
	emailRegex      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	hostPortRegex   = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}:\d{1,5}\b`)
)

// replacement order matters: connection strings and tokens first, so the
// broader path/host patterns do not shred them into unrecognizable pieces.
var replacements = []struct {
	pattern     *regexp.Regexp
	placeholder string
}{
	{connStringRegex, RedactedCredentialPlaceholder},
	{passwordRegex, RedactedCredentialPlaceholder},
	{secretRegex, RedactedTokenPlaceholder},
	{jwtRegex, RedactedTokenPlaceholder},
	{sqlRegex, RedactedSQLPlaceholder},
	{emailRegex, RedactedEmailPlaceholder},
	{hostPortRegex, RedactedHostPlaceholder},
	{unixPathRegex, RedactedPathPlaceholder},
}

// String returns input with every sensitive fragment replaced by a
// placeholder.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range replacements {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts an error's message. Returns "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
