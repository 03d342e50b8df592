package policy

import "regexp"

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	googleKey     = regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[0-9A-Za-z._~+/\-]+=*`)
	keyParam      = regexp.MustCompile(`(?i)\b(key|api_key|token)=[^&\s"]+`)
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Card before phone, or long card numbers match the phone pattern.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactCredentials masks API keys and bearer tokens that remote error
// bodies and request URLs tend to echo back.
func RedactCredentials(input string) (redacted string, changed bool) {
	out := googleKey.ReplaceAllString(input, "[REDACTED_KEY]")
	out = bearerPattern.ReplaceAllString(out, "Bearer [REDACTED_TOKEN]")
	out = keyParam.ReplaceAllString(out, "$1=[REDACTED_KEY]")
	return out, out != input
}

// Scrub applies every redaction. Use it on text that leaves the process:
// client notices and log lines carrying remote error details.
func Scrub(input string) string {
	out, _ := RedactCredentials(input)
	out, _ = RedactPII(out)
	return out
}
