package logging

import (
	"regexp"
	"strings"
)

// Candidate addresses are PII; log lines carry masked forms only.

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	// Bearer tokens (push feed auth)
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),
	// Generic long values attached to secret-ish keys
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// Redact replaces token-like secrets in a string.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// MaskAddress masks the local part of an email address for logging:
// "carol@candidates.io" becomes "c***@candidates.io". Strings that do not
// look like addresses are returned unchanged.
func MaskAddress(addr string) string {
	trimmed := strings.TrimSpace(addr)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || at == len(trimmed)-1 {
		return trimmed
	}
	local := trimmed[:at]
	domain := trimmed[at+1:]
	return local[:1] + "***@" + domain
}

// MaskAddresses masks every address in a participant list.
func MaskAddresses(addrs []string) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = MaskAddress(a)
	}
	return out
}
