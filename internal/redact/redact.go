// Package redact removes credentials and personal data from strings before
// they are logged. Errors returned by remote clients often echo request URLs,
// OAuth tokens or connection strings; running them through this package keeps
// those values out of log files.
package redact

import (
	"log/slog"
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run in order; earlier rules see the original text.
var rules = []rule{
	// user:password@ in connection strings and broker URLs
	{regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://)[^/\s:@]+:[^/\s@]+@`), "${1}" + RedactedCredentialPlaceholder + "@"},
	// Authorization headers
	{regexp.MustCompile(`(?i)\b(bearer|basic)\s+[A-Za-z0-9_\-.~+/]+=*`), "${1} " + RedactedTokenPlaceholder},
	// Google OAuth access and refresh tokens
	{regexp.MustCompile(`\bya29\.[A-Za-z0-9_\-]+`), RedactedTokenPlaceholder},
	{regexp.MustCompile(`\b1//[A-Za-z0-9_\-]{20,}`), RedactedTokenPlaceholder},
	// Google API keys and OpenAI secret keys
	{regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder},
	// key=value style secrets in query strings and messages
	{regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|refresh[_-]?token|client[_-]?secret|password|secret|key)(["']?\s*[=:]\s*["']?)[^\s"'&,;]{6,}`), "${1}${2}" + RedactionPlaceholder},
	// JWTs
	{regexp.MustCompile(`\beyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), RedactedTokenPlaceholder},
	// Email addresses
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmailPlaceholder},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// sensitiveKeys are log attribute keys whose values are always redacted.
var sensitiveKeys = map[string]string{
	"from":          RedactedEmailPlaceholder,
	"api_key":       RedactedKeyPlaceholder,
	"token":         RedactedTokenPlaceholder,
	"access_token":  RedactedTokenPlaceholder,
	"refresh_token": RedactedTokenPlaceholder,
	"password":      RedactedCredentialPlaceholder,
	"body":          RedactionPlaceholder,
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr function. It blanks
// attributes with sensitive keys and scrubs error and string values.
func ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if placeholder, ok := sensitiveKeys[a.Key]; ok {
		return slog.String(a.Key, placeholder)
	}

	switch v := a.Value.Any().(type) {
	case error:
		return slog.String(a.Key, Error(v))
	case string:
		if a.Key == slog.MessageKey {
			return a
		}
		return slog.String(a.Key, String(v))
	}
	return a
}
