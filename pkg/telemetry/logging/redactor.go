package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9\-._~+/]+=*`)
	apiKeyPattern = regexp.MustCompile(`(?i)(x-api-key|api[-_]?key)([=:]\s*)[^\s&"',]+`)
)

// sensitiveKeys are attribute keys whose values are masked outright.
var sensitiveKeys = []string{
	"authorization", "x-api-key", "api_key", "apikey",
	"id_token", "access_token", "secret", "password",
}

// Redactor masks credentials in log attributes. Values under sensitive
// keys are replaced; bearer tokens and key=value credentials inside other
// string values are rewritten in place.
type Redactor struct{}

// NewRedactor creates a Redactor.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// IsSensitiveKey reports whether values logged under key must be masked.
func (r *Redactor) IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if lower == "token" {
		return true
	}
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactString rewrites credentials embedded in free text.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	value = bearerPattern.ReplaceAllString(value, "Bearer ***")
	return apiKeyPattern.ReplaceAllString(value, "$1$2***")
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if r.IsSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

// MaskValue hides a credential, keeping a four character prefix of long
// values so rotated keys can be told apart.
func MaskValue(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) <= 8:
		return "***"
	default:
		return v[:4] + "***"
	}
}
