// Package sanitize strips credentials and token-like material from error
// messages and log context before they can reach any sink outside the
// process. All functions are pure; a single set of rules is shared by every
// component through the log handler in handler.go.
package sanitize

import "regexp"

// Marker replaces every matched secret.
const Marker = "[REDACTED]"

var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	basicPattern  = regexp.MustCompile(`(?i)basic\s+[A-Za-z0-9+/=]+`)
	// Long unbroken alphanumeric runs look like PATs and OAuth tokens.
	tokenPattern = regexp.MustCompile(`[A-Za-z0-9]{20,}`)
	secretKey    = regexp.MustCompile(`(?i)(^(token|password)$|secret)`)
)

// Message replaces bearer tokens, basic-auth blobs, and token-like
// substrings in s with the redaction marker.
func Message(s string) string {
	s = bearerPattern.ReplaceAllString(s, Marker)
	s = basicPattern.ReplaceAllString(s, Marker)
	s = tokenPattern.ReplaceAllString(s, Marker)
	return s
}

// Error returns the sanitized message of err, or "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Message(err.Error())
}

// SecretKey reports whether a map key names a secret (token, password,
// or anything containing "secret", case-insensitive).
func SecretKey(key string) bool {
	return secretKey.MatchString(key)
}

// Context returns a copy of ctx with every secret-named key replaced by the
// redaction marker. Nested maps and slices are sanitized recursively by key
// name; all other keys keep their value and presence untouched.
func Context(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if SecretKey(k) {
			out[k] = Marker
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Context(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}
