package secret

import "strings"

const defaultVisibleChars = 4

// secretKeyPatterns are matched as case-insensitive substrings of a
// credential field name.
var secretKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"private",
	"signature",
	"license",
}

// MaskSecret replaces all but the last visible characters of value with
// '*'. Values no longer than visible are masked entirely.
func MaskSecret(value string, visible int) string {
	if visible <= 0 {
		visible = defaultVisibleChars
	}
	runes := []rune(value)
	if len(runes) <= visible {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-visible) + string(runes[len(runes)-visible:])
}

// IsSecretKey reports whether a field name looks like it holds a secret.
func IsSecretKey(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range secretKeyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// MaskCredentials returns a copy of creds with every string value under a
// secret-looking key masked. Nested maps are masked recursively; other
// values are copied unchanged.
func MaskCredentials(creds map[string]any) map[string]any {
	if creds == nil {
		return nil
	}
	out := make(map[string]any, len(creds))
	for k, v := range creds {
		switch val := v.(type) {
		case map[string]any:
			out[k] = MaskCredentials(val)
		case string:
			if IsSecretKey(k) {
				out[k] = MaskSecret(val, defaultVisibleChars)
			} else {
				out[k] = val
			}
		default:
			out[k] = val
		}
	}
	return out
}
