// Package canon normalizes heterogeneous candidate and job records into the
// canonical domain schema. It is the only package that deals with free-form
// input: everything downstream sees validated, case-folded, deduplicated
// fields. Records come in as decoded JSON objects and support both English
// and French field names and values.
package canon

import (
	"strings"
	"unicode"
)

// ─── Raw Field Access ───────────────────────────────────────────────────────

// firstKey returns the first present key's value.
func firstKey(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// stringField returns the first non-empty string under any of the keys.
func stringField(raw map[string]any, keys ...string) string {
	v, ok := firstKey(raw, keys...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// boolField reads a boolean, tolerating "true"/"oui"/1 spellings.
func boolField(raw map[string]any, keys ...string) bool {
	v, ok := firstKey(raw, keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "yes" || s == "oui" || s == "1"
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

// numberField reads a numeric field, extracting the first integer from
// strings. The second return reports presence of a usable value.
func numberField(raw map[string]any, keys ...string) (float64, bool) {
	v, ok := firstKey(raw, keys...)
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		if n, ok := leadingInt(t); ok {
			return float64(n), true
		}
	}
	return 0, false
}

// leadingInt extracts the first unsigned integer appearing in s.
func leadingInt(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return atoi(s[start:i]), true
		}
	}
	if start >= 0 {
		return atoi(s[start:]), true
	}
	return 0, false
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// ─── Token Sets ─────────────────────────────────────────────────────────────

// tokensField normalizes a skill-like field: accepts a single string (split
// on "," and ";") or a list; case-folds, trims, drops tokens shorter than
// two runes, dedupes preserving first occurrence.
func tokensField(raw map[string]any, keys ...string) []string {
	v, ok := firstKey(raw, keys...)
	if !ok {
		return nil
	}
	return normalizeTokens(v)
}

func normalizeTokens(v any) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = splitList(t)
	case []string:
		parts = t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		tok := strings.ToLower(strings.TrimSpace(p))
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
}

// ─── Display Forms ──────────────────────────────────────────────────────────

// Locality trims, collapses inner whitespace, and capitalizes the first
// letter of each word ("  saint  denis " → "Saint Denis").
func Locality(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// TitleToken renders a case-folded token for display ("python" → "Python").
func TitleToken(tok string) string { return capitalize(tok) }

func capitalize(w string) string {
	r := []rune(w)
	if len(r) == 0 {
		return w
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
