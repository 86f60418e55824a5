package appointment

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases an address, returning false when it
// does not look like an email.
func NormalizeEmail(raw string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" || !emailPattern.MatchString(v) {
		return "", false
	}
	return v, true
}

// NormalizePhone reduces a phone number to an E.164-like form. Ten bare
// digits are treated as a North American number.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	v := b.String()
	if v == "" {
		return "", false
	}

	if strings.HasPrefix(v, "+") {
		digits := strings.ReplaceAll(v[1:], "+", "")
		v = "+" + digits
		if len(v) >= 8 && len(v) <= 16 {
			return v, true
		}
		return "", false
	}

	digits := strings.ReplaceAll(v, "+", "")
	switch {
	case len(digits) == 10:
		return "+1" + digits, true
	case len(digits) > 10 && len(digits) <= 15:
		return "+" + digits, true
	}
	return "", false
}
