package mlconfig

import (
	"fmt"
	"strings"
)

const maxDomainLength = 253

// NormalizeAllowlistDomain validates and normalizes one allowlists.yaml
// entry: lowercase, strip a trailing dot, reject anything carrying a
// scheme, path, port, or wildcard, reject domains over 253 chars and
// labels that aren't valid RFC 1035 labels (1-63 chars).
func NormalizeAllowlistDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" {
		return "", fmt.Errorf("empty domain")
	}
	if strings.Contains(d, "://") {
		return "", fmt.Errorf("%q: must not carry a scheme", raw)
	}
	if strings.Contains(d, "/") {
		return "", fmt.Errorf("%q: must not carry a path", raw)
	}
	if strings.Contains(d, ":") {
		return "", fmt.Errorf("%q: must not carry a port", raw)
	}
	if strings.Contains(d, "*") {
		return "", fmt.Errorf("%q: wildcards are not allowed", raw)
	}

	d = strings.TrimSuffix(d, ".")
	if len(d) > maxDomainLength {
		return "", fmt.Errorf("%q: exceeds max domain length %d", raw, maxDomainLength)
	}

	labels := strings.Split(d, ".")
	for _, label := range labels {
		if !isValidRFC1035Label(label) {
			return "", fmt.Errorf("%q: invalid label %q", raw, label)
		}
	}

	return d, nil
}

// isValidRFC1035Label reports whether label is 1-63 chars, starts and
// ends with an alphanumeric, and contains only alphanumerics/hyphens.
func isValidRFC1035Label(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if !isAlphanumeric(label[0]) || !isAlphanumeric(label[len(label)-1]) {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if !isAlphanumeric(c) && c != '-' {
			return false
		}
	}
	return true
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
