// Package urlnorm implements the canonical URL normalization rules used
// for exact-duplicate detection and cache-key matching.
package urlnorm

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

var ErrUnsupportedScheme = errors.New("urlnorm: unsupported scheme")
var ErrEmptyHost = errors.New("urlnorm: empty host")

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
}

// trackingParams is the exhaustive set of query keys stripped during
// normalization, in addition to any key with a "utm_" prefix or one of
// the trackingPrefixes below.
var trackingParams = map[string]bool{
	"gclid":       true,
	"gclsrc":      true,
	"fbclid":      true,
	"msclkid":     true,
	"mc_cid":      true,
	"mc_eid":      true,
	"ref":         true,
	"ref_src":     true,
	"igshid":      true,
	"_ga":         true,
	"_gl":         true,
	"_hsenc":      true,
	"_hsmi":       true,
	"yclid":       true,
	"dclid":       true,
	"twclid":      true,
	"ttclid":      true,
	"vero_id":     true,
	"spm":         true,
	"trk":         true,
	"trkCampaign": true,
	"si":          true,
	"source":      true,
	"src":         true,
	"campaign":    true,
	"tracking":    true,
	"track":       true,
	"click_id":    true,
	"clickid":     true,
	"sessionid":   true,
	"session_id":  true,
	"s_kwcid":     true,
	"zanpid":      true,
}

// trackingPrefixes are lowercased key prefixes stripped in addition to
// the exact-match set and the "utm_" prefix.
var trackingPrefixes = []string{"utm_", "affiliate", "partner", "li_fat_id"}

// Normalize reduces rawURL to its canonical form. Scheme and host are
// lowercased; the path case is preserved. Default ports are dropped,
// trailing slashes (except the root path) are stripped, the fragment is
// dropped, and tracking query parameters are removed before the
// remaining parameters are sorted by (lowercased key, value).
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	scheme := strings.ToLower(u.Scheme)
	if !allowedSchemes[scheme] {
		return "", ErrUnsupportedScheme
	}
	u.Scheme = scheme

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrEmptyHost
	}

	port := u.Port()
	if port != "" && port != defaultPorts[scheme] {
		host = host + ":" + port
	}
	if u.User != nil {
		u.Host = u.User.String() + "@" + host
	} else {
		u.Host = host
	}

	path := u.Path
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if path == "" {
		path = "/"
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	u.Path = path

	u.RawQuery = normalizeQuery(u.RawQuery)
	u.Fragment = ""

	return u.String(), nil
}

func normalizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	type kv struct{ key, value string }
	kept := make([]kv, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		var key, value string
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key = pair[:idx]
			value = pair[idx+1:]
		} else {
			key = pair
		}
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			decodedKey = key
		}
		lowerKey := strings.ToLower(decodedKey)
		if trackingParams[lowerKey] || hasTrackingPrefix(lowerKey) {
			continue
		}
		kept = append(kept, kv{key: key, value: value})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		ki := strings.ToLower(kept[i].key)
		kj := strings.ToLower(kept[j].key)
		if ki != kj {
			return ki < kj
		}
		return kept[i].value < kept[j].value
	})

	parts := make([]string, 0, len(kept))
	for _, p := range kept {
		if p.value == "" && !strings.Contains(rawQuery, p.key+"=") {
			parts = append(parts, p.key)
			continue
		}
		parts = append(parts, p.key+"="+p.value)
	}
	return strings.Join(parts, "&")
}

func hasTrackingPrefix(lowerKey string) bool {
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(lowerKey, prefix) {
			return true
		}
	}
	return false
}

// AreEquivalent reports whether two raw URLs normalize to the same
// canonical form.
func AreEquivalent(a, b string) (bool, error) {
	na, err := Normalize(a)
	if err != nil {
		return false, err
	}
	nb, err := Normalize(b)
	if err != nil {
		return false, err
	}
	return na == nb, nil
}
