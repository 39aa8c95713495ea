package analysis

import (
	"net/url"
	"regexp"
	"strings"
)

// noisyParams are tracking parameters stripped during normalization so the
// same page does not split into several locations across traffic sources.
var noisyParams = []string{
	"referer", "utm_source", "utm_medium", "utm_campaign",
	"utm_content", "utm_term", "yclid", "_openstat", "from", "ref",
}

var fileExtRe = regexp.MustCompile(`(?i)\.(php|html|htm|aspx|jsp)$`)

// NormalizeURL produces the canonical location string used for issue
// deduplication and cross-version diffing: lower-cased scheme and host,
// tracking parameters removed, trailing slash trimmed. Malformed input
// normalizes to "" and is excluded from detection. The function is
// idempotent: NormalizeURL(NormalizeURL(u)) == NormalizeURL(u).
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Host)
	path := strings.TrimRight(parsed.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}

	query := parsed.Query()
	for _, noisy := range noisyParams {
		query.Del(noisy)
	}
	cleanQuery := query.Encode()

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" && host != "" {
		scheme = "https"
	}

	if host != "" || scheme != "" {
		rebuilt := url.URL{Scheme: scheme, Host: host, Path: path, RawQuery: cleanQuery}
		return rebuilt.String()
	}
	if cleanQuery != "" {
		return path + "?" + cleanQuery
	}
	return path
}

// NormalizeForDiscovery collapses a URL to the coarse path form used only
// for funnel discovery: path-only, /base/ and /bachelor/ treated as one
// section, file extensions removed, numeric-ID/date-like/short-code
// segments dropped, depth capped at three segments. Idempotent, and ""
// on malformed input like NormalizeURL.
func NormalizeForDiscovery(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	path := strings.TrimRight(parsed.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}
	path = strings.ReplaceAll(path, "/base/", "/bachelor/")
	path = fileExtRe.ReplaceAllString(path, "")

	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		if looksLikeIDSegment(part) {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/") + "/"
}

// looksLikeIDSegment filters path segments that identify one object rather
// than one page group: long numeric IDs, year-like numbers, and very short
// alphanumeric codes.
func looksLikeIDSegment(part string) bool {
	if isDigits(part) {
		if len(part) > 3 {
			return true
		}
		if strings.HasPrefix(part, "20") || strings.HasPrefix(part, "19") {
			return true
		}
	}
	if len(part) <= 2 && isAlnum(part) {
		return true
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// equivalentPath maps the /base/ section onto /bachelor/ so the two site
// layouts compare as the same path during funnel matching.
func equivalentPath(path string) string {
	return strings.ReplaceAll(path, "/base/", "/bachelor/")
}

// extractPath reduces a URL to its bare path for prefix comparison:
// normalized, scheme and host dropped, query cut, trailing slash trimmed.
// The site root keeps its "/" so a root-page step target stays matchable.
func extractPath(raw string) string {
	normalized := NormalizeURL(raw)
	if normalized == "" {
		return ""
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(parsed.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}
	return path
}
