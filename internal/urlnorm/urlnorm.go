// Package urlnorm implements the URL normalization contract of spec §6:
// the single place the Planner's visited set and the Fetcher agree on what
// "the same URL" means, and the place registrable-domain computation lives
// for cross-host preference and domain counting.
//
// Grounded on the teacher's internal/aggregate.normalizeURL and
// internal/select.canonicalizeURL, generalized into the full rule set the
// spec names (default-port stripping, repeated-slash collapse, percent-
// decoding of unreserved characters) and extended with registrable-domain
// lookup via golang.org/x/net/publicsuffix, a sub-package of the teacher's
// existing golang.org/x/net dependency.
package urlnorm

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var errUnsupportedScheme = errors.New("urlnorm: unsupported scheme")

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// Normalize applies spec §6's rules and returns the canonical absolute URL
// string used as the visited-set key and as the URL actually fetched.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("urlnorm: relative URL not allowed")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", errUnsupportedScheme
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(stripDefaultPort(scheme, u.Host))
	u.Fragment = ""
	u.RawFragment = ""

	// Slash collapsing and unreserved decoding work on the escaped path, so
	// reserved escapes such as %2F are kept as they are.
	escaped := u.EscapedPath()
	if escaped == "" {
		// Bare host URL: preserve as provided (no forced trailing slash).
	} else {
		escaped = repeatedSlashes.ReplaceAllString(escaped, "/")
	}
	if decoded, ok := decodeUnreserved(escaped); ok {
		escaped = decoded
	}
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return "", err
	}
	u.Path, u.RawPath = path, escaped

	// Query parameters are retained verbatim, including order: u.RawQuery
	// is left untouched, matching spec §6 ("retain order ... compare
	// verbatim").
	return u.String(), nil
}

func stripDefaultPort(scheme, host string) string {
	if scheme == "http" && strings.HasSuffix(host, ":80") {
		return strings.TrimSuffix(host, ":80")
	}
	if scheme == "https" && strings.HasSuffix(host, ":443") {
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

// decodeUnreserved percent-decodes RFC 3986 unreserved characters
// (letters, digits, '-', '.', '_', '~') in a path, leaving any other
// percent-escape (including control characters, which stay escaped) as is.
func decodeUnreserved(path string) (string, bool) {
	if !strings.Contains(path, "%") {
		return path, false
	}
	var b strings.Builder
	b.Grow(len(path))
	changed := false
	for i := 0; i < len(path); i++ {
		if path[i] == '%' && i+2 < len(path) && isHex(path[i+1]) && isHex(path[i+2]) {
			c := hexVal(path[i+1])*16 + hexVal(path[i+2])
			if isUnreserved(c) {
				b.WriteByte(c)
				i += 2
				changed = true
				continue
			}
		}
		b.WriteByte(path[i])
	}
	if !changed {
		return path, false
	}
	return b.String(), true
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// IsHTTPScheme reports whether u uses http or https.
func IsHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

// Resolve resolves href against base and normalizes the result. It returns
// ok=false for links that spec §4.2 says to drop: fragment-only links and
// non-http(s) schemes (mailto:, javascript:, data:, tel:).
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if !IsHTTPScheme(resolved) {
		return "", false
	}
	norm, err := Normalize(resolved.String())
	if err != nil {
		return "", false
	}
	return norm, true
}

// RegistrableDomain returns the eTLD+1 of host, falling back to host
// itself when the public suffix list has no opinion (spec §9: "falling
// back to host if unavailable").
func RegistrableDomain(host string) string {
	host = strings.ToLower(host)
	if h, _, err := splitHostPort(host); err == nil {
		host = h
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || domain == "" {
		return host
	}
	return domain
}

func splitHostPort(host string) (string, string, error) {
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i], host[i+1:], nil
	}
	return host, "", errors.New("no port")
}
