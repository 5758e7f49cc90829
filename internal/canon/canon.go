// Package canon normalizes shared URLs into a comparable canonical form,
// pulls raw links out of chat messages, and decides whether a URL is worth
// resolving.
package canon

import (
	"net"
	"net/url"
	"sort"
	"strings"
)

// trailingJunk is punctuation that copy-paste leaves on the end of a URL.
const trailingJunk = ".,]}>\"'`;“”‘’"

// TrackingParams are query keys that carry no identity and are removed.
// Any key starting with "utm_" is removed as well.
var TrackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "utm_name": true, "utm_cid": true,
	"utm_reader": true, "utm_viz_id": true, "utm_pubreferrer": true,
	"utm_swu": true,
	"ga_source": true, "ga_medium": true, "ga_campaign": true, "ga_content": true,
	"fbclid": true, "gclid": true, "dclid": true, "msclkid": true, "yclid": true,
	"mc_cid": true, "mc_eid": true, "igshid": true, "mkt_tok": true,
	"_hsenc": true, "_hsmi": true,
	"ref": true, "ref_src": true, "referrer": true,
}

// Canonicalize normalizes a raw link. It returns false when the input has
// no scheme or no host after cleanup.
func Canonicalize(raw string) (string, bool) {
	s := strings.TrimSpace(unescapeEntities(raw))
	s = unwrapMarkup(s)
	if i := strings.Index(s, "|"); i >= 0 {
		s = s[:i]
	}

	out, ok := normalize(trimJunk(strings.TrimSpace(s)))
	// Dropping a fragment or slash can expose new trailing punctuation.
	for i := 0; ok && i < 3; i++ {
		trimmed := trimJunk(out)
		if trimmed == out {
			break
		}
		out, ok = normalize(trimmed)
	}
	return out, ok
}

func normalize(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u.Scheme, u.Host)
	if u.Host == "" {
		return "", false
	}

	if strings.Trim(u.Path, "/") == "" {
		u.Path, u.RawPath = "/", ""
	} else {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
	}

	u.RawQuery = canonicalQuery(u.RawQuery)
	u.ForceQuery = false
	u.Fragment, u.RawFragment = "", ""

	return u.String(), true
}

// Host returns the lowercased host name of a URL without port, or "".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// entityReplacer undoes the escaping chat platforms and HTML attributes
// apply to links. A full HTML unescape would also rewrite legacy entities
// without semicolons, turning a "&section=" query pair into "§ion=".
var entityReplacer = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&#x27;", "'", "&#x2F;", "/",
)

func unescapeEntities(s string) string {
	for i := 0; i < 5 && strings.Contains(s, "&"); i++ {
		next := entityReplacer.Replace(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// unwrapMarkup strips chat link markup: <url> and <url|label>.
func unwrapMarkup(s string) string {
	if !strings.HasPrefix(s, "<") {
		return s
	}
	s = s[1:]
	if i := strings.Index(s, ">"); i >= 0 {
		s = s[:i]
	}
	return s
}

// trimJunk strips trailing punctuation. A closing paren is removed only when
// it has no opening partner in the URL, so /wiki/Foo_(bar) survives.
func trimJunk(s string) string {
	for {
		before := s
		s = strings.TrimRight(s, trailingJunk)
		if strings.HasSuffix(s, ")") && strings.Count(s, "(") < strings.Count(s, ")") {
			s = strings.TrimSuffix(s, ")")
		}
		if s == before {
			return s
		}
	}
}

func canonicalHost(scheme, hostport string) string {
	hostport = strings.ToLower(hostport)
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return strings.TrimSuffix(hostport, ":")
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") || port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return hostport
}

// canonicalQuery drops tracking keys and sorts the remaining pairs by key.
// Pairs are kept in their raw encoding so a second pass is a no-op.
func canonicalQuery(raw string) string {
	if raw == "" {
		return ""
	}

	type pair struct{ key, raw string }
	var pairs []pair
	for _, p := range strings.Split(raw, "&") {
		if p == "" {
			continue
		}
		k, _, _ := strings.Cut(p, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		if isTracking(key) {
			continue
		}
		pairs = append(pairs, pair{key: key, raw: p})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.raw
	}
	return strings.Join(parts, "&")
}

func isTracking(key string) bool {
	key = strings.ToLower(key)
	return TrackingParams[key] || strings.HasPrefix(key, "utm_")
}
