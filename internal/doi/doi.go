// Package doi finds, cleans and normalizes Digital Object Identifiers.
package doi

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Pattern matches a DOI: 10.XXXX/... where XXXX is 4 to 9 digits.
var Pattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// biorxivVersion matches the trailing version marker bioRxiv and medRxiv
// append to their DOIs in page URLs (v1, v2, ...).
var biorxivVersion = regexp.MustCompile(`v\d+$`)

// urlSuffixes are publisher path tails that follow a DOI in article URLs.
var urlSuffixes = []string{
	".full.pdf+html", ".full.pdf", ".full-text", ".full", ".abstract",
	".supplementary-material", ".article-info", ".article-metrics", ".pdf",
	"/full", "/abstract", "/pdf", "/epdf", "/html", "/meta", "/references",
}

// prefixes are stripped by Normalize, checked case-insensitively.
var prefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"dx.doi.org/",
	"doi:",
	"doi ",
}

// Find returns the first valid DOI in text, or "".
func Find(text string) string {
	for _, match := range Pattern.FindAllString(text, -1) {
		match = trimTrailing(match)
		if Valid(match) {
			return Normalize(match)
		}
	}
	return ""
}

// FromURL extracts a DOI embedded in a URL's path or query, with publisher
// suffixes and bioRxiv version markers removed.
func FromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return clean(Pattern.FindString(raw))
	}
	if d := clean(Pattern.FindString(u.Path)); d != "" {
		return d
	}
	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range query[k] {
			if d := clean(Pattern.FindString(v)); d != "" {
				return d
			}
		}
	}
	return ""
}

func clean(match string) string {
	match = strings.TrimRight(match, "/")
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(match)
		for _, suffix := range urlSuffixes {
			if strings.HasSuffix(lower, suffix) {
				match = match[:len(match)-len(suffix)]
				changed = true
				break
			}
		}
	}
	match = trimTrailing(match)
	if strings.HasPrefix(match, "10.1101/") {
		match = biorxivVersion.ReplaceAllString(match, "")
	}
	if !Valid(match) {
		return ""
	}
	return Normalize(match)
}

// Normalize strips resolver prefixes and lowercases a DOI. DOIs are
// case-insensitive, so the lowercase form is used for comparison and keys.
func Normalize(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, prefix) {
			lower = strings.TrimSpace(lower[len(prefix):])
			break
		}
	}
	return lower
}

// Valid performs basic validation on a DOI.
func Valid(doi string) bool {
	if len(doi) < 10 {
		return false
	}
	if !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	if slashIdx == -1 || slashIdx >= len(doi)-1 {
		return false
	}
	return true
}

// IsDOIHost reports whether host is a DOI resolver.
func IsDOIHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	return host == "doi.org" || host == "dx.doi.org"
}

func trimTrailing(s string) string {
	s = strings.TrimRight(s, ".,;:'\"")
	// Keep a closing paren only when the DOI opened one, as in
	// 10.1016/S0092-8674(23)00001-1.
	for strings.HasSuffix(s, ")") && strings.Count(s, "(") < strings.Count(s, ")") {
		s = strings.TrimSuffix(s, ")")
		s = strings.TrimRight(s, ".,;:'\"")
	}
	return s
}
