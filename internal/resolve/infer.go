package resolve

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/matsen/linkharvest/internal/heuristics"
)

// titleQueryKeys are query parameters that sometimes carry the title.
var titleQueryKeys = []string{"title", "headline", "paper", "article", "name"}

const minLeafLen = 4

// InferTitle guesses a title from the URL alone: a title-like query value,
// else the last path segment, else the host.
func InferTitle(u *url.URL) string {
	q := u.Query()
	for _, k := range titleQueryKeys {
		if v := heuristics.CleanTitle(q.Get(k)); v != "" {
			return v
		}
	}

	if words := LeafWords(u); utf8.RuneCountInString(words) >= minLeafLen {
		return cases.Title(language.English).String(words)
	}
	return Host(u)
}

// LeafWords returns the last path segment with its extension dropped and
// dashes and underscores turned into spaces.
func LeafWords(u *url.URL) string {
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return ""
	}
	leaf := path.Base(p)
	if dec, err := url.PathUnescape(leaf); err == nil {
		leaf = dec
	}
	if ext := path.Ext(leaf); ext != "" && len(ext) <= 6 {
		leaf = strings.TrimSuffix(leaf, ext)
	}
	leaf = strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(leaf)
	return heuristics.CollapseSpace(leaf)
}

// Host returns the host without a leading www.
func Host(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Placeholder is the title used when nothing usable was found.
func Placeholder(host string) string {
	if host == "" {
		host = "unknown host"
	}
	return "Untitled (" + host + ")"
}

// searchQuery builds the free-text query: the path leaf when it has at
// least two words, else host and path.
func searchQuery(u *url.URL) string {
	if words := LeafWords(u); len(strings.Fields(words)) >= 2 {
		return words
	}
	p := strings.NewReplacer("/", " ", "-", " ", "_", " ").Replace(u.Path)
	return heuristics.CollapseSpace(Host(u) + " " + p)
}
