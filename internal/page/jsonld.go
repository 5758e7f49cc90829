package page

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/matsen/linkharvest/internal/doi"
)

// ArticleTypes are the schema.org types whose headline is a work title.
var ArticleTypes = map[string]bool{
	"scholarlyarticle":        true,
	"article":                 true,
	"newsarticle":             true,
	"blogposting":             true,
	"medicalscholarlyarticle": true,
	"report":                  true,
	"techarticle":             true,
	"chapter":                 true,
	"book":                    true,
	"thesis":                  true,
}

// StructuredData returns every JSON-LD object on the page, with @graph
// containers and top-level arrays flattened. Malformed blocks are skipped.
func (p *Page) StructuredData() []map[string]any {
	if p.parsed {
		return p.jsonld
	}
	p.parsed = true

	p.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		p.jsonld = append(p.jsonld, flatten(v)...)
	})
	return p.jsonld
}

// StructuredHeadline returns the headline (or name) of the first
// article-typed JSON-LD object.
func (p *Page) StructuredHeadline() string {
	for _, obj := range p.StructuredData() {
		if !isArticle(obj) {
			continue
		}
		for _, key := range []string{"headline", "name", "alternativeHeadline"} {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// StructuredDOI returns a DOI declared by an article-typed JSON-LD object
// through doi, identifier, sameAs, @id or url.
func (p *Page) StructuredDOI() string {
	for _, obj := range p.StructuredData() {
		if !isArticle(obj) {
			continue
		}
		for _, key := range []string{"doi", "identifier", "sameAs", "@id", "url"} {
			if d := findDOI(obj[key]); d != "" {
				return d
			}
		}
	}
	return ""
}

func flatten(v any) []map[string]any {
	var out []map[string]any
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = append(out, flatten(item)...)
		}
	case map[string]any:
		if graph, ok := t["@graph"]; ok {
			out = append(out, flatten(graph)...)
		}
		if _, ok := t["@type"]; ok {
			out = append(out, t)
		}
	}
	return out
}

func isArticle(obj map[string]any) bool {
	switch t := obj["@type"].(type) {
	case string:
		return ArticleTypes[strings.ToLower(t)]
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && ArticleTypes[strings.ToLower(s)] {
				return true
			}
		}
	}
	return false
}

// findDOI digs a DOI out of a JSON-LD value: a string, a PropertyValue
// object, or a list of either.
func findDOI(v any) string {
	switch t := v.(type) {
	case string:
		return doi.Find(t)
	case []any:
		for _, item := range t {
			if d := findDOI(item); d != "" {
				return d
			}
		}
	case map[string]any:
		if id, ok := t["propertyID"].(string); ok && !strings.EqualFold(id, "doi") {
			return ""
		}
		for _, key := range []string{"value", "@id", "url"} {
			if d := findDOI(t[key]); d != "" {
				return d
			}
		}
	}
	return ""
}
