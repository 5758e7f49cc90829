// Package page parses fetched HTML into the pieces the resolver reads:
// meta tags, structured data, title and heading text, the canonical link
// and any declared DOI.
package page

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"github.com/matsen/linkharvest/internal/doi"
)

// maxTextScan bounds how much body text is searched for a DOI.
const maxTextScan = 200_000

// DOIMetaKeys are meta names that carry the page's own DOI.
var DOIMetaKeys = []string{
	"citation_doi", "prism.doi", "prism:doi", "dc.identifier", "dc.identifier.doi",
	"dcterms.identifier", "bepress_citation_doi", "doi", "og:doi",
}

// Page is a parsed HTML document.
type Page struct {
	URL  *url.URL
	doc  *goquery.Document
	html []byte // UTF-8 decoded source
	meta map[string]string

	jsonld []map[string]any
	parsed bool
}

// Parse decodes body using the charset from contentType (or the document's
// own declaration) and builds a Page. pageURL is the URL the body came from.
func Parse(body []byte, contentType, pageURL string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}

	decoded := body
	if r, err := charset.NewReader(bytes.NewReader(body), contentType); err == nil {
		if b, err := io.ReadAll(r); err == nil {
			decoded = b
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	p := &Page{URL: u, doc: doc, html: decoded, meta: make(map[string]string)}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		for _, attr := range []string{"name", "property", "itemprop"} {
			key := strings.ToLower(strings.TrimSpace(s.AttrOr(attr, "")))
			if key == "" {
				continue
			}
			if _, ok := p.meta[key]; !ok {
				p.meta[key] = content
			}
		}
	})
	return p, nil
}

// Meta returns the first non-empty content among the given meta names or
// properties, matched case-insensitively.
func (p *Page) Meta(keys ...string) string {
	for _, k := range keys {
		if v := p.meta[strings.ToLower(k)]; v != "" {
			return v
		}
	}
	return ""
}

// Canonical returns the absolute rel=canonical URL, or "".
func (p *Page) Canonical() string {
	href := ""
	p.doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "canonical" {
				href = strings.TrimSpace(s.AttrOr("href", ""))
				return false
			}
		}
		return true
	})
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.URL.ResolveReference(ref).String()
}

// TitleTag returns the document <title> text.
func (p *Page) TitleTag() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

// FirstH1 returns the text of the first <h1>.
func (p *Page) FirstH1() string {
	return strings.TrimSpace(p.doc.Find("h1").First().Text())
}

// Text returns the visible body text.
func (p *Page) Text() string {
	body := p.doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return body.Text()
}

// ReadabilityTitle returns the title readability extracts from the article
// body, or "" if the page is not article-shaped.
func (p *Page) ReadabilityTitle() string {
	article, err := readability.FromReader(bytes.NewReader(p.html), p.URL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.Title)
}

// DeclaredDOI returns the DOI the page declares about itself: meta tags
// first, then structured data, then the first DOI in the body text.
func (p *Page) DeclaredDOI() string {
	for _, k := range DOIMetaKeys {
		if d := doi.Find(p.meta[k]); d != "" {
			return d
		}
	}
	if d := p.StructuredDOI(); d != "" {
		return d
	}
	text := p.Text()
	if len(text) > maxTextScan {
		text = text[:maxTextScan]
	}
	return doi.Find(text)
}
