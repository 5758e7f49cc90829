package canon

import (
	"encoding/json"
	"regexp"
	"sort"
)

// Origin says where in a message a link was found.
type Origin string

const (
	OriginText       Origin = "text"
	OriginAttachment Origin = "attachment"
	OriginBlock      Origin = "block"
	OriginFile       Origin = "file"
)

// RawLink is an unprocessed URL and the place it came from.
type RawLink struct {
	URL    string `json:"url"`
	Origin Origin `json:"origin"`
}

// urlPattern matches links in chat text. Markup like <url|label> is matched
// up to the closing bracket and unwrapped by Canonicalize.
var urlPattern = regexp.MustCompile(`https?://[^\s<>]+`)

// Extract collects links from message text, attachment URL fields and
// every "url" key nested anywhere in the block structure. Exact duplicates
// are dropped; order is preserved.
func Extract(text string, attachmentURLs []string, blocks json.RawMessage) []RawLink {
	var links []RawLink
	seen := make(map[string]bool)
	add := func(u string, origin Origin) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		links = append(links, RawLink{URL: u, Origin: origin})
	}

	for _, u := range urlPattern.FindAllString(text, -1) {
		add(u, OriginText)
	}
	for _, u := range attachmentURLs {
		add(u, OriginAttachment)
	}
	if len(blocks) > 0 {
		var tree any
		if err := json.Unmarshal(blocks, &tree); err == nil {
			walkURLs(tree, func(u string) { add(u, OriginBlock) })
		}
	}
	return links
}

func walkURLs(node any, visit func(string)) {
	switch v := node.(type) {
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			visit(u)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkURLs(v[k], visit)
		}
	case []any:
		for _, child := range v {
			walkURLs(child, visit)
		}
	}
}
