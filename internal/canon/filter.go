package canon

import (
	"net/url"
	"path"
	"strings"

	"github.com/matsen/linkharvest/internal/doi"
)

// Filter decides whether a canonical URL is worth sending to the resolver.
// The lists are plain fields so callers and tests can substitute their own.
type Filter struct {
	// RejectHosts are social, media and chat hosts; subdomains match too.
	RejectHosts []string

	// MediaExtensions are image, video and audio file extensions.
	MediaExtensions []string

	// ScholarlyHosts are publishers, preprint servers and indexes.
	ScholarlyHosts []string

	// ArticleSegments are path segments that mark an article page.
	ArticleSegments []string
}

// DefaultFilter returns the built-in filter.
func DefaultFilter() *Filter {
	return &Filter{
		RejectHosts: []string{
			"twitter.com", "x.com", "t.co", "youtube.com", "youtu.be",
			"instagram.com", "facebook.com", "fb.com", "tiktok.com",
			"linkedin.com", "lnkd.in", "reddit.com", "redd.it", "bsky.app",
			"mastodon.social", "threads.net", "vimeo.com", "dailymotion.com",
			"twitch.tv", "giphy.com", "imgur.com", "tenor.com", "spotify.com",
			"soundcloud.com", "music.apple.com", "podcasts.apple.com",
			"slack.com", "slack-edge.com", "zoom.us", "meet.google.com",
		},
		MediaExtensions: []string{
			".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".tif",
			".tiff", ".heic", ".ico", ".avif",
			".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v", ".wmv", ".flv",
			".mpeg", ".mpg",
			".mp3", ".wav", ".ogg", ".flac", ".aac", ".m4a", ".wma", ".opus",
			".aiff",
		},
		ScholarlyHosts: []string{
			"doi.org", "arxiv.org", "biorxiv.org", "medrxiv.org", "chemrxiv.org",
			"nature.com", "science.org", "sciencemag.org", "cell.com",
			"sciencedirect.com", "elsevier.com", "springer.com", "springeropen.com",
			"biomedcentral.com", "wiley.com", "tandfonline.com", "sagepub.com",
			"pnas.org", "plos.org", "frontiersin.org", "mdpi.com", "oup.com",
			"ncbi.nlm.nih.gov", "europepmc.org", "jstor.org", "ieee.org",
			"acm.org", "acs.org", "rsc.org", "iop.org", "aps.org", "aip.org",
			"annualreviews.org", "cambridge.org", "elifesciences.org",
			"embopress.org", "cshlp.org", "nejm.org", "thelancet.com", "bmj.com",
			"jamanetwork.com", "ssrn.com", "researchsquare.com", "openreview.net",
			"aclanthology.org", "semanticscholar.org", "osf.io", "zenodo.org",
			"hal.science", "peerj.com", "royalsocietypublishing.org",
			"jmlr.org", "mlr.press", "neurips.cc", "karger.com", "asm.org",
			"genetics.org", "jneurosci.org", "life-science-alliance.org",
			"journals.uchicago.edu", "aacrjournals.org", "ashpublications.org",
		},
		ArticleSegments: []string{
			"/doi/", "/article/", "/articles/", "/abs/", "/fulltext/", "/content/",
			"/paper/", "/papers/", "/pdf/",
		},
	}
}

// IsScholarly reports whether u likely points at a scholarly article.
// Rejections win: a social host or media extension is never scholarly.
func (f *Filter) IsScholarly(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	p := strings.ToLower(u.Path)

	if hostIn(host, f.RejectHosts) || f.hasMediaExtension(p) {
		return false
	}

	if doi.FromURL(rawURL) != "" {
		return true
	}
	if hostIn(host, f.ScholarlyHosts) {
		return true
	}
	if strings.HasSuffix(p, ".pdf") {
		return true
	}
	padded := p + "/"
	for _, seg := range f.ArticleSegments {
		if strings.Contains(padded, seg) {
			return true
		}
	}
	return false
}

func (f *Filter) hasMediaExtension(p string) bool {
	ext := path.Ext(p)
	if ext == "" {
		return false
	}
	for _, m := range f.MediaExtensions {
		if ext == m {
			return true
		}
	}
	return false
}

// IsMediaType reports whether a content type is image, video or audio.
func IsMediaType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "audio/")
}

// hostIn reports whether host equals one of the domains or is a subdomain.
func hostIn(host string, domains []string) bool {
	host = strings.TrimPrefix(host, "www.")
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// HostIn is the exported form of the domain-suffix match.
func HostIn(host string, domains ...string) bool {
	return hostIn(strings.ToLower(host), domains)
}
