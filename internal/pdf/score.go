package pdf

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/matsen/linkharvest/internal/heuristics"
)

const (
	maxTitleLines = 40
	maxSpanLines  = 3
	minSpanLen    = 10
	maxSpanLen    = 200

	lengthCap    = 120
	densityBonus = 40.0
	authorBonus  = 40.0
	linePenalty  = 10.0
	vocabPenalty = 30.0

	// upperShare is the share of upper-case letters at which a span reads
	// as a banner rather than a title.
	upperShare = 0.7
)

type line struct {
	text string
	raw  int // index into the unfiltered page lines
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// firstPageTitle scores spans of the first page's title zone and returns
// the best one, refined, or the first plausible line.
func (e *Extractor) firstPageTitle(page string) string {
	var raw []string
	for _, l := range strings.Split(page, "\n") {
		if l = heuristics.CollapseSpace(l); l != "" {
			raw = append(raw, l)
		}
	}

	var kept []line
	for i, l := range raw {
		if len(kept) > 0 && e.Heuristics.IsAbstractHeading(l) {
			break
		}
		if e.Heuristics.IsBoilerplateLine(l) {
			continue
		}
		kept = append(kept, line{text: l, raw: i})
		if len(kept) == maxTitleLines {
			break
		}
	}

	best, bestScore := "", 0.0
	for i := range kept {
		for n := 1; n <= maxSpanLines && i+n <= len(kept); n++ {
			span := kept[i : i+n]
			text := joinSpan(span)
			length := utf8.RuneCountInString(text)
			if length < minSpanLen || length > maxSpanLen || mostlyUpper(text) || e.Heuristics.LooksNumeric(text) {
				continue
			}
			score := float64(min(length, lengthCap)) + densityBonus*alphaDensity(text) - linePenalty*float64(n-1)
			if next := span[n-1].raw + 1; next < len(raw) && heuristics.LooksLikeAuthorList(raw[next]) {
				score += authorBonus
			}
			if score > bestScore {
				best, bestScore = text, score
			}
		}
	}

	if best != "" {
		return e.refine(best)
	}

	for _, l := range kept {
		if !e.Heuristics.LooksNumeric(l.text) {
			return l.text
		}
	}
	return ""
}

// refine splits a span into sentences and keeps the best-scoring one, so a
// title that ran into a notice or a first sentence is cut back.
func (e *Extractor) refine(span string) string {
	best, bestScore := span, -1.0
	found := false
	for _, frag := range splitSentences(span) {
		length := utf8.RuneCountInString(frag)
		if length < minSpanLen || allUpper(frag) {
			continue
		}
		score := float64(min(length, lengthCap)) + densityBonus*alphaDensity(frag) -
			vocabPenalty*float64(e.Heuristics.VocabHits(frag))
		if !found || score > bestScore {
			best, bestScore, found = frag, score, true
		}
	}
	return best
}

func joinSpan(span []line) string {
	parts := make([]string, len(span))
	for i, l := range span {
		parts[i] = l.text
	}
	return strings.Join(parts, " ")
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(s, -1) {
		out = append(out, strings.TrimSpace(s[start:loc[0]+1]))
		start = loc[1]
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// alphaDensity is the share of letters among non-space characters.
func alphaDensity(s string) float64 {
	var letters, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}

func upperRatio(s string) (float64, int) {
	var upper, letters int
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(upper) / float64(letters), letters
}

func mostlyUpper(s string) bool {
	ratio, _ := upperRatio(s)
	return ratio >= upperShare
}

func allUpper(s string) bool {
	ratio, letters := upperRatio(s)
	return letters > 1 && ratio == 1
}
