package heuristics

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	authorSeparators = regexp.MustCompile(`\s*(?:,|;|&|\band\b)\s*`)
	initialPattern   = regexp.MustCompile(`(?:^|[\s.-])[A-Z]\.`)
	footnoteMarks    = regexp.MustCompile(`[\d*†‡§¶]+$`)
	bareInitials     = regexp.MustCompile(`^[A-Z]{1,3}\.?$`)
)

// nameParticles may appear lowercase inside a personal name.
var nameParticles = map[string]bool{
	"van": true, "von": true, "de": true, "der": true, "den": true, "da": true,
	"del": true, "della": true, "di": true, "la": true, "le": true, "du": true,
	"dos": true, "das": true, "ter": true, "bin": true, "al": true, "y": true,
}

// titleWords never occur in a personal name but are common in titles.
var titleWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true, "in": true,
	"on": true, "with": true, "via": true, "using": true, "from": true,
	"to": true, "by": true, "at": true, "into": true, "is": true, "are": true,
}

// LooksLikeAuthors reports whether line is a byline: two or more short,
// capitalised name segments with initials or footnote markers, or at least
// two multi-word names.
func LooksLikeAuthors(line string) bool {
	line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "."))
	segments := splitAuthors(line)
	if len(segments) < 2 {
		return false
	}

	marked := false
	multiWord := 0
	for _, seg := range segments {
		words := strings.Fields(seg)
		if len(words) == 0 || len(words) > 5 {
			return false
		}
		for _, w := range words {
			bare := footnoteMarks.ReplaceAllString(w, "")
			if bare != w {
				marked = true
			}
			if bare == "" {
				continue
			}
			if bareInitials.MatchString(bare) {
				marked = true
				continue
			}
			if titleWords[strings.ToLower(bare)] {
				return false
			}
			first, _ := firstRune(bare)
			if !unicode.IsUpper(first) && !nameParticles[bare] {
				return false
			}
		}
		if len(words) >= 2 {
			multiWord++
		}
	}

	return marked || multiWord >= 2 && multiWord == len(segments)
}

// LooksLikeAuthorList is the looser test used for the line after a title
// candidate: initials with periods, or commas or " and " between mostly
// capitalised words.
func LooksLikeAuthorList(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if LooksLikeAuthors(line) || initialPattern.MatchString(line) {
		return true
	}
	if !strings.Contains(line, ",") && !strings.Contains(line, " and ") {
		return false
	}
	words := strings.Fields(line)
	capital := 0
	for _, w := range words {
		first, _ := firstRune(strings.TrimLeft(w, "(\"'"))
		if unicode.IsUpper(first) {
			capital++
		}
	}
	return len(words) > 0 && float64(capital)/float64(len(words)) >= 0.6
}

func splitAuthors(line string) []string {
	var out []string
	for _, seg := range authorSeparators.Split(line, -1) {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
