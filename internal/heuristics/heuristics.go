// Package heuristics holds the tunable predicate sets used to judge title
// candidates: the numeric-looking test, boilerplate line and title patterns,
// author-list detection and boilerplate vocabulary.
package heuristics

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultNumericRatio is the digit share at which a string stops being a title.
const DefaultNumericRatio = 0.6

// Set is one configuration of the predicates. The zero value is not usable;
// start from Default or Load.
type Set struct {
	// NumericRatio is the share of digits among alphanumerics above which a
	// candidate looks numeric, and at or above which a final title is replaced.
	NumericRatio float64

	DatePatterns      []*regexp.Regexp
	ShortCodePatterns []*regexp.Regexp

	// BoilerplateLines are dropped from PDF first-page text.
	BoilerplateLines []*regexp.Regexp

	// SectionHeaders are dropped too; AbstractHeading also ends the title zone.
	SectionHeaders  []*regexp.Regexp
	AbstractHeading *regexp.Regexp

	// AffiliationWords mark affiliation lines when the line also has a comma
	// or starts with a footnote marker.
	AffiliationWords *regexp.Regexp

	// BoilerplateTitles are substrings that disqualify a PDF metadata title.
	BoilerplateTitles []string

	// BoilerplateVocab is penalised when refining a PDF title span.
	BoilerplateVocab []string
}

// Default returns the built-in predicate set.
func Default() *Set {
	return &Set{
		NumericRatio: DefaultNumericRatio,
		DatePatterns: compileAll(
			`^\d{4}[-/._]\d{1,2}([-/._]\d{1,2})?$`,
			`^\d{1,2}[-/._]\d{1,2}[-/._]\d{2,4}$`,
			`^\d{8}$`,
			`^(19|20)\d{2}$`,
			`(?i)^\d{1,2}\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}$`,
		),
		ShortCodePatterns: compileAll(
			`^[A-Za-z]{0,12}[-_.:]?\d[\w.\-:/()]*$`,
		),
		BoilerplateLines: compileAll(
			`(?i)creative commons|\bcc[ -]by\b|all rights reserved|copyright|©|\(c\)\s*\d{4}`,
			`(?i)\blicen[cs](e|ed|ing)\b|open access|distributed under the terms|permits unrestricted`,
			`(?i)^(received|accepted|published|revised|available online|submitted|first published)\b`,
			`(?i)\b(received|accepted|published online)\s*:?\s*\d{1,2}\s+[a-z]+\.?\s+\d{4}`,
			`[\w.+-]+@[\w-]+\.[\w.-]+`,
			`(?i)^(e-?mail|correspondence|corresponding author|\*\s*correspond)`,
			`(?i)^(page\s*)?\d+(\s*(of|/)\s*\d+)?$`,
			`(?i)^(vol\.?|volume|issue|pp\.?)\s*\d+`,
			`(?i)\bdoi\s*:?\s*10\.\d{4,9}/`,
			`(?i)^(https?://|www\.)`,
			`(?i)^(arxiv:|biorxiv|medrxiv|preprint|cite this article|downloaded from|citation:)`,
		),
		SectionHeaders: compileAll(
			`(?i)^(abstract|summary|supplementary( (information|material|materials|data|figures?))?|keywords?|key words|introduction|background|highlights|article info|graphical abstract|research article|original article|review article|research paper|letter|report|brief communication|articles?)\s*[:.]?$`,
		),
		AbstractHeading: regexp.MustCompile(`(?i)^abstract\b`),
		AffiliationWords: regexp.MustCompile(
			`(?i)\b(university|universit[äa]t|universit[ée]|department|dept\.|institute|institut|laborator(y|ies)|school of|college|hospital|centre|center for|faculty|division of)\b`,
		),
		BoilerplateTitles: []string{
			"untitled",
			"microsoft word",
			"creative commons",
			"copyright",
			"license",
			"licence",
			"open access",
			"all rights reserved",
			"this is an open access article",
			"powerpoint presentation",
		},
		BoilerplateVocab: []string{
			"creative commons",
			"license",
			"licence",
			"copyright",
			"received",
			"accepted",
			"published",
			"open access",
			"rights reserved",
			"correspondence",
		},
	}
}

// DigitRatio returns the share of digits among letters and digits in s.
func DigitRatio(s string) float64 {
	var digits, alnum int
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
			alnum++
		case unicode.IsLetter(r):
			alnum++
		}
	}
	if alnum == 0 {
		return 0
	}
	return float64(digits) / float64(alnum)
}

// LooksNumeric reports whether s reads like an identifier, date or code
// rather than a title.
func (s *Set) LooksNumeric(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	if DigitRatio(title) > s.NumericRatio {
		return true
	}
	return matchAny(s.DatePatterns, title) || matchAny(s.ShortCodePatterns, title)
}

// MostlyDigits is the hard gate on emitted titles.
func (s *Set) MostlyDigits(title string) bool {
	return DigitRatio(title) >= s.NumericRatio
}

// IsBoilerplateLine reports whether a PDF text line carries no title content.
func (s *Set) IsBoilerplateLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if matchAny(s.BoilerplateLines, line) || s.IsSectionHeader(line) {
		return true
	}
	if s.isAffiliation(line) {
		return true
	}
	return LooksLikeAuthors(line)
}

// IsSectionHeader reports whether line is a bare section heading.
func (s *Set) IsSectionHeader(line string) bool {
	return matchAny(s.SectionHeaders, strings.TrimSpace(line))
}

// IsAbstractHeading reports whether line starts the abstract.
func (s *Set) IsAbstractHeading(line string) bool {
	return s.AbstractHeading != nil && s.AbstractHeading.MatchString(strings.TrimSpace(line))
}

func (s *Set) isAffiliation(line string) bool {
	if s.AffiliationWords == nil || !s.AffiliationWords.MatchString(line) {
		return false
	}
	if strings.Contains(line, ",") {
		return true
	}
	first, _ := firstRune(line)
	return unicode.IsDigit(first) || strings.ContainsRune("*†‡§¶", first)
}

// IsBoilerplateTitle reports whether a metadata title is a known
// placeholder or notice.
func (s *Set) IsBoilerplateTitle(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, phrase := range s.BoilerplateTitles {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	for _, ext := range []string{".doc", ".docx", ".pdf", ".tex", ".dvi", ".indd", ".ps"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// VocabHits counts boilerplate vocabulary occurrences in text.
func (s *Set) VocabHits(text string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, word := range s.BoilerplateVocab {
		hits += strings.Count(lower, word)
	}
	return hits
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}
