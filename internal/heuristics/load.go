package heuristics

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a Set. Any list that is present replaces the
// built-in list of the same name; absent lists keep their defaults.
type File struct {
	NumericRatio      float64  `yaml:"numeric_ratio,omitempty"`
	DatePatterns      []string `yaml:"date_patterns,omitempty"`
	ShortCodePatterns []string `yaml:"short_code_patterns,omitempty"`
	BoilerplateLines  []string `yaml:"boilerplate_lines,omitempty"`
	SectionHeaders    []string `yaml:"section_headers,omitempty"`
	AbstractHeading   string   `yaml:"abstract_heading,omitempty"`
	AffiliationWords  string   `yaml:"affiliation_words,omitempty"`
	BoilerplateTitles []string `yaml:"boilerplate_titles,omitempty"`
	BoilerplateVocab  []string `yaml:"boilerplate_vocab,omitempty"`
}

// Load reads a YAML override file on top of Default. An empty path returns
// the defaults.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading heuristics file: %w", err)
	}
	return Parse(data)
}

// Parse applies YAML overrides to Default.
func Parse(data []byte) (*Set, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing heuristics file: %w", err)
	}

	s := Default()
	if f.NumericRatio != 0 {
		if f.NumericRatio < 0 || f.NumericRatio > 1 {
			return nil, fmt.Errorf("numeric_ratio must be in (0, 1], got %v", f.NumericRatio)
		}
		s.NumericRatio = f.NumericRatio
	}

	lists := []struct {
		name string
		src  []string
		dst  *[]*regexp.Regexp
	}{
		{"date_patterns", f.DatePatterns, &s.DatePatterns},
		{"short_code_patterns", f.ShortCodePatterns, &s.ShortCodePatterns},
		{"boilerplate_lines", f.BoilerplateLines, &s.BoilerplateLines},
		{"section_headers", f.SectionHeaders, &s.SectionHeaders},
	}
	for _, l := range lists {
		if len(l.src) == 0 {
			continue
		}
		compiled, err := compileChecked(l.name, l.src)
		if err != nil {
			return nil, err
		}
		*l.dst = compiled
	}

	singles := []struct {
		name string
		src  string
		dst  **regexp.Regexp
	}{
		{"abstract_heading", f.AbstractHeading, &s.AbstractHeading},
		{"affiliation_words", f.AffiliationWords, &s.AffiliationWords},
	}
	for _, p := range singles {
		if p.src == "" {
			continue
		}
		re, err := regexp.Compile(p.src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		*p.dst = re
	}

	if len(f.BoilerplateTitles) > 0 {
		s.BoilerplateTitles = f.BoilerplateTitles
	}
	if len(f.BoilerplateVocab) > 0 {
		s.BoilerplateVocab = f.BoilerplateVocab
	}
	return s, nil
}

func compileChecked(name string, exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for i, e := range exprs {
		re, err := regexp.Compile(e)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		out = append(out, re)
	}
	return out, nil
}
