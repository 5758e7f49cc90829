package doi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "see doi:10.1038/nature12373 for details", "10.1038/nature12373"},
		{"trailing period", "DOI 10.1126/science.abc1234.", "10.1126/science.abc1234"},
		{"uppercase lowered", "10.1016/J.CELL.2023.01.001", "10.1016/j.cell.2023.01.001"},
		{"balanced parens kept", "10.1016/S0092-8674(23)00001-1", "10.1016/s0092-8674(23)00001-1"},
		{"unbalanced paren dropped", "(see 10.1093/mnras/stad123)", "10.1093/mnras/stad123"},
		{"none", "no identifier here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Find(tt.text))
		})
	}
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"doi.org", "https://doi.org/10.1101/2024.01.01.000001", "10.1101/2024.01.01.000001"},
		{"biorxiv versioned", "https://www.biorxiv.org/content/10.1101/2024.01.01.000001v2.full.pdf", "10.1101/2024.01.01.000001"},
		{"wiley full", "https://onlinelibrary.wiley.com/doi/full/10.1002/anie.202300001", "10.1002/anie.202300001"},
		{"escaped slash", "https://example.org/lookup/10.1000%2Fxyz123", "10.1000/xyz123"},
		{"query value", "https://journals.plos.org/plosone/article?id=10.1371/journal.pone.0123456", "10.1371/journal.pone.0123456"},
		{"no doi", "https://www.nature.com/articles/s41586-023-06291-2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromURL(tt.url))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "10.1234/abc", Normalize("https://doi.org/10.1234/ABC"))
	assert.Equal(t, "10.1234/abc", Normalize("DOI: 10.1234/abc"))
	assert.Equal(t, "10.1234/abc", Normalize("  http://dx.doi.org/10.1234/abc "))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("10.1234/abc"))
	assert.False(t, Valid("10.1234/"))
	assert.False(t, Valid("11.1234/abcdef"))
	assert.False(t, Valid("10.12"))
}
