package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLParser_Title(t *testing.T) {
	p := &HTMLParser{}

	tree, err := p.Parse(strings.NewReader(`<html><head><title> Rechnung 42 </title></head><body></body></html>`), "r42.html")
	require.NoError(t, err)
	assert.Equal(t, "Rechnung 42", tree.Title)

	tree, err = p.Parse(strings.NewReader(`<p>kein Titel</p>`), "dir/angebot.htm")
	require.NoError(t, err)
	assert.Equal(t, "angebot", tree.Title)
}

func TestHTMLParser_KeepsSource(t *testing.T) {
	src := `<p data-date="today">x</p>`
	p := &HTMLParser{}
	tree, err := p.Parse(strings.NewReader(src), "a.html")
	require.NoError(t, err)
	assert.Equal(t, src, string(tree.Source))
	assert.Len(t, tree.Dates, 1)
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     any
	}{
		{"a.html", &HTMLParser{}},
		{"A.HTM", &HTMLParser{}},
		{"b.md", &MarkdownParser{}},
		{"b.markdown", &MarkdownParser{}},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.filename)
		require.NoError(t, err, tt.filename)
		assert.IsType(t, tt.want, p)
	}

	_, err := ForFile("c.pdf")
	assert.True(t, errors.Is(err, ErrUnsupportedExtension))
}

func TestIsSupportedExtension(t *testing.T) {
	assert.True(t, IsSupportedExtension("angebot.html"))
	assert.True(t, IsSupportedExtension("ANGEBOT.HTML"))
	assert.True(t, IsSupportedExtension("notes.md"))
	assert.False(t, IsSupportedExtension("style.css"))
	assert.False(t, IsSupportedExtension("angebot.html.swp"))
	assert.False(t, IsSupportedExtension("README"))
}

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "angebot", DocumentName("documents/angebot.html"))
	assert.Equal(t, "rechnung.v2", DocumentName("rechnung.v2.md"))
	assert.Equal(t, "plain", DocumentName("plain"))
}
