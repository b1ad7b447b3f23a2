package xref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
)

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		typ    labels.Type
		want   string
		word   string
		source string
	}{
		{"word and number", `<div id="n">Theorem 3.2. Let x be real.</div>`, labels.Theorem, "3.2", "Theorem", "text"},
		{"abbreviation expands", `<div id="n">Prop. 4 holds.</div>`, labels.Theorem, "4", "Proposition", "text"},
		{"emphasized label", `<div id="n"><b>Lemma</b>: <b>7</b> Suppose.</div>`, labels.Lemma, "7", "Lemma", "emphasis"},
		{"data-number", `<h2 id="n" data-number="2.1">Methods</h2>`, labels.Section, "2.1", "", "data-number"},
		{"heading prefix", `<h3 id="n">4 Results</h3>`, labels.Section, "4", "", "heading"},
		{"list style", `<li id="n">5. Item text</li>`, labels.Generic, "5", "", "list"},
		{"parenthesized leading", `<div id="n">(3) a+b</div>`, labels.Equation, "3", "", "parenthesized"},
		{"parenthesized trailing", `<div id="n">a+b (3a)</div>`, labels.Equation, "3a", "", "parenthesized"},
		{"nested tag", `<div id="n">f(x) <span class="ltx_tag_equation">(9)</span> = 1</div>`, labels.Equation, "9", "", "tag"},
		{"parenthesized ignored outside equations", `<div id="n">(3) a+b</div>`, labels.Section, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := doctree.ParseString(tt.html)
			assert.NoError(t, err)
			got, ok := ExtractNumber(tree, tree.ByID("n"), tt.typ)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.word, got.Word)
			assert.Equal(t, tt.source, got.Source)
		})
	}
}

func TestExtractNumber_FigurePosition(t *testing.T) {
	tree, _ := doctree.ParseString(`<main>
<figure><figcaption>Loss curve</figcaption></figure>
<figure id="second"><figcaption>Accuracy</figcaption></figure>
</main>`)
	got, ok := ExtractNumber(tree, tree.ByID("second"), labels.Figure)
	assert.True(t, ok)
	assert.Equal(t, "2", got.Value)
	assert.Equal(t, "position", got.Source)
}

func TestExtractNumber_NilNode(t *testing.T) {
	tree, _ := doctree.ParseString(`<p>x</p>`)
	var n *html.Node
	_, ok := ExtractNumber(tree, n, labels.Figure)
	assert.False(t, ok)
}
