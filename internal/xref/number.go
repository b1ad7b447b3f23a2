package xref

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"golang.org/x/net/html"
)

// Number is a construct number read from rendered text.
type Number struct {
	Value string `json:"value"`
	// Word is the construct word found next to the number, expanded to its
	// full spelling, or "" when the number came from elsewhere.
	Word   string `json:"word,omitempty"`
	Source string `json:"source"`
}

var (
	wordNumberRe = regexp.MustCompile(`(?i)(?:^|[^\pL])(Section|Chapter|Appendix|Sec\.|Equation|Eqn\.|Eq\.|Figure|Fig\.|Table|Tab\.|Theorem|Thm\.|Proposition|Prop\.|Definition|Def\.|Lemma|Lem\.|Corollary|Cor\.)\s*(\d+(?:\.\d+)*)`)
	leadingNumRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+\S`)
	listNumRe    = regexp.MustCompile(`^(\d+)\.\s`)
	parenEdgeRe  = regexp.MustCompile(`^\((\d+(?:\.\d+)*[a-z]?)\)|\((\d+(?:\.\d+)*[a-z]?)\)$`)
	parenAnyRe   = regexp.MustCompile(`\((\d+(?:\.\d+)*[a-z]?)\)`)
	digitsRe     = regexp.MustCompile(`^\d+(?:\.\d+)*$`)
)

var abbreviations = map[string]string{
	"sec.":  "Section",
	"eq.":   "Equation",
	"eqn.":  "Equation",
	"fig.":  "Figure",
	"tab.":  "Table",
	"thm.":  "Theorem",
	"prop.": "Proposition",
	"def.":  "Definition",
	"lem.":  "Lemma",
	"cor.":  "Corollary",
	"§":     "Section",
}

// canonicalWord expands an abbreviation and title-cases the result.
func canonicalWord(w string) string {
	if full, ok := abbreviations[strings.ToLower(w)]; ok {
		return full
	}
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

// ExtractNumber reads the construct number of node through an ordered cascade
// of text patterns. The last resort for figures and tables is the node's
// position among nodes of its kind.
func ExtractNumber(tree *doctree.Tree, node *html.Node, typ labels.Type) (Number, bool) {
	if node == nil {
		return Number{}, false
	}
	text := doctree.NormalizedText(node)

	if n, ok := matchWordNumber(text); ok {
		n.Source = "text"
		return n, true
	}
	if n, ok := structuredNumber(node); ok {
		return n, true
	}
	if h := headingOf(node); h != nil {
		if m := leadingNumRe.FindStringSubmatch(doctree.NormalizedText(h)); m != nil {
			return Number{Value: m[1], Source: "heading"}, true
		}
	}
	if m := listNumRe.FindStringSubmatch(text); m != nil {
		return Number{Value: m[1], Source: "list"}, true
	}
	if typ == labels.Equation {
		if n, ok := equationTag(node, text); ok {
			return n, true
		}
	}
	if typ == labels.Figure || typ == labels.Table {
		if n, ok := matchWordNumber(captionText(node)); ok {
			n.Source = "caption"
			return n, true
		}
		for i, f := range floatNodes(tree, typ) {
			if f == node {
				return Number{Value: strconv.Itoa(i + 1), Source: "position"}, true
			}
		}
	}
	return Number{}, false
}

func matchWordNumber(text string) (Number, bool) {
	m := wordNumberRe.FindStringSubmatch(text)
	if m == nil {
		return Number{}, false
	}
	return Number{Value: m[2], Word: canonicalWord(m[1])}, true
}

// structuredNumber looks at emphasized labels and numbering markup.
func structuredNumber(node *html.Node) (Number, bool) {
	var emph []string
	doctree.Walk(node, func(c *html.Node) bool {
		if c == node || c.Type != html.ElementNode {
			return true
		}
		switch {
		case c.Data == "strong", c.Data == "b", c.Data == "em", c.Data == "i",
			doctree.HasClassPrefix(c, "ltx_tag"), doctree.HasClass(c, "theorem-label"):
			emph = append(emph, doctree.NormalizedText(c))
			return false
		}
		return true
	})
	if n, ok := matchWordNumber(strings.Join(emph, " ")); ok {
		n.Source = "emphasis"
		return n, true
	}

	if v := strings.TrimSpace(doctree.Attr(node, "data-number")); digitsRe.MatchString(v) {
		return Number{Value: v, Source: "data-number"}, true
	}
	marker := doctree.First(node, func(c *html.Node) bool {
		return c.Type == html.ElementNode && (doctree.HasClass(c, "header-section-number") ||
			doctree.HasAttr(c, "data-number"))
	})
	if marker != nil {
		v := strings.TrimSpace(doctree.Attr(marker, "data-number"))
		if v == "" {
			v = doctree.NormalizedText(marker)
		}
		if digitsRe.MatchString(v) {
			return Number{Value: v, Source: "data-number"}, true
		}
	}
	return Number{}, false
}

// headingOf returns node when it is a heading, or the first heading it holds.
func headingOf(node *html.Node) *html.Node {
	if doctree.IsHeading(node) {
		return node
	}
	return doctree.First(node, doctree.IsHeading)
}

// equationTag reads an equation number in parentheses: at either edge of
// the text first, then inside a nested tag element.
func equationTag(node *html.Node, text string) (Number, bool) {
	if m := parenEdgeRe.FindStringSubmatch(text); m != nil {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		return Number{Value: v, Source: "parenthesized"}, true
	}
	tag := doctree.First(node, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return false
		}
		return doctree.HasClassPrefix(c, "ltx_tag") || doctree.HasClass(c, "mjx-label") ||
			c.Data == "mjx-labels" || strings.HasPrefix(doctree.Attr(c, "id"), "mjx-eqn")
	})
	if tag != nil {
		if m := parenAnyRe.FindStringSubmatch(doctree.NormalizedText(tag)); m != nil {
			return Number{Value: m[1], Source: "tag"}, true
		}
	}
	return Number{}, false
}
