package xref

import (
	"strings"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"golang.org/x/net/html"
)

// isDisplayMath matches display-equation containers from pandoc, MathJax 2/3
// and LaTeXML output.
func isDisplayMath(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if n.Data == "mjx-container" {
		return doctree.Attr(n, "display") == "true"
	}
	if doctree.HasClass(n, "math") && doctree.HasClass(n, "display") {
		return true
	}
	for _, c := range []string{"MathJax_Display", "ltx_equation", "ltx_equationgroup", "equation", "displaymath"} {
		if doctree.HasClass(n, c) {
			return true
		}
	}
	return false
}

// displayMathNodes returns the outermost display-equation containers.
func displayMathNodes(tree *doctree.Tree) []*html.Node {
	var out []*html.Node
	doctree.Walk(tree.Root, func(n *html.Node) bool {
		if isDisplayMath(n) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// equationContainer climbs from a typeset node to its display container.
func equationContainer(n *html.Node) *html.Node {
	var outer *html.Node
	for p := n; p != nil; p = p.Parent {
		if isDisplayMath(p) {
			outer = p
		}
	}
	if outer != nil {
		return outer
	}
	return n
}

func isFigure(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return n.Data == "figure" || doctree.HasClass(n, "figure") || doctree.HasClass(n, "ltx_figure")
}

func isTable(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if n.Data == "table" {
		return !isDisplayMath(n) && doctree.Closest(n.Parent, isDisplayMath) == nil
	}
	return doctree.HasClass(n, "table") || doctree.HasClass(n, "ltx_table")
}

// floatNodes returns the outermost figure or table nodes in document order.
func floatNodes(tree *doctree.Tree, typ labels.Type) []*html.Node {
	pred := isFigure
	if typ == labels.Table {
		pred = isTable
	}
	var out []*html.Node
	doctree.Walk(tree.Root, func(n *html.Node) bool {
		if pred(n) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// captionText returns the caption of a figure or table node.
func captionText(n *html.Node) string {
	c := doctree.First(n, func(c *html.Node) bool {
		return doctree.IsElement(c, "figcaption") || doctree.IsElement(c, "caption") ||
			(c.Type == html.ElementNode && (doctree.HasClass(c, "caption") || doctree.HasClass(c, "ltx_caption")))
	})
	if c == nil {
		return ""
	}
	return doctree.NormalizedText(c)
}

var theoremFamilies = []string{"theorem", "proposition", "definition", "lemma", "corollary"}

// familyOf returns the theorem-like family an element is marked as, or "".
func familyOf(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	for _, c := range doctree.Classes(n) {
		name := strings.ToLower(strings.TrimPrefix(c, "ltx_theorem_"))
		for _, f := range theoremFamilies {
			if name == f {
				return f
			}
		}
	}
	return ""
}

// familiesFor lists the structural families a theorem-like type resolves to.
func familiesFor(t labels.Type) []string {
	switch t {
	case labels.Theorem:
		return []string{"theorem", "proposition"}
	case labels.Definition:
		return []string{"definition"}
	case labels.Lemma:
		return []string{"lemma"}
	case labels.Corollary:
		return []string{"corollary"}
	}
	return nil
}

// isTitleBlock matches the document title area and centered title blocks.
func isTitleBlock(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if doctree.Attr(n, "id") == "title-block-header" {
		return true
	}
	for _, c := range []string{"title", "subtitle", "center", "centering", "author", "date", "ltx_title_document"} {
		if doctree.HasClass(n, c) {
			return true
		}
	}
	return doctree.IsElement(n, "center")
}

func inTitleBlock(n *html.Node) bool {
	return doctree.Closest(n, isTitleBlock) != nil
}

// contentHeadings returns the headings under the content root that are not
// part of the title block.
func contentHeadings(tree *doctree.Tree) []*html.Node {
	return doctree.FindAll(tree.ContentRoot(), func(n *html.Node) bool {
		return doctree.IsHeading(n) && !inTitleBlock(n)
	})
}
