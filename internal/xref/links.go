package xref

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"golang.org/x/net/html"
)

// Link attributes written by the converter and by the rewriter.
const (
	attrRefType     = "data-reference-type"
	attrRef         = "data-reference"
	attrPlaceholder = "data-xref-placeholder"
	attrComposed    = "data-xref-text"
)

var placeholderRe = regexp.MustCompile(`^\[(.+)\]$`)

// IsReferenceLink reports whether n is a converter-emitted cross-reference.
// Links without data-reference still count when their href is a fragment.
func IsReferenceLink(n *html.Node) bool {
	if !doctree.IsElement(n, "a") || !doctree.HasAttr(n, attrRefType) {
		return false
	}
	return doctree.HasAttr(n, attrRef) || strings.HasPrefix(doctree.Attr(n, "href"), "#")
}

// ReferenceLinks returns every reference link in document order.
func ReferenceLinks(tree *doctree.Tree) []*html.Node {
	if tree == nil {
		return nil
	}
	return doctree.FindAll(tree.Root, IsReferenceLink)
}

// LinkTarget returns the label a reference link points at.
func LinkTarget(a *html.Node) string {
	if t := strings.TrimSpace(doctree.Attr(a, attrRef)); t != "" {
		return t
	}
	return strings.TrimPrefix(doctree.Attr(a, "href"), "#")
}

// IsPlaceholder reports whether text is the bracketed "[label]" form a
// converter leaves for an unresolved reference.
func IsPlaceholder(text string) bool {
	return placeholderRe.MatchString(strings.TrimSpace(text))
}

// inParenthetical reports whether a sits directly inside "( ... )".
func inParenthetical(a *html.Node) bool {
	prev, next := doctree.PrevText(a), doctree.NextText(a)
	if prev == nil || next == nil {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(prev.Data, " \u00a0"), "(") &&
		strings.HasPrefix(strings.TrimLeft(next.Data, " \u00a0"), ")")
}

// linkType decides which resolver family handles a link target.
func (b *Build) linkType(target string, a *html.Node) labels.Type {
	if l, ok := b.labels.Get(target); ok {
		return l.Type
	}
	if t, ok := labels.ClassifyPrefix(target); ok {
		return t
	}
	if doctree.Attr(a, attrRefType) == "eqref" {
		return labels.Equation
	}
	return labels.Generic
}
