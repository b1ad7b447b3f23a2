package xref

import (
	"errors"
	"fmt"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"golang.org/x/net/html"
)

// AnchorClass marks the invisible anchors the injector creates.
const AnchorClass = "xref-anchor"

var (
	// ErrAnchorExists is returned when an element with the label's id is
	// already in the tree.
	ErrAnchorExists = errors.New("anchor id already exists")
	// ErrNoTarget is returned when no resolver strategy found a node.
	ErrNoTarget = errors.New("no target node found")
)

// Inject places an invisible anchor with id label as the first child of
// node. Void elements receive it as their previous sibling instead.
func Inject(tree *doctree.Tree, node *html.Node, label string, typ labels.Type) (*html.Node, error) {
	if node == nil {
		return nil, ErrNoTarget
	}
	if tree.ByID(label) != nil {
		return nil, fmt.Errorf("inject %q: %w", label, ErrAnchorExists)
	}
	anchor := doctree.Element("span",
		html.Attribute{Key: "class", Val: AnchorClass},
		html.Attribute{Key: "data-label", Val: label},
		html.Attribute{Key: "data-label-type", Val: string(typ)},
		html.Attribute{Key: "aria-hidden", Val: "true"},
	)
	switch {
	case doctree.IsVoid(node) && node.Parent != nil:
		node.Parent.InsertBefore(anchor, node)
	case node.FirstChild != nil:
		node.InsertBefore(anchor, node.FirstChild)
	default:
		node.AppendChild(anchor)
	}
	tree.SetID(anchor, label)
	return anchor, nil
}

// IsAnchor reports whether n is an injected anchor.
func IsAnchor(n *html.Node) bool {
	return doctree.IsElement(n, "span") && doctree.HasClass(n, AnchorClass)
}

// anchorOwner returns the construct an id resolves to: the anchor's host for
// injected anchors, the element itself otherwise.
func anchorOwner(n *html.Node) *html.Node {
	if !IsAnchor(n) {
		return n
	}
	if n.NextSibling != nil && n.Parent != nil && doctree.IsVoid(n.NextSibling) {
		return n.NextSibling
	}
	if n.Parent != nil {
		return n.Parent
	}
	return n
}
