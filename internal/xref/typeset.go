package xref

import (
	"net/url"

	"github.com/dgallion1/docxref/internal/doctree"
)

// MapAnchors is a fixed label-to-id table, e.g. one reported by a typesetter
// running in a browser.
type MapAnchors map[string]string

// AnchorID implements TypesetAnchors.
func (m MapAnchors) AnchorID(label string) (string, bool) {
	id, ok := m[label]
	return id, ok && id != ""
}

// treeAnchors finds MathJax's own equation anchors in a typeset tree.
type treeAnchors struct {
	tree *doctree.Tree
}

// MathJaxAnchors looks labels up by the ids MathJax gives tagged equations:
// "mjx-eqn:<label>" in version 3 and "mjx-eqn-<label>" in version 2.
func MathJaxAnchors(tree *doctree.Tree) TypesetAnchors {
	return treeAnchors{tree: tree}
}

func (t treeAnchors) AnchorID(label string) (string, bool) {
	for _, id := range []string{
		"mjx-eqn:" + label,
		"mjx-eqn-" + label,
		"mjx-eqn:" + url.PathEscape(label),
		"mjx-eqn-" + url.PathEscape(label),
	} {
		if t.tree.ByID(id) != nil {
			return id, true
		}
	}
	return "", false
}
