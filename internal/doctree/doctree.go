package doctree

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// NodeRef is a weak reference to a node of a Tree: an index into the tree's
// node table. It never keeps a node alive on its own.
type NodeRef int

// NoNode is the zero value for "no node".
const NoNode NodeRef = -1

// Tree is a rendered document: the converter's HTML output, queryable by id.
type Tree struct {
	Root *html.Node

	nodes []*html.Node
	refs  map[*html.Node]NodeRef
	ids   map[string]*html.Node
}

// Parse reads an HTML document into a Tree.
func Parse(r io.Reader) (*Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromNode(doc), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// FromNode wraps an existing node tree.
func FromNode(root *html.Node) *Tree {
	t := &Tree{Root: root}
	t.Reindex()
	return t
}

// Reindex rebuilds the id index and node table. Call it after the tree was
// mutated by something other than this package, e.g. a typesetter.
// References handed out earlier stay valid for nodes still in the tree.
func (t *Tree) Reindex() {
	if t.refs == nil {
		t.refs = make(map[*html.Node]NodeRef)
	}
	t.ids = make(map[string]*html.Node)
	Walk(t.Root, func(n *html.Node) bool {
		t.Ref(n)
		if id := Attr(n, "id"); id != "" {
			if _, dup := t.ids[id]; !dup {
				t.ids[id] = n
			}
		}
		return true
	})
}

// ByID returns the first element carrying id, or nil.
func (t *Tree) ByID(id string) *html.Node {
	if t == nil || id == "" {
		return nil
	}
	return t.ids[id]
}

// SetID assigns id to n and indexes it.
func (t *Tree) SetID(n *html.Node, id string) {
	SetAttr(n, "id", id)
	if _, dup := t.ids[id]; !dup {
		t.ids[id] = n
	}
}

// Detach removes n from the tree and drops the ids it and its descendants
// carried from the index.
func (t *Tree) Detach(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	Walk(n, func(c *html.Node) bool {
		if id := Attr(c, "id"); id != "" && t.ids[id] == c {
			delete(t.ids, id)
		}
		return true
	})
	n.Parent.RemoveChild(n)
}

// Ref returns the weak reference for n, assigning one on first use.
func (t *Tree) Ref(n *html.Node) NodeRef {
	if n == nil {
		return NoNode
	}
	if ref, ok := t.refs[n]; ok {
		return ref
	}
	ref := NodeRef(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.refs[n] = ref
	return ref
}

// Node dereferences ref. It returns nil for NoNode, unknown refs and nodes
// that have since been detached from the tree.
func (t *Tree) Node(ref NodeRef) *html.Node {
	if t == nil || ref < 0 || int(ref) >= len(t.nodes) {
		return nil
	}
	n := t.nodes[ref]
	if !t.attached(n) {
		return nil
	}
	return n
}

func (t *Tree) attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == t.Root {
			return true
		}
	}
	return false
}

// Render writes the tree as HTML.
func (t *Tree) Render(w io.Writer) error {
	return html.Render(w, t.Root)
}

// String renders the tree, mainly for tests and logs.
func (t *Tree) String() string {
	var buf bytes.Buffer
	_ = t.Render(&buf)
	return buf.String()
}

// Body returns <body>, or the root when there is none.
func (t *Tree) Body() *html.Node {
	if b := First(t.Root, func(n *html.Node) bool { return IsElement(n, "body") }); b != nil {
		return b
	}
	return t.Root
}

// ContentRoot returns the element holding the document content: main,
// article, #content or .content, falling back to the body.
func (t *Tree) ContentRoot() *html.Node {
	if n := First(t.Root, func(n *html.Node) bool { return IsElement(n, "main") || IsElement(n, "article") }); n != nil {
		return n
	}
	if n := t.ByID("content"); n != nil {
		return n
	}
	if n := First(t.Root, func(n *html.Node) bool { return n.Type == html.ElementNode && HasClass(n, "content") }); n != nil {
		return n
	}
	return t.Body()
}
