// Package xref resolves cross-references in converted documents: it finds
// the rendered construct for every source label, anchors it, reads its
// number and rewrites the link text that points at it.
package xref

import (
	"log/slog"
	"time"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"golang.org/x/net/html"
)

// TypesetAnchors maps a label to the id the math typesetter gave its
// equation. Implementations must not block.
type TypesetAnchors interface {
	AnchorID(label string) (string, bool)
}

// Reporter receives progress records for a build: per-link results and
// pass summaries.
type Reporter interface {
	Report(buildID, kind string, v any)
}

// Build is the state of one resolution run over one document. It owns the
// registry and the per-build counters; nothing in it is shared between
// builds. A Build is not safe for concurrent use.
type Build struct {
	ID string

	tree     *doctree.Tree
	labels   *labels.Set
	registry *Registry
	hints    Hints
	log      *slog.Logger
	typeset  TypesetAnchors
	reporter Reporter
	now      func() time.Time

	eqCursor      int
	theoremIDs    bool
	headingWords  map[string]*html.Node
	headingTitles map[string]*html.Node
}

// Option configures a Build.
type Option func(*Build)

// WithID sets the build id passed to the reporter.
func WithID(id string) Option {
	return func(b *Build) { b.ID = id }
}

// WithHints replaces the default hint tables.
func WithHints(h Hints) Option {
	return func(b *Build) { b.hints = h }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Build) {
		if l != nil {
			b.log = l
		}
	}
}

// WithTypesetAnchors installs the typesetter's label-to-id lookup.
func WithTypesetAnchors(a TypesetAnchors) Option {
	return func(b *Build) { b.typeset = a }
}

// WithReporter installs a progress reporter.
func WithReporter(r Reporter) Option {
	return func(b *Build) { b.reporter = r }
}

// WithClock overrides the registry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Build) { b.now = now }
}

// NewBuild prepares a run over tree. set may be nil when no source labels
// are available; resolution then relies on name prefixes and the tree.
func NewBuild(tree *doctree.Tree, set *labels.Set, opts ...Option) *Build {
	if set == nil {
		set = labels.NewSet()
	}
	b := &Build{
		tree:     tree,
		labels:   set,
		registry: NewRegistry(),
		hints:    DefaultHints(),
		log:      slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.With("build_id", b.ID)
	return b
}

// Tree returns the document the build operates on.
func (b *Build) Tree() *doctree.Tree { return b.tree }

// Registry returns the build's label registry.
func (b *Build) Registry() *Registry { return b.registry }

// Labels returns the source labels the build was created with.
func (b *Build) Labels() *labels.Set { return b.labels }

// Reset clears the registry and every per-build counter so the same Build
// can be run again from scratch.
func (b *Build) Reset() {
	b.registry.Reset()
	b.eqCursor = 0
	b.theoremIDs = false
	b.headingWords = nil
	b.headingTitles = nil
}

// Rebind points the build at a new tree for the same document, e.g. the
// typesetter's output. Registry entries are re-attached through their
// anchor ids; entries whose anchor is gone lose their node.
func (b *Build) Rebind(tree *doctree.Tree) {
	b.tree = tree
	b.headingWords = nil
	b.headingTitles = nil
	for _, e := range b.registry.Entries() {
		if n := tree.ByID(e.AnchorID); n != nil {
			e.Node = tree.Ref(anchorOwner(n))
		} else {
			e.Node = doctree.NoNode
		}
	}
}

func (b *Build) report(kind string, v any) {
	if b.reporter == nil {
		return
	}
	b.reporter.Report(b.ID, kind, v)
}

// node dereferences a registry entry's weak node reference.
func (b *Build) node(e *Entry) *html.Node {
	return b.tree.Node(e.Node)
}
