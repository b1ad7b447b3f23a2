package xref

import (
	"time"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
)

// Entry is the resolution metadata recorded for one label.
type Entry struct {
	Label         string          `json:"label"`
	Type          labels.Type     `json:"type"`
	Node          doctree.NodeRef `json:"node"`
	Number        string          `json:"number,omitempty"`
	Word          string          `json:"word,omitempty"`
	AnchorID      string          `json:"anchor_id"`
	Strategy      string          `json:"strategy,omitempty"`
	LowConfidence bool            `json:"low_confidence,omitempty"`
	Unreliable    bool            `json:"unreliable,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Complete reports whether the entry has everything a link needs.
func (e *Entry) Complete() bool {
	return e.AnchorID != "" && e.Node != doctree.NoNode && e.Number != ""
}

// Registry is the build-scoped table of label metadata. It is not safe for
// concurrent use; a Build serializes access to it.
type Registry struct {
	entries map[string]*Entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Put records e. Re-resolving a label overwrites its entry in place.
func (r *Registry) Put(e Entry) *Entry {
	if cur, ok := r.entries[e.Label]; ok {
		*cur = e
		return cur
	}
	stored := e
	r.entries[e.Label] = &stored
	r.order = append(r.order, e.Label)
	return &stored
}

// Get returns the entry for label.
func (r *Registry) Get(label string) (*Entry, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[label]
	return e, ok
}

// Entries returns entries in first-resolution order.
func (r *Registry) Entries() []*Entry {
	if r == nil {
		return nil
	}
	out := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.entries = make(map[string]*Entry)
	r.order = nil
}

// claimedBy returns the label owning node ref, other than except.
func (r *Registry) claimedBy(ref doctree.NodeRef, except string) (string, bool) {
	for _, name := range r.order {
		if name == except {
			continue
		}
		if e := r.entries[name]; e.Node == ref && ref != doctree.NoNode {
			return name, true
		}
	}
	return "", false
}
