package xref

import (
	"fmt"
	"sort"
)

// Collision is a set of distinct labels that share an owning node and an
// extracted number. At most one of them can be right.
type Collision struct {
	Node   int      `json:"node"`
	Number string   `json:"number"`
	Labels []string `json:"labels"`
}

// DetectDuplicates scans the registry for labels sharing (owning node,
// number). It only reads the registry.
func DetectDuplicates(reg *Registry) []Collision {
	groups := make(map[string][]string)
	var keys []string
	for _, e := range reg.Entries() {
		if e.Number == "" || e.Node < 0 {
			continue
		}
		k := fmt.Sprintf("%d\x00%s", e.Node, e.Number)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e.Label)
	}
	var out []Collision
	for _, k := range keys {
		names := groups[k]
		if len(names) < 2 {
			continue
		}
		e, _ := reg.Get(names[0])
		sorted := append([]string(nil), names...)
		sort.Strings(sorted)
		out = append(out, Collision{Node: int(e.Node), Number: e.Number, Labels: sorted})
	}
	return out
}

// markDuplicates flags every colliding entry as unreliable and clears the
// flag on the rest.
func (b *Build) markDuplicates() []Collision {
	collisions := DetectDuplicates(b.registry)
	flagged := make(map[string]bool)
	for _, c := range collisions {
		for _, name := range c.Labels {
			flagged[name] = true
		}
	}
	for _, e := range b.registry.Entries() {
		if flagged[e.Label] && !e.Unreliable {
			b.log.Warn("duplicate number, falling back to label name", "label", e.Label, "number", e.Number)
		}
		e.Unreliable = flagged[e.Label]
	}
	return collisions
}

// unreliable records which labels are currently flagged.
func (b *Build) unreliable() map[string]bool {
	out := make(map[string]bool)
	for _, e := range b.registry.Entries() {
		if e.Unreliable {
			out[e.Label] = true
		}
	}
	return out
}
