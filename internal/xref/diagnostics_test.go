package xref

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
)

func TestRegistryStatus_Empty(t *testing.T) {
	for _, reg := range []*Registry{nil, NewRegistry()} {
		report := RegistryStatus(reg)
		assert.Zero(t, report.TotalEntries)
		assert.Equal(t, "0%", report.CompletionRate)
		assert.NotNil(t, report.ByNode)
		assert.NotNil(t, report.ByNumber)
	}
}

func TestRegistryStatus_GroupsCandidates(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Entry{Label: "a", Type: labels.Figure, Node: 3, Number: "1", AnchorID: "a"})
	reg.Put(Entry{Label: "b", Type: labels.Table, Node: 3, Number: "1", AnchorID: "b"})
	reg.Put(Entry{Label: "c", Type: labels.Section, Node: 4, AnchorID: "c"})
	reg.Put(Entry{Label: "d", Type: labels.Section, Node: 5, Number: "2", AnchorID: "d"})

	report := RegistryStatus(reg)
	assert.Equal(t, 4, report.TotalEntries)
	assert.Equal(t, 3, report.Complete)
	assert.Equal(t, 1, report.Incomplete)
	assert.Equal(t, []string{"c"}, report.IncompleteList)
	assert.Equal(t, "75.0%", report.CompletionRate)
	assert.Equal(t, map[string][]string{"node-3": {"a", "b"}}, report.ByNode)
	assert.Equal(t, map[string][]string{"1": {"a", "b"}}, report.ByNumber)
}

func TestRegistry_PutOverwritesInPlace(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Entry{Label: "a", Number: "1"})
	reg.Put(Entry{Label: "b", Number: "2"})
	reg.Put(Entry{Label: "a", Number: "3"})

	assert.Equal(t, 2, reg.Len())
	entries := reg.Entries()
	assert.Equal(t, "a", entries[0].Label)
	assert.Equal(t, "3", entries[0].Number)
}

func TestDetectDuplicates_IgnoresMissingNumbers(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Entry{Label: "a", Node: 1})
	reg.Put(Entry{Label: "b", Node: 1})
	reg.Put(Entry{Label: "c", Node: doctree.NoNode, Number: "1"})
	reg.Put(Entry{Label: "d", Node: doctree.NoNode, Number: "1"})

	assert.Empty(t, DetectDuplicates(reg))
}

func TestVerifyLinks_CountsAddUp(t *testing.T) {
	tree := mustTree(t, `<main><span id="x"></span>`+ref("x")+ref("y")+`<a data-reference-type="ref" data-reference="">z</a></main>`)

	report := VerifyLinks(tree)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Working)
	assert.Equal(t, 2, report.Broken)
	assert.Equal(t, report.Total, report.Working+report.Broken)
	assert.Equal(t, "no target", report.Links[2].Reason)

	assert.Zero(t, VerifyLinks(nil).Total)
}
