package xref

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHints_MergesOverDefaults(t *testing.T) {
	h, err := ParseHints([]byte(`
section_ids:
  sec:intro: overview
  sec:extra: extra-section
figure_keywords:
  fig:loss: [loss, training]
min_paragraph_length: 80
`))
	require.NoError(t, err)

	assert.Equal(t, "overview", h.SectionIDs["sec:intro"])
	assert.Equal(t, "extra-section", h.SectionIDs["sec:extra"])
	assert.Equal(t, "conclusion", h.SectionIDs["sec:conclusion"])
	assert.Equal(t, []string{"loss", "training"}, h.FigureKeywords["fig:loss"])
	assert.Equal(t, 80, h.MinParagraphLength)
	assert.Equal(t, "sec-", h.SectionIDPrefix)
}

func TestParseHints_Invalid(t *testing.T) {
	_, err := ParseHints([]byte("section_ids: [unclosed"))
	assert.Error(t, err)
}

func TestLoadHints(t *testing.T) {
	h, err := LoadHints("")
	require.NoError(t, err)
	assert.Equal(t, 40, h.MinParagraphLength)

	path := filepath.Join(t.TempDir(), "hints.yaml")
	require.NoError(t, os.WriteFile(path, []byte("section_id_prefix: s-\n"), 0o644))
	h, err = LoadHints(path)
	require.NoError(t, err)
	assert.Equal(t, "s-", h.SectionIDPrefix)

	_, err = LoadHints(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
