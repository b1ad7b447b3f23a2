package xref

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Hints are the curated tables the resolvers consult before falling back to
// structural heuristics.
type Hints struct {
	// SectionIDs maps well-known section labels to converter-generated ids.
	SectionIDs map[string]string `yaml:"section_ids"`
	// SectionIDPrefix is the documented id prefix some converters put on
	// section ids.
	SectionIDPrefix string `yaml:"section_id_prefix"`

	FigureKeywords   map[string][]string `yaml:"figure_keywords"`
	TableKeywords    map[string][]string `yaml:"table_keywords"`
	EquationKeywords map[string][]string `yaml:"equation_keywords"`
	TheoremKeywords  map[string][]string `yaml:"theorem_keywords"`

	// MinParagraphLength is the text length a paragraph must exceed to be a
	// generic-label target.
	MinParagraphLength int `yaml:"min_paragraph_length"`
}

// DefaultHints returns the built-in tables.
func DefaultHints() Hints {
	return Hints{
		SectionIDs: map[string]string{
			"sec:intro":        "introduction",
			"sec:introduction": "introduction",
			"sec:background":   "background",
			"sec:related":      "related-work",
			"sec:relatedwork":  "related-work",
			"sec:method":       "method",
			"sec:methods":      "methods",
			"sec:methodology":  "methodology",
			"sec:experiments":  "experiments",
			"sec:results":      "results",
			"sec:evaluation":   "evaluation",
			"sec:discussion":   "discussion",
			"sec:conclusion":   "conclusion",
			"sec:conclusions":  "conclusions",
			"sec:appendix":     "appendix",
		},
		SectionIDPrefix:    "sec-",
		FigureKeywords:     map[string][]string{},
		TableKeywords:      map[string][]string{},
		EquationKeywords:   map[string][]string{},
		TheoremKeywords:    map[string][]string{},
		MinParagraphLength: 40,
	}
}

// ParseHints reads YAML hints over the defaults. Map entries are merged;
// scalar fields replace the default when set.
func ParseHints(data []byte) (Hints, error) {
	var file Hints
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Hints{}, fmt.Errorf("parse hints: %w", err)
	}
	h := DefaultHints()
	mergeStrings(h.SectionIDs, file.SectionIDs)
	mergeLists(h.FigureKeywords, file.FigureKeywords)
	mergeLists(h.TableKeywords, file.TableKeywords)
	mergeLists(h.EquationKeywords, file.EquationKeywords)
	mergeLists(h.TheoremKeywords, file.TheoremKeywords)
	if file.SectionIDPrefix != "" {
		h.SectionIDPrefix = file.SectionIDPrefix
	}
	if file.MinParagraphLength > 0 {
		h.MinParagraphLength = file.MinParagraphLength
	}
	return h, nil
}

// LoadHints reads a hints file. An empty path yields the defaults.
func LoadHints(path string) (Hints, error) {
	if path == "" {
		return DefaultHints(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Hints{}, fmt.Errorf("read hints file: %w", err)
	}
	return ParseHints(data)
}

func mergeStrings(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeLists(dst, src map[string][]string) {
	for k, v := range src {
		dst[k] = v
	}
}
