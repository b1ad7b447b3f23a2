package xref

import (
	"fmt"
	"strconv"

	"github.com/dgallion1/docxref/internal/doctree"
)

// LinkHealth is the state of one reference link.
type LinkHealth struct {
	Target  string `json:"target"`
	Text    string `json:"text"`
	Working bool   `json:"working"`
	Reason  string `json:"reason,omitempty"`
}

// LinkReport counts working and broken reference links.
type LinkReport struct {
	Total   int          `json:"total"`
	Working int          `json:"working"`
	Broken  int          `json:"broken"`
	Links   []LinkHealth `json:"links"`
}

// VerifyLinks checks that every reference link's target id exists.
// Working + Broken always equals Total.
func VerifyLinks(tree *doctree.Tree) LinkReport {
	report := LinkReport{Links: []LinkHealth{}}
	for _, a := range ReferenceLinks(tree) {
		h := LinkHealth{Target: LinkTarget(a), Text: doctree.NormalizedText(a)}
		switch {
		case h.Target == "":
			h.Reason = "no target"
		case tree.ByID(h.Target) == nil:
			h.Reason = "target not found"
		default:
			h.Working = true
		}
		report.Total++
		if h.Working {
			report.Working++
		} else {
			report.Broken++
		}
		report.Links = append(report.Links, h)
	}
	return report
}

// RegistryReport summarizes how complete the registry is and groups entries
// that look like duplicate-collision candidates.
type RegistryReport struct {
	TotalEntries   int                 `json:"totalEntries"`
	Complete       int                 `json:"complete"`
	Incomplete     int                 `json:"incomplete"`
	CompletionRate string              `json:"completionRate"`
	IncompleteList []string            `json:"incompleteLabels"`
	ByNode         map[string][]string `json:"byNode"`
	ByNumber       map[string][]string `json:"byNumber"`
}

// RegistryStatus reports on reg. A nil or empty registry yields a zeroed
// report with a "0%" completion rate.
func RegistryStatus(reg *Registry) RegistryReport {
	report := RegistryReport{
		CompletionRate: "0%",
		IncompleteList: []string{},
		ByNode:         map[string][]string{},
		ByNumber:       map[string][]string{},
	}
	nodes := map[string][]string{}
	numbers := map[string][]string{}
	for _, e := range reg.Entries() {
		report.TotalEntries++
		if e.Complete() {
			report.Complete++
		} else {
			report.Incomplete++
			report.IncompleteList = append(report.IncompleteList, e.Label)
		}
		if e.Node != doctree.NoNode {
			k := fmt.Sprintf("node-%d", e.Node)
			nodes[k] = append(nodes[k], e.Label)
		}
		if e.Number != "" {
			numbers[e.Number] = append(numbers[e.Number], e.Label)
		}
	}
	for k, v := range nodes {
		if len(v) > 1 {
			report.ByNode[k] = v
		}
	}
	for k, v := range numbers {
		if len(v) > 1 {
			report.ByNumber[k] = v
		}
	}
	if report.TotalEntries > 0 {
		rate := float64(report.Complete) / float64(report.TotalEntries) * 100
		report.CompletionRate = strconv.FormatFloat(rate, 'f', 1, 64) + "%"
	}
	return report
}
