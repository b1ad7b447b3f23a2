package labels

import (
	"regexp"
	"strings"
)

// Type classifies the construct a label is declared on.
type Type string

const (
	Section    Type = "section"
	Equation   Type = "equation"
	Figure     Type = "figure"
	Table      Type = "table"
	Theorem    Type = "theorem"
	Definition Type = "definition"
	Lemma      Type = "lemma"
	Corollary  Type = "corollary"
	Generic    Type = "generic"
)

// Types lists every label type in a stable order.
var Types = []Type{Section, Equation, Figure, Table, Theorem, Definition, Lemma, Corollary, Generic}

// IsTheoremFamily reports whether t is one of the theorem-like types.
func (t Type) IsTheoremFamily() bool {
	switch t {
	case Theorem, Definition, Lemma, Corollary:
		return true
	}
	return false
}

// Word returns the human-facing construct word used in link text.
func (t Type) Word() string {
	switch t {
	case Section:
		return "Section"
	case Equation:
		return "Equation"
	case Figure:
		return "Figure"
	case Table:
		return "Table"
	case Theorem:
		return "Theorem"
	case Definition:
		return "Definition"
	case Lemma:
		return "Lemma"
	case Corollary:
		return "Corollary"
	}
	return ""
}

// Label is a symbolic name declared at a referenceable construct in the source.
type Label struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Offset      int    `json:"offset"`
	Line        int    `json:"line"`
	Context     string `json:"context,omitempty"`
	Env         string `json:"env,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Keywords returns the distinctive words of the label's fingerprint.
func (l *Label) Keywords() []string {
	if l == nil {
		return nil
	}
	return Keywords(l.Fingerprint)
}

// prefixRule maps a label-name prefix to a type. Order matters: first match wins.
type prefixRule struct {
	prefix string
	typ    Type
}

var prefixTable = []prefixRule{
	{"sec:", Section},
	{"section:", Section},
	{"subsec:", Section},
	{"ch:", Section},
	{"chap:", Section},
	{"app:", Section},
	{"eq:", Equation},
	{"eqn:", Equation},
	{"equation:", Equation},
	{"fig:", Figure},
	{"figure:", Figure},
	{"tab:", Table},
	{"tbl:", Table},
	{"table:", Table},
	{"thm:", Theorem},
	{"theorem:", Theorem},
	{"prop:", Theorem},
	{"def:", Definition},
	{"defn:", Definition},
	{"definition:", Definition},
	{"lem:", Lemma},
	{"lemma:", Lemma},
	{"cor:", Corollary},
	{"corollary:", Corollary},
}

// ClassifyPrefix returns the type implied by a known name prefix.
func ClassifyPrefix(name string) (Type, bool) {
	lower := strings.ToLower(name)
	for _, rule := range prefixTable {
		if strings.HasPrefix(lower, rule.prefix) {
			return rule.typ, true
		}
	}
	return Generic, false
}

// Classify applies the classification cascade: known name prefix, then the
// nearest preceding structural marker, then Generic. marker is the type of
// that marker, or "" when the caller found none.
func Classify(name string, marker Type) Type {
	if t, ok := ClassifyPrefix(name); ok {
		return t
	}
	if marker != "" {
		return marker
	}
	return Generic
}

// StripPrefix removes a "kind:" style prefix from a label name.
func StripPrefix(name string) string {
	if i := strings.IndexAny(name, ":"); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}

// WordForms lists the spellings that count as the construct word for t,
// full word first.
func WordForms(t Type) []string {
	switch t {
	case Section:
		return []string{"Section", "Sections", "Sec.", "Chapter", "Appendix", "§"}
	case Equation:
		return []string{"Equation", "Equations", "Eqn.", "Eq.", "Eqs."}
	case Figure:
		return []string{"Figure", "Figures", "Fig.", "Figs."}
	case Table:
		return []string{"Table", "Tables", "Tab."}
	case Theorem:
		return []string{"Theorem", "Theorems", "Thm.", "Proposition", "Prop."}
	case Definition:
		return []string{"Definition", "Definitions", "Def."}
	case Lemma:
		return []string{"Lemma", "Lemmas", "Lem."}
	case Corollary:
		return []string{"Corollary", "Corollaries", "Cor."}
	}
	return nil
}

// TypeForWord maps a construct word (any supported spelling) back to a type.
func TypeForWord(word string) (Type, bool) {
	w := strings.TrimSpace(word)
	for _, t := range Types {
		for _, form := range WordForms(t) {
			if strings.EqualFold(form, w) {
				return t, true
			}
		}
	}
	return Generic, false
}

var wordRe = regexp.MustCompile(`[A-Za-z][A-Za-z'-]+`)

var stopwords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "there": true,
	"their": true, "these": true, "those": true, "which": true, "where": true,
	"while": true, "with": true, "within": true, "without": true, "would": true,
	"every": true, "other": true, "since": true, "shall": true, "could": true,
	"being": true, "under": true, "between": true, "into": true, "from": true,
	"that": true, "this": true, "then": true, "than": true, "have": true,
	"label": true, "begin": true, "end": true, "equation": true, "align": true,
	"theorem": true, "lemma": true, "definition": true, "corollary": true,
	"proposition": true, "proof": true, "figure": true, "table": true,
	"caption": true, "section": true, "subsection": true, "frac": true,
	"mathbb": true, "mathcal": true, "left": true, "right": true, "textbf": true,
	"emph": true, "cite": true, "eqref": true, "centering": true,
}

// Keywords lower-cases text and returns its distinctive words (four letters
// or more, LaTeX command names and stopwords removed) in first-seen order.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, loc := range wordRe.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && text[loc[0]-1] == '\\' {
			continue
		}
		w := strings.ToLower(text[loc[0]:loc[1]])
		if len(w) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
