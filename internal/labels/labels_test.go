package labels

import (
	"testing"
)

func TestClassify_PrefixTable(t *testing.T) {
	tests := []struct {
		name string
		want Type
	}{
		{"eq:foo", Equation},
		{"thm:bar", Theorem},
		{"sec:intro", Section},
		{"fig:convergence", Figure},
		{"tab:results", Table},
		{"tbl:results", Table},
		{"def:metric", Definition},
		{"lem:bound", Lemma},
		{"cor:main", Corollary},
		{"prop:closed", Theorem},
		{"EQ:Upper", Equation},
	}
	for _, tt := range tests {
		if got := Classify(tt.name, ""); got != tt.want {
			t.Errorf("Classify(%q): expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestClassify_PrefixBeatsMarker(t *testing.T) {
	if got := Classify("eq:foo", Section); got != Equation {
		t.Errorf("expected prefix to win, got %q", got)
	}
}

func TestClassify_MarkerThenGeneric(t *testing.T) {
	if got := Classify("intro", Section); got != Section {
		t.Errorf("expected marker type, got %q", got)
	}
	if got := Classify("intro", ""); got != Generic {
		t.Errorf("expected generic, got %q", got)
	}
}

func TestStripPrefix(t *testing.T) {
	tests := map[string]string{
		"thm:extended": "extended",
		"plain":        "plain",
		"sec:":         "sec:",
		"a:b:c":        "b:c",
	}
	for in, want := range tests {
		if got := StripPrefix(in); got != want {
			t.Errorf("StripPrefix(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestTypeForWord(t *testing.T) {
	tests := []struct {
		word string
		want Type
		ok   bool
	}{
		{"Fig.", Figure, true},
		{"theorem", Theorem, true},
		{"Proposition", Theorem, true},
		{"Eq.", Equation, true},
		{"banana", Generic, false},
	}
	for _, tt := range tests {
		got, ok := TypeForWord(tt.word)
		if got != tt.want || ok != tt.ok {
			t.Errorf("TypeForWord(%q): expected (%q,%v), got (%q,%v)", tt.word, tt.want, tt.ok, got, ok)
		}
	}
}

func TestKeywords_SkipsCommandsAndStopwords(t *testing.T) {
	got := Keywords(`\begin{theorem} The Banach fixed point \emph{theorem} holds for every contraction`)
	want := []string{"banach", "fixed", "point", "holds", "contraction"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSet_FirstDeclarationWins(t *testing.T) {
	s := NewSet()
	if !s.Add(&Label{Name: "eq:a", Type: Equation}) {
		t.Fatal("expected first add to succeed")
	}
	if s.Add(&Label{Name: "eq:a", Type: Section}) {
		t.Error("expected duplicate add to be rejected")
	}
	l, _ := s.Get("eq:a")
	if l.Type != Equation {
		t.Errorf("expected type %q, got %q", Equation, l.Type)
	}
}

func TestSet_Ordinal(t *testing.T) {
	s := NewSet()
	s.Add(&Label{Name: "fig:a", Type: Figure})
	s.Add(&Label{Name: "eq:x", Type: Equation})
	s.Add(&Label{Name: "fig:b", Type: Figure})

	if got := s.Ordinal("fig:b"); got != 1 {
		t.Errorf("expected ordinal 1, got %d", got)
	}
	if got := s.Ordinal("eq:x"); got != 0 {
		t.Errorf("expected ordinal 0, got %d", got)
	}
	if got := s.Ordinal("missing"); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}

func TestSet_NilIsEmpty(t *testing.T) {
	var s *Set
	if s.Len() != 0 || len(s.All()) != 0 {
		t.Error("expected nil set to be empty")
	}
	if _, ok := s.Get("x"); ok {
		t.Error("expected nil set lookup to miss")
	}
}
