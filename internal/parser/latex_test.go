package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docxref/internal/labels"
)

const sampleTeX = `\documentclass{article}
\begin{document}
\section{Introduction}\label{sec:intro}
We start with the famous relation
\begin{equation}
E=mc^2 \label{eq:einstein}
\end{equation}
% \label{eq:commented}
\begin{theorem}\label{thm:main}
The triangle inequality holds for every norm.
\end{theorem}
\begin{theorem}\label{thm:extended}
Every contraction on a Banach space has a unique fixed point.
\end{theorem}
\begin{figure}
\includegraphics{conv.png}
\caption{Convergence of the solver}
\label{fig:convergence}
\end{figure}
\begin{lemma}\label{bound}
A bounded monotone sequence converges.
\end{lemma}
\[ a^2 + b^2 = c^2 \label{pythagoras} \]
\end{document}
`

func TestExtractLaTeX_Classification(t *testing.T) {
	set := ExtractLaTeX(sampleTeX)

	tests := []struct {
		name string
		typ  labels.Type
		env  string
	}{
		{"sec:intro", labels.Section, "document"},
		{"eq:einstein", labels.Equation, "equation"},
		{"thm:main", labels.Theorem, "theorem"},
		{"thm:extended", labels.Theorem, "theorem"},
		{"fig:convergence", labels.Figure, "figure"},
		{"bound", labels.Lemma, "lemma"},
		{"pythagoras", labels.Equation, "displaymath"},
	}
	for _, tt := range tests {
		l, ok := set.Get(tt.name)
		if !ok {
			t.Errorf("expected %s to be extracted", tt.name)
			continue
		}
		if l.Type != tt.typ {
			t.Errorf("%s: expected type %q, got %q", tt.name, tt.typ, l.Type)
		}
		if l.Env != tt.env {
			t.Errorf("%s: expected env %q, got %q", tt.name, tt.env, l.Env)
		}
	}
}

func TestExtractLaTeX_SkipsComments(t *testing.T) {
	set := ExtractLaTeX(sampleTeX)
	if _, ok := set.Get("eq:commented"); ok {
		t.Error("expected commented-out label to be ignored")
	}
	if set.Len() != 7 {
		t.Errorf("expected 7 labels, got %d", set.Len())
	}
}

func TestExtractLaTeX_Fingerprints(t *testing.T) {
	set := ExtractLaTeX(sampleTeX)

	tests := map[string]string{
		"sec:intro":       "Introduction",
		"eq:einstein":     "E=mc^2",
		"fig:convergence": "Convergence of the solver",
		"pythagoras":      "a^2 + b^2 = c^2",
	}
	for name, want := range tests {
		l, _ := set.Get(name)
		if l == nil {
			t.Fatalf("missing label %s", name)
		}
		if l.Fingerprint != want {
			t.Errorf("%s: expected fingerprint %q, got %q", name, want, l.Fingerprint)
		}
	}

	main, _ := set.Get("thm:main")
	if !strings.Contains(main.Fingerprint, "inequality") {
		t.Errorf("expected thm:main fingerprint to mention inequality, got %q", main.Fingerprint)
	}
	ext, _ := set.Get("thm:extended")
	if !strings.Contains(ext.Fingerprint, "Banach") {
		t.Errorf("expected thm:extended fingerprint to mention Banach, got %q", ext.Fingerprint)
	}
}

func TestExtractLaTeX_Deterministic(t *testing.T) {
	a := ExtractLaTeX(sampleTeX).All()
	b := ExtractLaTeX(sampleTeX).All()
	if len(a) != len(b) {
		t.Fatalf("expected equal lengths, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if *a[i] != *b[i] {
			t.Errorf("label %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestExtractLaTeX_LineNumbers(t *testing.T) {
	set := ExtractLaTeX(sampleTeX)
	l, _ := set.Get("eq:einstein")
	if l.Line != 6 {
		t.Errorf("expected line 6, got %d", l.Line)
	}
}

func TestExtractLaTeX_SectionMarkerWithoutPrefix(t *testing.T) {
	src := "\\section{Method}\nWe describe the approach.\\label{method}\n"
	set := ExtractLaTeX(src)
	l, ok := set.Get("method")
	if !ok {
		t.Fatal("expected method to be extracted")
	}
	if l.Type != labels.Section {
		t.Errorf("expected type %q, got %q", labels.Section, l.Type)
	}
	if l.Fingerprint != "Method" {
		t.Errorf("expected fingerprint %q, got %q", "Method", l.Fingerprint)
	}
}

func TestExtractLaTeX_GenericWithoutMarker(t *testing.T) {
	set := ExtractLaTeX("Plain text \\label{note} continues here.")
	l, ok := set.Get("note")
	if !ok {
		t.Fatal("expected note to be extracted")
	}
	if l.Type != labels.Generic {
		t.Errorf("expected type %q, got %q", labels.Generic, l.Type)
	}
}

func TestExtractLaTeX_ListItemAfterSectionIsGeneric(t *testing.T) {
	src := "\\section{Intro}\\label{intro}\nSome text.\n" +
		"\\begin{enumerate}\n\\item First \\label{step1}\n\\end{enumerate}\n" +
		"\\section{Later}\n" + strings.Repeat("Filler sentence for the body. ", 20) + "\\label{far}\n"
	set := ExtractLaTeX(src)

	tests := map[string]labels.Type{
		"intro": labels.Section,
		"step1": labels.Generic,
		"far":   labels.Generic,
	}
	for name, want := range tests {
		l, ok := set.Get(name)
		if !ok {
			t.Fatalf("expected %s to be extracted", name)
		}
		if l.Type != want {
			t.Errorf("%s: expected type %q, got %q", name, want, l.Type)
		}
	}
}
