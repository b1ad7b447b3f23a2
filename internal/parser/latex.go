package parser

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dgallion1/docxref/internal/labels"
)

const (
	contextWindow  = 200
	fingerprintMax = 160
)

// LaTeXParser extracts \label declarations from LaTeX source.
type LaTeXParser struct{}

var (
	labelRe   = regexp.MustCompile(`\\label\s*\{([^{}]+)\}`)
	envRe     = regexp.MustCompile(`\\(begin|end)\s*\{([A-Za-z]+\*?)\}|\\(\[|\])`)
	sectionRe = regexp.MustCompile(`\\(part|chapter|section|subsection|subsubsection|paragraph)\*?\s*(?:\[[^\]]*\])?\s*\{`)
	captionRe = regexp.MustCompile(`\\caption\s*(?:\[[^\]]*\])?\s*\{`)
)

// envTypes maps environment names to the construct they number.
var envTypes = map[string]labels.Type{
	"equation":    labels.Equation,
	"align":       labels.Equation,
	"gather":      labels.Equation,
	"multline":    labels.Equation,
	"eqnarray":    labels.Equation,
	"flalign":     labels.Equation,
	"displaymath": labels.Equation,
	"figure":      labels.Figure,
	"wrapfigure":  labels.Figure,
	"table":       labels.Table,
	"theorem":     labels.Theorem,
	"thm":         labels.Theorem,
	"proposition": labels.Theorem,
	"prop":        labels.Theorem,
	"definition":  labels.Definition,
	"defn":        labels.Definition,
	"lemma":       labels.Lemma,
	"lem":         labels.Lemma,
	"corollary":   labels.Corollary,
	"cor":         labels.Corollary,
}

type openEnv struct {
	name      string
	bodyStart int
}

// kind is the environment name without its star, with \[ reported as displaymath.
func (e *openEnv) kind() string {
	if e.name == "[" {
		return "displaymath"
	}
	return strings.TrimSuffix(e.name, "*")
}

func (p *LaTeXParser) Parse(r io.Reader, filename string) (*labels.Set, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read latex source: %w", err)
	}
	return ExtractLaTeX(string(raw)), nil
}

// ExtractLaTeX scans src for \label declarations and classifies each one.
func ExtractLaTeX(src string) *labels.Set {
	set := labels.NewSet()
	masked := maskComments(src)

	for _, m := range labelRe.FindAllStringSubmatchIndex(masked, -1) {
		name := strings.TrimSpace(masked[m[2]:m[3]])
		if name == "" {
			continue
		}
		start, end := m[0], m[1]

		env := enclosingEnv(masked[:start])
		marker := labels.Type("")
		if env != nil {
			marker = envTypes[env.kind()]
		}
		if marker == "" && followsHeading(masked, env, start) {
			marker = labels.Section
		}
		typ := labels.Classify(name, marker)

		l := &labels.Label{
			Name:    name,
			Type:    typ,
			Offset:  start,
			Line:    lineAt(masked, start),
			Context: collapse(masked[max(0, start-contextWindow):min(len(masked), end+contextWindow)]),
		}
		if env != nil {
			l.Env = env.kind()
		}
		l.Fingerprint = truncate(latexFingerprint(masked, typ, env, start, end), fingerprintMax)
		set.Add(l)
	}
	return set
}

// latexFingerprint picks the short content a resolver can look for in the
// rendered output: the math body for equations, the title for sections,
// the caption for floats and the body text for theorem-like blocks.
func latexFingerprint(src string, typ labels.Type, env *openEnv, start, end int) string {
	switch {
	case typ == labels.Section:
		locs := sectionRe.FindAllStringIndex(src[:start], -1)
		if len(locs) > 0 {
			return collapse(readBraced(src, locs[len(locs)-1][1]-1))
		}
	case env != nil:
		body := envBody(src, env, start, end)
		if typ == labels.Figure || typ == labels.Table {
			if loc := captionRe.FindStringIndex(body); loc != nil {
				return collapse(readBraced(body, loc[1]-1))
			}
		}
		return collapse(body)
	}
	return collapse(src[end:min(len(src), end+fingerprintMax)])
}

// envBody returns the environment's content with the label itself removed.
func envBody(src string, env *openEnv, start, end int) string {
	closeAt := len(src)
	closer := `\end{` + env.name + `}`
	if env.name == "[" {
		closer = `\]`
	}
	if i := strings.Index(src[end:], closer); i >= 0 {
		closeAt = end + i
	}
	return src[env.bodyStart:start] + src[end:closeAt]
}

// enclosingEnv returns the innermost environment still open at the end of
// prefix, or nil.
func enclosingEnv(prefix string) *openEnv {
	var stack []openEnv
	for _, m := range envRe.FindAllStringSubmatchIndex(prefix, -1) {
		if m[0] > 0 && prefix[m[0]-1] == '\\' {
			continue
		}
		switch {
		case m[6] >= 0 && prefix[m[6]:m[7]] == "[":
			stack = append(stack, openEnv{name: "[", bodyStart: m[1]})
		case m[6] >= 0:
			stack = popEnv(stack, "[")
		case prefix[m[2]:m[3]] == "begin":
			stack = append(stack, openEnv{name: prefix[m[4]:m[5]], bodyStart: m[1]})
		default:
			stack = popEnv(stack, prefix[m[4]:m[5]])
		}
	}
	if len(stack) == 0 {
		return nil
	}
	top := stack[len(stack)-1]
	return &top
}

// followsHeading reports whether the label at start belongs to the nearest
// preceding sectioning command: the command is within the context window
// and no environment opened after it encloses the label.
func followsHeading(src string, env *openEnv, start int) bool {
	locs := sectionRe.FindAllStringIndex(src[:start], -1)
	if len(locs) == 0 {
		return false
	}
	at := locs[len(locs)-1][0]
	if env != nil && env.bodyStart > at {
		return false
	}
	return start-at <= contextWindow
}

func popEnv(stack []openEnv, name string) []openEnv {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].name == name {
			return stack[:i]
		}
	}
	return stack
}

// readBraced returns the content of the brace group opening at src[open].
func readBraced(src string, open int) string {
	if open < 0 || open >= len(src) || src[open] != '{' {
		return ""
	}
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[open+1 : i]
			}
		}
	}
	return src[open+1:]
}

// maskComments blanks LaTeX comments while keeping byte offsets stable.
func maskComments(src string) string {
	b := []byte(src)
	inComment := false
	for i := 0; i < len(b); i++ {
		switch {
		case b[i] == '\n':
			inComment = false
		case inComment:
			b[i] = ' '
		case b[i] == '\\':
			i++
		case b[i] == '%':
			inComment = true
			b[i] = ' '
		}
	}
	return string(b)
}
