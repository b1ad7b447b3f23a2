package parser

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/docxref/internal/labels"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser extracts pandoc-crossref style {#prefix:name} labels from
// Markdown using goldmark.
type MarkdownParser struct{}

var (
	mdAttrRe  = regexp.MustCompile(`\{#([A-Za-z][\w:.\-]*)[^}]*\}`)
	mdImageRe = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)$`)
	mdClassRe = regexp.MustCompile(`\.([A-Za-z]+)`)
)

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*labels.Set, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown source: %w", err)
	}
	return ExtractMarkdown(src), nil
}

// ExtractMarkdown returns the labels declared in src. Heading ids come from
// goldmark's attribute parser; every other {#label} is classified from the
// line that carries it.
func ExtractMarkdown(src []byte) *labels.Set {
	set := labels.NewSet()

	md := goldmark.New(goldmark.WithParserOptions(gmparser.WithAttribute()))
	doc := md.Parser().Parse(text.NewReader(src))

	headingLines := make(map[int]bool)
	var code []span
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if lines := n.Lines(); lines.Len() > 0 {
				code = append(code, span{lines.At(0).Start, lines.At(lines.Len() - 1).Stop})
			}
			return ast.WalkSkipChildren, nil
		case ast.KindCodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					code = append(code, span{t.Segment.Start, t.Segment.Stop})
				}
			}
			return ast.WalkSkipChildren, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		raw, ok := h.AttributeString("id")
		if !ok {
			return ast.WalkSkipChildren, nil
		}
		id, ok := raw.([]byte)
		if !ok || len(id) == 0 {
			return ast.WalkSkipChildren, nil
		}
		offset := 0
		if lines := h.Lines(); lines.Len() > 0 {
			offset = lines.At(0).Start
		}
		line := lineAt(string(src), offset)
		headingLines[line] = true

		title := collapse(string(h.Text(src)))
		set.Add(&labels.Label{
			Name:        string(id),
			Type:        labels.Classify(string(id), labels.Section),
			Offset:      offset,
			Line:        line,
			Context:     title,
			Fingerprint: truncate(title, fingerprintMax),
		})
		return ast.WalkSkipChildren, nil
	})

	s := string(src)
	for _, m := range mdAttrRe.FindAllStringSubmatchIndex(s, -1) {
		line := lineAt(s, m[0])
		if headingLines[line] || inSpans(code, m[0]) {
			continue
		}
		name := s[m[2]:m[3]]
		marker, fingerprint := markdownMarker(s, m[0], m[1])
		set.Add(&labels.Label{
			Name:        name,
			Type:        labels.Classify(name, marker),
			Offset:      m[0],
			Line:        line,
			Context:     collapse(s[max(0, m[0]-contextWindow):min(len(s), m[1]+contextWindow)]),
			Fingerprint: truncate(collapse(fingerprint), fingerprintMax),
		})
	}
	return set
}

// span is a byte range of the source.
type span struct{ start, stop int }

func inSpans(spans []span, off int) bool {
	for _, sp := range spans {
		if off >= sp.start && off < sp.stop {
			return true
		}
	}
	return false
}

// markdownMarker classifies the attribute at s[start:end] from what carries
// it: display math, an image, a table caption line, a fenced div or an ATX
// heading goldmark did not attach an id to.
func markdownMarker(s string, start, end int) (labels.Type, string) {
	lineStart := strings.LastIndex(s[:start], "\n") + 1
	line := strings.TrimSpace(s[lineStart:start])

	prefix := strings.TrimRightFunc(s[:start], unicode.IsSpace)
	if strings.HasSuffix(prefix, "$$") {
		inner := prefix[:len(prefix)-2]
		if j := strings.LastIndex(inner, "$$"); j >= 0 {
			return labels.Equation, inner[j+2:]
		}
	}
	if m := mdImageRe.FindStringSubmatch(line); m != nil {
		return labels.Figure, m[1]
	}
	if strings.HasPrefix(line, "Table:") {
		return labels.Table, strings.TrimPrefix(line, "Table:")
	}
	if strings.HasPrefix(line, ":") && !strings.HasPrefix(line, ":::") {
		return labels.Table, strings.TrimPrefix(line, ":")
	}
	if strings.HasPrefix(line, ":::") {
		for _, cm := range mdClassRe.FindAllStringSubmatch(s[start:end], -1) {
			if t, ok := labels.TypeForWord(cm[1]); ok {
				return t, divBody(s, end)
			}
		}
		return "", divBody(s, end)
	}
	if strings.HasPrefix(line, "#") {
		return labels.Section, strings.TrimLeft(line, "# ")
	}
	return "", line
}

// divBody returns the text of a fenced div up to its closing fence.
func divBody(s string, from int) string {
	rest := s[from:]
	if i := strings.Index(rest, "\n:::"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
