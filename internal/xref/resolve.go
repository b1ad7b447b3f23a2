package xref

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"golang.org/x/net/html"
)

// strategy is one way of locating the rendered node for a label. Strategies
// are tried in order; the first non-nil result wins.
type strategy struct {
	name string
	// low marks results that are guesses and should be revisited when better
	// information arrives.
	low  bool
	find func(b *Build, name string, l *labels.Label) *html.Node
}

// Match is the node a resolver settled on and how it got there.
type Match struct {
	Node          *html.Node
	Strategy      string
	LowConfidence bool
}

var strategies = map[labels.Type][]strategy{
	labels.Section: {
		{name: "heading-title", find: findSectionByTitle},
		{name: "static-table", find: findSectionByTable},
		{name: "id", find: findSectionByID},
		{name: "numbered-heading", low: true, find: findNumberedHeading},
		{name: "content-heading", low: true, find: findContentHeading},
	},
	labels.Equation: {
		{name: "typeset", find: findTypesetEquation},
		{name: "fingerprint", find: findEquationByFingerprint},
		{name: "round-robin", low: true, find: findEquationRoundRobin},
	},
	labels.Figure: {
		{name: "caption", find: findFloatByCaption},
		{name: "ordinal", find: findFloatByOrdinal},
		{name: "first", low: true, find: findFirstFloat},
	},
	labels.Table: {
		{name: "caption", find: findFloatByCaption},
		{name: "ordinal", find: findFloatByOrdinal},
		{name: "first", low: true, find: findFirstFloat},
	},
	labels.Generic: {
		{name: "paragraph", find: findParagraph},
		{name: "block", find: findBlock},
		{name: "subheading", find: findSubheading},
		{name: "structure", find: findStructure},
		{name: "content-root", low: true, find: findContentRoot},
		{name: "document-root", low: true, find: findDocumentRoot},
	},
}

var theoremStrategies = []strategy{
	{name: "keywords", find: findTheoremByKeywords},
	{name: "ordinal", low: true, find: findTheoremByPosition},
}

// locate runs the strategy list for typ. It never panics on a miss: an
// exhausted list yields ok == false.
func (b *Build) locate(name string, typ labels.Type) (Match, bool) {
	l, _ := b.labels.Get(name)
	list := strategies[typ]
	if typ.IsTheoremFamily() {
		b.assignTheoremIDs()
		list = theoremStrategies
	}
	for _, s := range list {
		n := s.find(b, name, l)
		if n == nil {
			continue
		}
		if s.low {
			b.log.Warn("low-confidence resolution", "label", name, "type", typ, "strategy", s.name)
		} else {
			b.log.Debug("resolved", "label", name, "type", typ, "strategy", s.name)
		}
		return Match{Node: n, Strategy: s.name, LowConfidence: s.low}, true
	}
	return Match{}, false
}

// unclaimed reports whether no other label's entry owns n.
func (b *Build) unclaimed(n *html.Node, label string) bool {
	_, taken := b.registry.claimedBy(b.tree.Ref(n), label)
	return !taken
}

// nameWords splits the part of a label after its prefix into lower-case
// words: "fig:loss-curve" yields loss, curve.
func nameWords(name string) []string {
	return strings.FieldsFunc(strings.ToLower(labels.StripPrefix(name)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// labelKeywords prefers the fingerprint and falls back to the wider context
// window when extraction found no fingerprint.
func labelKeywords(l *labels.Label) []string {
	if l == nil {
		return nil
	}
	if kw := l.Keywords(); len(kw) > 0 {
		return kw
	}
	return labels.Keywords(l.Context)
}

// --- sections ---

func (b *Build) indexHeadings() {
	if b.headingWords != nil {
		return
	}
	b.headingWords = make(map[string]*html.Node)
	b.headingTitles = make(map[string]*html.Node)
	for _, h := range contentHeadings(b.tree) {
		title := headingTitle(h)
		if _, ok := b.headingTitles[title]; !ok && title != "" {
			b.headingTitles[title] = h
		}
		for _, w := range strings.Fields(title) {
			if len(w) < 3 {
				continue
			}
			if _, ok := b.headingWords[w]; !ok {
				b.headingWords[w] = h
			}
		}
	}
}

// headingTitle is the lower-cased heading text without its leading number.
func headingTitle(h *html.Node) string {
	text := doctree.NormalizedText(h)
	if m := leadingNumRe.FindStringSubmatchIndex(text); m != nil {
		text = text[m[3]:]
	}
	return strings.Join(strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func findSectionByTitle(b *Build, name string, l *labels.Label) *html.Node {
	b.indexHeadings()
	if l != nil && l.Fingerprint != "" {
		fp := strings.Join(strings.FieldsFunc(strings.ToLower(l.Fingerprint), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}), " ")
		if h, ok := b.headingTitles[fp]; ok {
			return h
		}
	}
	for _, w := range nameWords(name) {
		if h, ok := b.headingWords[w]; ok {
			return h
		}
	}
	return nil
}

func findSectionByTable(b *Build, name string, _ *labels.Label) *html.Node {
	id, ok := b.hints.SectionIDs[name]
	if !ok {
		return nil
	}
	return b.tree.ByID(id)
}

func findSectionByID(b *Build, name string, _ *labels.Label) *html.Node {
	bare := labels.StripPrefix(name)
	for _, id := range []string{name, bare, b.hints.SectionIDPrefix + bare} {
		if n := b.tree.ByID(id); n != nil && n.Type == html.ElementNode {
			return n
		}
	}
	return nil
}

func findNumberedHeading(b *Build, name string, _ *labels.Label) *html.Node {
	for _, h := range contentHeadings(b.tree) {
		if doctree.HasAttr(h, "data-number") && b.unclaimed(h, name) {
			return h
		}
	}
	return nil
}

func findContentHeading(b *Build, _ string, _ *labels.Label) *html.Node {
	if hs := contentHeadings(b.tree); len(hs) > 0 {
		return hs[0]
	}
	return nil
}

// --- equations ---

func findTypesetEquation(b *Build, name string, _ *labels.Label) *html.Node {
	if b.typeset == nil {
		return nil
	}
	return typesetNode(b.tree, b.typeset, name)
}

// typesetNode asks anchors for name with and without the "eq:" prefix.
func typesetNode(tree *doctree.Tree, anchors TypesetAnchors, name string) *html.Node {
	candidates := []string{name}
	if strings.HasPrefix(name, "eq:") {
		candidates = append(candidates, strings.TrimPrefix(name, "eq:"))
	} else {
		candidates = append(candidates, "eq:"+name)
	}
	for _, c := range candidates {
		id, ok := anchors.AnchorID(c)
		if !ok {
			continue
		}
		if n := tree.ByID(id); n != nil {
			return equationContainer(n)
		}
	}
	return nil
}

// mathKey strips whitespace, backslashes and braces so source TeX and
// rendered TeX compare equal.
func mathKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\\' || r == '{' || r == '}' {
			return -1
		}
		return r
	}, s)
}

func findEquationByFingerprint(b *Build, name string, l *labels.Label) *html.Node {
	var needles []string
	if l != nil {
		if k := mathKey(l.Fingerprint); len(k) >= 3 {
			needles = append(needles, k)
		}
	}
	for _, kw := range b.hints.EquationKeywords[name] {
		if k := mathKey(kw); k != "" {
			needles = append(needles, k)
		}
	}
	if len(needles) == 0 {
		return nil
	}
	nodes := displayMathNodes(b.tree)
	for _, needle := range needles {
		for _, n := range nodes {
			if b.unclaimed(n, name) && strings.Contains(mathKey(doctree.TextContent(n)), needle) {
				return n
			}
		}
	}
	return nil
}

// findEquationRoundRobin hands out display equations in order from a
// per-build cursor, skipping nodes another label already owns.
func findEquationRoundRobin(b *Build, name string, _ *labels.Label) *html.Node {
	nodes := displayMathNodes(b.tree)
	if len(nodes) == 0 {
		return nil
	}
	for range nodes {
		n := nodes[b.eqCursor%len(nodes)]
		b.eqCursor++
		if b.unclaimed(n, name) {
			return n
		}
	}
	n := nodes[b.eqCursor%len(nodes)]
	b.eqCursor++
	return n
}

// --- figures and tables ---

func floatKeywords(b *Build, name string, typ labels.Type) []string {
	table := b.hints.FigureKeywords
	if typ == labels.Table {
		table = b.hints.TableKeywords
	}
	var out []string
	for _, k := range table[name] {
		out = append(out, strings.ToLower(k))
	}
	for _, w := range nameWords(name) {
		if len(w) >= 4 {
			out = append(out, w)
		}
	}
	return out
}

func findFloatByCaption(b *Build, name string, l *labels.Label) *html.Node {
	typ := labels.Figure
	if l != nil {
		typ = l.Type
	} else if t, ok := labels.ClassifyPrefix(name); ok {
		typ = t
	}
	keywords := floatKeywords(b, name, typ)
	fp := ""
	if l != nil {
		fp = strings.ToLower(strings.Join(strings.Fields(l.Fingerprint), " "))
		keywords = append(keywords, labelKeywords(l)...)
	}
	var best *html.Node
	bestScore := 0
	for _, n := range floatNodes(b.tree, typ) {
		if !b.unclaimed(n, name) {
			continue
		}
		caption := strings.ToLower(captionText(n))
		if caption == "" {
			continue
		}
		score := 0
		if fp != "" && strings.Contains(caption, fp) {
			score += 10
		}
		for _, k := range keywords {
			if strings.Contains(caption, k) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = n, score
		}
	}
	return best
}

func findFloatByOrdinal(b *Build, name string, l *labels.Label) *html.Node {
	if l == nil {
		return nil
	}
	i := b.labels.Ordinal(name)
	nodes := floatNodes(b.tree, l.Type)
	if i < 0 || i >= len(nodes) {
		return nil
	}
	return nodes[i]
}

func findFirstFloat(b *Build, name string, l *labels.Label) *html.Node {
	typ := labels.Figure
	if l != nil {
		typ = l.Type
	} else if t, ok := labels.ClassifyPrefix(name); ok {
		typ = t
	}
	if nodes := floatNodes(b.tree, typ); len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// --- theorem family ---

// assignTheoremIDs gives every theorem-like container without an id a
// "<family>-<n>" id, numbered per family in document order.
func (b *Build) assignTheoremIDs() {
	if b.theoremIDs {
		return
	}
	b.theoremIDs = true
	counts := make(map[string]int)
	for _, n := range theoremNodes(b.tree, theoremFamilies) {
		f := familyOf(n)
		counts[f]++
		if doctree.Attr(n, "id") == "" {
			b.tree.SetID(n, fmt.Sprintf("%s-%d", f, counts[f]))
		}
	}
}

// theoremNodes returns the outermost containers of the given families.
func theoremNodes(tree *doctree.Tree, families []string) []*html.Node {
	want := make(map[string]bool, len(families))
	for _, f := range families {
		want[f] = true
	}
	var out []*html.Node
	doctree.Walk(tree.Root, func(n *html.Node) bool {
		if f := familyOf(n); f != "" {
			if want[f] {
				out = append(out, n)
			}
			return false
		}
		return true
	})
	return out
}

func theoremType(name string, l *labels.Label) labels.Type {
	if l != nil {
		return l.Type
	}
	if t, ok := labels.ClassifyPrefix(name); ok {
		return t
	}
	return labels.Theorem
}

func findTheoremByKeywords(b *Build, name string, l *labels.Label) *html.Node {
	type weighted struct {
		word   string
		weight int
	}
	var keywords []weighted
	for _, k := range b.hints.TheoremKeywords[name] {
		keywords = append(keywords, weighted{strings.ToLower(k), 3})
	}
	for _, k := range labelKeywords(l) {
		keywords = append(keywords, weighted{k, 1})
	}
	for _, w := range nameWords(name) {
		if len(w) >= 4 {
			keywords = append(keywords, weighted{w, 1})
		}
	}
	if len(keywords) == 0 {
		return nil
	}
	var best *html.Node
	bestScore := 0
	for _, n := range theoremNodes(b.tree, familiesFor(theoremType(name, l))) {
		if !b.unclaimed(n, name) {
			continue
		}
		text := strings.ToLower(doctree.NormalizedText(n))
		score := 0
		for _, k := range keywords {
			if strings.Contains(text, k.word) {
				score += k.weight
			}
		}
		if score > bestScore {
			best, bestScore = n, score
		}
	}
	return best
}

func findTheoremByPosition(b *Build, name string, l *labels.Label) *html.Node {
	nodes := theoremNodes(b.tree, familiesFor(theoremType(name, l)))
	if i := b.labels.Ordinal(name); i >= 0 && i < len(nodes) && b.unclaimed(nodes[i], name) {
		return nodes[i]
	}
	for _, n := range nodes {
		if b.unclaimed(n, name) {
			return n
		}
	}
	return nil
}

// --- generic ---

func isCodeLike(n *html.Node, text string) bool {
	isCode := func(p *html.Node) bool {
		return doctree.IsElement(p, "pre") || doctree.IsElement(p, "code")
	}
	if doctree.Closest(n, isCode) != nil {
		return true
	}
	if c := doctree.First(n, isCode); c != nil && doctree.NormalizedText(c) == text {
		return true
	}
	return !strings.ContainsAny(text, " \t\n") && len(text) <= 40
}

func findParagraph(b *Build, _ string, _ *labels.Label) *html.Node {
	return doctree.First(b.tree.ContentRoot(), func(n *html.Node) bool {
		if !doctree.IsElement(n, "p") && !(n.Type == html.ElementNode && doctree.HasClass(n, "ltx_para")) {
			return false
		}
		text := doctree.NormalizedText(n)
		return len(text) > b.hints.MinParagraphLength && !inTitleBlock(n) && !isCodeLike(n, text)
	})
}

var blockTags = map[string]bool{"p": true, "div": true, "section": true, "blockquote": true}

func findBlock(b *Build, _ string, _ *labels.Label) *html.Node {
	root := b.tree.ContentRoot()
	return doctree.First(root, func(n *html.Node) bool {
		return n != root && n.Type == html.ElementNode && blockTags[n.Data] &&
			!inTitleBlock(n) && doctree.NormalizedText(n) != ""
	})
}

func findSubheading(b *Build, _ string, _ *labels.Label) *html.Node {
	for _, h := range contentHeadings(b.tree) {
		if doctree.HeadingLevel(h) > 1 {
			return h
		}
	}
	return nil
}

var structureTags = map[string]bool{"ul": true, "ol": true, "dl": true, "table": true, "figure": true, "section": true}

func findStructure(b *Build, _ string, _ *labels.Label) *html.Node {
	root := b.tree.ContentRoot()
	return doctree.First(root, func(n *html.Node) bool {
		return n != root && n.Type == html.ElementNode && structureTags[n.Data]
	})
}

func findContentRoot(b *Build, _ string, _ *labels.Label) *html.Node {
	if root := b.tree.ContentRoot(); root != b.tree.Body() {
		return root
	}
	return nil
}

func findDocumentRoot(b *Build, _ string, _ *labels.Label) *html.Node {
	return b.tree.Body()
}
