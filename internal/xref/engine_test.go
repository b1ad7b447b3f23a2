package xref

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
)

func ref(target string) string {
	return fmt.Sprintf(`<a href="#%[1]s" data-reference-type="ref" data-reference="%[1]s">[%[1]s]</a>`, target)
}

func mustTree(t *testing.T, s string) *doctree.Tree {
	t.Helper()
	tree, err := doctree.ParseString(s)
	require.NoError(t, err)
	return tree
}

func linkTo(tree *doctree.Tree, target string) *html.Node {
	for _, a := range ReferenceLinks(tree) {
		if LinkTarget(a) == target {
			return a
		}
	}
	return nil
}

func paperHTML() string {
	return `<html><body>
<header id="title-block-header"><h1 class="title">A Paper</h1></header>
<main>
<h2 id="introduction" data-number="1"><span class="header-section-number">1</span> Introduction</h2>
<p>We rely on Equation ` + ref("eq:einstein") + ` throughout this introduction.</p>
<span class="math display">(1)E=mc^2</span>
<div class="theorem"><p><strong>Theorem 1.</strong> The triangle inequality holds for every norm.</p></div>
<div class="theorem"><p><strong>Theorem 2.</strong> Every contraction on a Banach space has a fixed point.</p></div>
<p>See ` + ref("thm:extended") + ` and ` + ref("thm:main") + `.</p>
<figure><img src="c.png"><figcaption>Figure 1: Convergence of the solver.</figcaption></figure>
<p>As shown in Figure ` + ref("fig:convergence") + `, it converges.</p>
<p>Back to ` + ref("sec:intro") + `.</p>
</main></body></html>`
}

func paperLabels() *labels.Set {
	set := labels.NewSet()
	set.Add(&labels.Label{Name: "eq:einstein", Type: labels.Equation, Fingerprint: "E=mc^2"})
	set.Add(&labels.Label{Name: "thm:main", Type: labels.Theorem, Context: "The triangle inequality holds for every norm."})
	set.Add(&labels.Label{Name: "thm:extended", Type: labels.Theorem, Context: "Every contraction on a Banach space has a fixed point."})
	set.Add(&labels.Label{Name: "fig:convergence", Type: labels.Figure, Fingerprint: "Convergence of the solver."})
	return set
}

func TestResolve_Paper(t *testing.T) {
	tree := mustTree(t, paperHTML())
	b := NewBuild(tree, paperLabels(), WithID("b1"))

	summary := b.Resolve()
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 5, summary.Fixed)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Duplicates)

	report := VerifyLinks(tree)
	assert.Equal(t, 5, report.Total)
	assert.Zero(t, report.Broken)
}

func TestResolve_EquationByFingerprint(t *testing.T) {
	tree := mustTree(t, paperHTML())
	NewBuild(tree, paperLabels()).Resolve()

	a := linkTo(tree, "eq:einstein")
	require.NotNil(t, a)
	assert.Equal(t, "Equation 1", doctree.TextContent(a))
	assert.Equal(t, "We rely on ", doctree.PrevText(a).Data)
	assert.Equal(t, "[eq:einstein]", doctree.Attr(a, attrPlaceholder))

	anchor := tree.ByID("eq:einstein")
	require.NotNil(t, anchor)
	assert.True(t, IsAnchor(anchor))
	assert.True(t, isDisplayMath(anchor.Parent))
}

func TestResolve_TheoremsByKeywords(t *testing.T) {
	tree := mustTree(t, paperHTML())
	b := NewBuild(tree, paperLabels())
	b.Resolve()

	main, ok := b.Registry().Get("thm:main")
	require.True(t, ok)
	extended, ok := b.Registry().Get("thm:extended")
	require.True(t, ok)

	assert.NotEqual(t, main.Node, extended.Node)
	assert.Contains(t, doctree.TextContent(tree.Node(main.Node)), "triangle")
	assert.Contains(t, doctree.TextContent(tree.Node(extended.Node)), "Banach")
	assert.Equal(t, "Theorem 1", doctree.TextContent(linkTo(tree, "thm:main")))
	assert.Equal(t, "Theorem 2", doctree.TextContent(linkTo(tree, "thm:extended")))

	// Containers without ids are numbered per family.
	assert.NotNil(t, tree.ByID("theorem-1"))
	assert.NotNil(t, tree.ByID("theorem-2"))
}

func TestResolve_FigureRemovesRepeatedWord(t *testing.T) {
	tree := mustTree(t, paperHTML())
	NewBuild(tree, paperLabels()).Resolve()

	a := linkTo(tree, "fig:convergence")
	assert.Equal(t, "Figure 1", doctree.TextContent(a))
	prev := doctree.PrevText(a)
	require.NotNil(t, prev)
	assert.Equal(t, "As shown in ", prev.Data)
	assert.NotContains(t, prev.Data, "Figure")
}

func TestResolve_SectionFromStaticTable(t *testing.T) {
	tree := mustTree(t, paperHTML())
	b := NewBuild(tree, paperLabels())
	b.Resolve()

	e, ok := b.Registry().Get("sec:intro")
	require.True(t, ok)
	assert.Equal(t, "static-table", e.Strategy)
	assert.Equal(t, "1", e.Number)
	assert.Equal(t, "Section 1", doctree.TextContent(linkTo(tree, "sec:intro")))
}

func TestResolve_Idempotent(t *testing.T) {
	tree := mustTree(t, paperHTML())
	b := NewBuild(tree, paperLabels())
	b.Resolve()
	before := tree.String()

	again := b.Resolve()
	assert.Zero(t, again.Fixed)
	assert.Equal(t, again.Processed, again.Existing)

	fresh := NewBuild(tree, paperLabels()).Resolve()
	assert.Zero(t, fresh.Fixed)
	assert.Equal(t, 5, fresh.Existing)
	assert.Equal(t, before, tree.String())
}

func TestResolve_NoTargetIsFailureNotPanic(t *testing.T) {
	tree := mustTree(t, `<html><body><main><p>See `+ref("fig:missing")+` and `+ref("eq:missing")+`.</p></main></body></html>`)
	summary := NewBuild(tree, nil).Resolve()

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Failed)
	for _, l := range summary.Links {
		assert.Equal(t, StatusFailed, l.Status)
		assert.NotEmpty(t, l.Error)
	}
	assert.Equal(t, "[fig:missing]", doctree.TextContent(linkTo(tree, "fig:missing")))

	report := VerifyLinks(tree)
	assert.Equal(t, report.Total, report.Working+report.Broken)
	assert.Equal(t, 2, report.Broken)
}

func TestResolve_DuplicateNumbersFallBackToLabel(t *testing.T) {
	tree := mustTree(t, `<html><body><main>
<p>Section 3 describes the method in considerable detail for the reader.</p>
<p>First `+ref("alpha")+` then `+ref("beta")+`.</p>
</main></body></html>`)
	b := NewBuild(tree, nil)
	summary := b.Resolve()

	require.Len(t, summary.Duplicates, 1)
	assert.Equal(t, []string{"alpha", "beta"}, summary.Duplicates[0].Labels)

	alpha := doctree.TextContent(linkTo(tree, "alpha"))
	beta := doctree.TextContent(linkTo(tree, "beta"))
	assert.NotEqual(t, alpha, beta)
	assert.True(t, strings.HasSuffix(alpha, "alpha"))
	assert.True(t, strings.HasSuffix(beta, "beta"))
}

func TestResolve_ParentheticalEquation(t *testing.T) {
	tree := mustTree(t, `<html><body><main>
<div class="math display">(4) a^2+b^2=c^2</div>
<p>by Pythagoras (`+ref("eq:pyth")+`) we are done.</p>
</main></body></html>`)
	set := labels.NewSet()
	set.Add(&labels.Label{Name: "eq:pyth", Type: labels.Equation, Fingerprint: "a^2+b^2=c^2"})
	b := NewBuild(tree, set)
	b.Resolve()

	a := linkTo(tree, "eq:pyth")
	assert.Equal(t, "4", doctree.TextContent(a))
	assert.Zero(t, b.accessibilityPass(ReferenceLinks(tree)))
}

func TestAccessibilityPass_MergesAndIsIdempotent(t *testing.T) {
	tree := mustTree(t, `<html><body><main>
<figure id="f3"><figcaption>Figure 3: Loss.</figcaption></figure>
<p>see Fig. <a href="#f3" data-reference-type="ref" data-reference="f3">3</a> and Table <a href="#f3" data-reference-type="ref" data-reference="f3">Table 3</a></p>
</main></body></html>`)
	b := NewBuild(tree, nil)
	links := ReferenceLinks(tree)

	assert.Equal(t, 2, b.accessibilityPass(links))
	assert.Equal(t, "Figure 3", doctree.TextContent(links[0]))
	assert.Equal(t, "see ", doctree.PrevText(links[0]).Data)
	assert.Equal(t, "Table 3", doctree.TextContent(links[1]))
	assert.Equal(t, " and ", doctree.PrevText(links[1]).Data)

	rendered := tree.String()
	assert.Zero(t, b.accessibilityPass(links))
	assert.Equal(t, rendered, tree.String())
}

func TestReconcile_ResolvesAfterTypesetting(t *testing.T) {
	src := `<html><body><main><p>Use ` + ref("eq:late") + ` here.</p>%s</main></body></html>`
	tree := mustTree(t, fmt.Sprintf(src, ""))
	b := NewBuild(tree, nil)
	first := b.Resolve()
	require.Equal(t, 1, first.Failed)

	typeset := mustTree(t, fmt.Sprintf(src,
		`<mjx-container display="true"><mjx-mtd id="mjx-eqn:eq:late"><mjx-mtext>(2)</mjx-mtext></mjx-mtd></mjx-container>`))
	b.Rebind(typeset)
	summary := b.Reconcile(MathJaxAnchors(typeset))

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Fixed)
	assert.Equal(t, "Equation 2", doctree.TextContent(linkTo(typeset, "eq:late")))
	assert.Zero(t, VerifyLinks(typeset).Broken)
}

func TestReconcile_MovesLowConfidenceAnchor(t *testing.T) {
	tree := mustTree(t, `<html><body><main>
<div class="math display">(1) x=1</div>
<div class="math display" id="eqn-2">(2) y=2</div>
<p>See `+ref("eq:y")+`.</p>
</main></body></html>`)
	b := NewBuild(tree, nil)
	b.Resolve()

	e, ok := b.Registry().Get("eq:y")
	require.True(t, ok)
	assert.True(t, e.LowConfidence)
	assert.Equal(t, "round-robin", e.Strategy)
	assert.Equal(t, "Equation 1", doctree.TextContent(linkTo(tree, "eq:y")))

	summary := b.Reconcile(MapAnchors{"eq:y": "eqn-2"})
	assert.Equal(t, 1, summary.Fixed)
	e, _ = b.Registry().Get("eq:y")
	assert.False(t, e.LowConfidence)
	assert.Equal(t, "2", e.Number)
	assert.Equal(t, "Equation 2", doctree.TextContent(linkTo(tree, "eq:y")))
	assert.Equal(t, "eqn-2", doctree.Attr(tree.ByID("eq:y").Parent, "id"))
}

func TestReconcile_MissingAnchorStaysBroken(t *testing.T) {
	tree := mustTree(t, `<html><body><main><p>`+ref("eq:none")+`</p></main></body></html>`)
	b := NewBuild(tree, nil)
	b.Resolve()

	summary := b.Reconcile(MapAnchors{})
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, VerifyLinks(tree).Broken)
}

func TestBuild_ResetClearsState(t *testing.T) {
	tree := mustTree(t, paperHTML())
	b := NewBuild(tree, paperLabels(), WithClock(func() time.Time { return time.Unix(0, 0) }))
	b.Resolve()
	require.Equal(t, 5, b.Registry().Len())
	e, _ := b.Registry().Get("eq:einstein")
	assert.Equal(t, time.Unix(0, 0), e.CreatedAt)

	b.Reset()
	assert.Zero(t, b.Registry().Len())
	assert.Zero(t, b.eqCursor)
}

type recordingReporter struct {
	kinds []string
}

func (r *recordingReporter) Report(_, kind string, _ any) {
	r.kinds = append(r.kinds, kind)
}

func TestBuild_ReportsLinksAndSummary(t *testing.T) {
	rep := &recordingReporter{}
	NewBuild(mustTree(t, paperHTML()), paperLabels(), WithReporter(rep)).Resolve()

	require.Len(t, rep.kinds, 6)
	assert.Equal(t, "summary", rep.kinds[5])
}

func TestResolve_HrefOnlyLink(t *testing.T) {
	tree := mustTree(t, `<html><body><main>
<h2 data-number="2"><span class="header-section-number">2</span> Introduction</h2>
<p>See <a href="#sec:intro" data-reference-type="ref">[sec:intro]</a>.</p>
</main></body></html>`)
	set := labels.NewSet()
	set.Add(&labels.Label{Name: "sec:intro", Type: labels.Section, Fingerprint: "Introduction"})
	summary := NewBuild(tree, set).Resolve()

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Fixed)
	assert.Equal(t, "Section 2", doctree.TextContent(linkTo(tree, "sec:intro")))
	report := VerifyLinks(tree)
	assert.Equal(t, 1, report.Total)
	assert.Zero(t, report.Broken)
}

func TestIsReferenceLink_NeedsTarget(t *testing.T) {
	tree := mustTree(t, `<html><body><p>
<a href="https://example.com" data-reference-type="ref">[x]</a>
<a href="#y">[y]</a>
<a href="#z" data-reference-type="ref">[z]</a>
</p></body></html>`)
	links := ReferenceLinks(tree)
	require.Len(t, links, 1)
	assert.Equal(t, "z", LinkTarget(links[0]))
}

func TestReconcile_ClearedCollisionRestoresNumber(t *testing.T) {
	tree := mustTree(t, `<html><body><main>
<div class="math display">(1) x=1</div>
<p id="eqn-late">(2) y=2</p>
<p>See `+ref("eq:a")+` and `+ref("eq:b")+`.</p>
</main></body></html>`)
	b := NewBuild(tree, nil)
	first := b.Resolve()
	require.Len(t, first.Duplicates, 1)
	assert.Equal(t, "Equation a", doctree.TextContent(linkTo(tree, "eq:a")))
	assert.Equal(t, "Equation b", doctree.TextContent(linkTo(tree, "eq:b")))

	summary := b.Reconcile(MapAnchors{"eq:b": "eqn-late"})
	assert.Empty(t, summary.Duplicates)

	a, _ := b.Registry().Get("eq:a")
	assert.False(t, a.Unreliable)
	assert.Equal(t, "1", a.Number)
	assert.Equal(t, "Equation 1", doctree.TextContent(linkTo(tree, "eq:a")))
	assert.Equal(t, "Equation 2", doctree.TextContent(linkTo(tree, "eq:b")))
}
