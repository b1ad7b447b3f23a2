package xref

import (
	"errors"
	"fmt"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"golang.org/x/net/html"
)

// Link statuses reported per reference link.
const (
	StatusCreated = "created"
	StatusExists  = "exists"
	StatusFailed  = "failed"
)

// LinkResult is what happened to one reference link.
type LinkResult struct {
	Target        string      `json:"target"`
	Type          labels.Type `json:"type"`
	Status        string      `json:"status"`
	AnchorID      string      `json:"anchor_id,omitempty"`
	Strategy      string      `json:"strategy,omitempty"`
	LowConfidence bool        `json:"low_confidence,omitempty"`
	Number        string      `json:"number,omitempty"`
	Text          string      `json:"text,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// Summary reports a resolution or reconciliation run.
type Summary struct {
	Processed  int          `json:"processed"`
	Fixed      int          `json:"fixed"`
	Existing   int          `json:"existing"`
	Failed     int          `json:"failed"`
	Links      []LinkResult `json:"links"`
	Duplicates []Collision  `json:"duplicates,omitempty"`
}

func (s *Summary) add(r LinkResult) {
	s.Processed++
	switch r.Status {
	case StatusCreated:
		s.Fixed++
	case StatusExists:
		s.Existing++
	case StatusFailed:
		s.Failed++
	}
	s.Links = append(s.Links, r)
}

// Resolve runs the primary pass: every reference link gets a target anchor
// where one can be found, then placeholder text is rewritten and the
// accessibility pass runs. A failure on one link never stops the others.
func (b *Build) Resolve() Summary {
	links := ReferenceLinks(b.tree)
	summary := Summary{Links: make([]LinkResult, 0, len(links))}
	results := make([]LinkResult, len(links))
	for i, a := range links {
		results[i] = b.resolveLink(a)
	}
	summary.Duplicates = b.markDuplicates()

	for i, a := range links {
		b.safeRewrite(a, &results[i], false)
		summary.add(results[i])
		b.report("link", results[i])
	}
	b.accessibilityPass(links)

	b.log.Info("resolution complete",
		"processed", summary.Processed, "fixed", summary.Fixed,
		"existing", summary.Existing, "failed", summary.Failed,
		"duplicates", len(summary.Duplicates))
	b.report("summary", summary)
	return summary
}

func (b *Build) resolveLink(a *html.Node) (res LinkResult) {
	target := LinkTarget(a)
	res.Target = target
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("link resolution panicked", "target", target, "panic", r)
			res.Status = StatusFailed
			res.Error = fmt.Sprint(r)
		}
	}()
	if target == "" {
		res.Status = StatusFailed
		res.Error = "link has no target"
		return res
	}
	typ := b.linkType(target, a)
	res.Type = typ

	if existing := b.tree.ByID(target); existing != nil {
		res.Status = StatusExists
		res.AnchorID = target
		e, ok := b.registry.Get(target)
		if !ok {
			owner := anchorOwner(existing)
			num, _ := ExtractNumber(b.tree, owner, typ)
			e = b.registry.Put(Entry{
				Label: target, Type: typ, Node: b.tree.Ref(owner),
				Number: num.Value, Word: num.Word, AnchorID: target,
				Strategy: "existing", CreatedAt: b.now(),
			})
			b.markDuplicates()
		}
		res.Number = e.Number
		res.Strategy = e.Strategy
		return res
	}

	m, ok := b.locate(target, typ)
	if !ok {
		b.log.Warn("no target for label", "label", target, "type", typ)
		res.Status = StatusFailed
		res.Error = ErrNoTarget.Error()
		return res
	}
	if _, err := Inject(b.tree, m.Node, target, typ); err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	num, _ := ExtractNumber(b.tree, m.Node, typ)
	b.registry.Put(Entry{
		Label: target, Type: typ, Node: b.tree.Ref(m.Node),
		Number: num.Value, Word: num.Word, AnchorID: target,
		Strategy: m.Strategy, LowConfidence: m.LowConfidence, CreatedAt: b.now(),
	})
	b.markDuplicates()

	res.Status = StatusCreated
	res.AnchorID = target
	res.Strategy = m.Strategy
	res.LowConfidence = m.LowConfidence
	res.Number = num.Value
	return res
}

func (b *Build) safeRewrite(a *html.Node, res *LinkResult, force bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("link rewrite panicked", "target", res.Target, "panic", r)
			res.Status = StatusFailed
			res.Error = fmt.Sprint(r)
		}
	}()
	if text, ok := b.rewriteLink(a, force); ok {
		res.Text = text
	} else if res.Text == "" {
		res.Text = doctree.TextContent(a)
	}
}

// Reconcile re-runs resolution for equation links after the typesetter has
// finished: links that are still unresolved, and links whose equation was
// only placed by the low-confidence fallback. anchors may be nil to use the
// lookup given to NewBuild. It runs once per call and never retries.
func (b *Build) Reconcile(anchors TypesetAnchors) Summary {
	if anchors == nil {
		anchors = b.typeset
	}
	b.tree.Reindex()

	before := b.unreliable()
	links := ReferenceLinks(b.tree)
	var summary Summary
	var touched []*html.Node
	var results []LinkResult
	for _, a := range links {
		target := LinkTarget(a)
		if target == "" || b.linkType(target, a) != labels.Equation {
			continue
		}
		e, has := b.registry.Get(target)
		unresolved := b.tree.ByID(target) == nil
		if !unresolved && !(has && e.LowConfidence) {
			continue
		}
		results = append(results, b.reconcileLink(a, target, anchors, unresolved))
		touched = append(touched, a)
	}
	summary.Duplicates = b.markDuplicates()

	// Text is composed only once every move is done, so a label whose
	// collision cleared gets its number back.
	for i, a := range touched {
		res := results[i]
		if res.Status != StatusFailed {
			b.safeRewrite(a, &res, true)
		}
		summary.add(res)
		b.report("link", res)
	}
	seen := make(map[*html.Node]bool, len(touched))
	for _, a := range touched {
		seen[a] = true
	}
	for _, a := range links {
		if seen[a] {
			continue
		}
		e, ok := b.registry.Get(LinkTarget(a))
		if !ok || e.Unreliable == before[e.Label] {
			continue
		}
		res := LinkResult{Target: e.Label, Type: e.Type, Status: StatusExists, AnchorID: e.AnchorID, Strategy: e.Strategy, Number: e.Number}
		b.safeRewrite(a, &res, true)
		touched = append(touched, a)
	}
	b.accessibilityPass(touched)

	b.log.Info("reconciliation complete",
		"processed", summary.Processed, "fixed", summary.Fixed, "failed", summary.Failed)
	b.report("reconcile", summary)
	return summary
}

var errNoTypesetAnchor = errors.New("typesetter has no anchor for label")

func (b *Build) reconcileLink(a *html.Node, target string, anchors TypesetAnchors, unresolved bool) (res LinkResult) {
	res = LinkResult{Target: target, Type: labels.Equation}
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("reconciliation panicked", "target", target, "panic", r)
			res.Status = StatusFailed
			res.Error = fmt.Sprint(r)
		}
	}()

	var node *html.Node
	if anchors != nil {
		node = typesetNode(b.tree, anchors, target)
	}
	if node == nil {
		if unresolved {
			b.log.Warn("link still unresolved after typesetting", "label", target)
			res.Status = StatusFailed
			res.Error = errNoTypesetAnchor.Error()
			return res
		}
		e, _ := b.registry.Get(target)
		res.Status = StatusExists
		res.AnchorID = e.AnchorID
		res.Strategy = e.Strategy
		res.LowConfidence = true
		res.Number = e.Number
		return res
	}

	if old := b.tree.ByID(target); old != nil {
		if anchorOwner(old) == node {
			e, _ := b.registry.Get(target)
			if e != nil {
				e.LowConfidence = false
				e.Strategy = "typeset"
			}
			b.markDuplicates()
			res.Status = StatusExists
			res.AnchorID = target
			res.Strategy = "typeset"
			if e != nil {
				res.Number = e.Number
			}
			return res
		}
		if !IsAnchor(old) {
			res.Status = StatusFailed
			res.Error = fmt.Errorf("move %q: %w", target, ErrAnchorExists).Error()
			return res
		}
		b.tree.Detach(old)
	}
	if _, err := Inject(b.tree, node, target, labels.Equation); err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	num, _ := ExtractNumber(b.tree, node, labels.Equation)
	b.registry.Put(Entry{
		Label: target, Type: labels.Equation, Node: b.tree.Ref(node),
		Number: num.Value, Word: num.Word, AnchorID: target,
		Strategy: "typeset", CreatedAt: b.now(),
	})
	b.markDuplicates()
	res.Status = StatusCreated
	res.AnchorID = target
	res.Strategy = "typeset"
	res.Number = num.Value
	return res
}
