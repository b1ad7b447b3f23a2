package xref

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"golang.org/x/net/html"
)

// trailingWordRe matches any construct word at the end of a text run,
// optionally followed by spaces, non-breaking spaces or a TeX tie.
var trailingWordRe = buildTrailingWordRe()

// leadingWordRe matches a construct word at the start of link text.
var leadingWordRe = regexp.MustCompile(`(?i)^(` + wordAlternation() + `)(?:\s|$)`)

func wordAlternation() string {
	var forms []string
	for _, t := range labels.Types {
		for _, f := range labels.WordForms(t) {
			forms = append(forms, regexp.QuoteMeta(f))
		}
	}
	// Longest first so "Sections" wins over "Section".
	sort.SliceStable(forms, func(i, j int) bool { return len(forms[i]) > len(forms[j]) })
	return strings.Join(forms, "|")
}

func buildTrailingWordRe() *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[\s(\[])(` + wordAlternation() + `)[\s\x{00a0}~]*$`)
}

// splitTrailingWord finds a construct word ending text. It returns the text
// with the word removed and the word itself.
func splitTrailingWord(text string) (rest, word string, ok bool) {
	m := trailingWordRe.FindStringSubmatchIndex(text)
	if m == nil {
		return text, "", false
	}
	return text[:m[3]], text[m[4]:m[5]], true
}

// trimTypeWord removes a trailing construct word of type t from the text
// node before a. It reports whether a word was removed.
func trimTypeWord(a *html.Node, t labels.Type) bool {
	prev := doctree.PrevText(a)
	if prev == nil {
		return false
	}
	rest, word, ok := splitTrailingWord(prev.Data)
	if !ok {
		return false
	}
	if wt, _ := labels.TypeForWord(word); wt != t {
		return false
	}
	prev.Data = joinBefore(rest)
	return true
}

// joinBefore keeps one separating space between preceding text and a link.
func joinBefore(rest string) string {
	if rest == "" || strings.HasSuffix(rest, " ") || strings.HasSuffix(rest, "(") || strings.HasSuffix(rest, "[") {
		return rest
	}
	return rest + " "
}

// displayWord picks the word for link text: the word found next to the
// number when it belongs to the link's type, otherwise the type's own word.
func displayWord(e *Entry, typ labels.Type) string {
	if e != nil && e.Word != "" {
		if wt, ok := labels.TypeForWord(e.Word); ok && (wt == typ || typ == labels.Generic) {
			return e.Word
		}
	}
	return typ.Word()
}

// composeText builds "<Word> <number-or-label>" for a link.
func composeText(e *Entry, target string, typ labels.Type, parenthetical bool) string {
	value := ""
	if e != nil && !e.Unreliable {
		value = e.Number
	}
	if value == "" {
		value = labels.StripPrefix(target)
	}
	if parenthetical && typ == labels.Equation {
		return value
	}
	word := displayWord(e, typ)
	if word == "" {
		return value
	}
	return word + " " + value
}

// rewriteLink replaces placeholder text on a. force rewrites links whose
// text is still the text this package composed earlier.
func (b *Build) rewriteLink(a *html.Node, force bool) (string, bool) {
	current := doctree.TextContent(a)
	placeholder := IsPlaceholder(current)
	if !placeholder && !(force && doctree.HasAttr(a, attrComposed) && doctree.Attr(a, attrComposed) == current) {
		return "", false
	}
	target := LinkTarget(a)
	typ := b.linkType(target, a)

	e, ok := b.registry.Get(target)
	if !ok {
		e = b.liveEntry(target, typ)
		if e == nil {
			return "", false
		}
	}
	text := composeText(e, target, typ, inParenthetical(a))
	if placeholder {
		doctree.SetAttr(a, attrPlaceholder, current)
	}
	doctree.SetAttr(a, attrComposed, text)
	doctree.SetText(a, text)

	if w := displayWord(e, typ); w != "" {
		if wt, ok := labels.TypeForWord(w); ok {
			trimTypeWord(a, wt)
		}
	}
	return text, true
}

// liveEntry re-extracts a number for a target that exists in the tree but
// has no registry entry, e.g. an id the converter wrote itself.
func (b *Build) liveEntry(target string, typ labels.Type) *Entry {
	n := b.tree.ByID(target)
	if n == nil {
		return nil
	}
	owner := anchorOwner(n)
	num, _ := ExtractNumber(b.tree, owner, typ)
	return &Entry{Label: target, Type: typ, Node: b.tree.Ref(owner), Number: num.Value, Word: num.Word, AnchorID: target}
}

// accessibilityPass pulls a construct word that still precedes a link into
// the link text. Equation links inside parentheses are left alone. Running
// it twice changes nothing.
func (b *Build) accessibilityPass(links []*html.Node) int {
	changed := 0
	for _, a := range links {
		if b.mergeTypeWord(a) {
			changed++
		}
	}
	return changed
}

func (b *Build) mergeTypeWord(a *html.Node) (merged bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("accessibility pass panicked", "target", LinkTarget(a), "panic", r)
			merged = false
		}
	}()
	target := LinkTarget(a)
	typ := b.linkType(target, a)
	if typ == labels.Equation && inParenthetical(a) {
		return false
	}
	prev := doctree.PrevText(a)
	if prev == nil {
		return false
	}
	rest, word, ok := splitTrailingWord(prev.Data)
	if !ok {
		return false
	}
	wordType, _ := labels.TypeForWord(word)
	text := doctree.TextContent(a)
	if text == "" || IsPlaceholder(text) {
		return false
	}
	if m := leadingWordRe.FindStringSubmatch(text); m != nil {
		// The link already names its construct; only drop a repeat.
		if lt, _ := labels.TypeForWord(m[1]); lt != wordType {
			return false
		}
		prev.Data = joinBefore(rest)
		return true
	}
	prev.Data = joinBefore(rest)
	merged = true
	newText := canonicalWord(word) + " " + text
	if doctree.Attr(a, attrComposed) == text {
		doctree.SetAttr(a, attrComposed, newText)
	}
	doctree.SetText(a, newText)
	return merged
}
