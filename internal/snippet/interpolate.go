package snippet

import (
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/replsnip/internal/editctx"
)

// Undefined is substituted for context values that are not set.
const Undefined = "undefined"

// Token is one placeholder and the context value it stands for.
type Token struct {
	Name        string
	Description string
	value       func(r *editctx.Record) string
}

var tokens = []Token{
	{"$line", "cursor line (zero-based)", func(r *editctx.Record) string { return strconv.Itoa(r.Line) }},
	{"$hover-line", "hover line", func(r *editctx.Record) string { return intOr(r.HoverLine) }},
	{"$column", "cursor column (zero-based)", func(r *editctx.Record) string { return strconv.Itoa(r.Column) }},
	{"$hover-column", "hover column", func(r *editctx.Record) string { return intOr(r.HoverColumn) }},
	{"$file", "document path", func(r *editctx.Record) string { return r.File }},
	{"$hover-file", "hovered document path", func(r *editctx.Record) string { return strOr(r.HoverFile) }},
	{"$ns", "namespace", func(r *editctx.Record) string { return strOr(r.NS) }},
	{"$repl", "REPL target", func(r *editctx.Record) string { return r.Repl }},
	{"$selection", "selected text", func(r *editctx.Record) string { return r.Selection }},
	{"$hover-text", "hovered text", func(r *editctx.Record) string { return strOr(r.HoverText) }},
	{"$current-form", "form at the cursor", func(r *editctx.Record) string { return strOr(r.CurrentForm) }},
	{"$enclosing-form", "innermost list around the cursor", func(r *editctx.Record) string { return strOr(r.EnclosingForm) }},
	{"$top-level-form", "top-level form at the cursor", func(r *editctx.Record) string { return strOr(r.TopLevelForm) }},
	{"$current-fn", "head symbol of the enclosing call", func(r *editctx.Record) string { return strOr(r.CurrentFn) }},
	{"$top-level-defined-symbol", "symbol defined by the top-level form", func(r *editctx.Record) string { return strOr(r.TopLevelDefinedSymbol) }},
	{"$head", "enclosing list from its start to the cursor", func(r *editctx.Record) string { return strOr(r.Head) }},
	{"$tail", "enclosing list from the cursor to its end", func(r *editctx.Record) string { return strOr(r.Tail) }},
}

// byLength is the token table with longer names first, so a token is never
// matched by a shorter one that shares its prefix.
var byLength = func() []Token {
	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Name) > len(sorted[j].Name) })
	return sorted
}()

// Tokens returns the supported placeholders in documentation order.
func Tokens() []Token {
	out := make([]Token, len(tokens))
	copy(out, tokens)
	return out
}

// Interpolate replaces every occurrence of every placeholder in template with
// its value from rec. Substituted text is not scanned again, so values that
// happen to contain placeholders are inserted verbatim.
func Interpolate(template string, rec editctx.Record) string {
	if !strings.Contains(template, "$") {
		return template
	}
	pairs := make([]string, 0, 2*len(byLength))
	for _, t := range byLength {
		pairs = append(pairs, t.Name, t.value(&rec))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func strOr(p *string) string {
	if p == nil {
		return Undefined
	}
	return *p
}

func intOr(p *int) string {
	if p == nil {
		return Undefined
	}
	return strconv.Itoa(*p)
}
