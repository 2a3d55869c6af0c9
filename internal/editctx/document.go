package editctx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Language ids by file extension. Anything else is plaintext.
var languageByExt = map[string]string{
	".clj":  LanguageClojure,
	".cljs": LanguageClojure,
	".cljc": LanguageClojure,
	".cljd": LanguageClojure,
	".edn":  LanguageClojure,
	".bb":   LanguageClojure,
	".star": "starlark",
	".bzl":  "starlark",
	".sql":  "sql",
}

// LanguageForFile returns the language id for a file name.
func LanguageForFile(name string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return lang
	}
	return "plaintext"
}

// Document is a Provider over an in-memory copy of a file.
type Document struct {
	path     string
	text     string
	language string
	pos      Position
	offset   int
	selStart int
	selEnd   int
	hover    *Hover
	forms    *forms
}

// DocumentOptions configures a Document beyond its text and cursor.
type DocumentOptions struct {
	// Selection is a byte range; an empty range means nothing is selected.
	SelectionStart int
	SelectionEnd   int
	Hover          *Hover
	LanguageID     string // overrides detection by file extension
}

// NewDocument creates a Document with the cursor at pos.
func NewDocument(path, text string, pos Position, opts DocumentOptions) *Document {
	lang := opts.LanguageID
	if lang == "" {
		lang = LanguageForFile(path)
	}
	offset := OffsetAt(text, pos)
	start, end := clamp(opts.SelectionStart, len(text)), clamp(opts.SelectionEnd, len(text))
	if end < start {
		start, end = end, start
	}
	return &Document{
		path:     path,
		text:     text,
		language: lang,
		pos:      pos,
		offset:   offset,
		selStart: start,
		selEnd:   end,
		hover:    opts.Hover,
		forms:    newForms(text, offset),
	}
}

// LoadDocument reads path from disk and creates a Document for it.
func LoadDocument(path string, pos Position, opts DocumentOptions) (*Document, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return NewDocument(abs, string(content), pos, opts), nil
}

// OffsetAt converts a zero-based line/column (columns count runes) to a byte offset.
// Positions past the end of a line or document are clamped.
func OffsetAt(text string, pos Position) int {
	offset := 0
	for line := 0; line < pos.Line; line++ {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
	}
	for col := 0; col < pos.Column && offset < len(text); col++ {
		if text[offset] == '\n' {
			break
		}
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return offset
}

func clamp(v, upper int) int {
	switch {
	case v < 0:
		return 0
	case v > upper:
		return upper
	}
	return v
}

// Offset returns the cursor's byte offset.
func (d *Document) Offset() int { return d.offset }

// Position returns the cursor position.
func (d *Document) Position() Position { return d.pos }

// FileName returns the document path.
func (d *Document) FileName() string { return d.path }

// LanguageID returns the document language.
func (d *Document) LanguageID() string { return d.language }

// Selection returns the selected text, empty when nothing is selected.
func (d *Document) Selection() string { return d.text[d.selStart:d.selEnd] }

// Namespace infers the namespace at the cursor. Only Clojure documents have one.
func (d *Document) Namespace() (string, bool) {
	if d.language != LanguageClojure {
		return "", false
	}
	return InferNamespace(d.text, d.offset), true
}

// Hover returns the hover state given at construction.
func (d *Document) Hover() (Hover, bool) {
	if d.hover == nil {
		return Hover{}, false
	}
	return *d.hover, true
}

// CurrentForm returns the form at the cursor.
func (d *Document) CurrentForm() (string, bool) { return d.forms.currentForm() }

// EnclosingForm returns the innermost list around the cursor.
func (d *Document) EnclosingForm() (string, bool) { return d.forms.enclosingForm() }

// TopLevelForm returns the top-level form containing the cursor.
func (d *Document) TopLevelForm() (string, bool) { return d.forms.topLevelForm() }

// CurrentFunction returns the head symbol of the nearest enclosing call.
func (d *Document) CurrentFunction() (string, bool) { return d.forms.currentFunction() }

// TopLevelDefinedSymbol returns the name defined by the top-level def form.
func (d *Document) TopLevelDefinedSymbol() (string, bool) {
	return d.forms.topLevelDefinedSymbol()
}

// ToStartOfList returns the text from the enclosing list's start to the cursor.
func (d *Document) ToStartOfList() (string, bool) { return d.forms.toStartOfList() }

// ToEndOfList returns the text from the cursor to the enclosing list's end.
func (d *Document) ToEndOfList() (string, bool) { return d.forms.toEndOfList() }
