// Package editctx describes the editing location a snippet is evaluated against.
//
// A Provider answers positional and syntactic questions about the current
// document. Capture reads a Provider exactly once so that later changes in the
// editor (for example while the user is choosing a snippet) cannot leak into an
// invocation that is already running.
package editctx

// LanguageClojure is the language id of documents whose namespace can be inferred.
const LanguageClojure = "clojure"

// Position is a zero-based line/column location in a document.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Hover describes the location and text under the mouse pointer, if any.
type Hover struct {
	File string   `json:"file"`
	Pos  Position `json:"position"`
	Text string   `json:"text"`
}

// Provider supplies facts about the current editing location on demand.
//
// Span extractors return false when no enclosing construct exists at the cursor.
type Provider interface {
	Position() Position
	FileName() string
	LanguageID() string
	Selection() string
	Namespace() (string, bool)
	Hover() (Hover, bool)

	CurrentForm() (string, bool)
	EnclosingForm() (string, bool)
	TopLevelForm() (string, bool)
	CurrentFunction() (string, bool)
	TopLevelDefinedSymbol() (string, bool)
	ToStartOfList() (string, bool)
	ToEndOfList() (string, bool)
}

// Snapshot is everything a Provider reported at one instant.
type Snapshot struct {
	Pos        Position
	File       string
	LanguageID string
	Selection  string
	NS         *string
	Hover      *Hover

	CurrentForm           *string
	EnclosingForm         *string
	TopLevelForm          *string
	CurrentFn             *string
	TopLevelDefinedSymbol *string
	Head                  *string
	Tail                  *string
}

// IsTargetLanguage reports whether the document's namespace is meaningful.
func (s Snapshot) IsTargetLanguage() bool {
	return s.LanguageID == LanguageClojure
}

// Capture reads every fact from p once.
// The namespace is only consulted for documents of the target language.
func Capture(p Provider) Snapshot {
	s := Snapshot{
		Pos:        p.Position(),
		File:       p.FileName(),
		LanguageID: p.LanguageID(),
		Selection:  p.Selection(),
	}
	if s.IsTargetLanguage() {
		s.NS = opt(p.Namespace())
	}
	if h, ok := p.Hover(); ok {
		s.Hover = &h
	}
	s.CurrentForm = opt(p.CurrentForm())
	s.EnclosingForm = opt(p.EnclosingForm())
	s.TopLevelForm = opt(p.TopLevelForm())
	s.CurrentFn = opt(p.CurrentFunction())
	s.TopLevelDefinedSymbol = opt(p.TopLevelDefinedSymbol())
	s.Head = opt(p.ToStartOfList())
	s.Tail = opt(p.ToEndOfList())
	return s
}

// Record is the context a template is interpolated against.
// Nil pointers are unset values.
type Record struct {
	Line      int
	Column    int
	File      string
	NS        *string
	Repl      string
	Selection string

	HoverLine   *int
	HoverColumn *int
	HoverFile   *string
	HoverText   *string

	CurrentForm           *string
	EnclosingForm         *string
	TopLevelForm          *string
	CurrentFn             *string
	TopLevelDefinedSymbol *string
	Head                  *string
	Tail                  *string
}

// Record builds the interpolation record for the resolved ns and repl.
func (s Snapshot) Record(ns *string, repl string) Record {
	r := Record{
		Line:                  s.Pos.Line,
		Column:                s.Pos.Column,
		File:                  s.File,
		NS:                    ns,
		Repl:                  repl,
		Selection:             s.Selection,
		CurrentForm:           s.CurrentForm,
		EnclosingForm:         s.EnclosingForm,
		TopLevelForm:          s.TopLevelForm,
		CurrentFn:             s.CurrentFn,
		TopLevelDefinedSymbol: s.TopLevelDefinedSymbol,
		Head:                  s.Head,
		Tail:                  s.Tail,
	}
	if h := s.Hover; h != nil {
		line, col, file, text := h.Pos.Line, h.Pos.Column, h.File, h.Text
		r.HoverLine = &line
		r.HoverColumn = &col
		r.HoverFile = &file
		r.HoverText = &text
	}
	return r
}

func opt(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}
