package editctx

// Static is a Provider backed by plain values, as sent by an editor over the
// HTTP API. Nil span fields are reported as absent.
type Static struct {
	Pos      Position `json:"position"`
	File     string   `json:"file"`
	Language string   `json:"languageId"`
	Sel      string   `json:"selection"`
	NS       *string  `json:"ns,omitempty"`
	HoverAt  *Hover   `json:"hover,omitempty"`

	Current       *string `json:"currentForm,omitempty"`
	Enclosing     *string `json:"enclosingForm,omitempty"`
	TopLevel      *string `json:"topLevelForm,omitempty"`
	Fn            *string `json:"currentFn,omitempty"`
	DefinedSymbol *string `json:"topLevelDefinedSymbol,omitempty"`
	Head          *string `json:"head,omitempty"`
	Tail          *string `json:"tail,omitempty"`
}

var _ Provider = (*Static)(nil)

// Position returns the cursor position.
func (s *Static) Position() Position { return s.Pos }

// FileName returns the document path.
func (s *Static) FileName() string { return s.File }

// Selection returns the selected text.
func (s *Static) Selection() string { return s.Sel }

// LanguageID defaults to detection by file name.
func (s *Static) LanguageID() string {
	if s.Language != "" {
		return s.Language
	}
	return LanguageForFile(s.File)
}

// Namespace returns the namespace sent by the editor, if any.
func (s *Static) Namespace() (string, bool) { return get(s.NS) }

// Hover returns the hover state sent by the editor, if any.
func (s *Static) Hover() (Hover, bool) {
	if s.HoverAt == nil {
		return Hover{}, false
	}
	return *s.HoverAt, true
}

// CurrentForm returns the current form text.
func (s *Static) CurrentForm() (string, bool) { return get(s.Current) }

// EnclosingForm returns the enclosing form text.
func (s *Static) EnclosingForm() (string, bool) { return get(s.Enclosing) }

// TopLevelForm returns the top-level form text.
func (s *Static) TopLevelForm() (string, bool) { return get(s.TopLevel) }

// CurrentFunction returns the current function symbol.
func (s *Static) CurrentFunction() (string, bool) { return get(s.Fn) }

// TopLevelDefinedSymbol returns the top-level defined symbol.
func (s *Static) TopLevelDefinedSymbol() (string, bool) { return get(s.DefinedSymbol) }

// ToStartOfList returns the text from list start to cursor.
func (s *Static) ToStartOfList() (string, bool) { return get(s.Head) }

// ToEndOfList returns the text from cursor to list end.
func (s *Static) ToEndOfList() (string, bool) { return get(s.Tail) }

func get(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}
