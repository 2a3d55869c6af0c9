package snippet

// Defaults are the ambient values applied to definitions that omit ns or repl.
type Defaults struct {
	// NS is the document namespace, nil when the document is not of the target language.
	NS   *string
	Repl string
}

// Entry is a valid definition with its ns and repl resolved.
type Entry struct {
	Definition Definition
	Label      string
	NS         *string
	Repl       string
}

// Registry indexes one invocation's merged snippets by menu label and key.
type Registry struct {
	merged     []Definition
	entries    []*Entry
	labels     []string
	byLabel    map[string]*Entry
	keyToLabel map[string]string
}

// Merge concatenates the global, workspace and workspace-folder scopes in that
// order. When all three are empty the legacy scope is used instead.
func Merge(s Scopes) []Definition {
	merged := make([]Definition, 0, len(s.Global)+len(s.Workspace)+len(s.WorkspaceFolder))
	merged = append(merged, s.Global...)
	merged = append(merged, s.Workspace...)
	merged = append(merged, s.WorkspaceFolder...)
	if len(merged) == 0 {
		merged = append(merged, s.Legacy...)
	}
	return merged
}

// Label renders the menu label "{key: }{name} ({repl})".
func Label(key, name, repl string) string {
	label := name + " (" + repl + ")"
	if key != "" {
		label = key + ": " + label
	}
	return label
}

// Build merges scopes and indexes every valid definition.
//
// Invalid definitions are collected over the whole set and returned together
// as a *ConfigError; the registry is nil in that case so nothing can run.
// Identical labels and keys resolve to the entry registered last.
func Build(scopes Scopes, defaults Defaults) (*Registry, error) {
	merged := Merge(scopes)
	reg := &Registry{
		merged:     merged,
		byLabel:    make(map[string]*Entry, len(merged)),
		keyToLabel: make(map[string]string),
	}

	var invalid []ValidationError
	for _, def := range merged {
		if missing := def.missingFields(); len(missing) > 0 {
			ve := ValidationError{MissingFields: missing}
			if def.Name != "" {
				name := def.Name
				ve.Name = &name
			}
			invalid = append(invalid, ve)
			continue
		}

		entry := &Entry{Definition: def, NS: defaults.NS, Repl: defaults.Repl}
		if def.NS != "" {
			ns := def.NS
			entry.NS = &ns
		}
		if def.Repl != "" {
			entry.Repl = def.Repl
		}
		entry.Label = Label(def.Key, def.Name, entry.Repl)

		if _, seen := reg.byLabel[entry.Label]; !seen {
			reg.labels = append(reg.labels, entry.Label)
		}
		reg.byLabel[entry.Label] = entry
		if def.Key != "" {
			reg.keyToLabel[def.Key] = entry.Label
		}
		reg.entries = append(reg.entries, entry)
	}

	if len(invalid) > 0 {
		return nil, &ConfigError{Errors: invalid}
	}
	return reg, nil
}

// Len returns the size of the merged set, valid or not. A nil registry is empty.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.merged)
}

// Labels returns the distinct menu labels in registration order.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// Entry returns the entry a menu label resolves to.
func (r *Registry) Entry(label string) (*Entry, bool) {
	e, ok := r.byLabel[label]
	return e, ok
}

// LabelForKey returns the menu label a key resolves to.
func (r *Registry) LabelForKey(key string) (string, bool) {
	label, ok := r.keyToLabel[key]
	return label, ok
}

// Lookup resolves a key to its entry.
func (r *Registry) Lookup(key string) (*Entry, bool) {
	if r == nil {
		return nil, false
	}
	label, ok := r.keyToLabel[key]
	if !ok {
		return nil, false
	}
	return r.Entry(label)
}

// Entries returns every valid entry in registration order.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
