package editctx

import "strings"

type nodeKind int

const (
	kindAtom nodeKind = iota
	kindString
	kindList
)

// node is one form in a document. Offsets are byte offsets, end is exclusive.
// For lists, start includes any reader prefix ('  `  ~  @  ^  #) while open
// is the offset of the opening bracket.
type node struct {
	kind     nodeKind
	start    int
	end      int
	open     int
	delim    byte
	closed   bool
	children []*node
}

// innerStart is the first offset inside the brackets of a list.
func (n *node) innerStart() int { return n.open + 1 }

// innerEnd is the offset of the closing bracket, or the end of an unclosed list.
func (n *node) innerEnd() int {
	if n.closed {
		return n.end - 1
	}
	return n.end
}

func (n *node) contains(offset int) bool {
	return n.kind == kindList && n.innerStart() <= offset && offset <= n.innerEnd()
}

// reader is a forgiving s-expression scanner. It never fails: unbalanced input
// yields unclosed lists and stray closers are skipped.
type reader struct {
	src string
	pos int
}

func parseForms(src string) []*node {
	r := &reader{src: src}
	nodes, _ := r.forms(0)
	return nodes
}

func closerFor(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	}
	return 0
}

func isCloser(c byte) bool { return c == ')' || c == ']' || c == '}' }

func isOpener(c byte) bool { return c == '(' || c == '[' || c == '{' }

func isDelimiter(c byte) bool {
	return isSpace(c) || isOpener(c) || isCloser(c) || c == '"' || c == ';'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ','
}

func (r *reader) skipSpace() {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case isSpace(c):
			r.pos++
		case c == ';':
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		default:
			return
		}
	}
}

func (r *reader) forms(closer byte) ([]*node, bool) {
	var nodes []*node
	for {
		r.skipSpace()
		if r.pos >= len(r.src) {
			return nodes, false
		}
		c := r.src[r.pos]
		if isCloser(c) {
			r.pos++
			if c == closer {
				return nodes, true
			}
			continue
		}
		nodes = append(nodes, r.form())
	}
}

func (r *reader) prefixes() {
	for r.pos < len(r.src) {
		rest := r.src[r.pos:]
		switch {
		case strings.HasPrefix(rest, "#?@"):
			r.pos += 3
		case strings.HasPrefix(rest, "~@"), strings.HasPrefix(rest, "#'"),
			strings.HasPrefix(rest, "#_"), strings.HasPrefix(rest, "#?"):
			r.pos += 2
		case rest[0] == '\'' || rest[0] == '`' || rest[0] == '~' || rest[0] == '@' || rest[0] == '^':
			r.pos++
		case rest[0] == '#' && len(rest) > 1 && (rest[1] == '(' || rest[1] == '{' || rest[1] == '"'):
			r.pos++
		default:
			return
		}
	}
}

func (r *reader) form() *node {
	start := r.pos
	r.prefixes()
	if r.pos >= len(r.src) {
		return &node{kind: kindAtom, start: start, end: r.pos}
	}

	c := r.src[r.pos]
	switch {
	case isOpener(c):
		n := &node{kind: kindList, start: start, open: r.pos, delim: c}
		r.pos++
		n.children, n.closed = r.forms(closerFor(c))
		n.end = r.pos
		return n
	case c == '"':
		r.pos++
		for r.pos < len(r.src) {
			switch r.src[r.pos] {
			case '\\':
				r.pos += 2
				continue
			case '"':
				r.pos++
				return &node{kind: kindString, start: start, end: r.pos}
			}
			r.pos++
		}
		r.pos = len(r.src)
		return &node{kind: kindString, start: start, end: r.pos}
	case c == '\\':
		// Character literal: the backslash and at least one following byte.
		r.pos += 2
	}
	for r.pos < len(r.src) && !isDelimiter(r.src[r.pos]) {
		r.pos++
	}
	if r.pos == start {
		r.pos++
	}
	if r.pos > len(r.src) {
		r.pos = len(r.src)
	}
	return &node{kind: kindAtom, start: start, end: r.pos}
}

// enclosingPath returns the lists whose brackets contain offset, outermost first.
func enclosingPath(nodes []*node, offset int) []*node {
	var path []*node
	for {
		var next *node
		for _, n := range nodes {
			if n.contains(offset) {
				next = n
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
		nodes = next.children
	}
}

// formAt picks the form under the cursor among siblings: one that spans the
// cursor, then one ending at it, then one starting at it.
func formAt(siblings []*node, offset int) *node {
	for _, n := range siblings {
		if n.start < offset && offset < n.end {
			return n
		}
	}
	for _, n := range siblings {
		if n.end == offset {
			return n
		}
	}
	for _, n := range siblings {
		if n.start == offset {
			return n
		}
	}
	return nil
}

func isSymbol(src string, n *node) bool {
	if n.kind != kindAtom || n.end <= n.start {
		return false
	}
	c := src[n.start]
	switch {
	case c == ':' || c == '\\' || c == '#' || c == '^' || c == '\'':
		return false
	case c >= '0' && c <= '9':
		return false
	}
	return true
}

// forms answers the span questions for one document and cursor offset.
type forms struct {
	src    string
	top    []*node
	offset int
	path   []*node
}

func newForms(src string, offset int) *forms {
	top := parseForms(src)
	return &forms{src: src, top: top, offset: offset, path: enclosingPath(top, offset)}
}

func (f *forms) text(n *node) string { return f.src[n.start:n.end] }

func (f *forms) innermost() *node {
	if len(f.path) == 0 {
		return nil
	}
	return f.path[len(f.path)-1]
}

func (f *forms) currentForm() (string, bool) {
	siblings := f.top
	if n := f.innermost(); n != nil {
		siblings = n.children
	}
	if n := formAt(siblings, f.offset); n != nil {
		return f.text(n), true
	}
	// Whitespace between forms: the nearest preceding form, then the following one.
	var prev, next *node
	for _, n := range siblings {
		if n.end <= f.offset {
			prev = n
		} else if next == nil && n.start >= f.offset {
			next = n
		}
	}
	if prev != nil && len(f.path) > 0 {
		return f.text(prev), true
	}
	if next != nil && len(f.path) > 0 {
		return f.text(next), true
	}
	return "", false
}

func (f *forms) enclosingForm() (string, bool) {
	n := f.innermost()
	if n == nil {
		return "", false
	}
	return f.text(n), true
}

func (f *forms) topLevel() *node {
	if len(f.path) > 0 {
		return f.path[0]
	}
	return formAt(f.top, f.offset)
}

func (f *forms) topLevelForm() (string, bool) {
	n := f.topLevel()
	if n == nil {
		return "", false
	}
	return f.text(n), true
}

func (f *forms) currentFunction() (string, bool) {
	for i := len(f.path) - 1; i >= 0; i-- {
		n := f.path[i]
		if n.delim != '(' || len(n.children) == 0 {
			continue
		}
		if head := n.children[0]; isSymbol(f.src, head) {
			return f.text(head), true
		}
	}
	return "", false
}

func (f *forms) topLevelDefinedSymbol() (string, bool) {
	n := f.topLevel()
	if n == nil || n.kind != kindList || n.delim != '(' || len(n.children) < 2 {
		return "", false
	}
	head := n.children[0]
	if !isSymbol(f.src, head) {
		return "", false
	}
	name := f.text(head)
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if !strings.HasPrefix(name, "def") {
		return "", false
	}
	for _, c := range n.children[1:] {
		if f.src[c.start] == '^' {
			continue
		}
		if isSymbol(f.src, c) {
			return f.text(c), true
		}
		return "", false
	}
	return "", false
}

func (f *forms) toStartOfList() (string, bool) {
	n := f.innermost()
	if n == nil {
		return "", false
	}
	return f.src[n.innerStart():f.offset], true
}

func (f *forms) toEndOfList() (string, bool) {
	n := f.innermost()
	if n == nil {
		return "", false
	}
	return f.src[f.offset:n.innerEnd()], true
}
