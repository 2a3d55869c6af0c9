package editctx

import "strings"

// DefaultNamespace is the namespace of a Clojure document without an ns form.
const DefaultNamespace = "user"

// InferNamespace returns the namespace in effect at offset: the last ns or
// in-ns form starting before offset, else the first one in the document,
// else DefaultNamespace.
func InferNamespace(src string, offset int) string {
	var first, current string
	for _, n := range parseForms(src) {
		name, ok := namespaceOf(src, n)
		if !ok {
			continue
		}
		if first == "" {
			first = name
		}
		if n.start < offset {
			current = name
		}
	}
	switch {
	case current != "":
		return current
	case first != "":
		return first
	}
	return DefaultNamespace
}

func namespaceOf(src string, n *node) (string, bool) {
	if n.kind != kindList || n.delim != '(' || len(n.children) < 2 || n.start != n.open {
		return "", false
	}
	head := src[n.children[0].start:n.children[0].end]
	if head != "ns" && head != "in-ns" {
		return "", false
	}
	for _, c := range n.children[1:] {
		text := src[c.start:c.end]
		if strings.HasPrefix(text, "^") {
			continue
		}
		if c.kind != kindAtom {
			return "", false
		}
		return strings.TrimPrefix(text, "'"), true
	}
	return "", false
}
