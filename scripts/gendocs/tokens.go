package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/replsnip/internal/snippet"
)

// generateTokensDocs generates the placeholder reference. An existing
// tokens.md keeps its hand-written introduction; only the reference section
// is replaced.
func generateTokensDocs(outDir string) error {
	log.Printf("Generating placeholder docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tokensPath := filepath.Clean(filepath.Join(outDir, "tokens.md"))

	existing, err := os.ReadFile(tokensPath) //#nosec G304 -- path is constructed from trusted config
	if err != nil {
		return generateFullTokensDoc(tokensPath)
	}
	return updateTokensDoc(tokensPath, string(existing))
}

// generateTokensReferenceSection renders the table of placeholders.
func generateTokensReferenceSection() string {
	w := NewMarkdownWriter()

	w.Header(2, "Reference")
	w.GeneratedMarker()

	var rows [][]string
	for _, tok := range snippet.Tokens() {
		rows = append(rows, []string{InlineCode(tok.Name), tok.Description})
	}
	w.Table([]string{"Placeholder", "Replaced with"}, rows)

	w.Paragraph(fmt.Sprintf("Placeholders with no value at the cursor are replaced by %s.", InlineCode(snippet.Undefined)))

	w.Header(3, "Usage Examples")
	w.CodeBlock("yaml", `snippets:
  - name: Time top-level form
    key: t
    snippet: (time $top-level-form)
  - name: Doc for symbol under the mouse
    key: d
    snippet: (clojure.repl/doc $hover-text)`)

	return w.String()
}

// generateFullTokensDoc generates a complete tokens.md file.
func generateFullTokensDoc(path string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Placeholders", "Context placeholders available in snippets")
	w.GeneratedMarker()

	w.Header(1, "Placeholders")
	w.Paragraph("Snippet text may contain placeholders that are replaced with values from the editing context before the code is evaluated. Longer placeholders win over shorter ones that share a prefix, so `$hover-text` is never read as `$hover` followed by `-text`.")

	w.Text(generateTokensReferenceSection())

	return os.WriteFile(path, w.Bytes(), 0600)
}

// updateTokensDoc replaces the generated section in an existing file, or
// appends one.
func updateTokensDoc(path, content string) error {
	keep := content
	if idx := strings.Index(content, "## Reference"); idx >= 0 {
		keep = content[:idx]
	}
	newContent := strings.TrimSpace(keep) + "\n\n" + generateTokensReferenceSection()
	return os.WriteFile(path, []byte(newContent), 0600)
}
