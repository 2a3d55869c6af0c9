package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/leapstack-labs/replsnip/internal/state"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Offline bool
	Timeout time.Duration
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a workspace health check",
		Long: `Analyze the snippet configuration and REPL targets for problems.

The doctor command reports:
- Workspace summary (config files, snippets, keys, targets)
- Health checks grouped by category (Configuration, Targets, State)
- Health score (0-100)
- Actionable recommendations

Targets are connected to unless --offline is given.`,
		Example: `  # Run health check
  replsnip doctor

  # Skip connecting to REPL targets
  replsnip doctor --offline

  # Output as JSON
  replsnip doctor --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Do not connect to REPL targets")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 3*time.Second, "Connection timeout per target")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         WorkspaceSummary `json:"summary"`
	HealthChecks    []HealthCheck    `json:"health_checks"`
	Score           int              `json:"score"`
	Recommendations []string         `json:"recommendations"`
	IssueCount      int              `json:"issue_count"`
}

// WorkspaceSummary contains workspace-level statistics.
type WorkspaceSummary struct {
	Files    []string `json:"files"`
	Snippets int      `json:"snippets"`
	Keys     int      `json:"keys"`
	Targets  []string `json:"targets"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error", "skip"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	out := diagnose(contextOrBackground(cmd), cmdCtx.Cfg, opts)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// diagnose runs every health check against cfg.
func diagnose(ctx context.Context, cfg *config.Config, opts *DoctorOptions) *DoctorOutput {
	merged := snippet.Merge(cfg.Scopes())
	defaultRepl := cfg.Session.ReplType(true)

	targetNames := make([]string, 0, len(cfg.Repl.Targets))
	for name := range cfg.Repl.Targets {
		targetNames = append(targetNames, name)
	}
	sort.Strings(targetNames)

	summary := WorkspaceSummary{
		Files:    cfg.Files,
		Snippets: len(merged),
		Targets:  targetNames,
	}
	keys := make(map[string]int)
	for _, d := range merged {
		if d.Key != "" {
			keys[d.Key]++
		}
	}
	summary.Keys = len(keys)

	checks := []HealthCheck{
		checkFiles(cfg),
		checkDefinitions(cfg.Scopes(), defaultRepl),
		checkDuplicates("CF03", "Keys bound once", merged, keys, func(d snippet.Definition) string { return d.Key }),
		checkDuplicateLabels(merged, defaultRepl),
		checkPlaceholders(merged),
		checkSnippetTargets(merged, cfg.Repl.Targets, defaultRepl),
		checkConnectivity(ctx, cfg, targetNames, opts),
		checkState(cfg.StatePath),
	}

	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return groupOrder(checks[i].Group) < groupOrder(checks[j].Group)
		}
		return checks[i].RuleID < checks[j].RuleID
	})

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, len(merged)),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func groupOrder(group string) int {
	switch group {
	case "configuration":
		return 0
	case "targets":
		return 1
	default:
		return 2
	}
}

func newCheck(id, name, group string, details []string, failStatus string) HealthCheck {
	c := HealthCheck{RuleID: id, Name: name, Group: group, Status: "pass", IssueCount: len(details), Details: details}
	if len(details) > 0 {
		c.Status = failStatus
	}
	return c
}

func checkFiles(cfg *config.Config) HealthCheck {
	var details []string
	if len(cfg.Files) == 0 {
		details = append(details, fmt.Sprintf("no %s found from %s", config.WorkspaceFile, cfg.WorkspaceRoot))
	}
	return newCheck("CF01", "Configuration files found", "configuration", details, "warn")
}

func checkDefinitions(scopes snippet.Scopes, defaultRepl string) HealthCheck {
	var details []string
	_, err := snippet.Build(scopes, snippet.Defaults{Repl: defaultRepl})
	var cfgErr *snippet.ConfigError
	if errors.As(err, &cfgErr) {
		for _, e := range cfgErr.Errors {
			name := "<unnamed>"
			if e.Name != nil {
				name = *e.Name
			}
			details = append(details, fmt.Sprintf("%s: missing %s", name, strings.Join(e.MissingFields, ", ")))
		}
	}
	return newCheck("CF02", "Snippet definitions complete", "configuration", details, "error")
}

func checkDuplicates(id, name string, merged []snippet.Definition, counts map[string]int, field func(snippet.Definition) string) HealthCheck {
	var details []string
	seen := make(map[string]bool)
	for _, d := range merged {
		v := field(d)
		if v == "" || counts[v] < 2 || seen[v] {
			continue
		}
		seen[v] = true
		details = append(details, fmt.Sprintf("%q is bound %d times; the last definition wins", v, counts[v]))
	}
	return newCheck(id, name, "configuration", details, "warn")
}

func checkDuplicateLabels(merged []snippet.Definition, defaultRepl string) HealthCheck {
	label := func(d snippet.Definition) string {
		if d.Name == "" || d.Snippet == "" {
			return ""
		}
		target := d.Repl
		if target == "" {
			target = defaultRepl
		}
		return snippet.Label(d.Key, d.Name, target)
	}
	counts := make(map[string]int)
	for _, d := range merged {
		if l := label(d); l != "" {
			counts[l]++
		}
	}
	return checkDuplicates("CF04", "Menu labels unique", merged, counts, label)
}

var placeholderPattern = regexp.MustCompile(`\$[a-z][a-z-]*`)

func checkPlaceholders(merged []snippet.Definition) HealthCheck {
	tokens := snippet.Tokens()
	known := func(candidate string) bool {
		for _, tok := range tokens {
			if strings.HasPrefix(candidate, tok.Name) {
				return true
			}
		}
		return false
	}

	var details []string
	for _, d := range merged {
		for _, m := range placeholderPattern.FindAllString(d.Snippet, -1) {
			if !known(m) {
				details = append(details, fmt.Sprintf("%s: %s is not a placeholder and is sent as-is", d.Name, m))
			}
		}
	}
	return newCheck("CF05", "Placeholders recognized", "configuration", details, "warn")
}

func checkSnippetTargets(merged []snippet.Definition, targets map[string]repl.TargetConfig, defaultRepl string) HealthCheck {
	var details []string
	for _, d := range merged {
		target := d.Repl
		if target == "" {
			target = defaultRepl
		}
		if _, ok := targets[target]; !ok {
			details = append(details, fmt.Sprintf("%s: REPL target %q is not configured", d.Name, target))
		}
	}
	return newCheck("RT01", "Snippet targets configured", "targets", details, "error")
}

func checkConnectivity(ctx context.Context, cfg *config.Config, names []string, opts *DoctorOptions) HealthCheck {
	if opts.Offline {
		return HealthCheck{RuleID: "RT02", Name: "Targets reachable", Group: "targets", Status: "skip"}
	}

	targets := repl.NewTargets(cfg.Repl.Targets, nil)
	defer func() { _ = targets.Close() }()

	var details []string
	for _, name := range names {
		tctx, cancel := context.WithTimeout(ctx, opts.Timeout)
		_, err := targets.Get(tctx, name)
		cancel()
		if err != nil {
			details = append(details, fmt.Sprintf("%s: %v", name, err))
		}
	}
	return newCheck("RT02", "Targets reachable", "targets", details, "warn")
}

func checkState(path string) HealthCheck {
	var details []string
	store, err := state.Open(path)
	if err != nil {
		details = append(details, err.Error())
	} else {
		if _, err := store.MigrationVersion(); err != nil {
			details = append(details, err.Error())
		}
		_ = store.Close()
	}
	return newCheck("ST01", "State database usable", "state", details, "warn")
}

// calculateHealthScore computes a health score from 0-100.
// Errors count double; with more snippets each issue weighs less.
func calculateHealthScore(checks []HealthCheck, snippetCount int) int {
	score := 100.0

	basePenalty := 5.0
	if snippetCount > 20 {
		basePenalty = 3.0
	}
	if snippetCount > 50 {
		basePenalty = 2.0
	}

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		if rec := getRecommendation(check.RuleID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific rule.
func getRecommendation(ruleID string) string {
	switch ruleID {
	case "CF01":
		return "Run 'replsnip init' to create a workspace configuration"
	case "CF02":
		return "Give every snippet both a name and a snippet"
	case "CF03":
		return "Bind each key to a single snippet"
	case "CF04":
		return "Rename snippets that share a key, name and REPL"
	case "CF05":
		return "Check placeholder spelling with 'replsnip tokens'"
	case "RT01":
		return "Add the missing targets under repl.targets"
	case "RT02":
		return "Start the REPL or fix the target address, port file or DSN"
	case "ST01":
		return "Check that the state_path directory is writable"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header.Render("replsnip Workspace Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header.Render("Workspace Summary"))
	r.Printf("   Files: %d | Snippets: %d | Keys: %d\n", len(out.Summary.Files), out.Summary.Snippets, out.Summary.Keys)
	r.Printf("   Targets: %s\n", strings.Join(out.Summary.Targets, ", "))
	r.Println("")

	r.Println(styles.Header.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.Error.Render("✗")
		case "skip":
			icon = styles.Muted.Render("-")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# replsnip Workspace Health Report")
	r.Println("")

	r.Println("## Workspace Summary")
	r.Println("")
	r.Printf("- **Files**: %d\n", len(out.Summary.Files))
	r.Printf("- **Snippets**: %d\n", out.Summary.Snippets)
	r.Printf("- **Keys**: %d\n", out.Summary.Keys)
	r.Printf("- **Targets**: %s\n", strings.Join(out.Summary.Targets, ", "))
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
