package scriptgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/storyqa/storyqa/internal/domain"
)

const fallbackFeature = "General"

// Step grammar mirrored from the execution interpreter. The emitter
// and the interpreter must agree on what each automation line means,
// so the triggers, extractors, and their order match rule for rule.
var (
	urlPattern        = regexp.MustCompile(`https?://[^\s"']+`)
	quotedPattern     = regexp.MustCompile(`['"]([^'"]+)['"]`)
	assertWordPattern = regexp.MustCompile(`(?i)\b(assert|verify|check|confirm)\b`)
	sendKeysPattern   = regexp.MustCompile(`(?i)(?:name/id|name|id)[^'"]*(?:'([^']+)'|"([^"]+)").*?(?:send_keys?|enter|type|keys?)\s*[(\s]*(?:'([^']*)'|"([^"]*)")`)
	enterFieldPattern = regexp.MustCompile(`(?i)enter\s+(?:'([^'"]+?)'|"([^'"]+?)"|([^'"]+?))\s+in\s+(?:the\s+)?['"]?(\w[\w-]*)['"]?\s*field`)
	slugPattern       = regexp.MustCompile(`[^a-z0-9]+`)
)

// Generator converts test case batches into Playwright TypeScript
// suites.
type Generator struct {
	baseURL string
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: baseURL}
}

// Generate emits one spec file with a test() per case, grouped into
// describe blocks by feature in batch order, plus the package.json and
// playwright.config.ts stubs the sandbox runner needs.
func (g *Generator) Generate(name string, cases []domain.TestCase) *Project {
	slug := slugify(name)
	if slug == "" {
		slug = "storyqa"
	}

	var buf bytes.Buffer
	buf.WriteString(specImports)
	buf.WriteString(specHelpers)
	for _, group := range groupByFeature(cases) {
		fmt.Fprintf(&buf, "\ntest.describe('%s', () => {\n", escapeTS(group.feature))
		for _, tc := range group.cases {
			writeTest(&buf, tc)
		}
		buf.WriteString("});\n")
	}

	specPath := "tests/" + slug + ".spec.ts"
	return &Project{
		Files: map[string]string{
			specPath:               buf.String(),
			"package.json":         renderPackageJSON(slug),
			"playwright.config.ts": renderPlaywrightConfig(g.baseURL),
		},
		SpecPath:  specPath,
		TestCount: len(cases),
	}
}

func renderPackageJSON(slug string) string {
	return strings.ReplaceAll(packageJSONTemplate, "{{.ProjectName}}", slug)
}

func renderPlaywrightConfig(baseURL string) string {
	return strings.ReplaceAll(playwrightConfigTemplate, "{{.BaseURL}}", escapeTS(baseURL))
}

type featureGroup struct {
	feature string
	cases   []domain.TestCase
}

// groupByFeature buckets cases by feature, keeping first-seen order.
func groupByFeature(cases []domain.TestCase) []featureGroup {
	index := make(map[string]int)
	var groups []featureGroup
	for _, tc := range cases {
		feature := tc.Feature
		if feature == "" {
			feature = fallbackFeature
		}
		i, ok := index[feature]
		if !ok {
			i = len(groups)
			index[feature] = i
			groups = append(groups, featureGroup{feature: feature})
		}
		groups[i].cases = append(groups[i].cases, tc)
	}
	return groups
}

func writeTest(buf *bytes.Buffer, tc domain.TestCase) {
	title := tc.Condition
	if tc.TCID != "" {
		title = fmt.Sprintf("[%s] %s", tc.TCID, tc.Condition)
	}
	fmt.Fprintf(buf, "\n  test('%s', async ({ page }) => {\n", escapeTS(title))

	// The runner opens the case's page before interpreting any step;
	// the suite does the same.
	if tc.PageURL != "" {
		fmt.Fprintf(buf, "    await page.goto('%s');\n", escapeTS(tc.PageURL))
	}
	for i, step := range tc.AutomationSteps {
		writeStep(buf, i+1, step)
	}
	buf.WriteString("  });\n")
}

func writeStep(buf *bytes.Buffer, n int, step string) {
	trimmed := strings.TrimSpace(step)
	if trimmed == "" {
		return
	}
	if strings.HasPrefix(trimmed, "#") {
		fmt.Fprintf(buf, "    // %s\n", strings.TrimSpace(strings.TrimPrefix(trimmed, "#")))
		return
	}
	lines, ok := translateStep(step)
	if !ok {
		fmt.Fprintf(buf, "    // Step %d not automated: %s\n", n, trimmed)
		return
	}
	fmt.Fprintf(buf, "    // Step %d: %s\n", n, trimmed)
	for _, line := range lines {
		fmt.Fprintf(buf, "    %s\n", line)
	}
}

// translateStep renders one automation line as Playwright calls.
// Unrecognized steps report false; the interpreter skips those, the
// suite keeps them as comments.
func translateStep(step string) ([]string, bool) {
	lower := strings.ToLower(step)
	switch {
	case containsAny(lower, "navigate to", "open browser", "go to"):
		url := extractURL(step)
		if url == "" {
			url = extractQuoted(step)
		}
		if url == "" {
			return nil, false
		}
		return []string{fmt.Sprintf("await page.goto('%s');", escapeTS(url))}, true

	case sendKeysPattern.MatchString(step):
		m := sendKeysPattern.FindStringSubmatch(step)
		locator := m[1]
		if locator == "" {
			locator = m[2]
		}
		value := m[3]
		if value == "" {
			value = m[4]
		}
		return []string{fmt.Sprintf("await fillField(page, '%s', '%s');", escapeTS(locator), escapeTS(value))}, true

	case enterFieldPattern.MatchString(step):
		m := enterFieldPattern.FindStringSubmatch(step)
		value := m[1]
		if value == "" {
			value = m[2]
		}
		if value == "" {
			value = strings.TrimSpace(m[3])
		}
		return []string{fmt.Sprintf("await fillField(page, '%s', '%s');", escapeTS(m[4]), escapeTS(value))}, true

	case containsAny(lower, "click()", "click the", "click button", "and click"):
		return []string{fmt.Sprintf("await clickButton(page, '%s');", escapeTS(extractQuoted(step)))}, true

	case assertWordPattern.MatchString(step) && strings.Contains(lower, "url"):
		expected := extractQuoted(step)
		if expected == "" {
			return nil, false
		}
		return []string{fmt.Sprintf("await expect(page).toHaveURL(new RegExp('%s'));", escapeTS(regexp.QuoteMeta(expected)))}, true

	case assertWordPattern.MatchString(step):
		expected := extractQuoted(step)
		if expected == "" {
			return nil, false
		}
		return []string{fmt.Sprintf("await expect(page.locator('body')).toContainText('%s', { ignoreCase: true });", escapeTS(expected))}, true

	case strings.Contains(lower, "select") && containsAny(lower, "option", "dropdown", "from"):
		option := extractQuoted(step)
		if option == "" {
			return nil, false
		}
		return []string{fmt.Sprintf("await selectOption(page, '%s');", escapeTS(option))}, true

	case containsAny(lower, "checkbox", "check the"):
		return []string{"await checkFirstCheckbox(page);"}, true

	default:
		return nil, false
	}
}

// Write materializes the project under dir.
func (p *Project) Write(dir string) error {
	for name, content := range p.Files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// Zip archives the project for staging into object storage. Entries are
// written in sorted path order so the same project always produces the
// same archive.
func (p *Project) Zip() ([]byte, error) {
	names := make([]string, 0, len(p.Files))
	for name := range p.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("archiving %s: %w", name, err)
		}
		if _, err := w.Write([]byte(p.Files[name])); err != nil {
			return nil, fmt.Errorf("archiving %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func extractURL(step string) string {
	return strings.TrimRight(urlPattern.FindString(step), ".,;")
}

func extractQuoted(step string) string {
	if m := quotedPattern.FindStringSubmatch(step); m != nil {
		return m[1]
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = slugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func escapeTS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
