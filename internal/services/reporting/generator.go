package reporting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/llm"
)

// ArtifactStore persists rendered reports.
type ArtifactStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// LatestCache remembers the most recent rendered report for the
// download endpoint.
type LatestCache interface {
	SetLatestReport(ctx context.Context, data []byte) error
}

// Generator assembles run reports and renders them as HTML or JSON.
type Generator struct {
	client        *llm.ClaudeClient
	store         ArtifactStore
	cache         LatestCache
	screenshotDir string
	tmpl          *template.Template
	logger        *zap.Logger
}

// NewGenerator builds a report generator. client enables the model
// written executive summary and may be nil; store and cache may be nil
// when only Build and the renderers are used.
func NewGenerator(client *llm.ClaudeClient, store ArtifactStore, cache LatestCache, screenshotDir string, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"statusClass": statusClass,
		"rateColor":   rateColor,
		"duration": func(seconds float64) string {
			return fmt.Sprintf("%.2f s", seconds)
		},
	}).Parse(ReportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}

	return &Generator{
		client:        client,
		store:         store,
		cache:         cache,
		screenshotDir: screenshotDir,
		tmpl:          tmpl,
		logger:        logger,
	}, nil
}

// Build assembles the report model. The heuristic comment, patterns and
// next steps are always computed; when a model client is configured the
// executive summary is layered on top, and its failure never fails the
// report.
func (g *Generator) Build(ctx context.Context, in Input) *RunReport {
	sum := in.Summary
	if sum == (domain.ExecutionSummary{}) && len(in.Results) > 0 {
		sum = domain.NewExecutionSummary(in.Results)
	}
	summary := Summary{
		Total:    sum.Total,
		Passed:   sum.Passed,
		Failed:   sum.Failed,
		Errored:  sum.Errored,
		PassRate: sum.PassRate(),
	}

	steps := nextSteps(in.Results)
	steps = append(steps, in.Suggestions...)

	rep := &RunReport{
		GeneratedAt: time.Now(),
		Summary:     summary,
		Comment:     overallComment(summary.PassRate, summary.Failed, summary.Errored),
		Features:    g.featureSections(in.Results),
		Patterns:    failurePatterns(in.Results),
		NextSteps:   steps,
	}

	if g.client != nil {
		text, err := g.executiveSummary(ctx, summary, in.Results)
		if err != nil {
			g.logger.Warn("executive summary generation failed", zap.Error(err))
		} else {
			rep.Executive = text
		}
	}

	return rep
}

// featureSections groups results by feature, sorted by name.
func (g *Generator) featureSections(results []domain.ExecutionResult) []FeatureSection {
	byFeature := make(map[string][]CaseView)
	for _, r := range results {
		f := r.Feature
		if f == "" {
			f = fallbackFeature
		}
		byFeature[f] = append(byFeature[f], CaseView{
			ExecutionResult: r,
			Screenshot:      g.resolveScreenshot(r.ScreenshotPath),
		})
	}

	names := make([]string, 0, len(byFeature))
	for name := range byFeature {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make([]FeatureSection, 0, len(names))
	for _, name := range names {
		sections = append(sections, FeatureSection{Feature: name, Cases: byFeature[name]})
	}
	return sections
}

// resolveScreenshot inlines the capture as a data URI. The stored path
// is relative; only its basename is trusted, resolved against the
// configured screenshot directory.
func (g *Generator) resolveScreenshot(path string) *Screenshot {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(g.screenshotDir, filepath.Base(path)))
	if err != nil {
		return &Screenshot{MissingPath: path}
	}
	return &Screenshot{
		DataURI: template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(data)),
	}
}

const executiveSystemPrompt = `You are a QA lead writing the executive summary of an automated test run for engineering management.

Write 3-5 plain sentences covering the overall outcome, the most important failure themes, and whether the feature looks ready for release. No markdown, no bullet points, no headings. Do not invent results that are not in the data.`

func (g *Generator) executiveSummary(ctx context.Context, sum Summary, results []domain.ExecutionResult) (string, error) {
	text, _, err := g.client.Complete(ctx, executiveSystemPrompt, executivePrompt(sum, results))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// executivePrompt lists the counts plus up to ten failures with their
// error messages truncated.
func executivePrompt(sum Summary, results []domain.ExecutionResult) string {
	var sb strings.Builder
	sb.WriteString("## Test Run\n\n")
	fmt.Fprintf(&sb, "- Total: %d\n", sum.Total)
	fmt.Fprintf(&sb, "- Passed: %d\n", sum.Passed)
	fmt.Fprintf(&sb, "- Failed: %d\n", sum.Failed)
	fmt.Fprintf(&sb, "- Errors: %d\n", sum.Errored)
	fmt.Fprintf(&sb, "- Pass rate: %d%%\n", sum.PassRate)

	failures := collectFailures(results)
	if len(failures) > 0 {
		sb.WriteString("\n## Failures\n\n")
		for i, r := range failures {
			if i >= 10 {
				fmt.Fprintf(&sb, "... and %d more failures\n", len(failures)-10)
				break
			}
			fmt.Fprintf(&sb, "%s [%s] %s (%s)\n", r.TCID, r.Status, r.Condition, r.Feature)
			if r.ErrorMessage != "" {
				msg := r.ErrorMessage
				if len(msg) > 500 {
					msg = msg[:500] + "..."
				}
				fmt.Fprintf(&sb, "  Error: %s\n", msg)
			}
		}
	}

	sb.WriteString("\nWrite the executive summary.")
	return sb.String()
}

// RenderHTML renders the report against the embedded template.
func (g *Generator) RenderHTML(rep *RunReport) (string, error) {
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, rep); err != nil {
		return "", fmt.Errorf("rendering report template: %w", err)
	}
	return buf.String(), nil
}

// RenderJSON renders the report model as indented JSON.
func (g *Generator) RenderJSON(rep *RunReport) ([]byte, error) {
	return json.MarshalIndent(rep, "", "  ")
}

// Publish renders the report as HTML, writes it to the artifact store
// under reports/<run-id>.html and caches the bytes for the latest-report
// download. A cache failure is logged, not returned.
func (g *Generator) Publish(ctx context.Context, runID uuid.UUID, rep *RunReport) (*domain.Report, error) {
	if g.store == nil {
		return nil, domain.ErrReportGenFailed("no artifact store configured", nil)
	}
	html, err := g.RenderHTML(rep)
	if err != nil {
		return nil, domain.ErrReportGenFailed("rendering report", err)
	}

	key := fmt.Sprintf("reports/%s.html", runID)
	uri, err := g.store.Save(ctx, key, []byte(html), "text/html; charset=utf-8")
	if err != nil {
		return nil, domain.ErrReportGenFailed("storing report", err)
	}

	if g.cache != nil {
		if err := g.cache.SetLatestReport(ctx, []byte(html)); err != nil {
			g.logger.Warn("caching latest report failed", zap.Error(err))
		}
	}

	g.logger.Info("report published",
		zap.String("run_id", runID.String()),
		zap.String("uri", uri),
		zap.Int("size_bytes", len(html)),
		zap.Int("pass_rate", rep.Summary.PassRate))

	return domain.NewReport(runID, domain.ReportFormatHTML, uri, int64(len(html)), rep.Summary.PassRate), nil
}
