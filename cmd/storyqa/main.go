// Command storyqa runs the whole pipeline in one process: story analysis,
// site exploration, test case generation, browser execution and report
// generation, without the API server or Temporal. It is the manual driver
// for trying the system against a real site.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/llm"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/internal/services/execution"
	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/internal/services/generation"
	"github.com/storyqa/storyqa/internal/services/healing"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/services/scriptgen"
	"github.com/storyqa/storyqa/internal/storage"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

const defaultStory = "As a user, I want to log in so that I can manage my tasks"

func main() {
	godotenv.Load()

	// Flags
	story := flag.String("story", defaultStory, "User story to test")
	targetURL := flag.String("url", "https://demo.playwright.dev/todomvc", "Target URL to test")
	depth := flag.Int("depth", 2, "Maximum crawl depth")
	headless := flag.Bool("headless", true, "Run the browser headless")
	skipExecution := flag.Bool("skip-execution", false, "Simulate execution instead of running a browser")
	outputDir := flag.String("output", "", "Output directory (default: /tmp/storyqa-<timestamp>)")
	openReport := flag.Bool("open", false, "Open report in browser when done")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	// Setup logger
	var logger *zap.Logger
	if *verbose {
		logger, _ = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"/dev/null"}
		logger, _ = cfg.Build()
	}
	defer logger.Sync()

	printBanner()

	ctx := context.Background()
	startTime := time.Now()
	runID := uuid.New()

	outDir := *outputDir
	if outDir == "" {
		outDir = fmt.Sprintf("/tmp/storyqa-%d", time.Now().Unix())
	}
	os.MkdirAll(outDir, 0755)

	fmt.Printf("📖 Story:  %s\n", *story)
	fmt.Printf("🎯 Target: %s\n", *targetURL)
	fmt.Printf("📁 Output: %s\n", outDir)
	fmt.Println()

	// Claude client is optional; the rule-based analysts cover everything
	var claude *llm.ClaudeClient
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		claudeCfg := llm.DefaultConfig()
		claudeCfg.APIKey = apiKey
		var err error
		claude, err = llm.NewClaudeClient(claudeCfg)
		if err != nil {
			yellow.Printf("⚠ Claude client unavailable (%v), using rule-based analysis\n", err)
			claude = nil
		}
	} else {
		dim.Println("No ANTHROPIC_API_KEY set, using rule-based analysis")
	}

	//==========================================================================
	// STEP 1: STORY ANALYSIS
	//==========================================================================
	printStep(1, "Story Analysis", "Extracting feature, role and test conditions...")

	storyAnalysis, err := runAnalysis(ctx, claude, *story, logger)
	if err != nil {
		red.Printf("   ❌ Analysis failed: %v\n", err)
		os.Exit(1)
	}

	green.Printf("   ✓ Feature %q for role %q, %d conditions\n",
		storyAnalysis.Feature, storyAnalysis.UserRole, len(storyAnalysis.Conditions))
	if *verbose {
		for _, cond := range storyAnalysis.Conditions {
			dim.Printf("      • %s\n", cond)
		}
	}

	//==========================================================================
	// STEP 2: SITE EXPLORATION
	//==========================================================================
	printStep(2, "Site Exploration", fmt.Sprintf("Crawling %s", *targetURL))

	crawl, err := runExploration(ctx, *targetURL, *depth, logger)
	if err != nil {
		red.Printf("   ❌ Exploration failed: %v\n", err)
		os.Exit(1)
	}

	forms, links := 0, 0
	for _, p := range crawl.Pages {
		forms += len(p.Forms)
		links += len(p.Links)
	}
	green.Printf("   ✓ Found %d pages, %d forms, %d links\n", len(crawl.Pages), forms, links)

	//==========================================================================
	// STEP 3: TEST CASE GENERATION
	//==========================================================================
	printStep(3, "Test Case Generation", "Mapping conditions onto crawled pages...")

	cases := generation.NewGenerator(logger).Generate(*storyAnalysis, crawl)
	summary := domain.NewGenerationSummary(cases)

	casesPath := filepath.Join(outDir, "testcases.json")
	if err := writeJSON(casesPath, cases); err != nil {
		yellow.Printf("   ⚠ Could not write test cases: %v\n", err)
	}

	green.Printf("   ✓ Generated %d test cases (%d mapped to pages)\n", summary.Total, summary.Mapped)
	if *verbose {
		for category, count := range summary.ByType {
			dim.Printf("      • %s: %d\n", category, count)
		}
	}

	//==========================================================================
	// STEP 4: SCRIPT EXPORT
	//==========================================================================
	printStep(4, "Script Export", "Writing Playwright suite...")

	suite := scriptgen.NewGenerator(*targetURL).Generate(storyAnalysis.Feature, cases)
	suiteDir := filepath.Join(outDir, "playwright")
	if err := exportSuite(suite, suiteDir); err != nil {
		yellow.Printf("   ⚠ Script export failed: %v\n", err)
	} else {
		green.Printf("   ✓ Exported %d tests\n", suite.TestCount)
		dim.Printf("      Location: %s\n", filepath.Join(suiteDir, suite.SpecPath))
	}

	//==========================================================================
	// STEP 5: EXECUTION
	//==========================================================================
	var results []domain.ExecutionResult
	var execSummary domain.ExecutionSummary

	screenshotDir := filepath.Join(outDir, "screenshots")
	if *skipExecution {
		printStep(5, "Execution", "SIMULATED (drop --skip-execution for a real browser run)")
		results, execSummary = simulatedResults(cases)
		yellow.Printf("   ⚡ Simulated: %d passed\n", execSummary.Passed)
	} else {
		printStep(5, "Execution", "Running test cases in the browser...")
		results, execSummary, err = runExecution(ctx, cases, *headless, screenshotDir, *verbose, logger)
		if err != nil {
			yellow.Printf("   ⚠ Browser unavailable (%v), simulating results\n", err)
			results, execSummary = simulatedResults(cases)
		} else {
			statusColor := green
			if execSummary.Failed > 0 || execSummary.Errored > 0 {
				statusColor = red
			}
			statusColor.Printf("   ✓ %d passed, %d failed, %d errored\n",
				execSummary.Passed, execSummary.Failed, execSummary.Errored)
		}
	}

	resultsPath := filepath.Join(outDir, "results.json")
	if err := writeJSON(resultsPath, results); err != nil {
		yellow.Printf("   ⚠ Could not write results: %v\n", err)
	}

	//==========================================================================
	// STEP 6: FAILURE ANALYSIS
	//==========================================================================
	var suggestions []string
	if execSummary.Failed > 0 || execSummary.Errored > 0 {
		printStep(6, "Failure Analysis", "Diagnosing failures against the crawled pages...")
		suggestions = healing.Suggestions(healing.Analyze(results, crawl.Pages))
		if len(suggestions) == 0 {
			yellow.Println("   ⚠ No automatic suggestions for these failures")
		}
		for i, s := range suggestions {
			if i >= 3 {
				dim.Printf("      … and %d more in the report\n", len(suggestions)-3)
				break
			}
			cyan.Printf("      • %s\n", truncate(s, 70))
		}
	} else {
		printStep(6, "Failure Analysis", "SKIPPED (no failures)")
	}

	//==========================================================================
	// STEP 7: REPORT
	//==========================================================================
	printStep(7, "Report", "Rendering HTML report...")

	reportPath, rep, err := runReport(ctx, claude, runID, reporting.Input{
		Results:     results,
		Summary:     execSummary,
		Suggestions: suggestions,
	}, outDir, screenshotDir, logger)
	if err != nil {
		red.Printf("   ❌ Report generation failed: %v\n", err)
		os.Exit(1)
	}

	green.Println("   ✓ Report generated")
	dim.Printf("      Location: %s\n", reportPath)

	printSummaryBox(rep)

	fmt.Println()
	bold.Println("═══════════════════════════════════════════════════════")
	green.Println("✅ PIPELINE COMPLETE")
	bold.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("   Total time: %.1fs\n", time.Since(startTime).Seconds())
	fmt.Printf("   Output dir: %s\n", outDir)
	fmt.Println()

	if *openReport {
		openBrowser("file://" + reportPath)
	}
}

func printBanner() {
	cyan.Println(`
╔═══════════════════════════════════════════════════════╗
║                                                       ║
║   ███████╗████████╗ ██████╗ ██████╗ ██╗   ██╗         ║
║   ██╔════╝╚══██╔══╝██╔═══██╗██╔══██╗╚██╗ ██╔╝         ║
║   ███████╗   ██║   ██║   ██║██████╔╝ ╚████╔╝          ║
║   ╚════██║   ██║   ██║   ██║██╔══██╗  ╚██╔╝   ██████╗ ║
║   ███████║   ██║   ╚██████╔╝██║  ██║   ██║   ██╔═══██╗║
║   ╚══════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚██████╔╝║
║                                               ╚═══██╗ ║
║        User stories in, test evidence out.      ╚═╝   ║
║                                                       ║
╚═══════════════════════════════════════════════════════╝
`)
}

func printStep(num int, title, description string) {
	fmt.Println()
	bold.Printf("━━━ Step %d: %s ━━━\n", num, title)
	fmt.Printf("    %s\n", description)
}

func runAnalysis(ctx context.Context, claude *llm.ClaudeClient, story string, logger *zap.Logger) (*domain.StoryAnalysis, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("   Analyzing..."),
		progressbar.OptionSpinnerType(14),
	)

	done := make(chan bool)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				bar.Add(1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()

	svc := analysis.NewService(claude, logger)
	result, err := svc.Analyze(ctx, story)
	close(done)
	bar.Finish()

	return result, err
}

func runExploration(ctx context.Context, url string, depth int, logger *zap.Logger) (domain.CrawlResult, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("   Crawling..."),
		progressbar.OptionSpinnerType(14),
	)

	done := make(chan bool)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				bar.Add(1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()

	cfg := explorer.Config{
		MaxDepth: depth,
		MaxPages: 6,
		Timeout:  10 * time.Second,
	}
	crawl, err := explorer.New(cfg, logger).Explore(ctx, url)
	close(done)
	bar.Finish()

	return crawl, err
}

func runExecution(ctx context.Context, cases []domain.TestCase, headless bool, screenshotDir string, verbose bool, logger *zap.Logger) ([]domain.ExecutionResult, domain.ExecutionSummary, error) {
	session, err := execution.NewSession(execution.SessionConfig{Headless: headless}, logger)
	if err != nil {
		return nil, domain.ExecutionSummary{}, err
	}
	defer session.Close()

	bar := progressbar.NewOptions(len(cases),
		progressbar.OptionSetDescription("   Executing..."),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	runner := execution.NewRunner(session, screenshotDir, logger)
	results, summary := runner.Run(ctx, cases, func(completed, total int, result domain.ExecutionResult) {
		bar.Set(completed)
		if verbose {
			fmt.Println()
			dim.Printf("      %s %s (%.1fs)\n", result.TCID, result.Status, result.DurationSeconds)
		}
	})
	bar.Finish()
	fmt.Println()

	return results, summary, nil
}

// simulatedResults marks every case passed so the rest of the pipeline
// has something to render when no browser is available.
func simulatedResults(cases []domain.TestCase) ([]domain.ExecutionResult, domain.ExecutionSummary) {
	results := make([]domain.ExecutionResult, len(cases))
	for i, tc := range cases {
		results[i] = domain.ExecutionResult{
			TCID:            tc.TCID,
			Feature:         tc.Feature,
			UserRole:        tc.UserRole,
			Condition:       tc.Condition,
			PageURL:         tc.PageURL,
			Status:          domain.ExecStatusPass,
			DurationSeconds: domain.RoundDuration(0.1),
			Log:             "simulated: no browser run",
		}
	}
	return results, domain.ExecutionSummary{Total: len(cases), Passed: len(cases)}
}

func runReport(ctx context.Context, claude *llm.ClaudeClient, runID uuid.UUID, input reporting.Input, outDir, screenshotDir string, logger *zap.Logger) (string, *reporting.RunReport, error) {
	store, err := storage.NewLocalStore(outDir)
	if err != nil {
		return "", nil, err
	}

	generator, err := reporting.NewGenerator(claude, store, nil, screenshotDir, logger)
	if err != nil {
		return "", nil, err
	}

	rep := generator.Build(ctx, input)
	saved, err := generator.Publish(ctx, runID, rep)
	if err != nil {
		return "", nil, err
	}

	return saved.URI, rep, nil
}

func printSummaryBox(rep *reporting.RunReport) {
	fmt.Println()
	cyan.Println("┌─────────────────────────────────────────────────────┐")
	cyan.Println("│                    RUN SUMMARY                      │")
	cyan.Println("├─────────────────────────────────────────────────────┤")

	statusColor := green
	statusText := "PASSED"
	if rep.Summary.Failed > 0 || rep.Summary.Errored > 0 {
		statusColor = red
		statusText = "FAILED"
	}

	fmt.Printf("│ Status:     ")
	statusColor.Printf("%-40s", statusText)
	fmt.Println("│")

	fmt.Printf("│ Pass rate:  %-40s│\n", fmt.Sprintf("%d%%", rep.Summary.PassRate))
	fmt.Printf("│ Tests:      %-40s│\n",
		fmt.Sprintf("%d passed, %d failed, %d errored", rep.Summary.Passed, rep.Summary.Failed, rep.Summary.Errored))
	fmt.Printf("│ Next steps: %-40s│\n", fmt.Sprintf("%d recommendations", len(rep.NextSteps)))

	cyan.Println("└─────────────────────────────────────────────────────┘")

	if rep.Comment != "" {
		fmt.Println()
		for _, line := range wrapText(rep.Comment, 60) {
			fmt.Printf("   %s\n", line)
		}
	}
}

func exportSuite(suite *scriptgen.Project, dir string) error {
	for name, content := range suite.Files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func wrapText(text string, width int) []string {
	var lines []string
	words := strings.Fields(text)
	current := ""

	for _, word := range words {
		if len(current)+len(word)+1 > width {
			if current != "" {
				lines = append(lines, current)
			}
			current = word
		} else {
			if current != "" {
				current += " "
			}
			current += word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}

	return lines
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	}
	if cmd != nil {
		cmd.Start()
	}
}
