package generation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
)

const unmappedNote = "⚠️ Assumption: No matching page/form found in explored data. Generic steps used."

// Generator assembles executable test cases from an analyzed story and
// the crawl of the application under test.
type Generator struct {
	logger *zap.Logger
}

func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// Generate emits one test case per condition, in input order, with
// sequential ids. Conditions that match no explored page fall back to
// a generic unmapped template.
func (g *Generator) Generate(story domain.StoryAnalysis, crawl domain.CrawlResult) []domain.TestCase {
	story.Normalize()

	cases := make([]domain.TestCase, 0, len(story.Conditions))
	for i, condition := range story.Conditions {
		id := domain.TestCaseID(i + 1)
		category, priority := Classify(condition)
		page, form := Match(condition, story.Feature, crawl.Pages)

		var tc domain.TestCase
		if page == nil {
			tc = buildUnmapped(id, story, condition, category, priority, crawl.StartURL)
		} else {
			tc = buildMapped(id, story, condition, category, priority, page, form)
		}
		cases = append(cases, tc)
	}

	summary := domain.NewGenerationSummary(cases)
	g.logger.Info("test cases generated",
		zap.String("feature", story.Feature),
		zap.Int("total", summary.Total),
		zap.Int("mapped", summary.Mapped),
		zap.Int("unmapped", summary.Unmapped))
	return cases
}

func buildMapped(id string, story domain.StoryAnalysis, condition string, category domain.TestCategory, priority domain.Priority, page *domain.Page, form *domain.Form) domain.TestCase {
	pageTitle := page.Title
	if pageTitle == "" {
		pageTitle = "Page"
	}

	formName := domain.UnmappedFormName
	var fields []domain.Field
	var buttons []domain.Button
	if form != nil {
		formName = form.Name
		if formName == "" {
			formName = "form"
		}
		fields = form.Fields
		buttons = form.Buttons
	}

	manual, automation := GenerateSteps(condition, page.URL, pageTitle, formName, fields, buttons, category)
	return domain.TestCase{
		TCID:            id,
		Feature:         story.Feature,
		UserRole:        story.UserRole,
		Condition:       condition,
		PageURL:         page.URL,
		PageTitle:       pageTitle,
		FormName:        formName,
		Type:            category,
		Priority:        priority,
		ManualSteps:     manual,
		AutomationSteps: automation,
		Mapped:          true,
	}
}

func buildUnmapped(id string, story domain.StoryAnalysis, condition string, category domain.TestCategory, priority domain.Priority, startURL string) domain.TestCase {
	action, outcome, hasArrow := SplitCondition(condition)
	if !hasArrow {
		outcome = "system responds correctly"
	}

	manualTarget := startURL
	if manualTarget == "" {
		manualTarget = "the application"
	}
	autoTarget := startURL
	if autoTarget == "" {
		autoTarget = "the application URL"
	}

	manual := []string{
		fmt.Sprintf("Open the browser and navigate to %s.", manualTarget),
		fmt.Sprintf("Locate the area related to '%s'.", story.Feature),
		fmt.Sprintf("Perform the action: %s.", action),
		"Submit or confirm the action.",
		fmt.Sprintf("Verify: %s.", outcome),
		unmappedNote,
	}
	automation := []string{
		fmt.Sprintf("Open browser and navigate to %s.", autoTarget),
		fmt.Sprintf("Locate element related to '%s' feature.", story.Feature),
		fmt.Sprintf("Perform action for condition: %s.", action),
		"Submit the form or trigger the action.",
		"Assert the response matches the expected outcome.",
		"# " + unmappedNote,
	}

	return domain.TestCase{
		TCID:            id,
		Feature:         story.Feature,
		UserRole:        story.UserRole,
		Condition:       condition,
		PageURL:         startURL,
		PageTitle:       "Unknown",
		FormName:        domain.UnmappedFormName,
		Type:            category,
		Priority:        priority,
		ManualSteps:     manual,
		AutomationSteps: automation,
		Mapped:          false,
	}
}
