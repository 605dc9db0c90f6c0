package generation

import (
	"regexp"
	"strings"

	"github.com/storyqa/storyqa/internal/domain"
)

var wordPattern = regexp.MustCompile(`\w+`)

// Scoring weights for matching a condition against crawled pages.
const (
	featureWordScore = 3 // feature token found in page URL or title
	condWordScore    = 1 // condition token found in page URL or title
	fieldMatchScore  = 2 // form field whose name/type contains a condition token
)

// Match selects the page and form that best anchor a condition.
//
// Per page: featureWordScore for each feature token (longer than 3 runes)
// contained in the lowercased URL or title, condWordScore for each such
// condition token, and every form's score added on top. A form scores
// fieldMatchScore per field whose lowercased "name type" string contains
// any condition token longer than 2 runes. The page's candidate form is
// the strictly highest-scoring form, first one wins ties; a form with
// score zero still beats having none. Across pages, strictly highest
// total wins, first page wins ties.
//
// A best score of zero or less means no keyword overlap anywhere; then
// the first page owning a form is returned with that form, else the
// first page with no form, else (nil, nil) for an empty page list.
func Match(condition, feature string, pages []domain.Page) (*domain.Page, *domain.Form) {
	condWords := wordPattern.FindAllString(strings.ToLower(condition), -1)
	featureWords := wordPattern.FindAllString(strings.ToLower(feature), -1)

	var bestPage *domain.Page
	var bestForm *domain.Form
	bestScore := -1

	for i := range pages {
		page := &pages[i]
		urlLower := strings.ToLower(page.URL)
		titleLower := strings.ToLower(page.Title)

		score := 0
		for _, w := range featureWords {
			if len(w) > 3 && (strings.Contains(urlLower, w) || strings.Contains(titleLower, w)) {
				score += featureWordScore
			}
		}
		for _, w := range condWords {
			if len(w) > 3 && (strings.Contains(urlLower, w) || strings.Contains(titleLower, w)) {
				score += condWordScore
			}
		}

		var pageForm *domain.Form
		pageFormScore := -1
		for j := range page.Forms {
			form := &page.Forms[j]
			fs := formScore(form, condWords)
			if fs > pageFormScore {
				pageFormScore = fs
				pageForm = form
			}
			score += fs
		}

		if score > bestScore {
			bestScore = score
			bestPage = page
			bestForm = pageForm
		}
	}

	if bestScore <= 0 {
		for i := range pages {
			if len(pages[i].Forms) > 0 {
				return &pages[i], &pages[i].Forms[0]
			}
		}
		if len(pages) > 0 {
			return &pages[0], nil
		}
		return nil, nil
	}
	return bestPage, bestForm
}

// formScore awards fieldMatchScore per field whose combined name and type
// contain any condition token longer than 2 runes.
func formScore(form *domain.Form, condWords []string) int {
	score := 0
	for _, field := range form.Fields {
		fname := strings.ToLower(field.Name + " " + field.Type)
		for _, w := range condWords {
			if len(w) > 2 && strings.Contains(fname, w) {
				score += fieldMatchScore
				break
			}
		}
	}
	return score
}
