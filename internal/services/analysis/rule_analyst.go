package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/storyqa/storyqa/internal/domain"
)

// featureRule binds one feature name to the story keywords that select it.
type featureRule struct {
	feature  string
	keywords []string
}

// featureRules is evaluated in order, first hit wins. Broad keywords sit
// below the more specific ones: "export" resolves to Download before
// "admin" can reach Admin Panel.
var featureRules = []featureRule{
	{"Login", []string{"login", "sign in", "signin", "log in", "authenticate"}},
	{"Registration", []string{"register", "sign up", "signup", "create account"}},
	{"Search", []string{"search", "find", "filter", "query", "look up"}},
	{"Checkout", []string{"checkout", "purchase", "buy", "order", "payment"}},
	{"Password Reset", []string{"reset password", "forgot password", "change password"}},
	{"Job Application", []string{"apply", "job application", "submit application"}},
	{"Job Posting", []string{"post a job", "job listing", "create job", "add job"}},
	{"Profile", []string{"profile", "account settings", "update profile"}},
	{"Upload", []string{"upload", "attach file", "import file"}},
	{"Download", []string{"download", "export"}},
	{"Logout", []string{"logout", "sign out", "log out"}},
	{"Booking", []string{"book", "reserve", "schedule", "appointment"}},
	{"Cart", []string{"cart", "basket", "add to cart"}},
	{"Messaging", []string{"message", "chat", "inbox", "send message"}},
	{"Notification", []string{"notification", "alert", "notify"}},
	{"Admin Panel", []string{"admin", "manage users", "moderate", "dashboard"}},
}

var (
	// "I want to <verb phrase> so that ..." when no keyword matched.
	featureFallbackRe = regexp.MustCompile(`(?:want to|able to|can)\s+([a-zA-Z\s]{3,25}?)(?:\s+so that|\.|$)`)

	// "As a/an <role>, I want ..."
	roleRe    = regexp.MustCompile(`as an?\s+([a-zA-Z\s]+?)(?:,|\s+i\s+want|\s+i\s+would|\s+i\s+can|\s+i\s+need)`)
	articleRe = regexp.MustCompile(`\b(?:the|a|an)\b`)
)

// roleFallbacks are scanned when no "as a <role>" phrase is present.
var roleFallbacks = []string{"admin", "recruiter", "employer", "job seeker", "candidate", "guest"}

// RuleAnalyst derives a StoryAnalysis from keyword tables alone. It needs
// no network access and always produces a usable result, which makes it
// the fallback behind the model-backed analyst.
type RuleAnalyst struct{}

func NewRuleAnalyst() *RuleAnalyst {
	return &RuleAnalyst{}
}

// Analyze interprets a free-text user story.
func (a *RuleAnalyst) Analyze(story string) *domain.StoryAnalysis {
	sl := strings.ToLower(story)
	feature := detectFeature(sl)
	return &domain.StoryAnalysis{
		Feature:       feature,
		UserRole:      detectRole(sl),
		Conditions:    conditionsFor(feature),
		OriginalStory: story,
	}
}

func detectFeature(sl string) string {
	for _, rule := range featureRules {
		for _, kw := range rule.keywords {
			if strings.Contains(sl, kw) {
				return rule.feature
			}
		}
	}
	if m := featureFallbackRe.FindStringSubmatch(sl); m != nil {
		return titleCase(strings.TrimSpace(m[1]))
	}
	return "Feature"
}

func detectRole(sl string) string {
	if m := roleRe.FindStringSubmatch(sl); m != nil {
		role := articleRe.ReplaceAllString(m[1], "")
		role = strings.Join(strings.Fields(role), " ")
		if role != "" {
			return role
		}
	}
	for _, kw := range roleFallbacks {
		if strings.Contains(sl, kw) {
			return kw
		}
	}
	return "user"
}

// titleCase uppercases the first letter of each word. Input comes from an
// already lowercased story, restricted to letters and spaces.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// conditionBank holds curated condition sets for the features worth
// covering in depth. Evaluated in order; the key is matched as a substring
// of the lowercased feature name.
var conditionBank = []struct {
	key        string
	conditions []string
}{
	{"login", []string{
		"valid email and valid password → successful login",
		"valid email and invalid password → error message shown",
		"invalid email and valid password → error message shown",
		"empty email field → validation error",
		"empty password field → validation error",
		"both fields empty → validation error",
		"email without @ symbol → rejected",
		"password at minimum allowed length → accepted",
		"password exceeding maximum length → rejected",
		"username with special characters → handled per policy",
		"SQL injection in email field → safely handled",
		"XSS script in email field → safely handled",
		"whitespace-only password → rejected",
		"multiple failed attempts (5+) → account locked or CAPTCHA triggered",
		"locked/disabled account login → appropriate error",
		"login from multiple browsers simultaneously → handled",
		"session expires → redirect to login page",
		"password field masks characters",
		"remember-me checkbox persists session",
		"forgot-password link navigates correctly",
	}},
	{"registration", []string{
		"all valid fields → account created successfully",
		"empty first name → validation error",
		"empty last name → validation error",
		"empty email → validation error",
		"empty password → validation error",
		"empty confirm-password → validation error",
		"email without @ → rejected",
		"duplicate email address → rejected with message",
		"password shorter than minimum length → rejected",
		"password and confirm-password mismatch → rejected",
		"name exceeding maximum length → rejected",
		"phone number with non-numeric characters → rejected",
		"name with special characters/emojis → handled",
		"SQL injection in email → safely handled",
		"submitting without accepting terms → rejected",
		"confirmation email sent after successful registration",
		"expired verification link → appropriate error",
	}},
	{"search", []string{
		"valid keyword matching results → results displayed",
		"keyword with no matches → 'no results found' message",
		"empty search field → validation error or all results shown",
		"whitespace-only search → treated as empty",
		"partial keyword → relevant results shown",
		"keyword with special characters → safely handled",
		"SQL injection in search field → safely handled",
		"very long search string (>255 chars) → truncated or rejected",
		"apply filter with valid criteria → filtered results",
		"apply multiple filters → correctly combined",
		"clear filters → original results restored",
		"navigate to next/previous page of results",
		"search result count matches actual results",
		"search returns within acceptable response time",
	}},
	{"job application", []string{
		"all required fields valid → application submitted successfully",
		"empty name field → validation error",
		"empty email field → validation error",
		"invalid email format → validation error",
		"invalid resume file type → rejected",
		"resume exceeding size limit → rejected",
		"resume at exactly maximum size → accepted",
		"submitting without resume (if required) → validation error",
		"cover letter exceeding character limit → rejected",
		"applying to a closed/expired job → appropriate error",
		"applying to the same job twice → duplicate application handled",
		"applying without being logged in → redirected to login",
		"confirmation message shown after successful application",
		"confirmation email sent to applicant",
	}},
	{"job posting", []string{
		"all valid fields → job posted successfully",
		"empty job title → validation error",
		"empty job description → validation error",
		"empty location → validation error",
		"salary field with non-numeric value → rejected",
		"negative salary value → rejected",
		"job title exceeding maximum length → rejected",
		"description exceeding maximum length → rejected",
		"posting with past expiry date → rejected",
		"posting with future expiry date → accepted",
		"job appears in search results after posting",
		"recruiter can edit a posted job",
		"recruiter can delete a posted job",
	}},
	{"password reset", []string{
		"valid registered email → reset link sent",
		"unregistered email → generic message (no account reveal)",
		"empty email field → validation error",
		"invalid email format → validation error",
		"reset link works within expiry window",
		"expired reset link → appropriate error",
		"reset link used more than once → rejected",
		"new password same as old → rejected or allowed per policy",
		"new password below minimum length → rejected",
		"new and confirm password mismatch → rejected",
		"valid new password → updated and confirmation shown",
		"login with old password after reset → rejected",
		"login with new password after reset → successful",
	}},
}

func conditionsFor(feature string) []string {
	f := strings.ToLower(feature)
	for _, bank := range conditionBank {
		if strings.Contains(f, bank.key) {
			return append([]string(nil), bank.conditions...)
		}
	}
	return genericConditions(feature)
}

// genericConditions covers features outside the curated bank with the
// standard validation, boundary, and security sweep.
func genericConditions(feature string) []string {
	return []string{
		fmt.Sprintf("all required fields valid → %s successful", feature),
		"one required field empty → validation error",
		"all required fields empty → validation error",
		"input at minimum allowed length → accepted",
		"input at maximum allowed length → accepted",
		"input exceeding maximum length → rejected",
		"input with special characters → handled per policy",
		"SQL injection attempt → safely handled",
		"XSS script attempt → safely handled",
		"duplicate submission → handled gracefully",
		"network failure during action → error handled",
		fmt.Sprintf("unauthenticated user attempts %s → redirected to login", feature),
		fmt.Sprintf("success confirmation shown after %s", feature),
	}
}
