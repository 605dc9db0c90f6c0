package execution

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const submitSelector = "button[type='submit'], input[type='submit']"

// SessionConfig controls the browser session shared by a batch.
type SessionConfig struct {
	Headless    bool
	StepTimeout time.Duration
	NavTimeout  time.Duration
}

// Session owns one running browser, context and page, reused across
// every test case in a batch. It implements Driver.
type Session struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
	cfg        SessionConfig
	logger     *zap.Logger
}

func NewSession(cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 8 * time.Second
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1920,
			Height: 1080,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	return &Session{
		pw:         pw,
		browser:    browser,
		browserCtx: browserCtx,
		page:       page,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Close releases the page, browser and playwright driver.
func (s *Session) Close() error {
	if s.browserCtx != nil {
		s.browserCtx.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		return s.pw.Stop()
	}
	return nil
}

func (s *Session) stepTimeoutMS() float64 {
	return float64(s.cfg.StepTimeout.Milliseconds())
}

func (s *Session) Navigate(url string) error {
	s.logger.Debug("navigating", zap.String("url", url))
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.cfg.NavTimeout.Milliseconds())),
	})
	return err
}

// Fill tries name, then id, then placeholder substring, each bounded by
// the step timeout.
func (s *Session) Fill(locator, value string) error {
	selectors := []string{
		fmt.Sprintf(`[name="%s"]`, locator),
		fmt.Sprintf(`[id="%s"]`, locator),
		fmt.Sprintf(`[placeholder*="%s" i]`, locator),
	}
	for _, sel := range selectors {
		if _, err := s.page.WaitForSelector(sel, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(s.stepTimeoutMS()),
		}); err != nil {
			continue
		}
		input := s.page.Locator(sel).First()
		typ, _ := input.GetAttribute("type")
		if typ == "checkbox" || typ == "radio" {
			// Checkable inputs take no typed text.
			return nil
		}
		return input.Fill(value)
	}
	return &StepError{
		Kind: FailureNotFound,
		Msg:  fmt.Sprintf("Input '%s' not found by name, id, or placeholder", locator),
	}
}

func (s *Session) ClickButton(label string) error {
	if label != "" {
		xpath := fmt.Sprintf("xpath=//button[normalize-space()='%s'] | //input[@value='%s'] | //a[normalize-space()='%s']", label, label, label)
		if _, err := s.page.WaitForSelector(xpath, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(s.stepTimeoutMS()),
		}); err == nil {
			return s.page.Locator(xpath).First().Click()
		}
	}
	if _, err := s.page.WaitForSelector(submitSelector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(s.stepTimeoutMS()),
	}); err == nil {
		return s.page.Locator(submitSelector).First().Click()
	}
	return &StepError{
		Kind: FailureNotFound,
		Msg:  fmt.Sprintf("Button '%s' not found via text or submit selector", label),
	}
}

func (s *Session) CurrentURL() (string, error) {
	return s.page.URL(), nil
}

func (s *Session) PageSource() (string, error) {
	return s.page.Content()
}

func (s *Session) SelectOption(option string) error {
	if _, err := s.page.WaitForSelector("select", playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(s.stepTimeoutMS()),
	}); err != nil {
		return &StepError{
			Kind: FailureNotFound,
			Msg:  fmt.Sprintf("No select control found for option '%s'", option),
		}
	}
	_, err := s.page.Locator("select").First().SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{option},
	})
	return err
}

func (s *Session) CheckFirstCheckbox() error {
	const sel = "input[type='checkbox']"
	if _, err := s.page.WaitForSelector(sel, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(s.stepTimeoutMS()),
	}); err != nil {
		return &StepError{Kind: FailureNotFound, Msg: "No checkbox found on page"}
	}
	box := s.page.Locator(sel).First()
	checked, err := box.IsChecked()
	if err != nil {
		return err
	}
	if checked {
		return nil
	}
	return box.Check()
}

func (s *Session) Screenshot(path string) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	return err
}
