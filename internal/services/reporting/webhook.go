package reporting

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
)

// Notifier posts run-completion webhooks. A Notifier with no URL is
// valid and sends nothing.
type Notifier struct {
	httpClient *http.Client
	url        string
	secret     string
	logger     *zap.Logger
}

func NewNotifier(url, secret string, timeout time.Duration, logger *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		secret:     secret,
		logger:     logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.url != "" }

// RunCompletedEvent is the webhook payload.
type RunCompletedEvent struct {
	Event     string `json:"event"`
	RunID     string `json:"run_id"`
	Feature   string `json:"feature"`
	Total     int    `json:"total"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	Errored   int    `json:"errored"`
	PassRate  int    `json:"pass_rate"`
	ReportURI string `json:"report_uri,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RunCompleted posts the run summary to the configured webhook. The body
// is signed with HMAC-SHA256 when a secret is set.
func (n *Notifier) RunCompleted(ctx context.Context, runID uuid.UUID, feature string, sum domain.ExecutionSummary, reportURI string) error {
	if !n.Enabled() {
		return nil
	}

	payload := RunCompletedEvent{
		Event:     "run_completed",
		RunID:     runID.String(),
		Feature:   feature,
		Total:     sum.Total,
		Passed:    sum.Passed,
		Failed:    sum.Failed,
		Errored:   sum.Errored,
		PassRate:  sum.PassRate(),
		ReportURI: reportURI,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StoryQA/1.0")
	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write(body)
		req.Header.Set("X-StoryQA-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info("run completion webhook sent",
		zap.String("run_id", runID.String()),
		zap.Int("status", resp.StatusCode))
	return nil
}
