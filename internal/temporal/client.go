// Package temporal wraps the Temporal SDK client so the API and the
// worker dial the server the same way and log through zap.
package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/config"
)

// Client is the SDK client plus the task queue it was configured for.
type Client struct {
	client.Client
	taskQueue string
}

// NewClient dials the Temporal server from config.
func NewClient(cfg config.TemporalConfig, logger *zap.Logger) (*Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Addr(),
		Namespace: cfg.Namespace,
		Logger:    NewZapAdapter(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dialing temporal at %s: %w", cfg.Addr(), err)
	}

	return &Client{Client: c, taskQueue: cfg.TaskQueue}, nil
}

// TaskQueue returns the queue workers poll and starters enqueue to.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// ZapAdapter bridges Temporal's keyval logger onto zap's sugared API.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
}

// NewZapAdapter names the logger and skips one caller frame so log
// sites point at SDK code, not this adapter.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{
		sugar: logger.Named("temporal").WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

func (z *ZapAdapter) Debug(msg string, keyvals ...interface{}) {
	z.sugar.Debugw(msg, keyvals...)
}

func (z *ZapAdapter) Info(msg string, keyvals ...interface{}) {
	z.sugar.Infow(msg, keyvals...)
}

func (z *ZapAdapter) Warn(msg string, keyvals ...interface{}) {
	z.sugar.Warnw(msg, keyvals...)
}

func (z *ZapAdapter) Error(msg string, keyvals ...interface{}) {
	z.sugar.Errorw(msg, keyvals...)
}
