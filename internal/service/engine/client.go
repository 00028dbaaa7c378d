// Package engine talks to the external workflow engine that performs
// the actual article generation and reports back via webhook callback.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/config"
)

// GenerationRequest is the outbound trigger payload. Failure to deliver
// it is non-fatal: the article stays in generating and the watchdog
// re-issues the trigger.
type GenerationRequest struct {
	ArticleID   uint            `json:"articleId"`
	TriggerKind string          `json:"triggerKind"`
	Text        string          `json:"text"`
	Category    string          `json:"category"`
	Languages   map[string]bool `json:"languages"`
	URLs        []string        `json:"urls"`
	ImageKind   string          `json:"imageKind,omitempty"`
	CallbackURL string          `json:"callbackUrl"`
}

type Client struct {
	cfg    *config.EngineConfig
	logger *zap.Logger
	client *http.Client
}

func NewClient(cfg *config.EngineConfig, logger *zap.Logger) *Client {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{
		IdleConnTimeout:       120 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		TLSHandshakeTimeout:   20 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Transport: tr,
			Timeout:   timeout,
		},
	}
}

// TriggerGeneration fires the generation workflow for one article.
// The engine is responsible for not duplicating in-flight work, so
// re-triggering on retry is safe.
func (c *Client) TriggerGeneration(ctx context.Context, req GenerationRequest) error {
	if req.CallbackURL == "" {
		req.CallbackURL = c.cfg.CallbackURL
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	url := c.cfg.URL + c.cfg.WebhookPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach workflow engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("workflow engine returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("Triggered article generation",
		zap.Uint("article_id", req.ArticleID),
		zap.String("trigger_kind", req.TriggerKind))
	return nil
}
