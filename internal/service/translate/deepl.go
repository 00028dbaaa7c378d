// Package translate wraps the DeepL REST API for structural,
// markup-preserving translation.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/config"
)

// DeepL target language codes differ from our internal codes.
var langMap = map[string]string{
	"en": "EN-US",
	"es": "ES",
	"fr": "FR",
}

// Document carries the three translatable article fields. Empty fields
// on a result mean the provider returned nothing for that field; prior
// values must be left untouched by the caller.
type Document struct {
	Title string
	Lead  string
	Body  string
}

type Client struct {
	cfg    *config.TranslationConfig
	logger *zap.Logger
	client *http.Client
}

func NewClient(cfg *config.TranslationConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Translate translates one text to the target language. tagHandling
// "html" preserves markup; pass "" for plain text fields.
func (c *Client) Translate(ctx context.Context, text, targetLang, tagHandling string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("deepl client not configured")
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	target, ok := langMap[targetLang]
	if !ok {
		target = strings.ToUpper(targetLang)
	}

	form := url.Values{
		"text":            {text},
		"source_lang":     {strings.ToUpper(c.cfg.SourceLanguage)},
		"target_lang":     {target},
		"split_sentences": {"nonewlines"},
	}
	if tagHandling != "" {
		form.Set("tag_handling", tagHandling)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach deepl: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("deepl returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode deepl response: %w", err)
	}
	if len(result.Translations) == 0 {
		return "", fmt.Errorf("deepl returned no translations")
	}

	return result.Translations[0].Text, nil
}

// TranslateDocument translates title, lead and body. Per-field failures
// leave that field empty rather than failing the document; the document
// as a whole fails only if every field fails.
func (c *Client) TranslateDocument(ctx context.Context, doc Document, targetLang string) (Document, error) {
	var out Document
	var lastErr error

	if title, err := c.Translate(ctx, doc.Title, targetLang, ""); err != nil {
		lastErr = err
	} else {
		out.Title = title
	}
	if lead, err := c.Translate(ctx, doc.Lead, targetLang, ""); err != nil {
		lastErr = err
	} else {
		out.Lead = lead
	}
	if body, err := c.Translate(ctx, doc.Body, targetLang, "html"); err != nil {
		lastErr = err
	} else {
		out.Body = body
	}

	if out.Title == "" && out.Lead == "" && out.Body == "" && lastErr != nil {
		return out, fmt.Errorf("translation to %s failed entirely: %w", targetLang, lastErr)
	}
	return out, nil
}
