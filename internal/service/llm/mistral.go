// Package llm wraps the Mistral API for the language-model tasks of
// the pipeline: translation review, supervisor evaluation, embeddings
// and social snippet generation.
package llm

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
	"github.com/clnpth/newsroom/pkg/util"
)

type Client struct {
	cfg    *config.LLMConfig
	logger *zap.Logger
	client *http.Client
}

func NewClient(cfg *config.LLMConfig, logger *zap.Logger) *Client {
	tr := &http.Transport{
		IdleConnTimeout:     120 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Transport: tr,
			Timeout:   60 * time.Second,
		},
	}
}

func (c *Client) configured() bool {
	return c.cfg.APIKey != ""
}

// chatJSON sends a single-turn chat completion constrained to JSON
// output and unmarshals the model's answer into dest.
func (c *Client) chatJSON(ctx context.Context, prompt string, temperature float64, dest any) error {
	if !c.configured() {
		return fmt.Errorf("llm client not configured")
	}

	payload := map[string]any{
		"model":           c.cfg.Model,
		"messages":        []map[string]string{{"role": "user", "content": prompt}},
		"temperature":     temperature,
		"response_format": map[string]string{"type": "json_object"},
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach llm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("llm returned status %d: %s", resp.StatusCode, string(body))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return fmt.Errorf("failed to decode llm response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return fmt.Errorf("llm returned no choices")
	}

	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), dest); err != nil {
		return fmt.Errorf("llm returned malformed JSON: %w", err)
	}
	return nil
}

const reviewPrompt = `You are a professional translation reviewer.
Check the following machine translation for:
1. Idiomatic correctness (natural flow)
2. Cultural appropriateness
3. Domain terminology
4. HTML tag integrity

Original text:
%s

Machine translation (%s):
%s

Answer strictly as JSON:
{
  "improved": "improved translation (or the original if already good)",
  "changes": ["list of changes with reasons"],
  "quality_score": 0-100,
  "needs_revision": true/false
}`

// TranslationReview is the model's verdict on one translated field.
type TranslationReview struct {
	Improved      string   `json:"improved"`
	Changes       []string `json:"changes"`
	QualityScore  int      `json:"quality_score"`
	NeedsRevision bool     `json:"needs_revision"`
}

// ReviewTranslation asks the model to review one translated text
// against its original.
func (c *Client) ReviewTranslation(ctx context.Context, original, translated, targetLang string) (*TranslationReview, error) {
	prompt := fmt.Sprintf(reviewPrompt, original, languageName(targetLang), translated)

	var review TranslationReview
	if err := c.chatJSON(ctx, prompt, 0.1, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

func languageName(code string) string {
	names := map[string]string{
		"de": "German",
		"en": "English",
		"es": "Spanish",
		"fr": "French",
	}
	if name, ok := names[code]; ok {
		return name
	}
	return code
}

const evaluationPrompt = `You are the quality supervisor of an automated newsroom.
Score the following article on these criteria:

1. **Content quality** (0-25): research, factual accuracy, depth
2. **Language quality** (0-25): grammar, style, readability
3. **Tonality** (0-25): does it match the editorial profile?
4. **SEO & structure** (0-25): title, lead, paragraph structure, keywords

Current editorial tonality profile:
%s

Article:
Title: %s
Lead: %s
Body: %s
Category: %s

Answer strictly as JSON:
{
  "score": 0-100,
  "recommendation": "approve" | "revise" | "reject",
  "justification": "short justification (2-3 sentences)",
  "style_tags": ["factual", "informative", ...],
  "details": {
    "content": 0-25,
    "language": 0-25,
    "tonality": 0-25,
    "seo_structure": 0-25
  },
  "improvements": ["concrete suggestions"]
}`

// EvaluationInput is everything the scoring model sees.
type EvaluationInput struct {
	Title       string
	Lead        string
	Body        string
	Category    string
	ToneProfile string
}

// Evaluation is the automated quality verdict for one article.
type Evaluation struct {
	Score          int            `json:"score"`
	Recommendation string         `json:"recommendation"`
	Justification  string         `json:"justification"`
	StyleTags      []string       `json:"style_tags"`
	Details        map[string]int `json:"details"`
	Improvements   []string       `json:"improvements"`
}

// EvaluateArticle runs the supervisor evaluation.
func (c *Client) EvaluateArticle(ctx context.Context, input EvaluationInput) (*Evaluation, error) {
	category := input.Category
	if category == "" {
		category = "general"
	}
	profile := input.ToneProfile
	if profile == "" {
		profile = "No profile learned yet. Default: factual, informative, accessible."
	}
	prompt := fmt.Sprintf(evaluationPrompt, profile, input.Title, input.Lead, input.Body, category)

	var eval Evaluation
	if err := c.chatJSON(ctx, prompt, 0.1, &eval); err != nil {
		return nil, err
	}
	return &eval, nil
}

// EmbedText generates a semantic embedding for the given text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if !c.configured() {
		return nil, fmt.Errorf("llm client not configured")
	}

	payload := map[string]any{
		"model": c.cfg.EmbeddingModel,
		"input": []string{text},
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+"/embeddings", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach llm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("llm returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("llm returned no embedding")
	}

	return result.Data[0].Embedding, nil
}

const socialPrompt = `Write social media teasers for this article, one per platform.
Keep each platform's conventions (length, tone, hashtag use).

Title: %s
Lead: %s
Body excerpt: %s

Answer strictly as JSON:
{
  "twitter":   {"text": "...", "hashtags": ["..."]},
  "linkedin":  {"text": "...", "hashtags": ["..."]},
  "instagram": {"text": "...", "hashtags": ["..."]},
  "facebook":  {"text": "...", "hashtags": ["..."]}
}`

// Snippet is one per-platform teaser.
type Snippet struct {
	Platform string
	Text     string
	Hashtags []string
}

var snippetPlatforms = []string{"twitter", "linkedin", "instagram", "facebook"}

// GenerateSnippets produces social media teasers for the article.
func (c *Client) GenerateSnippets(ctx context.Context, title, lead, body string) ([]Snippet, error) {
	prompt := fmt.Sprintf(socialPrompt, title, lead, util.Truncate(body, 1000))

	var raw map[string]struct {
		Text     string   `json:"text"`
		Hashtags []string `json:"hashtags"`
	}
	if err := c.chatJSON(ctx, prompt, 0.3, &raw); err != nil {
		return nil, err
	}

	var snippets []Snippet
	for _, platform := range snippetPlatforms {
		if entry, ok := raw[platform]; ok && entry.Text != "" {
			snippets = append(snippets, Snippet{
				Platform: platform,
				Text:     entry.Text,
				Hashtags: entry.Hashtags,
			})
		}
	}
	if len(snippets) == 0 {
		return nil, fmt.Errorf("llm returned no usable snippets")
	}
	return snippets, nil
}
