// Package publisher pushes approved articles to the WordPress site via
// the REST API, authenticated with an application password.
package publisher

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

type WordPress struct {
	cfg    *config.PublisherConfig
	logger *zap.Logger
	client *http.Client
}

func NewWordPress(cfg *config.PublisherConfig, logger *zap.Logger) *WordPress {
	return &WordPress{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WordPress) Configured() bool {
	return w.cfg.URL != "" && w.cfg.Username != "" && w.cfg.AppPassword != ""
}

func (w *WordPress) apiURL(path string) string {
	return w.cfg.URL + "/wp-json/wp/v2/" + path
}

func (w *WordPress) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, w.apiURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(w.cfg.Username, w.cfg.AppPassword)
	return req, nil
}

// CheckConnection verifies the credentials against /users/me.
func (w *WordPress) CheckConnection(ctx context.Context) error {
	if !w.Configured() {
		return fmt.Errorf("wordpress client not configured")
	}

	req, err := w.newRequest(ctx, http.MethodGet, "users/me", nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach wordpress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wordpress auth check returned status %d", resp.StatusCode)
	}
	return nil
}

// Post is the subset of the WordPress post schema we read back.
type Post struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

// PostInput describes one article to publish or update.
type PostInput struct {
	Title         string
	Content       string
	Excerpt       string
	Status        string
	FeaturedMedia int
	Language      string
	SEOTitle      string
	SEODesc       string
}

func (in PostInput) payload() map[string]any {
	payload := map[string]any{
		"title":   in.Title,
		"content": in.Content,
		"excerpt": in.Excerpt,
		"status":  in.Status,
	}
	if in.FeaturedMedia > 0 {
		payload["featured_media"] = in.FeaturedMedia
	}
	if in.Language != "" {
		payload["lang"] = in.Language
	}
	meta := map[string]any{}
	if in.SEOTitle != "" {
		meta["_yoast_wpseo_title"] = in.SEOTitle
	}
	if in.SEODesc != "" {
		meta["_yoast_wpseo_metadesc"] = in.SEODesc
	}
	if len(meta) > 0 {
		payload["meta"] = meta
	}
	return payload
}

// PublishPost creates a new post and returns its id and permalink.
func (w *WordPress) PublishPost(ctx context.Context, in PostInput) (*Post, error) {
	if !w.Configured() {
		return nil, fmt.Errorf("wordpress client not configured")
	}
	if in.Status == "" {
		in.Status = "publish"
	}

	jsonBody, err := json.Marshal(in.payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}

	req, err := w.newRequest(ctx, http.MethodPost, "posts", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return w.doPost(req)
}

// UpdatePost updates an existing post in place.
func (w *WordPress) UpdatePost(ctx context.Context, postID int, in PostInput) (*Post, error) {
	if !w.Configured() {
		return nil, fmt.Errorf("wordpress client not configured")
	}

	jsonBody, err := json.Marshal(in.payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}

	req, err := w.newRequest(ctx, http.MethodPost, fmt.Sprintf("posts/%d", postID), bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return w.doPost(req)
}

func (w *WordPress) doPost(req *http.Request) (*Post, error) {
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach wordpress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("wordpress returned status %d: %s", resp.StatusCode, string(body))
	}

	var post Post
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return nil, fmt.Errorf("failed to decode wordpress response: %w", err)
	}
	return &post, nil
}

// UploadMedia uploads an image and sets its alt text. Returns the media
// id to use as featured_media.
func (w *WordPress) UploadMedia(ctx context.Context, filename string, data []byte, altText string) (int, error) {
	if !w.Configured() {
		return 0, fmt.Errorf("wordpress client not configured")
	}

	req, err := w.newRequest(ctx, http.MethodPost, "media", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	req.Header.Set("Content-Type", "image/png")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach wordpress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("wordpress media upload returned status %d: %s", resp.StatusCode, string(body))
	}

	var media struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return 0, fmt.Errorf("failed to decode media response: %w", err)
	}

	if altText != "" {
		jsonBody, _ := json.Marshal(map[string]string{"alt_text": altText})
		altReq, err := w.newRequest(ctx, http.MethodPost, fmt.Sprintf("media/%d", media.ID), bytes.NewBuffer(jsonBody))
		if err == nil {
			altReq.Header.Set("Content-Type", "application/json")
			if altResp, err := w.client.Do(altReq); err == nil {
				altResp.Body.Close()
			} else {
				w.logger.Warn("Failed to set media alt text", zap.Error(err))
			}
		}
	}

	return media.ID, nil
}

// Category is one WordPress taxonomy term.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// GetCategories lists the site's categories.
func (w *WordPress) GetCategories(ctx context.Context) ([]Category, error) {
	if !w.Configured() {
		return nil, fmt.Errorf("wordpress client not configured")
	}

	req, err := w.newRequest(ctx, http.MethodGet, "categories?per_page=100", nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach wordpress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wordpress returned status %d", resp.StatusCode)
	}

	var categories []Category
	if err := json.NewDecoder(resp.Body).Decode(&categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return categories, nil
}
