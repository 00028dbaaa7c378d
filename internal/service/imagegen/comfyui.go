package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/config"
)

// ComfyUI is the local generation backend. It queues a workflow graph
// on /prompt, polls /history/{id} and fetches the result via /view.
type ComfyUI struct {
	cfg    *config.LocalBackend
	logger *zap.Logger
	client *http.Client

	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewComfyUI(cfg *config.LocalBackend, logger *zap.Logger) *ComfyUI {
	return &ComfyUI{
		cfg:          cfg,
		logger:       logger,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: parseDurationOr(cfg.PollInterval, 2*time.Second),
		pollTimeout:  parseDurationOr(cfg.PollTimeout, 5*time.Minute),
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *ComfyUI) Name() string { return "comfyui" }

func (c *ComfyUI) PollInterval() time.Duration { return c.pollInterval }
func (c *ComfyUI) PollTimeout() time.Duration  { return c.pollTimeout }

// Available probes /system_stats with a short deadline. An unreachable
// ComfyUI is normal (the workstation may be off) and just means the
// chain moves on.
func (c *ComfyUI) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.cfg.URL+"/system_stats", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *ComfyUI) Submit(ctx context.Context, prompt, kind string) (Job, error) {
	graph, clientID := buildWorkflow(prompt, kind)

	payload := map[string]any{
		"prompt":    graph,
		"client_id": clientID,
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("failed to marshal workflow: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.URL+"/prompt", bytes.NewBuffer(jsonBody))
	if err != nil {
		return Job{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Job{}, fmt.Errorf("failed to reach comfyui: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Job{}, fmt.Errorf("comfyui returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Job{}, fmt.Errorf("failed to decode comfyui response: %w", err)
	}
	if result.PromptID == "" {
		return Job{}, fmt.Errorf("comfyui returned no prompt id")
	}

	c.logger.Debug("Queued comfyui workflow",
		zap.String("prompt_id", result.PromptID),
		zap.String("kind", kind))
	return Job{ID: result.PromptID, ClientID: clientID}, nil
}

// Poll checks /history/{id}. The job does not appear in history until
// it finishes, so an empty history entry means still pending.
func (c *ComfyUI) Poll(ctx context.Context, job Job) (State, error) {
	entry, err := c.historyEntry(ctx, job.ID)
	if err != nil {
		return StatePending, err
	}
	if entry == nil {
		return StatePending, nil
	}
	if entry.Status.Status == "error" {
		return StateFailed, fmt.Errorf("comfyui execution failed")
	}
	if len(entry.Outputs) > 0 {
		return StateCompleted, nil
	}
	return StatePending, nil
}

// Fetch downloads the first generated image through /view.
func (c *ComfyUI) Fetch(ctx context.Context, job Job) ([]byte, error) {
	entry, err := c.historyEntry(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("comfyui job %s has no history entry", job.ID)
	}

	var image *comfyImage
	for _, node := range entry.Outputs {
		if len(node.Images) > 0 {
			image = &node.Images[0]
			break
		}
	}
	if image == nil {
		return nil, fmt.Errorf("comfyui job %s produced no images", job.ID)
	}

	query := url.Values{
		"filename":  {image.Filename},
		"subfolder": {image.Subfolder},
		"type":      {image.Type},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.URL+"/view?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach comfyui: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("comfyui view returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

type comfyImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type comfyHistoryEntry struct {
	Status struct {
		Status string `json:"status_str"`
	} `json:"status"`
	Outputs map[string]struct {
		Images []comfyImage `json:"images"`
	} `json:"outputs"`
}

func (c *ComfyUI) historyEntry(ctx context.Context, promptID string) (*comfyHistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.URL+"/history/"+promptID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach comfyui: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("comfyui history returned status %d", resp.StatusCode)
	}

	var history map[string]comfyHistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("failed to decode comfyui history: %w", err)
	}

	entry, ok := history[promptID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}
