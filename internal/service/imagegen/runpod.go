package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/config"
)

const runpodAPIBase = "https://api.runpod.ai/v2"

// RunPod is the serverless cloud fallback. It runs the same workflow
// graph on a hosted ComfyUI worker; results arrive either as a signed
// URL or inline base64 depending on the worker version.
type RunPod struct {
	cfg    *config.CloudBackend
	logger *zap.Logger
	client *http.Client

	pollInterval time.Duration
	pollTimeout  time.Duration

	mu      sync.Mutex
	results map[string][]byte
}

func NewRunPod(cfg *config.CloudBackend, logger *zap.Logger) *RunPod {
	return &RunPod{
		cfg:          cfg,
		logger:       logger,
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: parseDurationOr(cfg.PollInterval, 5*time.Second),
		pollTimeout:  parseDurationOr(cfg.PollTimeout, 10*time.Minute),
		results:      make(map[string][]byte),
	}
}

func (r *RunPod) Name() string { return "runpod" }

func (r *RunPod) PollInterval() time.Duration { return r.pollInterval }
func (r *RunPod) PollTimeout() time.Duration  { return r.pollTimeout }

// Available only checks configuration. Serverless endpoints cold-start
// on demand, so there is no cheap liveness probe worth making.
func (r *RunPod) Available(ctx context.Context) bool {
	return r.cfg.APIKey != "" && r.cfg.EndpointID != ""
}

func (r *RunPod) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", runpodAPIBase, r.cfg.EndpointID, path)
}

func (r *RunPod) Submit(ctx context.Context, prompt, kind string) (Job, error) {
	graph, clientID := buildWorkflow(prompt, kind)

	payload := map[string]any{
		"input": map[string]any{
			"workflow": graph,
		},
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("failed to marshal workflow: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.endpoint("run"), bytes.NewBuffer(jsonBody))
	if err != nil {
		return Job{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Job{}, fmt.Errorf("failed to reach runpod: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Job{}, fmt.Errorf("runpod returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Job{}, fmt.Errorf("failed to decode runpod response: %w", err)
	}
	if result.ID == "" {
		return Job{}, fmt.Errorf("runpod returned no job id")
	}

	r.logger.Debug("Submitted runpod job",
		zap.String("job_id", result.ID),
		zap.String("kind", kind))
	return Job{ID: result.ID, ClientID: clientID}, nil
}

// Poll checks /status/{id}. On COMPLETED the output payload is decoded
// immediately and stashed for Fetch, because the status response is the
// only place the worker reports it.
func (r *RunPod) Poll(ctx context.Context, job Job) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.endpoint("status/"+job.ID), nil)
	if err != nil {
		return StatePending, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return StatePending, fmt.Errorf("failed to reach runpod: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatePending, fmt.Errorf("runpod status returned %d", resp.StatusCode)
	}

	var status struct {
		Status string `json:"status"`
		Output struct {
			Images []struct {
				URL  string `json:"url"`
				Data string `json:"data"`
			} `json:"images"`
			Message string `json:"message"`
		} `json:"output"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return StatePending, fmt.Errorf("failed to decode runpod status: %w", err)
	}

	switch status.Status {
	case "COMPLETED":
		if len(status.Output.Images) == 0 {
			return StateFailed, fmt.Errorf("runpod job completed without images")
		}
		data, err := r.resolveImage(ctx, status.Output.Images[0].URL, status.Output.Images[0].Data)
		if err != nil {
			return StateFailed, err
		}
		r.mu.Lock()
		r.results[job.ID] = data
		r.mu.Unlock()
		return StateCompleted, nil
	case "FAILED", "CANCELLED", "TIMED_OUT":
		msg := status.Error
		if msg == "" {
			msg = status.Output.Message
		}
		return StateFailed, fmt.Errorf("runpod job %s: %s", status.Status, msg)
	default:
		// IN_QUEUE, IN_PROGRESS
		return StatePending, nil
	}
}

func (r *RunPod) Fetch(ctx context.Context, job Job) ([]byte, error) {
	r.mu.Lock()
	data, ok := r.results[job.ID]
	delete(r.results, job.ID)
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("runpod job %s has no stored result", job.ID)
	}
	return data, nil
}

func (r *RunPod) resolveImage(ctx context.Context, imageURL, inline string) ([]byte, error) {
	if inline != "" {
		data, err := base64.StdEncoding.DecodeString(inline)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline image: %w", err)
		}
		return data, nil
	}
	if imageURL == "" {
		return nil, fmt.Errorf("runpod image has neither url nor inline data")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
