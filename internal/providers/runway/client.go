// Package runway adapts Runway's image-to-video task API.
package runway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/domain"
	"aidispatch/internal/infra"
	"aidispatch/internal/poll"
	"aidispatch/internal/providers/capability"
)

const (
	defaultBaseURL      = "https://api.dev.runwayml.com/v1"
	apiVersion          = "2024-11-06"
	defaultPollInterval = 10 * time.Second
	defaultTimeout      = 60 * time.Second
)

// AllowedRatios lists the output ratios the model accepts. Anything else is
// dropped and the vendor default applies.
var AllowedRatios = []string{
	"1280:720", "720:1280", "1104:832", "832:1104",
	"960:960", "1584:672", "1280:768", "768:1280",
}

// Options configures the Runway client.
type Options struct {
	APIToken     string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	Timeout      time.Duration
	Sleep        poll.SleepFunc
	Now          func() time.Time
}

// Client implements the provider contract for Runway.
type Client struct {
	capability.Base
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	poll       poll.Config
}

// Task is the subset of a Runway task the client reads.
type Task struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Output  json.RawMessage `json:"output"`
	Failure string          `json:"failure"`
}

type videoRequest struct {
	Model       string `json:"model"`
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Ratio       string `json:"ratio,omitempty"`
}

// NewClient constructs a client with defaults filled in.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		Base:       capability.Base{Name: domain.ProviderRunway, Endpoint: baseURL},
		token:      strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		poll:       poll.Config{Interval: interval, Timeout: timeout, Sleep: opts.Sleep, Now: opts.Now},
	}
}

// GenerateVideo animates imageRef and returns the video URL.
func (c *Client) GenerateVideo(ctx context.Context, imageRef, prompt string, opts domain.VideoOptions) (string, error) {
	model, err := c.ModelInfo(domain.OperationGenerateVideo)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(imageRef) == "" {
		return "", domain.InvalidInputf("image is required")
	}
	if c.token == "" {
		return "", capability.MissingToken(domain.ProviderRunway)
	}
	req := videoRequest{
		Model:       model.ModelName,
		PromptImage: imageRef,
		PromptText:  prompt,
		Duration:    normalizeDuration(opts.Duration),
		Ratio:       normalizeRatio(opts.Ratio),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("runway: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image_to_video", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("runway: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	created, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	c.logger.Debug().
		Str("provider", string(domain.ProviderRunway)).
		Str("task_id", created.ID).
		Msg("runway: task created")

	task, err := poll.Until(ctx, c.poll, func(ctx context.Context) (*Task, error) {
		return c.task(ctx, created.ID)
	}, terminal)
	if errors.Is(err, poll.ErrExhausted) {
		return "", fmt.Errorf("runway: task %s still %s: %w", created.ID, statusOf(task), domain.ErrProviderTimeout)
	}
	if err != nil {
		return "", err
	}
	if task.Status != "SUCCEEDED" {
		failure := task.Failure
		if failure == "" {
			failure = "Unknown error"
		}
		return "", fmt.Errorf("runway: video generation %s: %w: %s", strings.ToLower(task.Status), domain.ErrProviderFailure, failure)
	}
	return firstOutput(task.Output)
}

func (c *Client) task(ctx context.Context, id string) (*Task, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("runway: build request: %w", err)
	}
	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (*Task, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Runway-Version", apiVersion)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, capability.Transport(domain.ProviderRunway, "http request", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, capability.Transport(domain.ProviderRunway, "read response", err)
	}
	if resp.StatusCode >= 300 {
		return nil, capability.StatusError(domain.ProviderRunway, resp.StatusCode, raw)
	}
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("runway: decode task: %w: %w", domain.ErrProviderFailure, err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("runway: task without id: %w", domain.ErrProviderFailure)
	}
	return &t, nil
}

func terminal(t *Task) bool {
	if t == nil {
		return false
	}
	switch t.Status {
	case "SUCCEEDED", "FAILED", "CANCELLED":
		return true
	}
	return false
}

func statusOf(t *Task) string {
	if t == nil {
		return "pending"
	}
	return strings.ToLower(t.Status)
}

func normalizeDuration(d int) int {
	if d == 5 || d == 10 {
		return d
	}
	return 0
}

func normalizeRatio(r string) string {
	r = strings.TrimSpace(r)
	if slices.Contains(AllowedRatios, r) {
		return r
	}
	return ""
}

func firstOutput(raw json.RawMessage) (string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", fmt.Errorf("runway: unexpected output format: %w", domain.ErrProviderFailure)
}
