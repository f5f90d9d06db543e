// Package replicate adapts the Replicate predictions API. Every call submits
// a prediction and polls it until it settles.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/domain"
	"aidispatch/internal/infra"
	"aidispatch/internal/poll"
	"aidispatch/internal/providers/capability"
)

const (
	defaultBaseURL      = "https://api.replicate.com/v1"
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 15
)

// Options configures the Replicate client.
type Options struct {
	APIToken     string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	MaxAttempts  int
	// Sleep replaces the poll wait; tests use it to avoid real delays.
	Sleep poll.SleepFunc
}

// Client implements the provider contract on top of Replicate predictions.
type Client struct {
	capability.Base
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	poll       poll.Config
}

// Prediction is the subset of a Replicate prediction the client reads.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

type predictionRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
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
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		Base:       capability.Base{Name: domain.ProviderReplicate, Endpoint: baseURL + "/predictions"},
		token:      strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		poll:       poll.Config{Interval: interval, MaxAttempts: attempts, Sleep: opts.Sleep},
	}
}

// GenerateImage runs the flux model on prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string, promptUpsampling bool) (string, error) {
	model, err := c.ModelInfo(domain.OperationGenerateImage)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", domain.InvalidInputf("prompt is required")
	}
	input := map[string]any{"prompt": prompt, "prompt_upsampling": promptUpsampling}
	endpoint := c.baseURL + "/models/" + model.ModelName + "/predictions"
	return c.run(ctx, domain.OperationGenerateImage, endpoint, predictionRequest{Input: input})
}

// UpscaleImage runs the pinned clarity-upscaler version on imageRef.
func (c *Client) UpscaleImage(ctx context.Context, imageRef string) (string, error) {
	model, err := c.ModelInfo(domain.OperationUpscaleImage)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(imageRef) == "" {
		return "", domain.InvalidInputf("image is required")
	}
	req := predictionRequest{Version: model.ModelVersion, Input: map[string]any{"image": imageRef}}
	return c.run(ctx, domain.OperationUpscaleImage, c.baseURL+"/predictions", req)
}

func (c *Client) run(ctx context.Context, op domain.Operation, endpoint string, req predictionRequest) (string, error) {
	if c.token == "" {
		return "", capability.MissingToken(domain.ProviderReplicate)
	}
	created, err := c.create(ctx, endpoint, req)
	if err != nil {
		return "", err
	}
	c.logger.Debug().
		Str("provider", string(domain.ProviderReplicate)).
		Str("operation", string(op)).
		Str("prediction_id", created.ID).
		Msg("replicate: prediction created")

	final, err := poll.Until(ctx, c.poll, func(ctx context.Context) (*Prediction, error) {
		return c.get(ctx, created.ID)
	}, settled)
	if errors.Is(err, poll.ErrExhausted) {
		return "", fmt.Errorf("replicate: prediction %s timed out: %w", created.ID, domain.ErrProviderTimeout)
	}
	if err != nil {
		return "", err
	}
	if final.Status != "succeeded" {
		return "", fmt.Errorf("replicate: prediction %s: %w: %s", final.Status, domain.ErrProviderFailure, errorText(final.Error))
	}
	out, err := firstOutput(final.Output)
	if err != nil {
		return "", err
	}
	return out, nil
}

func settled(p *Prediction) bool {
	return p != nil && p.Status != "starting" && p.Status != "processing"
}

func (c *Client) create(ctx context.Context, endpoint string, req predictionRequest) (*Prediction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq)
}

func (c *Client) get(ctx context.Context, id string) (*Prediction, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, capability.Transport(domain.ProviderReplicate, "http request", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, capability.Transport(domain.ProviderReplicate, "read response", err)
	}
	if resp.StatusCode >= 300 {
		return nil, capability.StatusError(domain.ProviderReplicate, resp.StatusCode, raw)
	}
	var p Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("replicate: decode prediction: %w: %w", domain.ErrProviderFailure, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("replicate: prediction without id: %w", domain.ErrProviderFailure)
	}
	return &p, nil
}

// firstOutput accepts a string output or the first element of a string array.
func firstOutput(raw json.RawMessage) (string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", fmt.Errorf("replicate: unexpected output format: %w", domain.ErrProviderFailure)
}

func errorText(v any) string {
	if v == nil {
		return "unknown error"
	}
	return fmt.Sprint(v)
}
