// Package stability adapts the Stability AI v2beta stable-image endpoints.
// All calls are synchronous multipart uploads answered with inline base64.
package stability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/domain"
	"aidispatch/internal/imageref"
	"aidispatch/internal/infra"
	"aidispatch/internal/providers/capability"
)

const (
	defaultBaseURL = "https://api.stability.ai/v2beta"
	outpaintMargin = 300
)

// Options configures the Stability client.
type Options struct {
	APIToken string
	BaseURL  string
	// ResizeURL is the auxiliary service that normalizes outpaint sources.
	ResizeURL  string
	HTTPClient *http.Client
	Resolver   *imageref.Resolver
	Logger     *infra.Logger
}

// Client implements the provider contract for Stability AI.
type Client struct {
	capability.Base
	token      string
	baseURL    string
	resizeURL  string
	httpClient *http.Client
	resolver   *imageref.Resolver
	logger     *infra.Logger
}

type imageResponse struct {
	Image        string `json:"image"`
	FinishReason string `json:"finish_reason"`
	Seed         int64  `json:"seed"`
}

type resizePayload struct {
	ImageBase64 string `json:"imageBase64"`
}

type field struct {
	name  string
	value string
}

type file struct {
	name string
	data []byte
}

// NewClient constructs a client with defaults filled in.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = imageref.NewResolver(httpClient)
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		Base:       capability.Base{Name: domain.ProviderStability, Endpoint: baseURL},
		token:      strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		resizeURL:  strings.TrimSpace(opts.ResizeURL),
		httpClient: httpClient,
		resolver:   resolver,
		logger:     logger,
	}
}

// GenerateImage calls stable-image/generate/ultra. Stability has no prompt
// upsampling switch so the flag is ignored.
func (c *Client) GenerateImage(ctx context.Context, prompt string, _ bool) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.InvalidInputf("prompt is required")
	}
	return c.post(ctx, "/stable-image/generate/ultra",
		[]field{{"prompt", prompt}, {"output_format", "png"}}, nil)
}

// UpscaleImage calls stable-image/upscale/fast.
func (c *Client) UpscaleImage(ctx context.Context, imageRef string) (string, error) {
	data, err := c.load(ctx, imageRef)
	if err != nil {
		return "", err
	}
	return c.post(ctx, "/stable-image/upscale/fast",
		[]field{{"output_format", "png"}}, []file{{"image", data}})
}

// StyleTransfer renders prompt in the style of styleImageRef.
func (c *Client) StyleTransfer(ctx context.Context, prompt, styleImageRef string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.InvalidInputf("prompt is required")
	}
	data, err := c.load(ctx, styleImageRef)
	if err != nil {
		return "", err
	}
	return c.post(ctx, "/stable-image/control/style",
		[]field{{"prompt", prompt}, {"output_format", "png"}}, []file{{"image", data}})
}

// OutPaint normalizes the source through the resize service, then extends it
// by a fixed margin on every side.
func (c *Client) OutPaint(ctx context.Context, imageRef string) (string, error) {
	img, err := c.resolver.Resolve(ctx, imageRef)
	if err != nil {
		return "", err
	}
	resized, err := c.resize(ctx, img.Base64)
	if err != nil {
		return "", err
	}
	data, err := imageref.Image{MIME: "image/png", Base64: resized}.Bytes()
	if err != nil {
		return "", err
	}
	margin := strconv.Itoa(outpaintMargin)
	return c.post(ctx, "/stable-image/edit/outpaint", []field{
		{"left", margin},
		{"right", margin},
		{"up", margin},
		{"down", margin},
		{"output_format", "png"},
	}, []file{{"image", data}})
}

func (c *Client) load(ctx context.Context, ref string) ([]byte, error) {
	img, err := c.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return img.Bytes()
}

func (c *Client) resize(ctx context.Context, b64 string) (string, error) {
	if c.resizeURL == "" {
		return "", fmt.Errorf("stability: %w: resize service url missing", domain.ErrNotConfigured)
	}
	body, err := json.Marshal(resizePayload{ImageBase64: b64})
	if err != nil {
		return "", fmt.Errorf("stability: encode resize request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resizeURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("stability: build resize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", capability.Transport(domain.ProviderStability, "resize request", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", capability.Transport(domain.ProviderStability, "read resize response", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("stability: resize status %d: %w", resp.StatusCode, domain.ErrProviderFailure)
	}
	var decoded resizePayload
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.ImageBase64 == "" {
		return "", fmt.Errorf("stability: resize response without image: %w", domain.ErrProviderFailure)
	}
	return decoded.ImageBase64, nil
}

func (c *Client) post(ctx context.Context, path string, fields []field, files []file) (string, error) {
	if c.token == "" {
		return "", capability.MissingToken(domain.ProviderStability)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return "", fmt.Errorf("stability: write field %s: %w", f.name, err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.name, f.name+".png")
		if err != nil {
			return "", fmt.Errorf("stability: create file part: %w", err)
		}
		if _, err := part.Write(f.data); err != nil {
			return "", fmt.Errorf("stability: write file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("stability: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return "", fmt.Errorf("stability: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", capability.Transport(domain.ProviderStability, "http request", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", capability.Transport(domain.ProviderStability, "read response", err)
	}
	if resp.StatusCode >= 300 {
		return "", capability.StatusError(domain.ProviderStability, resp.StatusCode, raw)
	}
	var decoded imageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("stability: decode response: %w: %w", domain.ErrProviderFailure, err)
	}
	if decoded.FinishReason == "CONTENT_FILTERED" {
		return "", fmt.Errorf("stability: output rejected by content filter: %w", domain.ErrProviderFailure)
	}
	if decoded.Image == "" {
		return "", fmt.Errorf("stability: response without image: %w", domain.ErrProviderFailure)
	}
	c.logger.Debug().
		Str("provider", string(domain.ProviderStability)).
		Str("path", path).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("stability: image returned")
	return imageref.DataURI("image/png", decoded.Image), nil
}
