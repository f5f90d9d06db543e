// Package gemini adapts Google's Gemini image-capable models through the
// genai SDK. Generation, inpainting and image chat are single synchronous
// GenerateContent calls.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"aidispatch/internal/domain"
	"aidispatch/internal/imageref"
	"aidispatch/internal/infra"
	"aidispatch/internal/providers/capability"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	roleUser        = "user"
	roleModel       = "model"
)

// Options configures the Gemini client.
type Options struct {
	APIKey string
	// Model overrides the catalog model name.
	Model string
	// BaseURL overrides the API endpoint; tests point it at httptest.
	BaseURL    string
	HTTPClient *http.Client
	Resolver   *imageref.Resolver
	Logger     *infra.Logger
}

// Client implements the provider contract for Gemini.
type Client struct {
	capability.Base
	genai    *genai.Client
	model    string
	resolver *imageref.Resolver
	logger   *infra.Logger
}

// NewClient builds the SDK client once. Without an API key the client is
// still returned but every operation fails as misconfigured.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	endpoint := strings.TrimRight(opts.BaseURL, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
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
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		meta, err := capability.Model(domain.ProviderGemini, domain.OperationGenerateImage)
		if err != nil {
			return nil, err
		}
		model = meta.ModelName
	}
	c := &Client{
		Base:     capability.Base{Name: domain.ProviderGemini, Endpoint: endpoint},
		model:    model,
		resolver: resolver,
		logger:   logger,
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return c, nil
	}
	cfg := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     apiKey,
		HTTPClient: httpClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint + "/"}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.genai = client
	return c, nil
}

// ModelInfo reports the catalog entry with the configured model name.
func (c *Client) ModelInfo(op domain.Operation) (domain.ModelMetadata, error) {
	meta, err := c.Base.ModelInfo(op)
	if err != nil {
		return meta, err
	}
	meta.ModelName = c.model
	return meta, nil
}

// GenerateImage returns the first inline image as a data URI.
func (c *Client) GenerateImage(ctx context.Context, prompt string, _ bool) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.InvalidInputf("prompt is required")
	}
	resp, err := c.generate(ctx, []*genai.Content{{
		Role:  roleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}})
	if err != nil {
		return "", err
	}
	_, image := extract(resp)
	if image == "" {
		return "", fmt.Errorf("gemini: no image generated in response: %w", domain.ErrProviderFailure)
	}
	return image, nil
}

// Inpaint edits imageRef following the prompt instruction.
func (c *Client) Inpaint(ctx context.Context, prompt, imageRef string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.InvalidInputf("prompt is required")
	}
	part, err := c.imagePart(ctx, imageRef)
	if err != nil {
		return "", err
	}
	resp, err := c.generate(ctx, []*genai.Content{{
		Role:  roleUser,
		Parts: []*genai.Part{part, {Text: prompt}},
	}})
	if err != nil {
		return "", err
	}
	_, image := extract(resp)
	if image == "" {
		return "", fmt.Errorf("gemini: no edited image in response: %w", domain.ErrProviderFailure)
	}
	return image, nil
}

// ChatWithImage replays history then sends prompt with imageRef. Either
// field of the result may be empty.
func (c *Client) ChatWithImage(ctx context.Context, prompt, imageRef string, history []domain.ChatHistoryItem) (domain.ChatResult, error) {
	contents, err := convertHistory(history)
	if err != nil {
		return domain.ChatResult{}, err
	}
	parts := []*genai.Part{{Text: prompt}}
	if strings.TrimSpace(imageRef) != "" {
		part, err := c.imagePart(ctx, imageRef)
		if err != nil {
			return domain.ChatResult{}, err
		}
		parts = append(parts, part)
	}
	contents = append(contents, &genai.Content{Role: roleUser, Parts: parts})

	resp, err := c.generate(ctx, contents)
	if err != nil {
		return domain.ChatResult{}, err
	}
	text, image := extract(resp)
	return domain.ChatResult{Text: text, Image: image}, nil
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if c.genai == nil {
		return nil, capability.MissingToken(domain.ProviderGemini)
	}
	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, generationConfig())
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates in response: %w", domain.ErrProviderFailure)
	}
	c.logger.Debug().
		Str("provider", string(domain.ProviderGemini)).
		Str("model", c.model).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("gemini: content generated")
	return resp, nil
}

func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Temperature:        genai.Ptr[float32](1),
		TopP:               genai.Ptr[float32](0.95),
		TopK:               genai.Ptr[float32](40),
	}
}

func (c *Client) imagePart(ctx context.Context, ref string) (*genai.Part, error) {
	if !strings.HasPrefix(strings.TrimSpace(ref), "data:") {
		img, err := c.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		ref = img.DataURI()
	}
	return inlinePart(ref)
}

func convertHistory(history []domain.ChatHistoryItem) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, item := range history {
		role := roleUser
		if item.Role == roleModel {
			role = roleModel
		}
		parts := make([]*genai.Part, 0, len(item.Parts))
		for _, p := range item.Parts {
			switch {
			case p.Text != "":
				parts = append(parts, &genai.Part{Text: p.Text})
			case p.Image != "":
				if !strings.HasPrefix(p.Image, "data:image/") {
					return nil, domain.InvalidInputf("history image must be a base64 data url")
				}
				part, err := inlinePart(p.Image)
				if err != nil {
					return nil, err
				}
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents, nil
}

// inlinePart only distinguishes png from jpeg, matching what the model accepts.
func inlinePart(dataURI string) (*genai.Part, error) {
	_, payload, err := imageref.SplitDataURI(dataURI)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.InvalidInputf("invalid image encoding: %v", err)
	}
	mime := "image/jpeg"
	if strings.Contains(dataURI, "image/png") {
		mime = "image/png"
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}}, nil
}

// extract returns the first text part and the first inline image of the
// first candidate.
func extract(resp *genai.GenerateContentResponse) (text string, image string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if text == "" && part.Text != "" {
			text = part.Text
		}
		if image == "" && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			image = imageref.DataURI(mime, base64.StdEncoding.EncodeToString(part.InlineData.Data))
		}
	}
	return text, image
}

func classify(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("gemini: generate content: %w", err)
		}
		return capability.Transport(domain.ProviderGemini, "generate content", err)
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("gemini: %w: unauthorized api key: %s", domain.ErrNotConfigured, apiErr.Message)
	case apiErr.Code == http.StatusBadRequest:
		return fmt.Errorf("gemini: %w: %s", domain.ErrInvalidInput, apiErr.Message)
	default:
		return fmt.Errorf("gemini: %w: %s (%d %s)", domain.ErrProviderFailure, apiErr.Message, apiErr.Code, apiErr.Status)
	}
}
