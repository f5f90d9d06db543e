package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aidispatch/internal/domain"
)

type recordedRequest struct {
	path string
	body map[string]any
}

func newGeminiServer(t *testing.T, rec *recordedRequest, status int, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &rec.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

const imageResponse = `{"candidates":[{"content":{"role":"model","parts":[
	{"text":"Here you go"},
	{"inlineData":{"mimeType":"image/png","data":"QUJD"}}
]}}]}`

func TestGenerateImageReturnsDataURI(t *testing.T) {
	rec := &recordedRequest{}
	srv := newGeminiServer(t, rec, http.StatusOK, imageResponse)
	defer srv.Close()

	got, err := newTestClient(t, srv).GenerateImage(context.Background(), "a watercolor fox", false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "data:image/png;base64,QUJD" {
		t.Fatalf("image = %q", got)
	}
	if !strings.Contains(rec.path, "gemini-2.0-flash-exp-image-generation:generateContent") {
		t.Fatalf("unexpected path %s", rec.path)
	}
	cfg, _ := rec.body["generationConfig"].(map[string]any)
	if cfg["temperature"] != float64(1) || cfg["topK"] != float64(40) {
		t.Fatalf("unexpected generation config %+v", cfg)
	}
}

func TestGenerateImageWithoutImageFails(t *testing.T) {
	srv := newGeminiServer(t, &recordedRequest{}, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"no image today"}]}}]}`)
	defer srv.Close()

	_, err := newTestClient(t, srv).GenerateImage(context.Background(), "prompt", false)
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
}

func TestChatWithImageReplaysHistory(t *testing.T) {
	rec := &recordedRequest{}
	srv := newGeminiServer(t, rec, http.StatusOK, imageResponse)
	defer srv.Close()

	history := []domain.ChatHistoryItem{
		{Role: "user", Parts: []domain.ChatPart{{Text: "make it brighter"}}},
		{Role: "model", Parts: []domain.ChatPart{{Image: "data:image/png;base64,QUJD"}}},
	}
	got, err := newTestClient(t, srv).ChatWithImage(context.Background(), "now add a hat", "data:image/jpeg;base64,REVG", history)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got.Text != "Here you go" || got.Image != "data:image/png;base64,QUJD" {
		t.Fatalf("unexpected result %+v", got)
	}
	contents, _ := rec.body["contents"].([]any)
	if len(contents) != 3 {
		t.Fatalf("contents = %d turns, want 3", len(contents))
	}
	last, _ := contents[2].(map[string]any)
	parts, _ := last["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("last turn parts = %d, want prompt and image", len(parts))
	}
}

func TestChatRejectsNonDataURIHistoryImage(t *testing.T) {
	c, err := NewClient(context.Background(), Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	history := []domain.ChatHistoryItem{{Role: "user", Parts: []domain.ChatPart{{Image: "https://x/y.png"}}}}
	_, err = c.ChatWithImage(context.Background(), "hi", "", history)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestInvalidAPIKeyIsClassified(t *testing.T) {
	srv := newGeminiServer(t, &recordedRequest{}, http.StatusBadRequest,
		`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	defer srv.Close()

	_, err := newTestClient(t, srv).GenerateImage(context.Background(), "prompt", false)
	if !errors.Is(err, domain.ErrInvalidInput) || !strings.Contains(strings.ToLower(err.Error()), "api key") {
		t.Fatalf("expected invalid input mentioning the api key, got %v", err)
	}
}

func TestMissingKeyIsMisconfiguration(t *testing.T) {
	c, err := NewClient(context.Background(), Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.GenerateImage(context.Background(), "prompt", false); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestModelInfoUsesConfiguredModel(t *testing.T) {
	c, err := NewClient(context.Background(), Options{Model: "gemini-2.5-flash-image"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	meta, err := c.ModelInfo(domain.OperationInpaint)
	if err != nil || meta.ModelName != "gemini-2.5-flash-image" {
		t.Fatalf("model info = %+v, %v", meta, err)
	}
	if _, err := c.ModelInfo(domain.OperationOutpaint); !domain.IsUnsupported(err) {
		t.Fatalf("expected unsupported outpaint, got %v", err)
	}
	if _, err := c.UpscaleImage(context.Background(), "img"); !domain.IsUnsupported(err) {
		t.Fatalf("expected unsupported upscale, got %v", err)
	}
}
