package dispatch

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"aidispatch/internal/domain"
	"aidispatch/internal/storage"
)

// Request is one dispatch input. IdentityID comes from the authenticated
// caller, never from the body.
type Request struct {
	Operation        string                   `json:"operation" validate:"required"`
	Provider         string                   `json:"provider,omitempty" validate:"omitempty,max=32"`
	Prompt           string                   `json:"prompt,omitempty" validate:"max=4000"`
	PromptUpsampling bool                     `json:"promptUpsampling,omitempty"`
	ImageURL         string                   `json:"imageUrl,omitempty"`
	StyleImageURL    string                   `json:"styleImageUrl,omitempty"`
	History          []domain.ChatHistoryItem `json:"history,omitempty" validate:"max=50,dive"`
	Duration         int                      `json:"duration,omitempty" validate:"gte=0"`
	Ratio            string                   `json:"ratio,omitempty"`
	Save             bool                     `json:"save,omitempty"`

	IdentityID string `json:"-"`
	UserSub    string `json:"-"`
	RequestID  string `json:"-"`
}

// Result is returned for a successful dispatch.
type Result struct {
	Result    string               `json:"result"`
	Text      string               `json:"text,omitempty"`
	Provider  domain.ProviderName  `json:"provider"`
	Operation domain.Operation     `json:"operation"`
	Model     domain.ModelMetadata `json:"model"`
	CostUSD   float64              `json:"costUsd"`
	Elapsed   time.Duration        `json:"-"`
	ElapsedMS int64                `json:"elapsedMs"`
	RequestID string               `json:"requestId,omitempty"`
	Saved     *storage.Object      `json:"saved,omitempty"`
	SaveError string               `json:"saveError,omitempty"`
}

type requirement struct {
	prompt bool
	image  bool
	style  bool
}

var requirements = map[domain.Operation]requirement{
	domain.OperationGenerateImage: {prompt: true},
	domain.OperationUpscaleImage:  {image: true},
	domain.OperationStyleTransfer: {prompt: true, style: true},
	domain.OperationOutpaint:      {image: true},
	domain.OperationInpaint:       {prompt: true, image: true},
	domain.OperationChatWithImage: {prompt: true},
	domain.OperationGenerateVideo: {image: true},
}

// validate checks the request shape and the fields the operation needs.
func validate(v *validator.Validate, req *Request) (domain.Operation, error) {
	if err := v.Struct(req); err != nil {
		return "", domain.InvalidInputf("%s", describeValidation(err))
	}
	op, ok := domain.ParseOperation(req.Operation)
	if !ok {
		return "", domain.InvalidInputf("unsupported operation %q", req.Operation)
	}
	if strings.TrimSpace(req.IdentityID) == "" {
		return "", domain.InvalidInputf("identity is required")
	}
	need := requirements[op]
	if need.prompt && strings.TrimSpace(req.Prompt) == "" {
		return "", domain.InvalidInputf("prompt is required for %s", op)
	}
	if need.image && strings.TrimSpace(req.ImageURL) == "" {
		return "", domain.InvalidInputf("imageUrl is required for %s", op)
	}
	if need.style && req.styleImage() == "" {
		return "", domain.InvalidInputf("styleImageUrl is required for %s", op)
	}
	return op, nil
}

// styleImage returns the style reference, accepting imageUrl for older clients.
func (r *Request) styleImage() string {
	if s := strings.TrimSpace(r.StyleImageURL); s != "" {
		return s
	}
	return strings.TrimSpace(r.ImageURL)
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
