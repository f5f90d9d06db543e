// Package capability holds the single table of which provider serves which
// operation with which model. The operation map, capability checks and every
// provider's ModelInfo are derived from it.
package capability

import (
	"context"

	"aidispatch/internal/domain"
)

// Entry binds an operation to the model that serves it.
type Entry struct {
	Operation domain.Operation
	Model     domain.ModelMetadata
}

const geminiImageModel = "gemini-2.0-flash-exp-image-generation"

var catalog = map[domain.ProviderName][]Entry{
	domain.ProviderReplicate: {
		{domain.OperationGenerateImage, domain.ModelMetadata{
			ModelName:       "black-forest-labs/flux-1.1-pro-ultra",
			ServiceProvider: domain.ProviderReplicate,
			DisplayName:     "Flux 1.1 Pro Ultra",
			ModelURL:        "https://replicate.com/black-forest-labs/flux-1.1-pro-ultra",
		}},
		{domain.OperationUpscaleImage, domain.ModelMetadata{
			ModelName:       "philz1337x/clarity-upscaler",
			ModelVersion:    "dfad41707589d68ecdccd1dfa600d55a208f9310748e44bfe35b4a6291453d5e",
			ServiceProvider: domain.ProviderReplicate,
			DisplayName:     "Clarity Upscaler",
			ModelURL:        "https://replicate.com/philz1337x/clarity-upscaler",
		}},
	},
	domain.ProviderStability: {
		{domain.OperationGenerateImage, domain.ModelMetadata{
			ModelName:       "stable-diffusion-ultra",
			ModelVersion:    "v2",
			ServiceProvider: domain.ProviderStability,
			DisplayName:     "Stable Diffusion Ultra",
			ModelURL:        "https://stability.ai/stable-image",
		}},
		{domain.OperationUpscaleImage, domain.ModelMetadata{
			ModelName:       "stable-image/upscale/fast",
			ServiceProvider: domain.ProviderStability,
			DisplayName:     "Fast Upscaler",
			ModelURL:        "https://stability.ai/stable-image",
		}},
		{domain.OperationStyleTransfer, domain.ModelMetadata{
			ModelName:       "stable-image/control/style",
			ServiceProvider: domain.ProviderStability,
			DisplayName:     "Style Transfer",
			ModelURL:        "https://stability.ai/stable-image",
		}},
		{domain.OperationOutpaint, domain.ModelMetadata{
			ModelName:       "stable-image/edit/outpaint",
			ServiceProvider: domain.ProviderStability,
			DisplayName:     "Stable Diffusion Outpaint",
			ModelURL:        "https://stability.ai/stable-image",
		}},
	},
	domain.ProviderGemini: {
		{domain.OperationGenerateImage, domain.ModelMetadata{
			ModelName:       geminiImageModel,
			ModelVersion:    "experimental",
			ServiceProvider: domain.ProviderGemini,
			DisplayName:     "Gemini 2.0 Flash Experimental",
			ModelURL:        "https://ai.google.dev/gemini-api",
		}},
		{domain.OperationInpaint, domain.ModelMetadata{
			ModelName:       geminiImageModel,
			ModelVersion:    "experimental",
			ServiceProvider: domain.ProviderGemini,
			DisplayName:     "Gemini 2.0 Editor",
			ModelURL:        "https://ai.google.dev/gemini-api",
		}},
		{domain.OperationChatWithImage, domain.ModelMetadata{
			ModelName:       geminiImageModel,
			ModelVersion:    "experimental",
			ServiceProvider: domain.ProviderGemini,
			DisplayName:     "Gemini 2.0 Chat",
			ModelURL:        "https://ai.google.dev/gemini-api",
		}},
	},
	domain.ProviderRunway: {
		{domain.OperationGenerateVideo, domain.ModelMetadata{
			ModelName:       "gen4_turbo",
			ServiceProvider: domain.ProviderRunway,
			DisplayName:     "Runway Video Generator",
			ModelURL:        "https://docs.runwayml.com/",
		}},
	},
	domain.ProviderClipDrop: nil,
}

// Entries returns a copy of the provider's catalog rows in declaration order.
func Entries(provider domain.ProviderName) []Entry {
	rows := catalog[provider]
	out := make([]Entry, len(rows))
	copy(out, rows)
	return out
}

// Operations lists the operations the provider supports.
func Operations(provider domain.ProviderName) []domain.Operation {
	rows := catalog[provider]
	ops := make([]domain.Operation, 0, len(rows))
	for _, row := range rows {
		ops = append(ops, row.Operation)
	}
	return ops
}

// Supports reports whether provider declares op.
func Supports(provider domain.ProviderName, op domain.Operation) bool {
	_, ok := lookup(provider, op)
	return ok
}

// Model returns the model serving op on provider or an
// UnsupportedOperationError.
func Model(provider domain.ProviderName, op domain.Operation) (domain.ModelMetadata, error) {
	if model, ok := lookup(provider, op); ok {
		return model, nil
	}
	return domain.ModelMetadata{}, domain.Unsupported(provider, op)
}

func lookup(provider domain.ProviderName, op domain.Operation) (domain.ModelMetadata, bool) {
	for _, row := range catalog[provider] {
		if row.Operation == op {
			return row.Model, true
		}
	}
	return domain.ModelMetadata{}, false
}

// Base is embedded by concrete providers. Every operation fails with an
// UnsupportedOperationError until the provider overrides it.
type Base struct {
	Name     domain.ProviderName
	Endpoint string
}

func (b Base) GenerateImage(context.Context, string, bool) (string, error) {
	return "", domain.Unsupported(b.Name, domain.OperationGenerateImage)
}

func (b Base) UpscaleImage(context.Context, string) (string, error) {
	return "", domain.Unsupported(b.Name, domain.OperationUpscaleImage)
}

func (b Base) StyleTransfer(context.Context, string, string) (string, error) {
	return "", domain.Unsupported(b.Name, domain.OperationStyleTransfer)
}

func (b Base) OutPaint(context.Context, string) (string, error) {
	return "", domain.Unsupported(b.Name, domain.OperationOutpaint)
}

func (b Base) Inpaint(context.Context, string, string) (string, error) {
	return "", domain.Unsupported(b.Name, domain.OperationInpaint)
}

func (b Base) ChatWithImage(context.Context, string, string, []domain.ChatHistoryItem) (domain.ChatResult, error) {
	return domain.ChatResult{}, domain.Unsupported(b.Name, domain.OperationChatWithImage)
}

func (b Base) GenerateVideo(context.Context, string, string, domain.VideoOptions) (string, error) {
	return "", domain.Unsupported(b.Name, domain.OperationGenerateVideo)
}

// ProviderInfo returns the static network identity.
func (b Base) ProviderInfo() domain.ProviderMetadata {
	return domain.ProviderMetadata{ServiceProvider: b.Name, APIEndpoint: b.Endpoint}
}

// ModelInfo reads the catalog.
func (b Base) ModelInfo(op domain.Operation) (domain.ModelMetadata, error) {
	return Model(b.Name, op)
}
