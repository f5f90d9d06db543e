// Package providers defines the capability contract shared by every AI vendor
// adapter and resolves provider names to configured instances.
package providers

import (
	"context"

	"aidispatch/internal/domain"
	"aidispatch/internal/providers/capability"
)

// AIProvider is implemented by every vendor adapter. Operations a vendor does
// not serve fail with *domain.UnsupportedOperationError before any network call.
type AIProvider interface {
	GenerateImage(ctx context.Context, prompt string, promptUpsampling bool) (string, error)
	UpscaleImage(ctx context.Context, imageRef string) (string, error)
	StyleTransfer(ctx context.Context, prompt, styleImageRef string) (string, error)
	OutPaint(ctx context.Context, imageRef string) (string, error)
	Inpaint(ctx context.Context, prompt, imageRef string) (string, error)
	ChatWithImage(ctx context.Context, prompt, imageRef string, history []domain.ChatHistoryItem) (domain.ChatResult, error)
	GenerateVideo(ctx context.Context, imageRef, prompt string, opts domain.VideoOptions) (string, error)
	ProviderInfo() domain.ProviderMetadata
	ModelInfo(op domain.Operation) (domain.ModelMetadata, error)
}

// OperationMap returns provider -> supported operations for every known
// provider, including those with no operations.
func OperationMap() map[domain.ProviderName][]domain.Operation {
	out := make(map[domain.ProviderName][]domain.Operation, len(domain.Providers))
	for _, p := range domain.Providers {
		out[p] = capability.Operations(p)
	}
	return out
}

// Supports reports whether provider declares op.
func Supports(provider domain.ProviderName, op domain.Operation) bool {
	return capability.Supports(provider, op)
}
