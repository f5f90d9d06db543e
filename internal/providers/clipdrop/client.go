// Package clipdrop registers the ClipDrop provider. No operation is wired to
// the ClipDrop API yet, so every call fails as unsupported.
package clipdrop

import (
	"strings"

	"aidispatch/internal/domain"
	"aidispatch/internal/providers/capability"
)

const defaultBaseURL = "https://clipdrop-api.co"

// Options configures the ClipDrop client.
type Options struct {
	BaseURL string
}

// Client is the ClipDrop provider.
type Client struct {
	capability.Base
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{Base: capability.Base{Name: domain.ProviderClipDrop, Endpoint: baseURL}}
}
