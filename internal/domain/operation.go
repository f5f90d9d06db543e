package domain

import "strings"

// Operation enumerates the logical transformations a user can request.
type Operation string

const (
	OperationGenerateImage Operation = "generateImage"
	OperationUpscaleImage  Operation = "upscaleImage"
	OperationStyleTransfer Operation = "styleTransfer"
	OperationOutpaint      Operation = "outpaint"
	OperationInpaint       Operation = "inpaint"
	OperationChatWithImage Operation = "chatWithImage"
	OperationGenerateVideo Operation = "generateVideo"
)

// Operations lists every operation in a stable order.
var Operations = []Operation{
	OperationGenerateImage,
	OperationUpscaleImage,
	OperationStyleTransfer,
	OperationOutpaint,
	OperationInpaint,
	OperationChatWithImage,
	OperationGenerateVideo,
}

// ParseOperation returns the operation matching name. Matching is exact on the
// camel-case identifier the UI sends.
func ParseOperation(name string) (Operation, bool) {
	name = strings.TrimSpace(name)
	for _, op := range Operations {
		if string(op) == name {
			return op, true
		}
	}
	return "", false
}

// ProviderName enumerates the external AI vendors.
type ProviderName string

const (
	ProviderReplicate ProviderName = "replicate"
	ProviderStability ProviderName = "stability"
	ProviderGemini    ProviderName = "gemini"
	ProviderRunway    ProviderName = "runway"
	ProviderClipDrop  ProviderName = "clipdrop"
)

// DefaultProvider is used when a request does not name one.
const DefaultProvider = ProviderReplicate

// Providers lists every known provider in a stable order.
var Providers = []ProviderName{
	ProviderReplicate,
	ProviderStability,
	ProviderGemini,
	ProviderRunway,
	ProviderClipDrop,
}

// ParseProvider normalizes name and reports whether it is a known provider.
func ParseProvider(name string) (ProviderName, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range Providers {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// ModelMetadata describes the backend model that served an operation.
type ModelMetadata struct {
	ModelName       string       `json:"modelName"`
	ModelVersion    string       `json:"modelVersion,omitempty"`
	ServiceProvider ProviderName `json:"serviceProvider"`
	DisplayName     string       `json:"displayName,omitempty"`
	ModelURL        string       `json:"modelUrl,omitempty"`
}

// ProviderMetadata is the static network identity of a provider.
type ProviderMetadata struct {
	ServiceProvider ProviderName `json:"serviceProvider"`
	APIEndpoint     string       `json:"apiEndpoint"`
}

// ChatPart is one element of a chat turn: text or an image data URI.
type ChatPart struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// ChatHistoryItem is a prior turn replayed to a conversational provider.
type ChatHistoryItem struct {
	Role  string     `json:"role" validate:"required,oneof=user model"`
	Parts []ChatPart `json:"parts" validate:"dive"`
}

// ChatResult is the response of chatWithImage. Either field may be empty.
type ChatResult struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// VideoOptions carries the optional knobs of generateVideo.
type VideoOptions struct {
	Duration int
	Ratio    string
}
