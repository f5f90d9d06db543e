// Package pricing holds the approximate per-call USD cost of each
// provider/operation/model used for usage accounting. It is not billing grade.
package pricing

import (
	"strings"

	"aidispatch/internal/domain"
)

// DefaultPriceUSD is charged when nothing is known about a pair.
const DefaultPriceUSD = 0.01

type price struct {
	model string
	usd   float64
}

type pair struct {
	provider  domain.ProviderName
	operation domain.Operation
}

// Prices are ordered so the per-pair fallback is deterministic.
var table = map[pair][]price{
	{domain.ProviderReplicate, domain.OperationGenerateImage}: {{"black-forest-labs/flux-1.1-pro-ultra", 0.0052}},
	{domain.ProviderReplicate, domain.OperationUpscaleImage}:  {{"philz1337x/clarity-upscaler", 0.0104}},
	{domain.ProviderStability, domain.OperationGenerateImage}: {{"stable-diffusion-ultra", 0.0020}},
	{domain.ProviderStability, domain.OperationStyleTransfer}: {{"stable-image/control/style", 0.0080}},
	{domain.ProviderStability, domain.OperationOutpaint}:      {{"stable-image/edit/outpaint", 0.0100}},
	{domain.ProviderGemini, domain.OperationGenerateImage}:    {{"gemini-2.0-flash-exp-image-generation", 0.0025}},
	{domain.ProviderRunway, domain.OperationGenerateVideo}:    {{"gen4_turbo", 0.25}},
}

// OperationPriceUSD resolves the exact model price, then the first price
// listed for the provider/operation pair, then DefaultPriceUSD.
func OperationPriceUSD(provider, operation, model string) float64 {
	key := pair{
		provider:  domain.ProviderName(strings.ToLower(strings.TrimSpace(provider))),
		operation: domain.Operation(operation),
	}
	prices := table[key]
	if model != "" {
		for _, p := range prices {
			if p.model == model {
				return p.usd
			}
		}
	}
	if len(prices) > 0 {
		return prices[0].usd
	}
	return DefaultPriceUSD
}
