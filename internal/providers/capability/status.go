package capability

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"aidispatch/internal/domain"
)

// StatusError turns a non-2xx vendor response into an error carrying the
// matching domain sentinel. Auth failures are reported as misconfiguration.
func StatusError(provider domain.ProviderName, status int, body []byte) error {
	detail := vendorMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: %w: unauthorized api key (status %d): %s", provider, domain.ErrNotConfigured, status, detail)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w: status %d: %s", provider, domain.ErrInvalidInput, status, detail)
	default:
		return fmt.Errorf("%s: %w: status %d: %s", provider, domain.ErrProviderFailure, status, detail)
	}
}

// MissingToken is returned by providers constructed without credentials.
func MissingToken(provider domain.ProviderName) error {
	return fmt.Errorf("%s: %w: missing api key", provider, domain.ErrNotConfigured)
}

// Transport wraps a client-side failure of the HTTP round trip.
func Transport(provider domain.ProviderName, action string, err error) error {
	return fmt.Errorf("%s: %s: %w: %w", provider, action, domain.ErrNetwork, err)
}

func vendorMessage(body []byte) string {
	var decoded struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   any    `json:"error"`
		Errors  []any  `json:"errors"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		switch {
		case decoded.Message != "":
			return decoded.Message
		case decoded.Detail != nil:
			return fmt.Sprint(decoded.Detail)
		case decoded.Error != nil:
			return fmt.Sprint(decoded.Error)
		case len(decoded.Errors) > 0:
			return fmt.Sprint(decoded.Errors...)
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
