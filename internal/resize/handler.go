package resize

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"aidispatch/internal/infra"
)

const maxBody = 25 << 20

type payload struct {
	ImageBase64 string `json:"imageBase64"`
}

// Handler serves POST {imageBase64} and answers with the resized PNG.
func Handler(logger *infra.Logger) http.HandlerFunc {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in payload
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		out, err := Base64(in.ImageBase64)
		if errors.Is(err, ErrMissingImage) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing 'imageBase64' in request body"})
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("resize: failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, payload{ImageBase64: out})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
