package resize

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func encodedPNG(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDimensions(t *testing.T) {
	cases := []struct{ w, h, wantW, wantH int }{
		{1024, 768, 683, 512},
		{768, 1024, 512, 683},
		{256, 256, 512, 512},
		{512, 900, 512, 900},
		{900, 512, 900, 512},
	}
	for _, tc := range cases {
		w, h := Dimensions(tc.w, tc.h)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("Dimensions(%d,%d) = %d,%d; want %d,%d", tc.w, tc.h, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestBase64ResizesToShortestEdge(t *testing.T) {
	out, err := Base64(encodedPNG(t, 64, 32))
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(out)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 1024 || cfg.Height != 512 {
		t.Fatalf("output size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestHandler(t *testing.T) {
	h := Handler(nil)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing image status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"imageBase64":"bm90IGFuIGltYWdl"}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("bad image status = %d", rec.Code)
	}

	body, _ := json.Marshal(payload{ImageBase64: encodedPNG(t, 512, 512)})
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var out payload
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out.ImageBase64 == "" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
