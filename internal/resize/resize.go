// Package resize scales images so their shortest edge is a fixed size. It
// backs the auxiliary resize service used before outpainting.
package resize

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// ShortestEdge is the target length of the smaller image side.
const ShortestEdge = 512

// ErrMissingImage is returned for an empty payload.
var ErrMissingImage = errors.New("resize: missing imageBase64")

// Dimensions returns the size that brings the shortest edge to ShortestEdge
// while keeping the aspect ratio. Images already at that size are unchanged.
func Dimensions(width, height int) (int, int) {
	switch {
	case width <= height && width != ShortestEdge:
		return ShortestEdge, int(math.Round(float64(ShortestEdge*height) / float64(width)))
	case height < width && height != ShortestEdge:
		return int(math.Round(float64(ShortestEdge*width) / float64(height))), ShortestEdge
	default:
		return width, height
	}
}

// PNG decodes data, resizes it and encodes the result as PNG.
func PNG(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("resize: decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.New("resize: unable to determine image dimensions")
	}
	w, h := Dimensions(bounds.Dx(), bounds.Dy())
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("resize: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64 resizes a base64 payload. A data URI prefix is tolerated.
func Base64(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+1:]
	}
	if payload == "" {
		return "", ErrMissingImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("resize: decode base64: %w", err)
	}
	out, err := PNG(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}
