// Package imageref normalizes the three shapes an image reference can take on
// the wire: a data URI, a fetchable http(s) URL, or bare base64.
package imageref

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"aidispatch/internal/domain"
)

const (
	defaultMIME     = "image/jpeg"
	maxDownloadSize = 32 << 20
)

// Kind classifies a reference.
type Kind int

const (
	KindBase64 Kind = iota
	KindDataURI
	KindURL
)

// Classify detects data URIs by prefix, URLs by an http prefix and treats
// everything else as raw base64.
func Classify(ref string) Kind {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "data:"):
		return KindDataURI
	case strings.HasPrefix(ref, "http"):
		return KindURL
	default:
		return KindBase64
	}
}

// DataURI formats a base64 payload as a data URI.
func DataURI(mime, payload string) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + payload
}

// SplitDataURI returns the MIME type and base64 payload of a data URI.
func SplitDataURI(ref string) (mime string, payload string, err error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "data:") {
		return "", "", domain.InvalidInputf("not a data uri")
	}
	header, data, ok := strings.Cut(ref, ",")
	if !ok || data == "" {
		return "", "", domain.InvalidInputf("invalid data uri")
	}
	header = strings.TrimPrefix(header, "data:")
	mime, _, _ = strings.Cut(header, ";")
	if mime == "" {
		mime = defaultMIME
	}
	return mime, data, nil
}

// Image is a reference resolved to base64 plus its MIME type.
type Image struct {
	MIME   string
	Base64 string
}

// Bytes decodes the base64 payload.
func (i Image) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(i.Base64)
	if err != nil {
		return nil, domain.InvalidInputf("decode base64 image: %v", err)
	}
	return data, nil
}

// DataURI renders the image as a data URI.
func (i Image) DataURI() string {
	return DataURI(i.MIME, i.Base64)
}

// Resolver turns references into inline images, downloading URLs when needed.
type Resolver struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewResolver builds a Resolver. A nil client gets a 15 second timeout.
func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{httpClient: client, maxBytes: maxDownloadSize}
}

// Resolve normalizes ref. Data URIs are split without decoding, URLs are
// fetched and encoded, and anything else is passed through as base64.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Image{}, domain.InvalidInputf("image reference is required")
	}
	switch Classify(ref) {
	case KindDataURI:
		mime, payload, err := SplitDataURI(ref)
		if err != nil {
			return Image{}, err
		}
		return Image{MIME: mime, Base64: payload}, nil
	case KindURL:
		data, mime, err := r.Fetch(ctx, ref)
		if err != nil {
			return Image{}, err
		}
		return Image{MIME: mime, Base64: base64.StdEncoding.EncodeToString(data)}, nil
	default:
		return Image{MIME: sniffBase64(ref), Base64: ref}, nil
	}
}

// Fetch downloads url and reports an image MIME type. A non-image
// Content-Type is replaced by sniffing the payload.
func (r *Resolver) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", domain.InvalidInputf("invalid image url %q", url)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imageref: download image: %w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("imageref: download status %d: %w", resp.StatusCode, domain.ErrInvalidInput)
	}
	// one byte past the limit tells an oversized body from an exact fit
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("imageref: read image: %w: %w", domain.ErrNetwork, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, "", fmt.Errorf("imageref: image exceeds %d bytes: %w", r.maxBytes, domain.ErrInvalidInput)
	}
	mime := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = sniff(data)
	}
	return data, mime, nil
}

func sniff(data []byte) string {
	detected := mimetype.Detect(data).String()
	if i := strings.Index(detected, ";"); i >= 0 {
		detected = detected[:i]
	}
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	return defaultMIME
}

func sniffBase64(payload string) string {
	// the header bytes are enough for detection
	head := payload
	if len(head) > 64 {
		head = head[:64]
	}
	data, err := base64.StdEncoding.DecodeString(head[:len(head)-len(head)%4])
	if err != nil || len(data) == 0 {
		return defaultMIME
	}
	return sniff(data)
}
