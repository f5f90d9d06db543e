package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"aidispatch/internal/imageref"
)

// Object describes a saved result.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Bytes       int    `json:"bytes"`
}

// Saver copies a provider result into the store under the caller's prefix.
type Saver struct {
	store    *FileStore
	resolver *imageref.Resolver
	baseURL  string
	newID    func() string
}

// NewSaver wires a Saver. baseURL is the public prefix the store is served
// under, for example http://localhost:8080/static.
func NewSaver(store *FileStore, resolver *imageref.Resolver, baseURL string) *Saver {
	if resolver == nil {
		resolver = imageref.NewResolver(nil)
	}
	return &Saver{
		store:    store,
		resolver: resolver,
		baseURL:  strings.TrimRight(baseURL, "/"),
		newID:    func() string { return uuid.NewString() },
	}
}

// Key builds the storage key for a generated result.
func Key(identityID, id, ext string) string {
	return fmt.Sprintf("users/%s/generated/%s%s", identityID, id, ext)
}

// Save downloads or decodes ref and writes it under
// users/{identity}/generated/{uuid}.{ext}.
func (s *Saver) Save(ctx context.Context, identityID, ref string) (Object, error) {
	if s == nil || s.store == nil {
		return Object{}, errors.New("storage: saver not configured")
	}
	identityID = strings.TrimSpace(identityID)
	if identityID == "" || identityID == "." || identityID == ".." || strings.ContainsAny(identityID, "/\\") {
		return Object{}, errors.New("storage: invalid identity")
	}
	img, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return Object{}, fmt.Errorf("storage: resolve result: %w", err)
	}
	data, err := img.Bytes()
	if err != nil {
		return Object{}, fmt.Errorf("storage: decode result: %w", err)
	}
	mt := mimetype.Detect(data)
	ext := mt.Extension()
	if ext == "" {
		ext = ".bin"
	}
	key, err := s.store.Write(ctx, Key(identityID, s.newID(), ext), data)
	if err != nil {
		return Object{}, err
	}
	return Object{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: mt.String(),
		Bytes:       len(data),
	}, nil
}
