// internal/upload/upload.go
//
// Chat image uploads.
// Validates the incoming file (declared image/* type, size limit), derives an
// object key and hands the bytes to an Uploader, which returns the public URL.
//
// Keys look like chat-images/<uuid>-<slugified-name><ext>.

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/internal/game"
)

// DefaultMaxBytes is the largest accepted image.
const DefaultMaxBytes = 5 * 1024 * 1024

// KeyPrefix is the object key prefix for chat images.
const KeyPrefix = "chat-images/"

// ErrNotConfigured is returned when no object storage is wired.
var ErrNotConfigured = errors.New("image storage not configured")

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// File describes one uploaded form file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service validates and stores chat images.
type Service struct {
	up       Uploader
	maxBytes int64
	newID    func() string
}

// NewService wraps up. A nil uploader yields a Service whose Store always fails
// with ErrNotConfigured.
func NewService(up Uploader, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{up: up, maxBytes: maxBytes, newID: uuid.NewString}
}

// MaxBytes reports the configured size limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Store validates f and uploads it, returning the public URL.
func (s *Service) Store(ctx context.Context, f File) (string, error) {
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return "", game.Validationf("File must be an image")
	}
	if f.Size > s.maxBytes {
		return "", game.Validationf("Image must be under %dMB", s.maxBytes/(1024*1024))
	}
	if s.up == nil {
		return "", ErrNotConfigured
	}
	key := s.Key(f.Name)
	url, err := s.up.Put(ctx, key, f.ContentType, io.LimitReader(f.Body, s.maxBytes+1), f.Size)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("image upload failed")
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	log.Info().Str("key", key).Int64("size", f.Size).Msg("image uploaded")
	return url, nil
}

// Key derives the object key for an uploaded file name.
func (s *Service) Key(name string) string {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "image"
	}
	return KeyPrefix + s.newID() + "-" + stem + ext
}
