// Package ocr extracts text from uploaded images.
//
// Extraction is deterministic for the same image bytes. An image with no
// detectable text yields "" and no error; only unreadable uploads and engine
// failures are errors.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrEmptyUpload is returned when no image bytes were uploaded.
var ErrEmptyUpload = errors.New("no image was uploaded")

// ErrUnsupportedFormat is returned when the upload is not one of the allowed image formats.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Engine runs optical character recognition on a validated image.
type Engine interface {
	Recognize(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Extractor validates uploads and delegates to an Engine.
type Extractor struct {
	engine   Engine
	allowed  map[string]bool // file extensions without dot, lower-case
	maxBytes int64
	timeout  time.Duration
}

// NewExtractor creates an Extractor accepting the given formats (e.g., "png", "jpg").
func NewExtractor(engine Engine, formats []string, maxBytes int64, timeout time.Duration) *Extractor {
	allowed := make(map[string]bool, len(formats))
	for _, f := range formats {
		allowed[strings.TrimPrefix(strings.ToLower(f), ".")] = true
	}
	return &Extractor{engine: engine, allowed: allowed, maxBytes: maxBytes, timeout: timeout}
}

// Extract returns the text found in image, which may be empty.
func (e *Extractor) Extract(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyUpload
	}
	if e.maxBytes > 0 && int64(len(image)) > e.maxBytes {
		return "", fmt.Errorf("image exceeds %d bytes", e.maxBytes)
	}

	mt := mimetype.Detect(image)
	if !e.accepts(mt) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	text, err := e.engine.Recognize(ctx, image, mt.String())
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	text = strings.TrimRightFunc(text, isSpaceOrFormFeed)
	slog.Debug("text extracted from image", "mime", mt.String(), "bytes", len(image), "text_length", len(text))
	return text, nil
}

func (e *Extractor) accepts(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if e.allowed[strings.TrimPrefix(m.Extension(), ".")] {
			return true
		}
	}
	// jpeg is reported with the .jpg extension.
	return mt.Is("image/jpeg") && e.allowed["jpeg"]
}

func isSpaceOrFormFeed(r rune) bool {
	return r == ' ' || r == '\n' || r == '\r' || r == '\t' || r == '\f'
}
