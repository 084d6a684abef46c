// Package imagesource resolves invoice image references to bytes.
package imagesource

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRef is returned when a Ref carries both or neither of a URL and inline data
var ErrInvalidRef = errors.New("image ref must carry exactly one of url or data")

// Ref points at an invoice image, either by URL or with the bytes inline
type Ref struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType,omitempty"`
}

// Validate checks that exactly one of URL and Data is set
func (r Ref) Validate() error {
	hasURL := strings.TrimSpace(r.URL) != ""
	hasData := len(r.Data) > 0
	if hasURL == hasData {
		return ErrInvalidRef
	}
	return nil
}

// Inline reports whether the image bytes travel with the reference
func (r Ref) Inline() bool {
	return len(r.Data) > 0
}

// Image is a resolved image
type Image struct {
	Data     []byte
	MimeType string
}

// Source resolves a Ref to image bytes
type Source interface {
	Resolve(ctx context.Context, ref Ref) (*Image, error)
}

// FetchError reports that the image bytes could not be retrieved
type FetchError struct {
	URL    string
	Status int // HTTP status when the remote answered, 0 otherwise
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching image %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetching image %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// normalizeMime lowercases a content type and drops its parameters
func normalizeMime(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
