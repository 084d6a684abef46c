package imagesource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Router returns inline images as they are and dispatches URL references to a
// Source by scheme.
type Router struct {
	sources map[string]Source
}

// NewRouter creates a Router with no schemes registered
func NewRouter() *Router {
	return &Router{sources: make(map[string]Source)}
}

// Handle registers src for a URL scheme such as "https" or "s3"
func (r *Router) Handle(scheme string, src Source) *Router {
	r.sources[strings.ToLower(scheme)] = src
	return r
}

// Resolve implements Source
func (r *Router) Resolve(ctx context.Context, ref Ref) (*Image, error) {
	if err := ref.Validate(); err != nil {
		return nil, &FetchError{URL: ref.URL, Err: err}
	}

	if ref.Inline() {
		mimeType := normalizeMime(ref.MimeType)
		if mimeType == "" {
			mimeType = normalizeMime(mimetype.Detect(ref.Data).String())
		}
		return &Image{Data: ref.Data, MimeType: mimeType}, nil
	}

	u, err := url.Parse(strings.TrimSpace(ref.URL))
	if err != nil {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("parsing url: %w", err)}
	}
	src, ok := r.sources[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	return src.Resolve(ctx, ref)
}
