package imagesource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// maxImageSize bounds downloads the same way uploads are bounded
const maxImageSize = 50 << 20

// HTTP resolves http and https references
type HTTP struct {
	client *http.Client
}

// NewHTTP creates an HTTP source. A zero timeout defaults to 30 seconds.
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		client: &http.Client{Timeout: timeout},
	}
}

// Resolve downloads the image at ref.URL
func (h *HTTP) Resolve(ctx context.Context, ref Ref) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("creating request: %w", err)}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: ref.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{URL: ref.URL, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", string(body))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("reading body: %w", err)}
	}
	if len(data) > maxImageSize {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("image larger than %d bytes", maxImageSize)}
	}
	if len(data) == 0 {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("empty body")}
	}

	mimeType := ref.MimeType
	if mimeType == "" {
		mimeType = resp.Header.Get("Content-Type")
	}
	mimeType = normalizeMime(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normalizeMime(mimetype.Detect(data).String())
	}

	return &Image{Data: data, MimeType: mimeType}, nil
}
