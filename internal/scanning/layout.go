package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/invoice-ocr/internal/imagesource"
)

// Layout posts the image to a layout parsing service and reads back markdown
type Layout struct {
	endpoint string
	token    string
	client   *http.Client
	source   imagesource.Source
}

// NewLayout creates a layout parsing provider. The token is optional.
func NewLayout(endpoint, token string, source imagesource.Source) (*Layout, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("layout endpoint is required")
	}
	return &Layout{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 120 * time.Second},
		source:   source,
	}, nil
}

type layoutRequest struct {
	File     string `json:"file"`
	FileType int    `json:"fileType"` // 0 pdf, 1 image
}

type layoutResponse struct {
	ErrorCode int    `json:"errorCode"`
	ErrorMsg  string `json:"errorMsg"`
	Result    struct {
		LayoutParsingResults []struct {
			Markdown struct {
				Text string `json:"text"`
			} `json:"markdown"`
		} `json:"layoutParsingResults"`
	} `json:"result"`
}

var _ Provider = (*Layout)(nil)

// Name implements Provider
func (l *Layout) Name() string {
	return "layout"
}

// Recognize implements Provider
func (l *Layout) Recognize(ctx context.Context, ref imagesource.Ref) (*ProviderResult, error) {
	img, err := l.source.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	mimeType, fileType := "image/jpeg", 1
	switch {
	case img.MimeType == "application/pdf":
		mimeType, fileType = "application/pdf", 0
	case strings.Contains(img.MimeType, "png"):
		mimeType = "image/png"
	}

	payload, err := json.Marshal(layoutRequest{
		File:     "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
		FileType: fileType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.token != "" {
		req.Header.Set("Authorization", "token "+l.token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: l.Name(), Message: "calling layout API", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: l.Name(), Message: "reading response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: l.Name(), Status: resp.StatusCode, Message: truncate(string(body), 512)}
	}

	var parsed layoutResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Provider: l.Name(), Message: "decoding response", Err: err}
	}
	if parsed.ErrorCode != 0 {
		return nil, &ProviderError{Provider: l.Name(), Status: parsed.ErrorCode, Message: parsed.ErrorMsg}
	}

	pages := make([]string, 0, len(parsed.Result.LayoutParsingResults))
	for _, page := range parsed.Result.LayoutParsingResults {
		pages = append(pages, page.Markdown.Text)
	}

	return &ProviderResult{
		Provider: l.Name(),
		Kind:     KindMarkdown,
		Text:     strings.Join(pages, "\n\n"),
	}, nil
}

// Close is a no-op for the HTTP client
func (l *Layout) Close() error {
	return nil
}
