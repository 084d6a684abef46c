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

// Ollama asks a local vision model to transcribe the invoice, and the
// transcription goes through the free-text extractor.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	source  imagesource.Source
}

// NewOllama creates a new Ollama provider. Models with good CJK OCR work best,
// for example qwen2.5vl or minicpm-v.
func NewOllama(baseURL string, modelName string, source imagesource.Source) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "qwen2.5vl"
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models are slow on CPU
		},
		source: source,
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

var _ Provider = (*Ollama)(nil)

// Name implements Provider
func (o *Ollama) Name() string {
	return "ollama"
}

// Recognize implements Provider
func (o *Ollama) Recognize(ctx context.Context, ref imagesource.Ref) (*ProviderResult, error) {
	img, err := o.source.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	pngData, _, err := prepareImageData(img.Data, img.MimeType)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "preparing image", Err: err}
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an OCR engine. You output the text of documents exactly as printed.",
			},
			{
				Role:    "user",
				Content: invoiceTranscribePrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "calling ollama API", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &ProviderError{Provider: o.Name(), Status: resp.StatusCode, Message: string(body)}
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "decoding response", Err: err}
	}
	if chatResp.Error != "" {
		return nil, &ProviderError{Provider: o.Name(), Message: chatResp.Error}
	}

	text := strings.TrimSpace(chatResp.Message.Content)
	text = strings.TrimPrefix(text, "```markdown")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	return &ProviderResult{
		Provider: o.Name(),
		Kind:     KindMarkdown,
		Text:     strings.TrimSpace(text),
	}, nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
