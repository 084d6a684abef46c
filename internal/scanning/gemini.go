package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/invoice-ocr/internal/extraction"
	"github.com/zombor/invoice-ocr/internal/imagesource"
)

// Gemini asks a Google Gemini vision model for the invoice fields as JSON
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	source imagesource.Source
}

// NewGemini creates a new Gemini provider
func NewGemini(apiKey string, modelName string, source imagesource.Source) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &Gemini{
		client: client,
		model:  model,
		source: source,
	}, nil
}

var _ Provider = (*Gemini)(nil)

// Name implements Provider
func (g *Gemini) Name() string {
	return "gemini"
}

// KeyFields implements KeyFielder
func (g *Gemini) KeyFields() []extraction.Field {
	return extraction.DefaultKeyFields
}

// Recognize implements Provider
func (g *Gemini) Recognize(ctx context.Context, ref imagesource.Ref) (*ProviderResult, error) {
	img, err := g.source.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	pngData, _, err := prepareImageData(img.Data, img.MimeType)
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Message: "preparing image", Err: err}
	}

	// genai.ImageData expects just the format suffix
	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(invoiceFieldsPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Message: "generating content", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{Provider: g.Name(), Message: "no response from gemini"}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	fields, items, err := parseInvoiceJSON(responseText.String())
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Message: "parsing invoice data", Err: err}
	}

	return &ProviderResult{
		Provider: g.Name(),
		Kind:     KindStructured,
		Fields:   fields,
		Items:    items,
		Text:     responseText.String(),
	}, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
