package scanning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	"github.com/zombor/invoice-ocr/internal/imagesource"
)

// Azure recognizes printed text with Azure Computer Vision
type Azure struct {
	client *computervision.BaseClient
	source imagesource.Source
}

// NewAzure creates an Azure Computer Vision provider
func NewAzure(endpoint, apiKey string, source imagesource.Source) (*Azure, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure endpoint and key are required")
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &Azure{client: &client, source: source}, nil
}

var _ Provider = (*Azure)(nil)

// Name implements Provider
func (a *Azure) Name() string {
	return "azure"
}

// Recognize implements Provider
func (a *Azure) Recognize(ctx context.Context, ref imagesource.Ref) (*ProviderResult, error) {
	img, err := a.source.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	data := img.Data
	if img.MimeType != "image/jpeg" && img.MimeType != "image/png" {
		data, _, err = prepareImageData(img.Data, img.MimeType)
		if err != nil {
			return nil, &ProviderError{Provider: a.Name(), Message: "preparing image", Err: err}
		}
	}

	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(data)),
		computervision.OcrLanguagesZhHans,
	)
	if err != nil {
		status := 0
		if result.Response.Response != nil {
			status = result.StatusCode
		}
		return nil, &ProviderError{Provider: a.Name(), Status: status, Message: "recognizing printed text", Err: err}
	}

	return &ProviderResult{
		Provider: a.Name(),
		Kind:     KindText,
		Text:     ocrResultText(result),
	}, nil
}

// ocrResultText joins recognized words into lines, regions separated by a blank line
func ocrResultText(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}
	var regions []string
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		var lines []string
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			var words []string
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			lines = append(lines, strings.Join(words, " "))
		}
		regions = append(regions, strings.Join(lines, "\n"))
	}
	return strings.Join(regions, "\n\n")
}

// Close is a no-op for the REST client
func (a *Azure) Close() error {
	return nil
}
