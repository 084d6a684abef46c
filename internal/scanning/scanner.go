package scanning

import (
	"context"

	"github.com/zombor/invoice-ocr/internal/extraction"
	"github.com/zombor/invoice-ocr/internal/imagesource"
)

// Kind tells the decoder which extraction path a result takes
type Kind string

const (
	// KindStructured results carry a field map keyed by canonical field names
	KindStructured Kind = "structured"
	// KindMarkdown results carry a markdown document
	KindMarkdown Kind = "markdown"
	// KindText results carry plain recognized text
	KindText Kind = "text"
)

// ProviderResult is one backend's answer, before extraction
type ProviderResult struct {
	Provider   string
	Kind       Kind
	Fields     map[string]string
	Items      []extraction.InvoiceItem
	Text       string
	Confidence *float64 // native recognition confidence in [0, 1], if the backend reports one
}

// Provider defines the interface for OCR backends
type Provider interface {
	// Name is the name used to pin the provider and in the priority order
	Name() string
	// Recognize runs the backend over the referenced image
	Recognize(ctx context.Context, ref imagesource.Ref) (*ProviderResult, error)
	// Close releases resources held by the provider
	Close() error
}

// KeyFielder is implemented by providers that score completeness over their
// own key field list
type KeyFielder interface {
	KeyFields() []extraction.Field
}

// keyFieldsFor returns the completeness set used for results of p
func keyFieldsFor(p Provider, kind Kind) []extraction.Field {
	if kf, ok := p.(KeyFielder); ok {
		if fields := kf.KeyFields(); len(fields) > 0 {
			return fields
		}
	}
	if kind == KindStructured {
		return extraction.DefaultKeyFields
	}
	return extraction.FreeTextKeyFields
}

func floatPtr(f float64) *float64 {
	return &f
}
