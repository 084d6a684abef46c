package scanning

import (
	"fmt"

	"github.com/zombor/invoice-ocr/internal/extraction"
)

// Decode routes a provider result to the extraction path for its kind
func Decode(result *ProviderResult, keyFields []extraction.Field) (extraction.InvoiceFields, error) {
	if result == nil {
		return extraction.NewInvoiceFields(), fmt.Errorf("decoding result: nil result")
	}

	switch result.Kind {
	case KindStructured:
		return extraction.FromStructured(result.Fields, result.Items, keyFields), nil
	case KindMarkdown, KindText:
		return extraction.FromText(result.Text, keyFields), nil
	}

	return extraction.NewInvoiceFields(), &ProviderError{
		Provider: result.Provider,
		Message:  fmt.Sprintf("unknown result kind %q", result.Kind),
	}
}
