package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/extraction"
)

// jsonAmount accepts a number, a numeric string or junk from a model response
type jsonAmount struct {
	value   *float64
	percent bool
}

func (a *jsonAmount) UnmarshalJSON(b []byte) error {
	s := extraction.CleanAmount(strings.Trim(string(b), `"`))
	s, a.percent = strings.CutSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	a.value = &f
	return nil
}

type jsonItem struct {
	Name      string     `json:"name"`
	Quantity  jsonAmount `json:"quantity"`
	UnitPrice jsonAmount `json:"unitPrice"`
	Amount    jsonAmount `json:"amount"`
	TaxRate   jsonAmount `json:"taxRate"`
	TaxAmount jsonAmount `json:"taxAmount"`
}

// parseInvoiceJSON parses a model's JSON answer into canonical field values and items
func parseInvoiceJSON(text string) (map[string]string, []extraction.InvoiceItem, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields := make(map[string]string, len(extraction.AllFields))
	for _, f := range extraction.AllFields {
		if v, ok := raw[string(f)]; ok {
			fields[string(f)] = jsonScalar(v)
		}
	}

	var items []extraction.InvoiceItem
	if v, ok := raw["items"]; ok {
		var parsed []jsonItem
		if err := json.Unmarshal(v, &parsed); err != nil {
			return nil, nil, fmt.Errorf("unmarshaling items: %w", err)
		}
		for _, it := range parsed {
			// "6%" and a bare 6 are both percentages, 0.06 is already a fraction
			rate := it.TaxRate.value
			if rate != nil && (it.TaxRate.percent || *rate > 1) {
				rate = floatPtr(decimal.NewFromFloat(*rate).Div(decimal.NewFromInt(100)).InexactFloat64())
			}
			items = append(items, extraction.InvoiceItem{
				Name:      strings.TrimSpace(it.Name),
				Quantity:  it.Quantity.value,
				UnitPrice: it.UnitPrice.value,
				Amount:    it.Amount.value,
				TaxRate:   rate,
				TaxAmount: it.TaxAmount.value,
			})
		}
	}

	return fields, items, nil
}

// jsonScalar renders a string, number or null as a plain string
func jsonScalar(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(v))
	if trimmed == "null" {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}
