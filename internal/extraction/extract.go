// Package extraction turns OCR output into the canonical invoice record.
//
// Structured providers only need their values normalized; free text goes
// through Sanitize, the regex cascade and the item table parser. None of the
// functions here fail: malformed input degrades to empty fields.
package extraction

import "strings"

// FromText extracts an invoice from recognized free text or markdown
func FromText(raw string, keyFields []Field) InvoiceFields {
	out := NewInvoiceFields()
	text := Sanitize(raw)
	if strings.TrimSpace(text) == "" {
		return out
	}
	extractFields(text, &out)
	out.Items = ParseItems(text)
	out.Confidence = Score(&out, keyFields)
	return out
}

// FromStructured builds an invoice from a provider field map already keyed by
// canonical field names.
func FromStructured(values map[string]string, items []InvoiceItem, keyFields []Field) InvoiceFields {
	out := NewInvoiceFields()
	for _, f := range AllFields {
		out.Set(f, normalizeValue(f, values[string(f)]))
	}
	for _, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" || item.Amount == nil {
			continue
		}
		out.Items = append(out.Items, item)
	}
	out.Confidence = Score(&out, keyFields)
	return out
}

func normalizeValue(f Field, v string) string {
	v = strings.TrimSpace(v)
	switch f {
	case InvoiceDate:
		return NormalizeDate(v)
	case TotalAmount, TotalSum, TaxAmount:
		return CleanAmount(v)
	case CheckCode:
		return strings.ReplaceAll(v, " ", "")
	}
	return v
}
