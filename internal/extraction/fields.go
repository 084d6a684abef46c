package extraction

import "errors"

// Field names a canonical invoice field
type Field string

const (
	InvoiceCode     Field = "invoiceCode"
	InvoiceNumber   Field = "invoiceNumber"
	InvoiceDate     Field = "invoiceDate"
	SellerName      Field = "sellerName"
	SellerTaxNumber Field = "sellerTaxNumber"
	BuyerName       Field = "buyerName"
	BuyerTaxNumber  Field = "buyerTaxNumber"
	TotalAmount     Field = "totalAmount" // tax-inclusive total
	TotalSum        Field = "totalSum"    // pre-tax subtotal
	TaxAmount       Field = "taxAmount"
	CheckCode       Field = "checkCode"
)

// AllFields lists every canonical string field in output order
var AllFields = []Field{
	InvoiceCode, InvoiceNumber, InvoiceDate,
	SellerName, SellerTaxNumber, BuyerName, BuyerTaxNumber,
	TotalAmount, TotalSum, TaxAmount, CheckCode,
}

// DefaultKeyFields is the completeness set used for providers that return
// already segmented fields
var DefaultKeyFields = []Field{
	InvoiceCode, InvoiceNumber, InvoiceDate,
	SellerName, SellerTaxNumber, BuyerName, BuyerTaxNumber,
	TotalAmount, TaxAmount, CheckCode,
}

// FreeTextKeyFields is the completeness set used for providers that return
// recognized text
var FreeTextKeyFields = []Field{
	InvoiceCode, InvoiceNumber, InvoiceDate,
	SellerName, SellerTaxNumber, BuyerName, BuyerTaxNumber,
	TotalAmount,
}

// ErrNoFields is reported when a provider answered but nothing usable could be parsed.
// It is not a failure: the empty record is still a valid result.
var ErrNoFields = errors.New("no invoice fields could be extracted")

// InvoiceItem is one line item of an invoice. Nil numbers are absent.
type InvoiceItem struct {
	Name      string   `json:"name"`
	Quantity  *float64 `json:"quantity,omitempty"`
	UnitPrice *float64 `json:"unitPrice,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	TaxRate   *float64 `json:"taxRate,omitempty"` // fraction, 0.06 for 6%
	TaxAmount *float64 `json:"taxAmount,omitempty"`
}

// InvoiceFields is the canonical extracted record
type InvoiceFields struct {
	InvoiceCode     string        `json:"invoiceCode"`
	InvoiceNumber   string        `json:"invoiceNumber"`
	InvoiceDate     string        `json:"invoiceDate"`
	SellerName      string        `json:"sellerName"`
	SellerTaxNumber string        `json:"sellerTaxNumber"`
	BuyerName       string        `json:"buyerName"`
	BuyerTaxNumber  string        `json:"buyerTaxNumber"`
	TotalAmount     string        `json:"totalAmount"`
	TotalSum        string        `json:"totalSum"`
	TaxAmount       string        `json:"taxAmount"`
	CheckCode       string        `json:"checkCode"`
	Items           []InvoiceItem `json:"items"`
	Confidence      float64       `json:"confidence"`
}

// NewInvoiceFields returns an empty record with a non-nil item list
func NewInvoiceFields() InvoiceFields {
	return InvoiceFields{Items: []InvoiceItem{}}
}

// Get returns the value of a string field, "" for unknown fields
func (f *InvoiceFields) Get(field Field) string {
	if p := f.ref(field); p != nil {
		return *p
	}
	return ""
}

// Set assigns a string field. Unknown fields are ignored.
func (f *InvoiceFields) Set(field Field, value string) {
	if p := f.ref(field); p != nil {
		*p = value
	}
}

// Empty reports whether no string field and no item was extracted
func (f *InvoiceFields) Empty() bool {
	for _, field := range AllFields {
		if f.Get(field) != "" {
			return false
		}
	}
	return len(f.Items) == 0
}

func (f *InvoiceFields) ref(field Field) *string {
	switch field {
	case InvoiceCode:
		return &f.InvoiceCode
	case InvoiceNumber:
		return &f.InvoiceNumber
	case InvoiceDate:
		return &f.InvoiceDate
	case SellerName:
		return &f.SellerName
	case SellerTaxNumber:
		return &f.SellerTaxNumber
	case BuyerName:
		return &f.BuyerName
	case BuyerTaxNumber:
		return &f.BuyerTaxNumber
	case TotalAmount:
		return &f.TotalAmount
	case TotalSum:
		return &f.TotalSum
	case TaxAmount:
		return &f.TaxAmount
	case CheckCode:
		return &f.CheckCode
	}
	return nil
}
