package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/extraction"
	"github.com/zombor/invoice-ocr/internal/imagesource"
)

const defaultVATEndpoint = "https://aip.baidubce.com/rest/2.0/ocr/v1/vat_invoice"

// vatFieldMap maps the recognizer's native field names to canonical ones
var vatFieldMap = []struct {
	native string
	field  extraction.Field
}{
	{"InvoiceCode", extraction.InvoiceCode},
	{"InvoiceNum", extraction.InvoiceNumber},
	{"InvoiceDate", extraction.InvoiceDate},
	{"SellerName", extraction.SellerName},
	{"SellerRegisterNum", extraction.SellerTaxNumber},
	{"PurchaserName", extraction.BuyerName},
	{"PurchaserRegisterNum", extraction.BuyerTaxNumber},
	{"AmountInFiguers", extraction.TotalAmount},
	{"TotalAmount", extraction.TotalSum},
	{"TotalTax", extraction.TaxAmount},
	{"CheckCode", extraction.CheckCode},
}

// VATInvoice calls a VAT invoice recognition API that returns segmented fields
type VATInvoice struct {
	endpoint    string
	accessToken string
	client      *http.Client
	source      imagesource.Source
}

// NewVATInvoice creates a VAT invoice provider
func NewVATInvoice(endpoint, accessToken string, source imagesource.Source) (*VATInvoice, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("vat access token is required")
	}
	if endpoint == "" {
		endpoint = defaultVATEndpoint
	}
	return &VATInvoice{
		endpoint:    endpoint,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 60 * time.Second},
		source:      source,
	}, nil
}

type vatResponse struct {
	ErrorCode   int                        `json:"error_code"`
	ErrorMsg    string                     `json:"error_msg"`
	WordsResult map[string]json.RawMessage `json:"words_result"`
}

type vatRowWord struct {
	Row  string `json:"row"`
	Word string `json:"word"`
}

var _ Provider = (*VATInvoice)(nil)

// Name implements Provider
func (v *VATInvoice) Name() string {
	return "vat"
}

// KeyFields implements KeyFielder
func (v *VATInvoice) KeyFields() []extraction.Field {
	return extraction.DefaultKeyFields
}

// Close is a no-op for the HTTP client
func (v *VATInvoice) Close() error {
	return nil
}

// Recognize implements Provider
func (v *VATInvoice) Recognize(ctx context.Context, ref imagesource.Ref) (*ProviderResult, error) {
	form, err := v.form(ctx, ref)
	if err != nil {
		return nil, err
	}

	endpoint := v.endpoint + "?access_token=" + url.QueryEscape(v.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: v.Name(), Message: "calling vat invoice API", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: v.Name(), Message: "reading response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: v.Name(), Status: resp.StatusCode, Message: truncate(string(body), 512)}
	}

	var parsed vatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Provider: v.Name(), Message: "decoding response", Err: err}
	}
	if parsed.ErrorCode != 0 {
		return nil, &ProviderError{Provider: v.Name(), Status: parsed.ErrorCode, Message: parsed.ErrorMsg}
	}
	if parsed.WordsResult == nil {
		return nil, &ProviderError{Provider: v.Name(), Message: "response has no words_result"}
	}

	fields := make(map[string]string, len(vatFieldMap))
	for _, m := range vatFieldMap {
		var s string
		if raw, ok := parsed.WordsResult[m.native]; ok && json.Unmarshal(raw, &s) == nil {
			fields[string(m.field)] = s
		}
	}

	raw, _ := json.Marshal(parsed.WordsResult)
	return &ProviderResult{
		Provider: v.Name(),
		Kind:     KindStructured,
		Fields:   fields,
		Items:    vatItems(parsed.WordsResult),
		Text:     string(raw),
	}, nil
}

// form sends public URLs as they are and everything else as base64
func (v *VATInvoice) form(ctx context.Context, ref imagesource.Ref) (url.Values, error) {
	form := url.Values{}
	if !ref.Inline() && (strings.HasPrefix(ref.URL, "http://") || strings.HasPrefix(ref.URL, "https://")) {
		form.Set("url", ref.URL)
		return form, nil
	}

	img, err := v.source.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	data := img.Data
	switch img.MimeType {
	case "image/jpeg", "image/png", "image/bmp":
	default:
		data, _, err = prepareImageData(img.Data, img.MimeType)
		if err != nil {
			return nil, &ProviderError{Provider: v.Name(), Message: "preparing image", Err: err}
		}
	}
	form.Set("image", base64.StdEncoding.EncodeToString(data))
	return form, nil
}

// vatItems joins the per-column row arrays into line items
func vatItems(words map[string]json.RawMessage) []extraction.InvoiceItem {
	columns := map[string]map[string]string{}
	var rows []string
	seen := map[string]bool{}
	for _, col := range []string{"CommodityName", "CommodityNum", "CommodityPrice", "CommodityAmount", "CommodityTaxRate", "CommodityTax"} {
		raw, ok := words[col]
		if !ok {
			continue
		}
		var cells []vatRowWord
		if err := json.Unmarshal(raw, &cells); err != nil {
			continue
		}
		columns[col] = map[string]string{}
		for _, c := range cells {
			columns[col][c.Row] = c.Word
			if !seen[c.Row] {
				seen[c.Row] = true
				rows = append(rows, c.Row)
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, errA := strconv.Atoi(rows[i])
		b, errB := strconv.Atoi(rows[j])
		if errA != nil || errB != nil {
			return false
		}
		return a < b
	})

	items := make([]extraction.InvoiceItem, 0, len(rows))
	for _, row := range rows {
		cell := func(col string) string { return columns[col][row] }
		items = append(items, extraction.InvoiceItem{
			Name:      strings.TrimSpace(cell("CommodityName")),
			Quantity:  decimalPtr(cell("CommodityNum")),
			UnitPrice: decimalPtr(cell("CommodityPrice")),
			Amount:    decimalPtr(cell("CommodityAmount")),
			TaxRate:   ratePtr(cell("CommodityTaxRate")),
			TaxAmount: decimalPtr(cell("CommodityTax")),
		})
	}
	return items
}

func decimalPtr(s string) *float64 {
	s = extraction.CleanAmount(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return floatPtr(d.InexactFloat64())
}

// ratePtr reads "6%" as 0.06. Exempt rows have no rate.
func ratePtr(s string) *float64 {
	s = strings.TrimSpace(s)
	pct, ok := strings.CutSuffix(s, "%")
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(pct))
	if err != nil {
		return nil
	}
	return floatPtr(d.Div(decimal.NewFromInt(100)).InexactFloat64())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
