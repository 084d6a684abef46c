package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	minItemLineRunes = 4
	minItemNameRunes = 2
)

var (
	reItemHeader = regexp.MustCompile(`(?:` + LabelPattern("项目名称") + `|` + LabelPattern("货物或应税劳务、服务名称") + `)`)
	reSubtotal   = regexp.MustCompile(LabelPattern("合计"))

	reWhitespace   = regexp.MustCompile(`\s+`)
	reSplitDecimal = regexp.MustCompile(`(\d)\s*\.\s+(\d)`)
	reLeadingName  = regexp.MustCompile(`^[^\d]+`)
	rePercent      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	reItemNumber   = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
)

// column headers and footers that never start an item row
var itemTableTokens = []string{
	"规格型号", "单位", "数量", "单价", "金额", "税率", "征收率", "税额", "合计",
}

// ParseItems reconstructs line items from the table section of recognized text:
// everything between the item-name header and the first subtotal marker after it.
// Rows are assigned positionally by how many numbers they carry; unusual column
// orders are misread. Three numbers are quantity, unit price and amount with no
// tax amount. Four or more add the last one as the tax amount. Two are amount
// and tax amount.
func ParseItems(text string) []InvoiceItem {
	items := []InvoiceItem{}

	header := reItemHeader.FindStringIndex(text)
	if header == nil {
		return items
	}
	rest := text[header[1]:]
	end := reSubtotal.FindStringIndex(rest)
	if end == nil {
		return items
	}

	for _, line := range strings.Split(rest[:end[0]], "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minItemLineRunes || isTableChrome(line) {
			continue
		}
		if item, ok := parseItemLine(line); ok {
			items = append(items, item)
		}
	}
	return items
}

func isTableChrome(line string) bool {
	compact := reWhitespace.ReplaceAllString(line, "")
	for _, token := range itemTableTokens {
		if strings.Contains(compact, token) {
			return true
		}
	}
	return false
}

func parseItemLine(line string) (InvoiceItem, bool) {
	line = reWhitespace.ReplaceAllString(line, " ")
	line = reSplitDecimal.ReplaceAllString(line, "$1.$2")

	lead := reLeadingName.FindString(line)
	name := strings.TrimFunc(lead, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if utf8.RuneCountInString(name) < minItemNameRunes {
		return InvoiceItem{}, false
	}
	rest := line[len(lead):]

	var (
		quantity, unitPrice, amount, taxRate, taxAmount *decimal.Decimal
	)
	if m := rePercent.FindStringSubmatch(line); m != nil {
		if pct, err := decimal.NewFromString(m[1]); err == nil {
			rate := pct.Div(decimal.NewFromInt(100))
			taxRate = &rate
		}
	}

	nums := numbers(rePercent.ReplaceAllString(rest, " "))
	switch {
	case len(nums) >= 3:
		quantity, unitPrice, amount = &nums[0], &nums[1], &nums[2]
		if len(nums) > 3 {
			taxAmount = &nums[len(nums)-1]
		}
	case len(nums) == 2:
		amount, taxAmount = &nums[0], &nums[1]
	default:
		return InvoiceItem{}, false
	}

	if amount == nil && unitPrice != nil && quantity != nil {
		v := unitPrice.Mul(*quantity)
		amount = &v
	}
	if unitPrice == nil && amount != nil && quantity == nil {
		one := decimal.NewFromInt(1)
		unitPrice, quantity = amount, &one
	}
	if amount == nil {
		return InvoiceItem{}, false
	}

	return InvoiceItem{
		Name:      name,
		Quantity:  toFloat(quantity),
		UnitPrice: toFloat(unitPrice),
		Amount:    toFloat(amount),
		TaxRate:   toFloat(taxRate),
		TaxAmount: toFloat(taxAmount),
	}, true
}

func numbers(s string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, tok := range reItemNumber.FindAllString(s, -1) {
		d, err := decimal.NewFromString(strings.ReplaceAll(tok, ",", ""))
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

func toFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
