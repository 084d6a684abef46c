package extraction

import (
	"regexp"
	"strings"
)

// LabelPattern builds a pattern for a printed label that tolerates one OCR-inserted
// space between any two of its characters.
func LabelPattern(s string) string {
	runes := []rune(s)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = regexp.QuoteMeta(string(r))
	}
	return strings.Join(parts, " ?")
}

// ExtractField returns the first capture group of the first pattern that
// matches, trimmed. No match yields "".
func ExtractField(text string, patterns []*regexp.Regexp) string {
	groups := extractGroups(text, patterns)
	if len(groups) == 0 {
		return ""
	}
	return groups[0]
}

func extractGroups(text string, patterns []*regexp.Regexp) []string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		groups := make([]string, 0, len(m)-1)
		for _, g := range m[1:] {
			groups = append(groups, strings.TrimSpace(g))
		}
		return groups
	}
	return nil
}

// fieldRule maps the capture groups of an ordered pattern list onto fields
type fieldRule struct {
	fields   []Field
	patterns []*regexp.Regexp
	clean    func(string) string
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

const (
	sep      = `\s*[:：]?\s*`
	colon    = `\s*[:：]\s*`
	money    = `(-?\d[\d,]*\.\d{1,2})`
	moneyGap = `[\s|:：¥￥]*`
	taxID    = `([0-9A-Z]{15,20})`
)

var (
	nameStop = `\s*(?:` + LabelPattern("纳税人识别号") + `|` + LabelPattern("统一社会信用代码") + `|` +
		LabelPattern("名称") + `|` + LabelPattern("地址") + `|\||$)`
	nameValue = `([^\s:：|][^\n:：|]*?)` + nameStop
	taxLabel  = `(?:(?:` + LabelPattern("统一社会信用代码") + `\s*/\s*)?` + LabelPattern("纳税人识别号") +
		`|` + LabelPattern("统一社会信用代码") + `)`
)

// Ordered most specific first. Buyer blocks precede seller blocks on the
// printed form, so the positional fallbacks take the first and second label.
var fieldRules = []fieldRule{
	{
		fields: []Field{InvoiceCode},
		patterns: compile(
			LabelPattern("发票代码") + sep + `(\d{10,12})`,
		),
	},
	{
		fields: []Field{InvoiceNumber},
		patterns: compile(
			LabelPattern("发票号码")+sep+`(\d{8,20})`,
			`(?i)\bNo\s*[.:：]?\s*(\d{8,20})`,
		),
	},
	{
		fields: []Field{InvoiceDate},
		patterns: compile(
			LabelPattern("开票日期")+sep+`(\d{4}\s*年\s*\d{1,2}\s*月\s*\d{1,2}\s*日)`,
			LabelPattern("开票日期")+sep+`(\d{4}[-/.]\d{1,2}[-/.]\d{1,2})`,
			LabelPattern("开票日期")+sep+`(\d{8})`,
		),
		clean: NormalizeDate,
	},
	{
		fields: []Field{BuyerName},
		patterns: compile(
			`(?m)`+LabelPattern("购买方名称")+sep+nameValue,
			`(?m)`+LabelPattern("购买方")+`[^\n]{0,8}?`+LabelPattern("名称")+sep+nameValue,
			`(?m)`+LabelPattern("名称")+colon+nameValue,
		),
		clean: joinHan,
	},
	{
		fields: []Field{SellerName},
		patterns: compile(
			`(?m)`+LabelPattern("销售方名称")+sep+nameValue,
			`(?m)`+LabelPattern("销售方")+`[^\n]{0,8}?`+LabelPattern("名称")+sep+nameValue,
			`(?m)`+LabelPattern("名称")+colon+`[\s\S]*?`+LabelPattern("名称")+colon+nameValue,
		),
		clean: joinHan,
	},
	{
		fields: []Field{BuyerTaxNumber},
		patterns: compile(
			LabelPattern("购买方纳税人识别号")+sep+taxID,
			taxLabel+sep+taxID,
		),
	},
	{
		fields: []Field{SellerTaxNumber},
		patterns: compile(
			LabelPattern("销售方纳税人识别号")+sep+taxID,
			taxLabel+sep+`[0-9A-Z]{15,20}[\s\S]*?`+taxLabel+sep+taxID,
		),
	},
	{
		fields: []Field{CheckCode},
		patterns: compile(
			LabelPattern("校验码") + sep + `(\d{5} ?\d{5} ?\d{5} ?\d{5})`,
		),
		clean: func(s string) string { return strings.ReplaceAll(s, " ", "") },
	},
	{
		// the subtotal line; lines carrying 价 are the tax-inclusive total
		fields: []Field{TotalSum, TaxAmount},
		patterns: compile(
			`(?m)^[^价\n]*`+LabelPattern("合计")+moneyGap+money+moneyGap+money,
			`(?m)^[^价\n]*`+LabelPattern("合计")+moneyGap+money,
		),
		clean: CleanAmount,
	},
}

var (
	reTotalMarker = regexp.MustCompile(LabelPattern("价税合计"))
	reWordsMarker = regexp.MustCompile(LabelPattern("大写"))
	reFigureMark  = regexp.MustCompile(LabelPattern("小写"))
	reNumberToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// taxInclusiveTotal reads the trailing number of the line carrying both the
// total marker and the amount-in-words marker. Searching that line only keeps
// the amount in words out of the result.
func taxInclusiveTotal(text string) string {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if reTotalMarker.MatchString(line) && reWordsMarker.MatchString(line) {
			if v := trailingNumber(line); v != "" {
				return v
			}
		}
	}
	for _, line := range lines {
		if reFigureMark.MatchString(line) {
			if v := trailingNumber(line); v != "" {
				return v
			}
		}
	}
	return ""
}

func trailingNumber(line string) string {
	tokens := reNumberToken.FindAllString(line, -1)
	if len(tokens) == 0 {
		return ""
	}
	return CleanAmount(tokens[len(tokens)-1])
}

var reSpacedHan = regexp.MustCompile(`(\p{Han}) (\p{Han})`)

// joinHan drops single spaces the recognizer put between CJK characters
func joinHan(s string) string {
	for {
		next := reSpacedHan.ReplaceAllString(s, "$1$2")
		if next == s {
			return s
		}
		s = next
	}
}

// extractFields runs every rule over sanitized text
func extractFields(text string, out *InvoiceFields) {
	for _, rule := range fieldRules {
		groups := extractGroups(text, rule.patterns)
		for i, v := range groups {
			if i >= len(rule.fields) {
				break
			}
			if rule.clean != nil {
				v = rule.clean(v)
			}
			out.Set(rule.fields[i], v)
		}
	}
	out.TotalAmount = taxInclusiveTotal(text)
}
