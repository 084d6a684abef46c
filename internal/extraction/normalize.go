package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var reCanonicalDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// tried in order, first match wins
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日?`),
	regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
	regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})(?:\D|$)`),
	regexp.MustCompile(`(\d{4})[/.\-](\d{1,2})[/.\-](\d{1,2})`),
}

// NormalizeDate converts a recognized date to YYYY-MM-DD. Input that matches no
// known format is returned unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || reCanonicalDate.MatchString(s) {
		return s
	}
	for _, re := range datePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
	}
	return s
}

var amountReplacer = strings.NewReplacer(
	"¥", "",
	"￥", "",
	"$", "",
	",", "",
	"，", "",
)

// CleanAmount strips currency glyphs and thousands separators, leaving the bare
// numeric string.
func CleanAmount(s string) string {
	return strings.TrimSpace(amountReplacer.Replace(s))
}
