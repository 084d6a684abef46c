package extraction

import (
	"math"
	"strings"
)

// Score is the share of key fields holding a non-blank value, rounded to two
// decimals and kept within [0, 1].
func Score(fields *InvoiceFields, keyFields []Field) float64 {
	if fields == nil || len(keyFields) == 0 {
		return 0
	}
	present := 0
	for _, f := range keyFields {
		if strings.TrimSpace(fields.Get(f)) != "" {
			present++
		}
	}
	score := math.Round(float64(present)/float64(len(keyFields))*100) / 100
	return math.Max(0, math.Min(score, 1))
}
