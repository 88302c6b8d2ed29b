package scene

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ComputeDiscount derives the percentage-off label from two free-form
// currency strings such as "R$ 1.899,90". Anything it cannot make sense of
// yields "0% OFF"; it never fails.
func ComputeDiscount(originalPrice, currentPrice string) string {
	original, ok := parsePrice(originalPrice)
	if !ok {
		return formatDiscount(0)
	}
	current, ok := parsePrice(currentPrice)
	if !ok || original <= current {
		return formatDiscount(0)
	}
	return formatDiscount(int(math.Round((original - current) / original * 100)))
}

func formatDiscount(percent int) string {
	return fmt.Sprintf("%d%% OFF", percent)
}

// parsePrice keeps digits and the decimal comma, turns the first comma into
// a period and parses the longest numeric prefix. Thousands separators
// (periods) are dropped along with currency symbols and spaces.
func parsePrice(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == ',' {
			b.WriteRune(r)
		}
	}
	normalized := strings.Replace(b.String(), ",", ".", 1)
	if i := strings.IndexByte(normalized, ','); i >= 0 {
		normalized = normalized[:i]
	}
	if normalized == "" || normalized == "." {
		return 0, false
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
