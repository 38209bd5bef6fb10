package spend

import (
	"fmt"
	"time"
)

// FormatMonth renders a YYYY-MM key as "January 2024" for labels and
// assistant replies. Keys that fail to parse come back unchanged.
func FormatMonth(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("January 2006")
}

// FormatUSD renders a spend amount compactly: $12, $450K, $13.7M.
func FormatUSD(amount float64) string {
	switch {
	case amount >= 1_000_000:
		return trimTrailingZero(amount/1_000_000, "M")
	case amount >= 1_000:
		return trimTrailingZero(amount/1_000, "K")
	default:
		return fmt.Sprintf("$%.0f", amount)
	}
}

func trimTrailingZero(v float64, suffix string) string {
	s := fmt.Sprintf("%.1f", v)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		s = s[:len(s)-2]
	}
	return "$" + s + suffix
}
