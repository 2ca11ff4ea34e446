// Package utils provides IST time helpers, formatting, and retry support
// shared across packages.
package utils

import (
	"fmt"
	"strings"
)

// FormatIndianCurrency renders a rupee amount with Indian digit grouping:
// the last three digits, then groups of two (12,34,567.89).
func FormatIndianCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	whole, frac, _ := strings.Cut(fmt.Sprintf("%.2f", amount), ".")
	return sign + "₹" + groupIndian(whole) + "." + frac
}

// FormatPnL renders a profit or loss amount with an explicit sign on gains.
func FormatPnL(pnl float64) string {
	if pnl > 0 {
		return "+" + FormatIndianCurrency(pnl)
	}
	return FormatIndianCurrency(pnl)
}

// FormatQuantity renders a share count with Indian digit grouping.
func FormatQuantity(qty int64) string {
	if qty < 0 {
		return "-" + groupIndian(fmt.Sprintf("%d", -qty))
	}
	return groupIndian(fmt.Sprintf("%d", qty))
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	groups := []string{digits[len(digits)-3:]}
	rest := digits[:len(digits)-3]
	for len(rest) > 2 {
		groups = append(groups, rest[len(rest)-2:])
		rest = rest[:len(rest)-2]
	}
	if rest != "" {
		groups = append(groups, rest)
	}

	var b strings.Builder
	for i := len(groups) - 1; i >= 0; i-- {
		b.WriteString(groups[i])
		if i > 0 {
			b.WriteByte(',')
		}
	}
	return b.String()
}
