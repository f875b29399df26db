package export

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount in Brazilian reais, e.g. "R$ 1.234,56" or "-R$ 10,00".
func FormatCurrency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	return sign + "R$ " + b.String() + "," + frac
}

// FormatOptionalCurrency renders nil as "R$ 0,00".
func FormatOptionalCurrency(amount *decimal.Decimal) string {
	if amount == nil {
		return FormatCurrency(decimal.Zero)
	}
	return FormatCurrency(*amount)
}
