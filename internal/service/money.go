package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spacebook/reservation-core/internal/model"
)

// parseAmount parses a decimal money amount such as "125", "125.5" or
// "125.00".
func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}

// sumPrices adds up TotalPrice over rs.  Prices that do not parse count
// as zero and are reported through bad so the caller can log them.
func sumPrices(rs []*model.Reservation, bad func(r *model.Reservation, err error)) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rs {
		p, err := parseAmount(r.TotalPrice)
		if err != nil {
			if bad != nil {
				bad(r, err)
			}
			continue
		}
		total = total.Add(p)
	}
	return total
}

// formatAmount renders an amount with two decimals.
func formatAmount(d decimal.Decimal) string { return d.StringFixed(2) }
