package validation

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Names: letters, digits, spaces and the punctuation found in company and
// person names.
var nameRe = regexp.MustCompile(`^[\p{L}\p{N}\s\-'.,&()]+$`)

const maxNameLength = 200

// maxPercent is the largest raw percentage accepted. Values in (100, 10000]
// are basis-point style and normalized downstream.
var maxPercent = decimal.NewFromInt(10000)

func IsValidName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && len(name) <= maxNameLength && nameRe.MatchString(name)
}

// PercentRangeMessage is the client-facing rule checked by IsValidPercent.
const PercentRangeMessage = "must be a percentage between 0 and 10000 (values above 100 are read as basis points)"

// IsValidPercent accepts 0..10000.
func IsValidPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(maxPercent)
}

// IsValidAmount accepts non-negative dollar amounts with at most two decimals.
func IsValidAmount(a decimal.Decimal) bool {
	return !a.IsNegative() && a.Equal(a.Round(2))
}

// IsValidPaymentCount accepts 0..600 installments. Zero is stored so that
// imported deals can be corrected later; payment rules reject it.
func IsValidPaymentCount(n int) bool {
	return n >= 0 && n <= 600
}
