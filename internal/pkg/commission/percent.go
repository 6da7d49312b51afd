package commission

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// NormalizePercent brings a percentage onto the 0–100 scale. Some upstream
// records carry basis-point style values (0–10000); those are divided by 100
// and reported back so the caller can log the inconsistency.
func NormalizePercent(p decimal.Decimal) (decimal.Decimal, bool) {
	if p.GreaterThan(hundred) {
		return p.Div(hundred), true
	}
	return p, false
}

// Percents is a set of origination / site / deal percentages.
type Percents struct {
	Origination decimal.Decimal `json:"origination"`
	Site        decimal.Decimal `json:"site"`
	Deal        decimal.Decimal `json:"deal"`
}

// Normalize applies NormalizePercent to each category and returns the names
// of the categories that had to be rescaled.
func (p Percents) Normalize() (Percents, []string) {
	var fixed []string
	out := p
	var ok bool
	if out.Origination, ok = NormalizePercent(p.Origination); ok {
		fixed = append(fixed, "origination")
	}
	if out.Site, ok = NormalizePercent(p.Site); ok {
		fixed = append(fixed, "site")
	}
	if out.Deal, ok = NormalizePercent(p.Deal); ok {
		fixed = append(fixed, "deal")
	}
	return out, fixed
}

// Equal reports whether all three categories match.
func (p Percents) Equal(o Percents) bool {
	return p.Origination.Equal(o.Origination) && p.Site.Equal(o.Site) && p.Deal.Equal(o.Deal)
}

func pct(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

// InconsistentStateWarning describes a stored percentage outside 0–100 that
// was rescaled instead of rejected.
type InconsistentStateWarning struct {
	Field      string
	Value      decimal.Decimal
	Normalized decimal.Decimal
}

func (w InconsistentStateWarning) String() string {
	return w.Field + " " + w.Value.String() + " normalized to " + w.Normalized.String()
}

// CheckPercent returns a warning when p would be rescaled by NormalizePercent.
func CheckPercent(field string, p decimal.Decimal) (InconsistentStateWarning, bool) {
	n, fixed := NormalizePercent(p)
	if !fixed {
		return InconsistentStateWarning{}, false
	}
	return InconsistentStateWarning{Field: field, Value: p, Normalized: n}, true
}
