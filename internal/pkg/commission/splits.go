package commission

import (
	"sort"

	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -2)

// CategoryTotals is the dollar amount of one payment's AGCI that falls into
// each business category.
type CategoryTotals struct {
	Origination decimal.Decimal `json:"origination"`
	Site        decimal.Decimal `json:"site"`
	Deal        decimal.Decimal `json:"deal"`
}

// Sum adds the three categories.
func (c CategoryTotals) Sum() decimal.Decimal {
	return c.Origination.Add(c.Site).Add(c.Deal)
}

// ComputeCategoryTotals partitions agci by the deal's category percentages
// in whole cents. When the categories add up to 100 the totals add up to
// agci exactly.
func ComputeCategoryTotals(agci decimal.Decimal, categories Percents) CategoryTotals {
	c, _ := categories.Normalize()
	cents := allocateCents([]decimal.Decimal{
		agci.Mul(pct(c.Origination)),
		agci.Mul(pct(c.Site)),
		agci.Mul(pct(c.Deal)),
	}, nil)
	return CategoryTotals{Origination: cents[0], Site: cents[1], Deal: cents[2]}
}

// SplitAmounts is one broker's dollar share of one payment.
type SplitAmounts struct {
	Origination decimal.Decimal `json:"split_origination_usd"`
	Site        decimal.Decimal `json:"split_site_usd"`
	Deal        decimal.Decimal `json:"split_deal_usd"`
	Total       decimal.Decimal `json:"split_broker_total"`
}

// Equal reports whether all four amounts match.
func (s SplitAmounts) Equal(o SplitAmounts) bool {
	return s.Origination.Equal(o.Origination) && s.Site.Equal(o.Site) &&
		s.Deal.Equal(o.Deal) && s.Total.Equal(o.Total)
}

// Share is one broker's percentages on a payment. Key breaks ties between
// brokers with equal fractional cents and must be stable across calls;
// callers use the broker id.
type Share struct {
	Key      string
	Percents Percents
}

// AllocateSplits hands every category total out to the brokers of one
// payment in whole cents. Within a category each broker first gets its
// exact share floored to the cent; the cents still owed (the rounded sum of
// the exact shares minus the floors) go one each to the largest fractional
// remainders. Brokers covering 100% of a category therefore receive that
// category total exactly, and no broker is ever more than one cent from its
// exact share. The result is in the order of shares.
func AllocateSplits(totals CategoryTotals, shares []Share) []SplitAmounts {
	keys := make([]string, len(shares))
	o := make([]decimal.Decimal, len(shares))
	s := make([]decimal.Decimal, len(shares))
	dl := make([]decimal.Decimal, len(shares))
	for i, sh := range shares {
		p, _ := sh.Percents.Normalize()
		keys[i] = sh.Key
		o[i] = totals.Origination.Mul(pct(p.Origination))
		s[i] = totals.Site.Mul(pct(p.Site))
		dl[i] = totals.Deal.Mul(pct(p.Deal))
	}
	o, s, dl = allocateCents(o, keys), allocateCents(s, keys), allocateCents(dl, keys)

	out := make([]SplitAmounts, len(shares))
	for i := range out {
		out[i] = SplitAmounts{
			Origination: o[i],
			Site:        s[i],
			Deal:        dl[i],
			Total:       o[i].Add(s[i]).Add(dl[i]),
		}
	}
	return out
}

// allocateCents rounds exact amounts to cents so that they add up to the
// rounded sum of the exact amounts (largest remainder). Ties go to the
// smaller key, then to the earlier index.
func allocateCents(exact []decimal.Decimal, keys []string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(exact))
	rem := make([]decimal.Decimal, len(exact))
	sum, floored := zero, zero
	for i, e := range exact {
		out[i] = e.RoundFloor(2)
		rem[i] = e.Sub(out[i])
		sum = sum.Add(e)
		floored = floored.Add(out[i])
	}
	owed := RoundUSD(sum).Sub(floored).Shift(2).IntPart()
	if owed <= 0 {
		return out
	}

	order := make([]int, len(exact))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rem[order[a]], rem[order[b]]
		if !ra.Equal(rb) {
			return ra.GreaterThan(rb)
		}
		if keys != nil {
			return keys[order[a]] < keys[order[b]]
		}
		return false
	})
	for _, i := range order {
		if owed == 0 {
			break
		}
		out[i] = out[i].Add(cent)
		owed--
	}
	return out
}

// FullyAllocated reports whether the broker percentages sum to exactly 100
// in every category, the condition under which split totals must add up to
// the payment's AGCI.
func FullyAllocated(brokers []Percents) bool {
	if len(brokers) == 0 {
		return false
	}
	var o, s, d decimal.Decimal
	for _, p := range brokers {
		n, _ := p.Normalize()
		o = o.Add(n.Origination)
		s = s.Add(n.Site)
		d = d.Add(n.Deal)
	}
	return o.Equal(hundred) && s.Equal(hundred) && d.Equal(hundred)
}
