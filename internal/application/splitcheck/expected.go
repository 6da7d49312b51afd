package splitcheck

import (
	"fmt"

	"crm-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// The figures below are worked out again from the stored deal, on purpose
// without the commission package, so a defect in the engine's arithmetic
// shows up as a mismatch instead of being reproduced.

var hundred = decimal.NewFromInt(100)

// rate turns a stored percentage into a fraction. Values above 100 are
// basis-point style records and are read as value / 100 percent.
func rate(p decimal.Decimal) decimal.Decimal {
	if p.GreaterThan(hundred) {
		p = p.Div(hundred)
	}
	return p.Div(hundred)
}

func usd(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

type expectedPayment struct {
	Amount   decimal.Decimal
	Referral decimal.Decimal
	GCI      decimal.Decimal
	House    decimal.Decimal
	AGCI     decimal.Decimal
}

// expectPayment derives what a payment should hold. A payment on the
// default amount gets deal.agci / N as its AGCI. An overridden amount or
// referral percentage makes the deal-level AGCI meaningless for that
// payment, so it is recomputed from the amount instead.
func expectPayment(deal *domain.Deal, p *domain.Payment) (expectedPayment, error) {
	if deal.NumberOfPayments == nil || *deal.NumberOfPayments <= 0 {
		return expectedPayment{}, fmt.Errorf("number_of_payments: deal has no payment count configured")
	}
	n := decimal.NewFromInt(int64(*deal.NumberOfPayments))

	referral := rate(deal.ReferralFeePercent)
	if p.ReferralFeePercentOverride.Valid {
		referral = rate(p.ReferralFeePercentOverride.Decimal)
	}
	house := rate(deal.HousePercent)

	amount := p.PaymentAmount
	if !p.AmountOverride {
		if !deal.Fee.Valid {
			return expectedPayment{}, fmt.Errorf("fee: deal has no fee configured")
		}
		amount = deal.Fee.Decimal.Div(n)
	}
	gci := amount.Mul(decimal.NewFromInt(1).Sub(referral))
	out := expectedPayment{
		Amount:   usd(amount),
		Referral: usd(amount.Mul(referral)),
		GCI:      usd(gci),
		House:    usd(gci.Mul(house)),
		AGCI:     usd(gci.Sub(gci.Mul(house))),
	}
	if !p.AmountOverride && !p.ReferralFeePercentOverride.Valid {
		out.AGCI = usd(deal.AGCI.Div(n))
	}
	return out, nil
}

type expectedSplit struct {
	Origination decimal.Decimal
	Site        decimal.Decimal
	Deal        decimal.Decimal
}

// expectSplit is a broker's exact share of each category of agci, rounded
// to cents per category.
func expectSplit(deal *domain.Deal, agci decimal.Decimal, t *domain.CommissionSplit) expectedSplit {
	return expectedSplit{
		Origination: usd(agci.Mul(rate(deal.OriginationPercent)).Mul(rate(t.SplitOriginationPercent))),
		Site:        usd(agci.Mul(rate(deal.SitePercent)).Mul(rate(t.SplitSitePercent))),
		Deal:        usd(agci.Mul(rate(deal.DealPercent)).Mul(rate(t.SplitDealPercent))),
	}
}

// conserves reports whether the deal's categories and its brokers each
// cover exactly 100%, the case where broker totals must add up to AGCI.
func conserves(deal *domain.Deal, templates []domain.CommissionSplit) bool {
	if len(templates) == 0 {
		return false
	}
	one := decimal.NewFromInt(1)
	if !rate(deal.OriginationPercent).Add(rate(deal.SitePercent)).Add(rate(deal.DealPercent)).Equal(one) {
		return false
	}
	var o, s, d decimal.Decimal
	for i := range templates {
		o = o.Add(rate(templates[i].SplitOriginationPercent))
		s = s.Add(rate(templates[i].SplitSitePercent))
		d = d.Add(rate(templates[i].SplitDealPercent))
	}
	return o.Equal(one) && s.Equal(one) && d.Equal(one)
}
