// Package commission holds the pure derivation rules of the commission
// engine: payment AGCI, category totals and per-broker split amounts.
// Nothing here touches storage; the engine package runs these inside a
// transaction in dependency order.
package commission

import "github.com/shopspring/decimal"

// Terms are the commercial terms of a deal that drive every derived figure.
type Terms struct {
	Fee                decimal.NullDecimal
	NumberOfPayments   *int
	ReferralFeePercent decimal.Decimal
	HousePercent       decimal.Decimal
	Categories         Percents
}

// CalculatedAmount is the unrounded default amount of one installment,
// fee / N.
func CalculatedAmount(fee decimal.NullDecimal, numberOfPayments *int) (decimal.Decimal, error) {
	if numberOfPayments == nil || *numberOfPayments <= 0 {
		return zero, errNoPaymentCount
	}
	if !fee.Valid {
		return zero, errNoFee
	}
	return fee.Decimal.Div(decimal.NewFromInt(int64(*numberOfPayments))), nil
}

// InstallmentAmount is the default amount of installment seq: fee / N
// floored to cents, with the leftover cents handed out one each to the last
// sequences so installments 1..N add up to the fee. A sequence past N (a
// payment added after the bootstrap) gets the floored amount.
func InstallmentAmount(fee decimal.NullDecimal, numberOfPayments *int, seq int) (decimal.Decimal, error) {
	if _, err := CalculatedAmount(fee, numberOfPayments); err != nil {
		return zero, err
	}
	n := int64(*numberOfPayments)
	cents := RoundUSD(fee.Decimal).Shift(2).IntPart()
	base := cents / n
	rest := cents - base*n
	if rest < 0 {
		base--
		rest += n
	}
	s := int64(seq)
	if s > n-rest && s <= n {
		base++
	}
	return decimal.New(base, -2), nil
}

// AGCIInput is one payment evaluated against its deal's terms.
type AGCIInput struct {
	Terms                      Terms
	PaymentSequence            int
	PaymentAmount              decimal.Decimal
	AmountOverride             bool
	ReferralFeePercentOverride decimal.NullDecimal
}

// AGCIResult holds the payment figures written back by the AGCI rule.
type AGCIResult struct {
	PaymentAmount  decimal.Decimal `json:"payment_amount"`
	ReferralFeeUSD decimal.Decimal `json:"referral_fee_usd"`
	PaymentGCI     decimal.Decimal `json:"payment_gci"`
	HouseSplit     decimal.Decimal `json:"house_split"`
	AGCI           decimal.Decimal `json:"agci"`
}

// ComputeAGCI derives a payment's amount, referral fee, GCI, house split and
// AGCI. A manually overridden amount is kept as-is; otherwise the amount is
// re-derived from fee / N by InstallmentAmount. AGCI is always recomputed directly from the actual
// amount, never scaled from a previous baseline.
func ComputeAGCI(in AGCIInput) (AGCIResult, error) {
	n := in.Terms.NumberOfPayments
	if n == nil || *n <= 0 {
		return AGCIResult{}, errNoPaymentCount
	}

	amount := in.PaymentAmount
	if !in.AmountOverride {
		calculated, err := InstallmentAmount(in.Terms.Fee, n, in.PaymentSequence)
		if err != nil {
			return AGCIResult{}, err
		}
		amount = calculated
	}
	amount = RoundUSD(amount)

	referralPercent := in.Terms.ReferralFeePercent
	if in.ReferralFeePercentOverride.Valid {
		referralPercent = in.ReferralFeePercentOverride.Decimal
	}
	referralPercent, _ = NormalizePercent(referralPercent)
	housePercent, _ := NormalizePercent(in.Terms.HousePercent)

	referral := amount.Mul(pct(referralPercent))
	gci := amount.Sub(referral)
	house := pct(housePercent).Mul(gci)
	agci := gci.Sub(house)

	return AGCIResult{
		PaymentAmount:  amount,
		ReferralFeeUSD: RoundUSD(referral),
		PaymentGCI:     RoundUSD(gci),
		HouseSplit:     RoundUSD(house),
		AGCI:           RoundUSD(agci),
	}, nil
}

// DealFigures are the deal-level counterparts of the payment figures,
// computed over the whole fee.
type DealFigures struct {
	GCI      decimal.Decimal `json:"gci"`
	HouseUSD decimal.Decimal `json:"house_usd"`
	AGCI     decimal.Decimal `json:"agci"`
}

// ComputeDealFigures returns zero figures for a deal without a fee.
func ComputeDealFigures(t Terms) DealFigures {
	if !t.Fee.Valid {
		return DealFigures{GCI: zero, HouseUSD: zero, AGCI: zero}
	}
	referralPercent, _ := NormalizePercent(t.ReferralFeePercent)
	housePercent, _ := NormalizePercent(t.HousePercent)
	gci := t.Fee.Decimal.Sub(t.Fee.Decimal.Mul(pct(referralPercent)))
	house := pct(housePercent).Mul(gci)
	return DealFigures{
		GCI:      RoundUSD(gci),
		HouseUSD: RoundUSD(house),
		AGCI:     RoundUSD(gci.Sub(house)),
	}
}

// RoundUSD rounds half away from zero to whole cents.
func RoundUSD(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
