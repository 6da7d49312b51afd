// Package splitcheck recomputes every payment and broker split of a deal
// from the deal's stored terms and AGCI and reports where the stored rows
// disagree by more than a cent.
package splitcheck

import (
	"context"
	"errors"

	"crm-backend/internal/application/engine"
	"crm-backend/internal/domain"
	"crm-backend/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tolerance is the largest stored-vs-expected difference still accepted.
var Tolerance = decimal.New(1, -2)

type Mismatch struct {
	DealID          uuid.UUID       `json:"deal_id"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	PaymentSequence int             `json:"payment_sequence"`
	BrokerID        *uuid.UUID      `json:"broker_id,omitempty"`
	Field           string          `json:"field"`
	Expected        decimal.Decimal `json:"expected"`
	Actual          decimal.Decimal `json:"actual"`
	Difference      decimal.Decimal `json:"difference"`
}

// MissingSplit is a broker on the deal with no row on a payment.
type MissingSplit struct {
	DealID          uuid.UUID `json:"deal_id"`
	PaymentID       uuid.UUID `json:"payment_id"`
	PaymentSequence int       `json:"payment_sequence"`
	BrokerID        uuid.UUID `json:"broker_id"`
}

// OrphanSplit is a row whose broker is no longer on the deal.
type OrphanSplit struct {
	DealID         uuid.UUID `json:"deal_id"`
	PaymentID      uuid.UUID `json:"payment_id"`
	PaymentSplitID uuid.UUID `json:"payment_split_id"`
	BrokerID       uuid.UUID `json:"broker_id"`
}

// ConservationGap is a fully allocated payment whose broker totals do not
// add up to its AGCI.
type ConservationGap struct {
	DealID          uuid.UUID       `json:"deal_id"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	PaymentSequence int             `json:"payment_sequence"`
	AGCI            decimal.Decimal `json:"agci"`
	BrokerTotal     decimal.Decimal `json:"broker_total"`
	Difference      decimal.Decimal `json:"difference"`
}

// Skipped is a deal that cannot be recomputed, usually a configuration error.
type Skipped struct {
	DealID uuid.UUID `json:"deal_id"`
	Reason string    `json:"reason"`
}

type Report struct {
	DealsChecked    int               `json:"deals_checked"`
	PaymentsChecked int               `json:"payments_checked"`
	SplitsChecked   int               `json:"splits_checked"`
	Mismatches      []Mismatch        `json:"mismatches"`
	Missing         []MissingSplit    `json:"missing"`
	Orphans         []OrphanSplit     `json:"orphans"`
	Conservation    []ConservationGap `json:"conservation"`
	Skipped         []Skipped         `json:"skipped"`
}

func newReport() *Report {
	return &Report{
		Mismatches:   []Mismatch{},
		Missing:      []MissingSplit{},
		Orphans:      []OrphanSplit{},
		Conservation: []ConservationGap{},
		Skipped:      []Skipped{},
	}
}

// OK reports whether nothing was found.
func (r *Report) OK() bool {
	return len(r.Mismatches) == 0 && len(r.Missing) == 0 && len(r.Orphans) == 0 &&
		len(r.Conservation) == 0 && len(r.Skipped) == 0
}

// Problems counts every finding in the report.
func (r *Report) Problems() int {
	return len(r.Mismatches) + len(r.Missing) + len(r.Orphans) + len(r.Conservation) + len(r.Skipped)
}

type Service struct {
	DB *gorm.DB
}

// CheckDeal validates one deal.
func (s *Service) CheckDeal(ctx context.Context, dealID uuid.UUID) (*Report, error) {
	db := s.DB.WithContext(ctx)
	var deal domain.Deal
	if err := db.Where("deal_id = ?", dealID).First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrDealNotFound
		}
		return nil, err
	}
	r := newReport()
	if err := checkDeal(db, &deal, r); err != nil {
		return nil, err
	}
	finish(r)
	return r, nil
}

// CheckAll validates every deal.
func (s *Service) CheckAll(ctx context.Context) (*Report, error) {
	db := s.DB.WithContext(ctx)
	var deals []domain.Deal
	if err := db.Order(`"createdAt" ASC`).Find(&deals).Error; err != nil {
		return nil, err
	}
	r := newReport()
	for i := range deals {
		if err := checkDeal(db, &deals[i], r); err != nil {
			return nil, err
		}
	}
	finish(r)
	return r, nil
}

func finish(r *Report) {
	observability.RecordValidationMismatches(len(r.Mismatches))
	ev := log.Info()
	if !r.OK() {
		ev = log.Warn()
	}
	ev.Int("deals", r.DealsChecked).Int("payments", r.PaymentsChecked).Int("splits", r.SplitsChecked).
		Int("mismatches", len(r.Mismatches)).Int("missing", len(r.Missing)).Int("orphans", len(r.Orphans)).
		Int("conservation", len(r.Conservation)).Int("skipped", len(r.Skipped)).
		Msg("Payment split validation finished")
}

func checkDeal(db *gorm.DB, deal *domain.Deal, r *Report) error {
	r.DealsChecked++
	payments, err := engine.DealPayments(db, deal.DealID)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		return nil
	}
	templates, err := engine.DealTemplates(db, deal.DealID)
	if err != nil {
		return err
	}
	var splits []domain.PaymentSplit
	if err := db.Where("deal_id = ?", deal.DealID).Find(&splits).Error; err != nil {
		return err
	}

	byBroker := make(map[uuid.UUID]*domain.CommissionSplit, len(templates))
	for i := range templates {
		byBroker[templates[i].BrokerID] = &templates[i]
	}
	fullyAllocated := conserves(deal, templates)
	byPayment := map[uuid.UUID][]domain.PaymentSplit{}
	for _, sp := range splits {
		byPayment[sp.PaymentID] = append(byPayment[sp.PaymentID], sp)
	}

	for i := range payments {
		p := &payments[i]
		r.PaymentsChecked++
		expected, err := expectPayment(deal, p)
		if err != nil {
			r.Skipped = append(r.Skipped, Skipped{DealID: deal.DealID, Reason: err.Error()})
			return nil
		}
		m := mismatchAt(deal.DealID, p, nil)
		m("payment_amount", expected.Amount, p.PaymentAmount, r)
		m("referral_fee_usd", expected.Referral, p.ReferralFeeUSD, r)
		m("payment_gci", expected.GCI, p.PaymentGCI, r)
		m("house_split_usd", expected.House, p.HouseSplitUSD, r)
		agciOK := m("agci", expected.AGCI, p.AGCI, r)

		// Splits follow the stored AGCI once it agrees with the deal, so a
		// payment-level cent of rounding is not counted again per broker.
		base := expected.AGCI
		if agciOK {
			base = p.AGCI
		}
		seen := map[uuid.UUID]bool{}
		brokerTotal := decimal.Zero
		for _, sp := range byPayment[p.PaymentID] {
			r.SplitsChecked++
			brokerTotal = brokerTotal.Add(sp.SplitBrokerTotal)
			t, ok := byBroker[sp.BrokerID]
			if !ok {
				r.Orphans = append(r.Orphans, OrphanSplit{
					DealID: deal.DealID, PaymentID: p.PaymentID, PaymentSplitID: sp.PaymentSplitID, BrokerID: sp.BrokerID,
				})
				continue
			}
			seen[sp.BrokerID] = true
			brokerID := sp.BrokerID
			want := expectSplit(deal, base, t)
			m := mismatchAt(deal.DealID, p, &brokerID)
			m("split_origination_usd", want.Origination, sp.SplitOriginationUSD, r)
			m("split_site_usd", want.Site, sp.SplitSiteUSD, r)
			m("split_deal_usd", want.Deal, sp.SplitDealUSD, r)
			m("split_broker_total", sp.SplitOriginationUSD.Add(sp.SplitSiteUSD).Add(sp.SplitDealUSD), sp.SplitBrokerTotal, r)
			m("split_origination_percent", rate(t.SplitOriginationPercent).Mul(hundred), rate(sp.SplitOriginationPercent).Mul(hundred), r)
			m("split_site_percent", rate(t.SplitSitePercent).Mul(hundred), rate(sp.SplitSitePercent).Mul(hundred), r)
			m("split_deal_percent", rate(t.SplitDealPercent).Mul(hundred), rate(sp.SplitDealPercent).Mul(hundred), r)
		}
		for _, t := range templates {
			if !seen[t.BrokerID] {
				r.Missing = append(r.Missing, MissingSplit{
					DealID: deal.DealID, PaymentID: p.PaymentID, PaymentSequence: p.PaymentSequence, BrokerID: t.BrokerID,
				})
			}
		}
		if fullyAllocated && len(seen) == len(templates) {
			diff := brokerTotal.Sub(p.AGCI)
			if diff.Abs().GreaterThan(Tolerance) {
				r.Conservation = append(r.Conservation, ConservationGap{
					DealID: deal.DealID, PaymentID: p.PaymentID, PaymentSequence: p.PaymentSequence,
					AGCI: p.AGCI, BrokerTotal: brokerTotal, Difference: diff,
				})
			}
		}
	}
	return nil
}

// mismatchAt returns a comparer that records a Mismatch when actual is more
// than Tolerance away from expected and reports whether the two agreed.
func mismatchAt(dealID uuid.UUID, p *domain.Payment, brokerID *uuid.UUID) func(field string, expected, actual decimal.Decimal, r *Report) bool {
	return func(field string, expected, actual decimal.Decimal, r *Report) bool {
		diff := actual.Sub(expected)
		if diff.Abs().LessThanOrEqual(Tolerance) {
			return true
		}
		r.Mismatches = append(r.Mismatches, Mismatch{
			DealID:          dealID,
			PaymentID:       p.PaymentID,
			PaymentSequence: p.PaymentSequence,
			BrokerID:        brokerID,
			Field:           field,
			Expected:        expected,
			Actual:          actual,
			Difference:      diff,
		})
		return false
	}
}
