package deals

import (
	"context"
	"errors"
	"sort"

	"crm-backend/internal/application/engine"
	"crm-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BrokerTotals is one broker's share of a deal across all payments.
type BrokerTotals struct {
	BrokerID       uuid.UUID       `json:"broker_id"`
	BrokerName     string          `json:"broker_name"`
	OriginationUSD decimal.Decimal `json:"origination_usd"`
	SiteUSD        decimal.Decimal `json:"site_usd"`
	DealUSD        decimal.Decimal `json:"deal_usd"`
	Total          decimal.Decimal `json:"total"`
	Paid           decimal.Decimal `json:"paid"`
	Unpaid         decimal.Decimal `json:"unpaid"`
}

// Summary rolls a deal's payments and splits up into totals.
type Summary struct {
	DealID         uuid.UUID       `json:"deal_id"`
	Payments       int             `json:"payments"`
	PaymentTotal   decimal.Decimal `json:"payment_total"`
	ReferralFeeUSD decimal.Decimal `json:"referral_fee_usd"`
	HouseUSD       decimal.Decimal `json:"house_usd"`
	AGCI           decimal.Decimal `json:"agci"`
	BrokerTotal    decimal.Decimal `json:"broker_total"`
	Unallocated    decimal.Decimal `json:"unallocated"`
	Brokers        []BrokerTotals  `json:"brokers"`
}

func (s *Service) Summary(ctx context.Context, dealID uuid.UUID) (*Summary, error) {
	db := s.DB.WithContext(ctx)
	var deal domain.Deal
	if err := db.Where("deal_id = ?", dealID).First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrDealNotFound
		}
		return nil, err
	}
	payments, err := engine.DealPayments(db, dealID)
	if err != nil {
		return nil, err
	}
	var splits []domain.PaymentSplit
	if err := db.Where("deal_id = ?", dealID).Find(&splits).Error; err != nil {
		return nil, err
	}
	templates, err := engine.DealTemplates(db, dealID)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		DealID:         dealID,
		Payments:       len(payments),
		PaymentTotal:   decimal.Zero,
		ReferralFeeUSD: decimal.Zero,
		HouseUSD:       decimal.Zero,
		AGCI:           decimal.Zero,
		BrokerTotal:    decimal.Zero,
		Brokers:        []BrokerTotals{},
	}
	for _, p := range payments {
		out.PaymentTotal = out.PaymentTotal.Add(p.PaymentAmount)
		out.ReferralFeeUSD = out.ReferralFeeUSD.Add(p.ReferralFeeUSD)
		out.HouseUSD = out.HouseUSD.Add(p.HouseSplitUSD)
		out.AGCI = out.AGCI.Add(p.AGCI)
	}

	names := map[uuid.UUID]string{}
	for _, t := range templates {
		names[t.BrokerID] = t.BrokerName
	}
	byBroker := map[uuid.UUID]*BrokerTotals{}
	for _, sp := range splits {
		b, ok := byBroker[sp.BrokerID]
		if !ok {
			b = &BrokerTotals{
				BrokerID:       sp.BrokerID,
				BrokerName:     names[sp.BrokerID],
				OriginationUSD: decimal.Zero,
				SiteUSD:        decimal.Zero,
				DealUSD:        decimal.Zero,
				Total:          decimal.Zero,
				Paid:           decimal.Zero,
				Unpaid:         decimal.Zero,
			}
			byBroker[sp.BrokerID] = b
		}
		b.OriginationUSD = b.OriginationUSD.Add(sp.SplitOriginationUSD)
		b.SiteUSD = b.SiteUSD.Add(sp.SplitSiteUSD)
		b.DealUSD = b.DealUSD.Add(sp.SplitDealUSD)
		b.Total = b.Total.Add(sp.SplitBrokerTotal)
		if sp.Paid {
			b.Paid = b.Paid.Add(sp.SplitBrokerTotal)
		} else {
			b.Unpaid = b.Unpaid.Add(sp.SplitBrokerTotal)
		}
		out.BrokerTotal = out.BrokerTotal.Add(sp.SplitBrokerTotal)
	}
	for _, b := range byBroker {
		out.Brokers = append(out.Brokers, *b)
	}
	sort.Slice(out.Brokers, func(i, j int) bool {
		if out.Brokers[i].BrokerName != out.Brokers[j].BrokerName {
			return out.Brokers[i].BrokerName < out.Brokers[j].BrokerName
		}
		return out.Brokers[i].BrokerID.String() < out.Brokers[j].BrokerID.String()
	})
	out.Unallocated = out.AGCI.Sub(out.BrokerTotal)
	return out, nil
}
