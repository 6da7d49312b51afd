package domain

import (
	"time"

	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentSplit is the dollar amount owed to one broker from one payment.
// The percentages are a snapshot of the owning CommissionSplit taken at the
// last sync; CommissionSplitID tags which template the snapshot came from.
type PaymentSplit struct {
	PaymentSplitID          uuid.UUID       `gorm:"column:payment_split_id;type:uuid;primaryKey" json:"payment_split_id"`
	PaymentID               uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:idx_payment_splits_payment_broker" json:"payment_id"`
	BrokerID                uuid.UUID       `gorm:"column:broker_id;type:uuid;not null;uniqueIndex:idx_payment_splits_payment_broker" json:"broker_id"`
	DealID                  uuid.UUID       `gorm:"column:deal_id;type:uuid;not null;index" json:"deal_id"`
	CommissionSplitID       uuid.UUID       `gorm:"column:commission_split_id;type:uuid;not null;index" json:"commission_split_id"`
	SplitOriginationPercent decimal.Decimal `gorm:"column:split_origination_percent;type:decimal(9,4);not null" json:"split_origination_percent"`
	SplitSitePercent        decimal.Decimal `gorm:"column:split_site_percent;type:decimal(9,4);not null" json:"split_site_percent"`
	SplitDealPercent        decimal.Decimal `gorm:"column:split_deal_percent;type:decimal(9,4);not null" json:"split_deal_percent"`
	SplitOriginationUSD     decimal.Decimal `gorm:"column:split_origination_usd;type:decimal(18,2);not null" json:"split_origination_usd"`
	SplitSiteUSD            decimal.Decimal `gorm:"column:split_site_usd;type:decimal(18,2);not null" json:"split_site_usd"`
	SplitDealUSD            decimal.Decimal `gorm:"column:split_deal_usd;type:decimal(18,2);not null" json:"split_deal_usd"`
	SplitBrokerTotal        decimal.Decimal `gorm:"column:split_broker_total;type:decimal(18,2);not null" json:"split_broker_total"`
	Paid                    bool            `gorm:"column:paid;not null" json:"paid"`
	PaidAt                  *time.Time      `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt               time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt               time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (PaymentSplit) TableName() string {
	return "PaymentSplits"
}

func (s *PaymentSplit) BeforeCreate(tx *gorm.DB) error {
	if s.PaymentSplitID == uuid.Nil {
		s.PaymentSplitID = uuid.New()
	}
	return nil
}

func (s *PaymentSplit) Percents() commission.Percents {
	return commission.Percents{
		Origination: s.SplitOriginationPercent,
		Site:        s.SplitSitePercent,
		Deal:        s.SplitDealPercent,
	}
}

// SnapshotFrom copies the template's percentages onto the split.
func (s *PaymentSplit) SnapshotFrom(t *CommissionSplit) {
	s.CommissionSplitID = t.CommissionSplitID
	s.BrokerID = t.BrokerID
	s.SplitOriginationPercent = t.SplitOriginationPercent
	s.SplitSitePercent = t.SplitSitePercent
	s.SplitDealPercent = t.SplitDealPercent
}

func (s *PaymentSplit) ApplyAmounts(a commission.SplitAmounts) {
	s.SplitOriginationUSD = a.Origination
	s.SplitSiteUSD = a.Site
	s.SplitDealUSD = a.Deal
	s.SplitBrokerTotal = a.Total
}

func (s *PaymentSplit) Amounts() commission.SplitAmounts {
	return commission.SplitAmounts{
		Origination: s.SplitOriginationUSD,
		Site:        s.SplitSiteUSD,
		Deal:        s.SplitDealUSD,
		Total:       s.SplitBrokerTotal,
	}
}
