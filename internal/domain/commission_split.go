package domain

import (
	"time"

	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionSplit is a broker's standing share of a deal's three commission
// categories. It is the source of truth for the percentages copied onto
// every PaymentSplit of that broker.
type CommissionSplit struct {
	CommissionSplitID       uuid.UUID       `gorm:"column:commission_split_id;type:uuid;primaryKey" json:"commission_split_id"`
	DealID                  uuid.UUID       `gorm:"column:deal_id;type:uuid;not null;uniqueIndex:idx_commission_splits_deal_broker" json:"deal_id"`
	BrokerID                uuid.UUID       `gorm:"column:broker_id;type:uuid;not null;uniqueIndex:idx_commission_splits_deal_broker" json:"broker_id"`
	BrokerName              string          `gorm:"column:broker_name" json:"broker_name"`
	SplitOriginationPercent decimal.Decimal `gorm:"column:split_origination_percent;type:decimal(9,4);not null" json:"split_origination_percent"`
	SplitSitePercent        decimal.Decimal `gorm:"column:split_site_percent;type:decimal(9,4);not null" json:"split_site_percent"`
	SplitDealPercent        decimal.Decimal `gorm:"column:split_deal_percent;type:decimal(9,4);not null" json:"split_deal_percent"`
	CreatedAt               time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt               time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (CommissionSplit) TableName() string {
	return "CommissionSplits"
}

func (c *CommissionSplit) BeforeCreate(tx *gorm.DB) error {
	if c.CommissionSplitID == uuid.Nil {
		c.CommissionSplitID = uuid.New()
	}
	return nil
}

func (c *CommissionSplit) Percents() commission.Percents {
	return commission.Percents{
		Origination: c.SplitOriginationPercent,
		Site:        c.SplitSitePercent,
		Deal:        c.SplitDealPercent,
	}
}

func (c *CommissionSplit) SetPercents(p commission.Percents) {
	c.SplitOriginationPercent = p.Origination
	c.SplitSitePercent = p.Site
	c.SplitDealPercent = p.Deal
}
