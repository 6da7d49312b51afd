package domain

import (
	"time"

	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Deal holds the commercial terms every payment and split is derived from.
// GCI, HouseUSD and AGCI are deal-level figures over the whole fee and are
// refreshed whenever the terms change.
type Deal struct {
	DealID             uuid.UUID           `gorm:"column:deal_id;type:uuid;primaryKey" json:"deal_id"`
	Name               string              `gorm:"column:name;not null" json:"name"`
	Fee                decimal.NullDecimal `gorm:"column:fee;type:decimal(18,2)" json:"fee"`
	NumberOfPayments   *int                `gorm:"column:number_of_payments" json:"number_of_payments"`
	ReferralFeePercent decimal.Decimal     `gorm:"column:referral_fee_percent;type:decimal(9,4);not null" json:"referral_fee_percent"`
	HousePercent       decimal.Decimal     `gorm:"column:house_percent;type:decimal(9,4);not null" json:"house_percent"`
	OriginationPercent decimal.Decimal     `gorm:"column:origination_percent;type:decimal(9,4);not null" json:"origination_percent"`
	SitePercent        decimal.Decimal     `gorm:"column:site_percent;type:decimal(9,4);not null" json:"site_percent"`
	DealPercent        decimal.Decimal     `gorm:"column:deal_percent;type:decimal(9,4);not null" json:"deal_percent"`
	GCI                decimal.Decimal     `gorm:"column:gci;type:decimal(18,2);not null" json:"gci"`
	HouseUSD           decimal.Decimal     `gorm:"column:house_usd;type:decimal(18,2);not null" json:"house_usd"`
	AGCI               decimal.Decimal     `gorm:"column:agci;type:decimal(18,2);not null" json:"agci"`
	CreatedAt          time.Time           `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt          time.Time           `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Deal) TableName() string {
	return "Deals"
}

func (d *Deal) BeforeCreate(tx *gorm.DB) error {
	if d.DealID == uuid.Nil {
		d.DealID = uuid.New()
	}
	return nil
}

// Categories returns the origination / site / deal partition of the deal.
func (d *Deal) Categories() commission.Percents {
	return commission.Percents{
		Origination: d.OriginationPercent,
		Site:        d.SitePercent,
		Deal:        d.DealPercent,
	}
}

// Terms returns the inputs of the payment AGCI rule.
func (d *Deal) Terms() commission.Terms {
	return commission.Terms{
		Fee:                d.Fee,
		NumberOfPayments:   d.NumberOfPayments,
		ReferralFeePercent: d.ReferralFeePercent,
		HousePercent:       d.HousePercent,
		Categories:         d.Categories(),
	}
}

// ApplyFigures stores the deal-level GCI / house / AGCI.
func (d *Deal) ApplyFigures(f commission.DealFigures) {
	d.GCI = f.GCI
	d.HouseUSD = f.HouseUSD
	d.AGCI = f.AGCI
}
