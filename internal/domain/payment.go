package domain

import (
	"time"

	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment sources.
const (
	PaymentSourceGenerated = "generated"
	PaymentSourceManual    = "manual"
	PaymentSourceImported  = "imported"
)

// Payment is one installment of a deal's fee. PaymentSequence is 1..N and
// contiguous per deal. When AmountOverride is set, PaymentAmount was entered
// by a person and is never re-derived from fee / number_of_payments.
type Payment struct {
	PaymentID                  uuid.UUID           `gorm:"column:payment_id;type:uuid;primaryKey" json:"payment_id"`
	DealID                     uuid.UUID           `gorm:"column:deal_id;type:uuid;not null;uniqueIndex:idx_payments_deal_sequence" json:"deal_id"`
	PaymentSequence            int                 `gorm:"column:payment_sequence;not null;uniqueIndex:idx_payments_deal_sequence" json:"payment_sequence"`
	PaymentAmount              decimal.Decimal     `gorm:"column:payment_amount;type:decimal(18,2);not null" json:"payment_amount"`
	AmountOverride             bool                `gorm:"column:amount_override;not null" json:"amount_override"`
	ReferralFeePercentOverride decimal.NullDecimal `gorm:"column:referral_fee_percent_override;type:decimal(9,4)" json:"referral_fee_percent_override"`
	PaymentGCI                 decimal.Decimal     `gorm:"column:payment_gci;type:decimal(18,2);not null" json:"payment_gci"`
	HouseSplitUSD              decimal.Decimal     `gorm:"column:house_split_usd;type:decimal(18,2);not null" json:"house_split_usd"`
	AGCI                       decimal.Decimal     `gorm:"column:agci;type:decimal(18,2);not null" json:"agci"`
	ReferralFeeUSD             decimal.Decimal     `gorm:"column:referral_fee_usd;type:decimal(18,2);not null" json:"referral_fee_usd"`
	Source                     string              `gorm:"column:source;type:varchar(20);not null" json:"source"`
	CreatedAt                  time.Time           `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt                  time.Time           `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Payment) TableName() string {
	return "Payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.PaymentID == uuid.Nil {
		p.PaymentID = uuid.New()
	}
	if p.Source == "" {
		p.Source = PaymentSourceManual
	}
	return nil
}

// AGCIInput pairs the payment with its deal's terms.
func (p *Payment) AGCIInput(deal *Deal) commission.AGCIInput {
	return commission.AGCIInput{
		Terms:                      deal.Terms(),
		PaymentSequence:            p.PaymentSequence,
		PaymentAmount:              p.PaymentAmount,
		AmountOverride:             p.AmountOverride,
		ReferralFeePercentOverride: p.ReferralFeePercentOverride,
	}
}

// ApplyAGCI writes the derived figures back onto the payment.
func (p *Payment) ApplyAGCI(r commission.AGCIResult) {
	p.PaymentAmount = r.PaymentAmount
	p.ReferralFeeUSD = r.ReferralFeeUSD
	p.PaymentGCI = r.PaymentGCI
	p.HouseSplitUSD = r.HouseSplit
	p.AGCI = r.AGCI
}
