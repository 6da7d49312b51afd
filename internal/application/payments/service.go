package payments

import (
	"context"
	"errors"
	"time"

	"crm-backend/internal/application/engine"
	"crm-backend/internal/domain"
	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNegativeAmount       = errors.New("Payment amount cannot be negative")
	ErrPaymentSplitNotFound = errors.New("Payment split not found")
)

type Service struct {
	DB *gorm.DB
}

// Generate replaces the deal's payments with N installments of fee / N and
// seeds one split per broker on each. Running it again starts over.
func (s *Service) Generate(ctx context.Context, dealID uuid.UUID) (*engine.GenerateResult, error) {
	var out *engine.GenerateResult
	err := engine.Run(ctx, s.DB, "payments_generated", func(tx *gorm.DB) error {
		deal, err := engine.LockDeal(tx, dealID)
		if err != nil {
			return err
		}
		out, err = engine.GeneratePayments(tx, deal)
		if err != nil {
			return err
		}
		return engine.RecordEvent(tx, dealID, nil, domain.DealEventPaymentsGenerated, map[string]interface{}{
			"payments":         len(out.Payments),
			"splits_created":   out.SplitsCreated,
			"payments_removed": out.PaymentsRemoved,
			"splits_removed":   out.SplitsRemoved,
		})
	})
	if err != nil {
		logFailure(err, dealID, uuid.Nil, "Payment generation failed")
		return nil, err
	}
	log.Info().Str("deal_id", dealID.String()).Int("payments", len(out.Payments)).
		Int("splits", out.SplitsCreated).Msg("Payments generated")
	return out, nil
}

// AddInput describes a manually added payment. A nil Amount takes fee / N.
type AddInput struct {
	Amount *decimal.Decimal
	Source string
}

func (s *Service) Add(ctx context.Context, dealID uuid.UUID, in AddInput) (*domain.Payment, error) {
	var amount decimal.NullDecimal
	if in.Amount != nil {
		if in.Amount.IsNegative() {
			return nil, ErrNegativeAmount
		}
		amount = decimal.NewNullDecimal(*in.Amount)
	}
	source := in.Source
	if source == "" {
		source = domain.PaymentSourceManual
	}

	var p *domain.Payment
	err := engine.Run(ctx, s.DB, "payment_added", func(tx *gorm.DB) error {
		deal, err := engine.LockDeal(tx, dealID)
		if err != nil {
			return err
		}
		var splits int
		p, splits, err = engine.AddPayment(tx, deal, amount, source)
		if err != nil {
			return err
		}
		return engine.RecordEvent(tx, dealID, &p.PaymentID, domain.DealEventPaymentAdded, map[string]interface{}{
			"sequence":        p.PaymentSequence,
			"amount":          p.PaymentAmount,
			"amount_override": p.AmountOverride,
			"splits_created":  splits,
		})
	})
	if err != nil {
		logFailure(err, dealID, uuid.Nil, "Payment add failed")
		return nil, err
	}
	log.Info().Str("deal_id", dealID.String()).Str("payment_id", p.PaymentID.String()).
		Int("sequence", p.PaymentSequence).Msg("Payment added")
	return p, nil
}

// Override pins the payment amount and reflows AGCI and every broker split
// of the payment from it.
func (s *Service) Override(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) (*domain.Payment, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return s.recalculate(ctx, paymentID, "payment_overridden", domain.DealEventPaymentOverridden,
		func(p *domain.Payment) map[string]interface{} {
			before := p.PaymentAmount
			p.PaymentAmount = amount
			p.AmountOverride = true
			return map[string]interface{}{"from": before, "to": amount}
		})
}

// ClearOverride drops a manual amount so the payment goes back to fee / N.
func (s *Service) ClearOverride(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	return s.recalculate(ctx, paymentID, "payment_recomputed", domain.DealEventPaymentRecomputed,
		func(p *domain.Payment) map[string]interface{} {
			p.AmountOverride = false
			return map[string]interface{}{"amount_override": false}
		})
}

// SetReferralOverride sets or, with nil, clears the payment's own referral
// percentage.
func (s *Service) SetReferralOverride(ctx context.Context, paymentID uuid.UUID, percent *decimal.Decimal) (*domain.Payment, error) {
	if percent != nil && percent.IsNegative() {
		return nil, commission.ErrNegativePercent
	}
	return s.recalculate(ctx, paymentID, "payment_recomputed", domain.DealEventPaymentRecomputed,
		func(p *domain.Payment) map[string]interface{} {
			if percent == nil {
				p.ReferralFeePercentOverride = decimal.NullDecimal{}
				return map[string]interface{}{"referral_fee_percent_override": nil}
			}
			p.ReferralFeePercentOverride = decimal.NewNullDecimal(*percent)
			return map[string]interface{}{"referral_fee_percent_override": *percent}
		})
}

func (s *Service) recalculate(ctx context.Context, paymentID uuid.UUID, trigger, eventType string,
	mutate func(p *domain.Payment) map[string]interface{}) (*domain.Payment, error) {
	var (
		payment *domain.Payment
		dealID  uuid.UUID
	)
	err := engine.Run(ctx, s.DB, trigger, func(tx *gorm.DB) error {
		deal, p, err := engine.LockPayment(tx, paymentID)
		if err != nil {
			return err
		}
		dealID = deal.DealID
		data := mutate(p)
		splits, err := engine.RecalculatePayment(tx, deal, p)
		if err != nil {
			return err
		}
		payment = p
		data["agci"] = p.AGCI
		data["splits_updated"] = splits
		return engine.RecordEvent(tx, deal.DealID, &p.PaymentID, eventType, data)
	})
	if err != nil {
		logFailure(err, dealID, paymentID, "Payment recalculation failed")
		return nil, err
	}
	log.Info().Str("deal_id", dealID.String()).Str("payment_id", paymentID.String()).
		Str("trigger", trigger).Str("agci", payment.AGCI.String()).Msg("Payment recalculated")
	return payment, nil
}

// Delete removes a payment and its splits and renumbers the rest.
func (s *Service) Delete(ctx context.Context, paymentID uuid.UUID) error {
	var dealID uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deal, p, err := engine.LockPayment(tx, paymentID)
		if err != nil {
			return err
		}
		dealID = deal.DealID
		removed, err := engine.DeletePayment(tx, deal, p)
		if err != nil {
			return err
		}
		return engine.RecordEvent(tx, deal.DealID, nil, domain.DealEventPaymentDeleted, map[string]interface{}{
			"payment_id":     p.PaymentID,
			"sequence":       p.PaymentSequence,
			"splits_removed": removed,
		})
	})
	if err != nil {
		logFailure(err, dealID, paymentID, "Payment delete failed")
		return err
	}
	log.Info().Str("deal_id", dealID.String()).Str("payment_id", paymentID.String()).Msg("Payment deleted")
	return nil
}

func (s *Service) List(ctx context.Context, dealID uuid.UUID) ([]domain.Payment, error) {
	db := s.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&domain.Deal{}).Where("deal_id = ?", dealID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, engine.ErrDealNotFound
	}
	return engine.DealPayments(db, dealID)
}

// SetSplitPaid flags a broker split as paid out or not. Amounts are left
// alone; a later recalculation still rewrites them.
func (s *Service) SetSplitPaid(ctx context.Context, splitID uuid.UUID, paid bool) (*domain.PaymentSplit, error) {
	var split domain.PaymentSplit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, locked, err := engine.LockPaymentSplit(tx, splitID, ErrPaymentSplitNotFound)
		if err != nil {
			return err
		}
		split = *locked
		if split.Paid == paid {
			return nil
		}
		split.Paid = paid
		split.PaidAt = nil
		if paid {
			now := time.Now().UTC()
			split.PaidAt = &now
		}
		if err := tx.Model(&split).Select("paid", "paid_at").
			Updates(map[string]interface{}{"paid": split.Paid, "paid_at": split.PaidAt}).Error; err != nil {
			return err
		}
		return engine.RecordEvent(tx, split.DealID, &split.PaymentID, domain.DealEventSplitPaid, map[string]interface{}{
			"payment_split_id": split.PaymentSplitID,
			"broker_id":        split.BrokerID,
			"paid":             paid,
			"amount":           split.SplitBrokerTotal,
		})
	})
	if err != nil {
		if !errors.Is(err, ErrPaymentSplitNotFound) {
			log.Error().Err(err).Str("payment_split_id", splitID.String()).Msg("Payment split paid update failed")
		}
		return nil, err
	}
	return &split, nil
}

func logFailure(err error, dealID, paymentID uuid.UUID, msg string) {
	ev := log.Error()
	switch {
	case errors.Is(err, engine.ErrDealNotFound), errors.Is(err, engine.ErrPaymentNotFound):
		return
	case errors.Is(err, commission.ErrConfiguration):
		ev = log.Warn()
	}
	ev = ev.Err(err)
	if dealID != uuid.Nil {
		ev = ev.Str("deal_id", dealID.String())
	}
	if paymentID != uuid.Nil {
		ev = ev.Str("payment_id", paymentID.String())
	}
	ev.Msg(msg)
}
