// Package engine runs the commission rules against storage. Every function
// takes the transaction handle of the write that triggered it; callers open
// exactly one transaction per write so a reader never sees a payment whose
// AGCI and splits disagree.
//
// Rule order (leaves first):
//
//	deal terms ─▶ payment AGCI ─▶ category totals ─▶ payment splits
//	broker template ───────────────────────────────▶ payment splits
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDealNotFound            = errors.New("Deal not found")
	ErrPaymentNotFound         = errors.New("Payment not found")
	ErrCommissionSplitNotFound = errors.New("Commission split not found")
)

// LockDeal loads a deal and, on Postgres, holds its row lock until the
// transaction ends so concurrent cascades on the same deal serialize.
func LockDeal(tx *gorm.DB, dealID uuid.UUID) (*domain.Deal, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var deal domain.Deal
	if err := q.Where("deal_id = ?", dealID).First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, err
	}
	warnDealPercents(&deal)
	return &deal, nil
}

// LockPayment locks the payment's deal and then loads the payment. The
// payment is read only once the lock is held, so a concurrent cascade on the
// same deal cannot hand back a stale row.
func LockPayment(tx *gorm.DB, paymentID uuid.UUID) (*domain.Deal, *domain.Payment, error) {
	var p domain.Payment
	deal, err := lockOwner(tx, &p, "payment_id = ?", paymentID, ErrPaymentNotFound)
	if err != nil {
		return nil, nil, err
	}
	return deal, &p, nil
}

// LockCommissionSplit locks the template's deal and then loads the template.
func LockCommissionSplit(tx *gorm.DB, id uuid.UUID) (*domain.Deal, *domain.CommissionSplit, error) {
	var t domain.CommissionSplit
	deal, err := lockOwner(tx, &t, "commission_split_id = ?", id, ErrCommissionSplitNotFound)
	if err != nil {
		return nil, nil, err
	}
	warnTemplatePercents(&t)
	return deal, &t, nil
}

// LockPaymentSplit locks the split's deal and then loads the split.
func LockPaymentSplit(tx *gorm.DB, id uuid.UUID, notFound error) (*domain.Deal, *domain.PaymentSplit, error) {
	var s domain.PaymentSplit
	deal, err := lockOwner(tx, &s, "payment_split_id = ?", id, notFound)
	if err != nil {
		return nil, nil, err
	}
	return deal, &s, nil
}

// lockOwner resolves the owning deal id of a child row, locks the deal and
// reads the row into dest under that lock.
func lockOwner(tx *gorm.DB, dest interface{}, where string, id uuid.UUID, notFound error) (*domain.Deal, error) {
	var dealIDs []uuid.UUID
	if err := tx.Model(dest).Where(where, id).Limit(1).Pluck("deal_id", &dealIDs).Error; err != nil {
		return nil, err
	}
	if len(dealIDs) == 0 {
		return nil, notFound
	}
	deal, err := LockDeal(tx, dealIDs[0])
	if err != nil {
		return nil, err
	}
	if err := tx.Where(where, id).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	return deal, nil
}

// DealPayments returns a deal's payments ordered by sequence.
func DealPayments(tx *gorm.DB, dealID uuid.UUID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := tx.Where("deal_id = ?", dealID).Order("payment_sequence ASC").Find(&payments).Error
	return payments, err
}

// DealTemplates returns a deal's broker templates in creation order.
func DealTemplates(tx *gorm.DB, dealID uuid.UUID) ([]domain.CommissionSplit, error) {
	var templates []domain.CommissionSplit
	err := tx.Where("deal_id = ?", dealID).Order(`"createdAt" ASC, broker_id ASC`).Find(&templates).Error
	if err != nil {
		return nil, err
	}
	for i := range templates {
		warnTemplatePercents(&templates[i])
	}
	return templates, nil
}

func paymentIDsOf(tx *gorm.DB, dealID uuid.UUID) *gorm.DB {
	return tx.Model(&domain.Payment{}).Select("payment_id").Where("deal_id = ?", dealID)
}

// RecordEvent appends a DealEvent inside the current transaction.
func RecordEvent(tx *gorm.DB, dealID uuid.UUID, paymentID *uuid.UUID, eventType string, data map[string]interface{}) error {
	eventDataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return tx.Create(&domain.DealEvent{
		DealID:    dealID,
		PaymentID: paymentID,
		EventType: eventType,
		EventData: datatypes.JSON(eventDataBytes),
	}).Error
}

// Run executes one triggering write and its whole cascade in a single
// transaction and records the outcome under trigger.
func Run(ctx context.Context, db *gorm.DB, trigger string, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	observability.RecordRecalculation(trigger, Outcome(err))
	return err
}

// Outcome maps a cascade error onto the metric outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, commission.ErrConfiguration):
		return "configuration_error"
	default:
		return "error"
	}
}

type percentField struct {
	name  string
	value decimal.Decimal
}

func inconsistent(fields ...percentField) []commission.InconsistentStateWarning {
	var out []commission.InconsistentStateWarning
	for _, f := range fields {
		if w, ok := commission.CheckPercent(f.name, f.value); ok {
			out = append(out, w)
		}
	}
	return out
}

func warnDealPercents(d *domain.Deal) {
	for _, w := range inconsistent(
		percentField{"referral_fee_percent", d.ReferralFeePercent},
		percentField{"house_percent", d.HousePercent},
		percentField{"origination_percent", d.OriginationPercent},
		percentField{"site_percent", d.SitePercent},
		percentField{"deal_percent", d.DealPercent},
	) {
		observability.RecordPercentNormalization("deal")
		log.Warn().Str("deal_id", d.DealID.String()).Str("field", w.Field).
			Str("value", w.Value.String()).Str("normalized", w.Normalized.String()).
			Msg("Deal percentage outside 0-100, normalizing")
	}
}

func warnTemplatePercents(t *domain.CommissionSplit) {
	for _, w := range inconsistent(
		percentField{"split_origination_percent", t.SplitOriginationPercent},
		percentField{"split_site_percent", t.SplitSitePercent},
		percentField{"split_deal_percent", t.SplitDealPercent},
	) {
		observability.RecordPercentNormalization("commission_split")
		log.Warn().Str("deal_id", t.DealID.String()).Str("broker_id", t.BrokerID.String()).
			Str("field", w.Field).Str("value", w.Value.String()).Str("normalized", w.Normalized.String()).
			Msg("Broker percentage outside 0-100, normalizing")
	}
}
