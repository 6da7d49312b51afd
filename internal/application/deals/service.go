package deals

import (
	"context"
	"errors"

	"crm-backend/internal/application/engine"
	"crm-backend/internal/domain"
	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrNameRequired = errors.New("Deal name is required")

type Service struct {
	DB *gorm.DB
}

type CreateDealInput struct {
	Name               string
	Fee                decimal.NullDecimal
	NumberOfPayments   *int
	ReferralFeePercent decimal.Decimal
	HousePercent       decimal.Decimal
	OriginationPercent decimal.Decimal
	SitePercent        decimal.Decimal
	DealPercent        decimal.Decimal
}

// Create stores a new deal. An unset payment count defaults to 1; an
// explicit 0 is kept and rejected later by any rule that needs it.
func (s *Service) Create(ctx context.Context, in CreateDealInput) (*domain.Deal, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	n := in.NumberOfPayments
	if n == nil {
		one := 1
		n = &one
	}
	deal := &domain.Deal{
		Name:               in.Name,
		Fee:                in.Fee,
		NumberOfPayments:   n,
		ReferralFeePercent: in.ReferralFeePercent,
		HousePercent:       in.HousePercent,
		OriginationPercent: in.OriginationPercent,
		SitePercent:        in.SitePercent,
		DealPercent:        in.DealPercent,
	}
	deal.ApplyFigures(commission.ComputeDealFigures(deal.Terms()))

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(deal).Error; err != nil {
			return err
		}
		return engine.RecordEvent(tx, deal.DealID, nil, domain.DealEventTermsChanged, map[string]interface{}{
			"created": true,
			"fee":     deal.Fee,
			"agci":    deal.AGCI,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("deal_id", deal.DealID.String()).Msg("Deal created")
	return deal, nil
}

// UpdateDealInput carries a partial update; nil fields are left unchanged.
type UpdateDealInput struct {
	Name               *string
	Fee                *decimal.Decimal
	NumberOfPayments   *int
	ReferralFeePercent *decimal.Decimal
	HousePercent       *decimal.Decimal
	OriginationPercent *decimal.Decimal
	SitePercent        *decimal.Decimal
	DealPercent        *decimal.Decimal
}

// Update applies in to the deal. When any commercial term changes, the
// deal-level figures and every payment and split of the deal are
// recomputed in the same transaction; a deal that has payments cannot be
// left without a usable payment count.
func (s *Service) Update(ctx context.Context, dealID uuid.UUID, in UpdateDealInput) (*domain.Deal, error) {
	var deal *domain.Deal
	err := engine.Run(ctx, s.DB, "terms_changed", func(tx *gorm.DB) error {
		var err error
		deal, err = engine.LockDeal(tx, dealID)
		if err != nil {
			return err
		}
		if in.Name != nil {
			if *in.Name == "" {
				return ErrNameRequired
			}
			deal.Name = *in.Name
		}
		changed := applyTerms(deal, in)
		if len(changed) == 0 {
			return tx.Save(deal).Error
		}
		payments, splits, err := engine.RecalculateDeal(tx, deal)
		if err != nil {
			return err
		}
		log.Info().Str("deal_id", deal.DealID.String()).Strs("changed", changed).
			Int("payments", payments).Int("splits", splits).Msg("Deal terms changed, payments recalculated")
		return engine.RecordEvent(tx, deal.DealID, nil, domain.DealEventTermsChanged, map[string]interface{}{
			"changed":             changed,
			"payments_recomputed": payments,
			"splits_recomputed":   splits,
		})
	})
	if err != nil {
		logFailure(err, dealID, "Deal update failed")
		return nil, err
	}
	return deal, nil
}

func applyTerms(d *domain.Deal, in UpdateDealInput) []string {
	var changed []string
	if in.Fee != nil && (!d.Fee.Valid || !d.Fee.Decimal.Equal(*in.Fee)) {
		d.Fee = decimal.NewNullDecimal(*in.Fee)
		changed = append(changed, "fee")
	}
	if in.NumberOfPayments != nil && (d.NumberOfPayments == nil || *d.NumberOfPayments != *in.NumberOfPayments) {
		n := *in.NumberOfPayments
		d.NumberOfPayments = &n
		changed = append(changed, "number_of_payments")
	}
	set := func(name string, dst *decimal.Decimal, v *decimal.Decimal) {
		if v != nil && !dst.Equal(*v) {
			*dst = *v
			changed = append(changed, name)
		}
	}
	set("referral_fee_percent", &d.ReferralFeePercent, in.ReferralFeePercent)
	set("house_percent", &d.HousePercent, in.HousePercent)
	set("origination_percent", &d.OriginationPercent, in.OriginationPercent)
	set("site_percent", &d.SitePercent, in.SitePercent)
	set("deal_percent", &d.DealPercent, in.DealPercent)
	return changed
}

// Delete removes the deal and everything derived from it.
func (s *Service) Delete(ctx context.Context, dealID uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deal, err := engine.LockDeal(tx, dealID)
		if err != nil {
			return err
		}
		return engine.DeleteDeal(tx, deal)
	})
	if err != nil {
		logFailure(err, dealID, "Deal delete failed")
		return err
	}
	log.Info().Str("deal_id", dealID.String()).Msg("Deal deleted")
	return nil
}

func (s *Service) List(ctx context.Context) ([]domain.Deal, error) {
	var deals []domain.Deal
	if err := s.DB.WithContext(ctx).Order(`"createdAt" DESC`).Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// PaymentView is a payment with its broker splits.
type PaymentView struct {
	domain.Payment
	Splits []domain.PaymentSplit `json:"splits"`
}

// DealDetail is a deal with its payments, splits and broker templates.
type DealDetail struct {
	Deal             domain.Deal              `json:"deal"`
	Payments         []PaymentView            `json:"payments"`
	CommissionSplits []domain.CommissionSplit `json:"commission_splits"`
}

func (s *Service) Get(ctx context.Context, dealID uuid.UUID) (*DealDetail, error) {
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
	if err := db.Where("deal_id = ?", dealID).Order("broker_id ASC").Find(&splits).Error; err != nil {
		return nil, err
	}
	templates, err := engine.DealTemplates(db, dealID)
	if err != nil {
		return nil, err
	}

	byPayment := map[uuid.UUID][]domain.PaymentSplit{}
	for _, sp := range splits {
		byPayment[sp.PaymentID] = append(byPayment[sp.PaymentID], sp)
	}
	views := make([]PaymentView, len(payments))
	for i, p := range payments {
		ps := byPayment[p.PaymentID]
		if ps == nil {
			ps = []domain.PaymentSplit{}
		}
		views[i] = PaymentView{Payment: p, Splits: ps}
	}
	return &DealDetail{Deal: deal, Payments: views, CommissionSplits: templates}, nil
}

func logFailure(err error, dealID uuid.UUID, msg string) {
	switch {
	case errors.Is(err, engine.ErrDealNotFound), errors.Is(err, ErrNameRequired):
		return
	case errors.Is(err, commission.ErrConfiguration):
		log.Warn().Err(err).Str("deal_id", dealID.String()).Msg(msg)
	default:
		log.Error().Err(err).Str("deal_id", dealID.String()).Msg(msg)
	}
}
