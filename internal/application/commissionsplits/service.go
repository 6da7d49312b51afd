package commissionsplits

import (
	"context"
	"errors"

	"crm-backend/internal/application/engine"
	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrBrokerRequired      = errors.New("Broker id is required")
	ErrBrokerAlreadyOnDeal = errors.New("Broker already has a commission split on this deal")
)

type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	BrokerID   uuid.UUID
	BrokerName string
	Percents   commission.Percents
}

// Create adds a broker to the deal and gives them a split on every payment
// the deal already has.
func (s *Service) Create(ctx context.Context, dealID uuid.UUID, in CreateInput) (*domain.CommissionSplit, error) {
	if in.BrokerID == uuid.Nil {
		return nil, ErrBrokerRequired
	}
	percents, err := normalize(in.Percents, dealID, in.BrokerID)
	if err != nil {
		return nil, err
	}

	t := &domain.CommissionSplit{DealID: dealID, BrokerID: in.BrokerID, BrokerName: in.BrokerName}
	t.SetPercents(percents)
	var created int
	err = engine.Run(ctx, s.DB, "broker_added", func(tx *gorm.DB) error {
		deal, err := engine.LockDeal(tx, dealID)
		if err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&domain.CommissionSplit{}).
			Where("deal_id = ? AND broker_id = ?", dealID, in.BrokerID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrBrokerAlreadyOnDeal
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		created, err = engine.BackfillTemplate(tx, deal, t)
		if err != nil {
			return err
		}
		return engine.RecordEvent(tx, dealID, nil, domain.DealEventBrokerAdded, map[string]interface{}{
			"commission_split_id": t.CommissionSplitID,
			"broker_id":           t.BrokerID,
			"percents":            percents,
			"splits_created":      created,
		})
	})
	if err != nil {
		logFailure(err, dealID, in.BrokerID, "Commission split create failed")
		return nil, err
	}
	log.Info().Str("deal_id", dealID.String()).Str("broker_id", t.BrokerID.String()).
		Int("splits", created).Msg("Broker added to deal")
	return t, nil
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	BrokerName         *string
	OriginationPercent *decimal.Decimal
	SitePercent        *decimal.Decimal
	DealPercent        *decimal.Decimal
}

// Update edits a broker's template. Percentage changes are pushed onto that
// broker's splits on every payment of the deal; a rename alone touches no
// split. The template is read under the deal lock, so partial percentages
// merge onto the latest stored row.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.CommissionSplit, error) {
	var (
		t       domain.CommissionSplit
		touched int
	)
	err := engine.Run(ctx, s.DB, "broker_updated", func(tx *gorm.DB) error {
		deal, locked, err := engine.LockCommissionSplit(tx, id)
		if err != nil {
			return err
		}
		t = *locked
		before := t.Percents()
		next := before
		if in.OriginationPercent != nil {
			next.Origination = *in.OriginationPercent
		}
		if in.SitePercent != nil {
			next.Site = *in.SitePercent
		}
		if in.DealPercent != nil {
			next.Deal = *in.DealPercent
		}
		next, err = normalize(next, t.DealID, t.BrokerID)
		if err != nil {
			return err
		}
		if in.BrokerName != nil {
			t.BrokerName = *in.BrokerName
		}
		t.SetPercents(next)
		if err := tx.Save(&t).Error; err != nil {
			return err
		}
		touched, err = engine.ResyncTemplate(tx, deal, before, &t)
		if err != nil {
			return err
		}
		if before.Equal(next) {
			return nil
		}
		return engine.RecordEvent(tx, t.DealID, nil, domain.DealEventBrokerUpdated, map[string]interface{}{
			"commission_split_id": t.CommissionSplitID,
			"broker_id":           t.BrokerID,
			"from":                before,
			"to":                  next,
			"splits_updated":      touched,
		})
	})
	if err != nil {
		logFailure(err, t.DealID, t.BrokerID, "Commission split update failed")
		return nil, err
	}
	log.Info().Str("deal_id", t.DealID.String()).Str("broker_id", t.BrokerID.String()).
		Int("splits", touched).Msg("Broker split updated")
	return &t, nil
}

// Delete removes the broker from the deal together with all of their
// payment splits. Other brokers keep their percentages.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var t domain.CommissionSplit
	err := engine.Run(ctx, s.DB, "broker_removed", func(tx *gorm.DB) error {
		deal, locked, err := engine.LockCommissionSplit(tx, id)
		if err != nil {
			return err
		}
		t = *locked
		removed, err := engine.RemoveTemplateSplits(tx, deal, t.BrokerID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&t).Error; err != nil {
			return err
		}
		return engine.RecordEvent(tx, t.DealID, nil, domain.DealEventBrokerRemoved, map[string]interface{}{
			"commission_split_id": t.CommissionSplitID,
			"broker_id":           t.BrokerID,
			"splits_removed":      removed,
		})
	})
	if err != nil {
		logFailure(err, t.DealID, t.BrokerID, "Commission split delete failed")
		return err
	}
	log.Info().Str("deal_id", t.DealID.String()).Str("broker_id", t.BrokerID.String()).Msg("Broker removed from deal")
	return nil
}

func (s *Service) List(ctx context.Context, dealID uuid.UUID) ([]domain.CommissionSplit, error) {
	db := s.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&domain.Deal{}).Where("deal_id = ?", dealID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, engine.ErrDealNotFound
	}
	return engine.DealTemplates(db, dealID)
}

func normalize(p commission.Percents, dealID, brokerID uuid.UUID) (commission.Percents, error) {
	if p.Origination.IsNegative() || p.Site.IsNegative() || p.Deal.IsNegative() {
		return p, commission.ErrNegativePercent
	}
	out, fixed := p.Normalize()
	for _, f := range fixed {
		observability.RecordPercentNormalization("commission_split")
		log.Warn().Str("deal_id", dealID.String()).Str("broker_id", brokerID.String()).
			Str("field", "split_"+f+"_percent").Msg("Broker percentage outside 0-100, normalizing")
	}
	return out, nil
}

func logFailure(err error, dealID, brokerID uuid.UUID, msg string) {
	switch {
	case errors.Is(err, engine.ErrDealNotFound), errors.Is(err, engine.ErrCommissionSplitNotFound),
		errors.Is(err, ErrBrokerAlreadyOnDeal), errors.Is(err, commission.ErrNegativePercent):
		return
	case errors.Is(err, commission.ErrConfiguration):
		log.Warn().Err(err).Str("deal_id", dealID.String()).Str("broker_id", brokerID.String()).Msg(msg)
	default:
		log.Error().Err(err).Str("deal_id", dealID.String()).Str("broker_id", brokerID.String()).Msg(msg)
	}
}
