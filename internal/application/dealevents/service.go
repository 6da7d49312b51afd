package dealevents

import (
	"context"
	"errors"
	"strings"

	"crm-backend/internal/application/engine"
	"crm-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrUnknownEventType = errors.New("Unknown event type")

const (
	defaultLimit = 50
	maxLimit     = 500
)

var eventTypes = map[string]bool{
	domain.DealEventTermsChanged:      true,
	domain.DealEventPaymentsGenerated: true,
	domain.DealEventPaymentAdded:      true,
	domain.DealEventPaymentOverridden: true,
	domain.DealEventPaymentRecomputed: true,
	domain.DealEventPaymentDeleted:    true,
	domain.DealEventBrokerAdded:       true,
	domain.DealEventBrokerUpdated:     true,
	domain.DealEventBrokerRemoved:     true,
	domain.DealEventSplitPaid:         true,
}

type Service struct {
	DB *gorm.DB
}

// FormattedEvent is a deal event with the sequence of the payment it touched,
// when that payment still exists.
type FormattedEvent struct {
	EventID         uuid.UUID      `json:"event_id"`
	Type            string         `json:"type"`
	PaymentID       *uuid.UUID     `json:"payment_id"`
	PaymentSequence *int           `json:"payment_sequence"`
	Data            datatypes.JSON `json:"data"`
	CreatedAt       interface{}    `json:"created_at"`
}

type Filter struct {
	EventType string
	Limit     int
}

// List returns the deal's activity, newest first.
func (s *Service) List(ctx context.Context, dealID uuid.UUID, f Filter) ([]FormattedEvent, error) {
	db := s.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&domain.Deal{}).Where("deal_id = ?", dealID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, engine.ErrDealNotFound
	}

	q := db.Where("deal_id = ?", dealID)
	if f.EventType != "" {
		t := strings.ToUpper(f.EventType)
		if !eventTypes[t] {
			return nil, ErrUnknownEventType
		}
		q = q.Where("event_type = ?", t)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	var events []domain.DealEvent
	if err := q.Order(`"createdAt" DESC`).Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []FormattedEvent{}, nil
	}

	var payments []domain.Payment
	if err := db.Where("deal_id = ?", dealID).Select("payment_id, payment_sequence").Find(&payments).Error; err != nil {
		return nil, err
	}
	seq := make(map[uuid.UUID]int, len(payments))
	for _, p := range payments {
		seq[p.PaymentID] = p.PaymentSequence
	}

	out := make([]FormattedEvent, len(events))
	for i, e := range events {
		fe := FormattedEvent{
			EventID:   e.EventID,
			Type:      e.EventType,
			PaymentID: e.PaymentID,
			Data:      e.EventData,
			CreatedAt: e.CreatedAt,
		}
		if e.PaymentID != nil {
			if n, ok := seq[*e.PaymentID]; ok {
				fe.PaymentSequence = &n
			}
		}
		out[i] = fe
	}
	return out, nil
}
