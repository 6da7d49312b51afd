package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Deal event types, one per cascade entry point.
const (
	DealEventTermsChanged      = "TERMS_CHANGED"
	DealEventPaymentsGenerated = "PAYMENTS_GENERATED"
	DealEventPaymentAdded      = "PAYMENT_ADDED"
	DealEventPaymentOverridden = "PAYMENT_OVERRIDDEN"
	DealEventPaymentRecomputed = "PAYMENT_RECOMPUTED"
	DealEventPaymentDeleted    = "PAYMENT_DELETED"
	DealEventBrokerAdded       = "BROKER_ADDED"
	DealEventBrokerUpdated     = "BROKER_UPDATED"
	DealEventBrokerRemoved     = "BROKER_REMOVED"
	DealEventSplitPaid         = "SPLIT_PAID"
)

// DealEvent is an append-only record of a recalculation, written in the same
// transaction as the cascade it describes.
type DealEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	DealID    uuid.UUID      `gorm:"column:deal_id;type:uuid;not null;index" json:"deal_id"`
	PaymentID *uuid.UUID     `gorm:"column:payment_id;type:uuid" json:"payment_id"`
	EventType string         `gorm:"column:event_type;type:varchar(40);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:jsonb" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (DealEvent) TableName() string {
	return "DealEvents"
}

func (e *DealEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}

// Models lists every table owned by the commission engine, in migration order.
func Models() []interface{} {
	return []interface{}{&Deal{}, &Payment{}, &CommissionSplit{}, &PaymentSplit{}, &DealEvent{}}
}
