package models

import (
	"time"

	"github.com/gulfstream-dynamics/crm_backend/config"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// OrderEventRecord is the transactional outbox row staged in the same
// transaction as the stage transition it describes. A background dispatcher
// publishes it after commit; notification failure never rolls back the
// transition.
type OrderEventRecord struct {
	ID         int       `gorm:"primary_key;index:idx_order_outbox_dispatch,priority:3" json:"id"`
	CompanyId  string    `gorm:"size:64;not null;index" json:"company_id"`
	OrderId    int       `gorm:"index;not null" json:"order_id"`
	ClientId   int       `gorm:"index;not null" json:"client_id"`
	EventType  string    `gorm:"size:40;not null" json:"event_type"`
	FromStage  string    `gorm:"size:30" json:"from_stage"`
	ToStage    string    `gorm:"size:30" json:"to_stage"`
	ActorRole  string    `gorm:"size:10" json:"actor_role"`
	ActorName  string    `gorm:"size:100" json:"actor_name"`
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_order_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_order_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToOrderEventMessage(record OrderEventRecord) config.OrderEventMessage {
	return config.OrderEventMessage{
		ID:            record.ID,
		CompanyId:     record.CompanyId,
		OrderId:       record.OrderId,
		ClientId:      record.ClientId,
		EventType:     record.EventType,
		FromStage:     record.FromStage,
		ToStage:       record.ToStage,
		ActorRole:     record.ActorRole,
		ActorName:     record.ActorName,
		OccurredAt:    record.OccurredAt,
		CorrelationId: record.CorrelationId,
	}
}
