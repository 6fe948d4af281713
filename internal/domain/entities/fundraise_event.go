package entities

import (
	"time"

	"github.com/google/uuid"
)

// FundraiseEventType represents the type of fundraise event
type FundraiseEventType string

const (
	FundraiseEventTypeCreated FundraiseEventType = "fundraise.created"
	FundraiseEventTypeUpdated FundraiseEventType = "fundraise.updated"
)

// FundraiseEvent is published whenever a stored record changes
type FundraiseEvent struct {
	ID            string                 `json:"id"`
	FundraiseID   string                 `json:"fundraise_id"`
	Slug          string                 `json:"slug"`
	EventType     FundraiseEventType     `json:"event_type"`
	Timestamp     time.Time              `json:"timestamp"`
	ChangedFields map[string]interface{} `json:"changed_fields,omitempty"`
}

// NewFundraiseEvent creates a new fundraise event
func NewFundraiseEvent(record *Fundraise, eventType FundraiseEventType, changedFields map[string]interface{}) *FundraiseEvent {
	return &FundraiseEvent{
		ID:            uuid.NewString(),
		FundraiseID:   record.ID,
		Slug:          record.Slug,
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		ChangedFields: changedFields,
	}
}
