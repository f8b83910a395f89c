package models

import (
	"encoding/json"
	"time"
)

// EventType names a published domain event
type EventType string

const (
	EventAssessmentCompleted EventType = "assessment.completed"
	EventFrameworkActivated  EventType = "framework.activated"
	EventFrameworkCleared    EventType = "framework.cleared"
)

// Event is pushed to live feed subscribers
type Event struct {
	Type           EventType       `json:"type"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Scope          string          `json:"scope,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	At             time.Time       `json:"at"`
}

// NewEvent builds an event with a JSON-encoded payload
func NewEvent(t EventType, orgID, scope string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:           t,
		OrganizationID: orgID,
		Scope:          scope,
		Payload:        raw,
		At:             time.Now().UTC(),
	}, nil
}
