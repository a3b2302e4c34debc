package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimelineEvent is an immutable audit record. Detail holds the event-specific
// fields and is serialized as "metadata".
type TimelineEvent struct {
	ID          string
	Timestamp   time.Time
	EventType   EventType
	Title       string
	Description string
	Actor       string
	Detail      EventDetail
}

// EventDetail is implemented only by the detail types in this package, one per event type.
type EventDetail interface {
	eventType() EventType
}

type CreatedDetail struct {
	CandidateName string `json:"candidateName"`
	Owner         string `json:"owner"`
}

type StatusChangeDetail struct {
	CheckType       CheckType  `json:"checkType,omitempty"`
	OldStatus       Status     `json:"oldStatus,omitempty"`
	NewStatus       Status     `json:"newStatus"`
	VendorReference string     `json:"vendorReference,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

type ScoreChangeDetail struct {
	PreviousScore OverallScore `json:"previousScore"`
	NewScore      OverallScore `json:"newScore"`
}

type CheckUpdatedDetail struct {
	CheckType       CheckType `json:"checkType"`
	PreviousStatus  Status    `json:"previousStatus"`
	Status          Status    `json:"status"`
	Vendor          string    `json:"vendor"`
	VendorReference string    `json:"vendorReference"`
}

type AdminDecisionDetail struct {
	Decision  AdminDecision `json:"decision"`
	Reasoning string        `json:"reasoning,omitempty"`
	Notes     string        `json:"notes,omitempty"`
}

func (CreatedDetail) eventType() EventType       { return EventCreated }
func (StatusChangeDetail) eventType() EventType  { return EventStatusChange }
func (ScoreChangeDetail) eventType() EventType   { return EventScoreChange }
func (CheckUpdatedDetail) eventType() EventType  { return EventCheckUpdated }
func (AdminDecisionDetail) eventType() EventType { return EventAdminDecision }

// NewTimelineEvent derives the event type from the detail so the two cannot disagree.
func NewTimelineEvent(id string, at time.Time, title, description, actor string, detail EventDetail) TimelineEvent {
	return TimelineEvent{
		ID:          id,
		Timestamp:   at,
		EventType:   detail.eventType(),
		Title:       title,
		Description: description,
		Actor:       actor,
		Detail:      detail,
	}
}

type timelineEventJSON struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	EventType   EventType       `json:"eventType"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Actor       string          `json:"actor,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

func (e TimelineEvent) MarshalJSON() ([]byte, error) {
	out := timelineEventJSON{
		ID:          e.ID,
		Timestamp:   e.Timestamp,
		EventType:   e.EventType,
		Title:       e.Title,
		Description: e.Description,
		Actor:       e.Actor,
	}
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return nil, err
		}
		out.Metadata = b
	}
	return json.Marshal(out)
}

func (e *TimelineEvent) UnmarshalJSON(data []byte) error {
	var in timelineEventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	detail, err := decodeEventDetail(in.EventType, in.Metadata)
	if err != nil {
		return fmt.Errorf("timeline event %s: %w", in.ID, err)
	}
	*e = TimelineEvent{
		ID:          in.ID,
		Timestamp:   in.Timestamp,
		EventType:   in.EventType,
		Title:       in.Title,
		Description: in.Description,
		Actor:       in.Actor,
		Detail:      detail,
	}
	return nil
}

func decodeEventDetail(eventType EventType, raw json.RawMessage) (EventDetail, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch eventType {
	case EventCreated:
		var d CreatedDetail
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventStatusChange:
		var d StatusChangeDetail
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventScoreChange:
		var d ScoreChangeDetail
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventCheckUpdated:
		var d CheckUpdatedDetail
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventAdminDecision:
		var d AdminDecisionDetail
		err := json.Unmarshal(raw, &d)
		return d, err
	case EventDecision:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}
