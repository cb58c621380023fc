package domain

import (
	"time"

	"github.com/saude-gov/regulacao/internal/shared/types"
)

// FillStatus is the completion state of a single section.
type FillStatus string

const (
	FillPending FillStatus = "PENDING"
	FillFilled  FillStatus = "FILLED"
)

// SectionStatus is one ledger row per (record, section): who owns it, and
// whether, when and by whom it was filled. There is no un-filling
// operation; reverting a filled section requires administrative correction
// outside this subsystem.
type SectionStatus struct {
	ID                types.ID   `json:"id"`
	RecordID          types.ID   `json:"record_id"`
	Section           Section    `json:"section"`
	ResponsibleSector Sector     `json:"responsible_sector"`
	Status            FillStatus `json:"status"`
	FilledBy          *types.ID  `json:"filled_by,omitempty"`
	FilledAt          *time.Time `json:"filled_at,omitempty"`
}

// ProcedureEntry is one procedure attached to a record. Entries are ordered
// and exactly one of them is the primary procedure.
type ProcedureEntry struct {
	ID          types.ID `json:"id"`
	RecordID    types.ID `json:"record_id"`
	Code        string   `json:"code"`
	Description string   `json:"description,omitempty"`
	Quantity    int      `json:"quantity"`
	Primary     bool     `json:"primary"`
	Position    int      `json:"position"`
}

// RecordEventType defines types of record timeline events
type RecordEventType string

const (
	RecordEventTypeCreated       RecordEventType = "created"
	RecordEventTypeSectionFilled RecordEventType = "section_filled"
	RecordEventTypeStatusChanged RecordEventType = "status_changed"
	RecordEventTypeEscalated     RecordEventType = "escalated"
	RecordEventTypeEvolved       RecordEventType = "evolved"
	RecordEventTypeCancelled     RecordEventType = "cancelled"
)

// RecordEvent represents an event in the record timeline
type RecordEvent struct {
	ID          types.ID        `json:"id"`
	RecordID    types.ID        `json:"record_id"`
	Type        RecordEventType `json:"type"`
	ActorID     types.ID        `json:"actor_id"`
	ActorSector Sector          `json:"actor_sector,omitempty"`
	Description string          `json:"description"`
	Data        map[string]any  `json:"data,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Event is a domain event for publishing
type Event struct {
	Type        string      `json:"type"`
	RecordID    types.ID    `json:"record_id"`
	RecordEvent RecordEvent `json:"record_event"`
}
