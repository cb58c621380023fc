package domain

import (
	"fmt"
	"time"

	"github.com/saude-gov/regulacao/internal/shared/types"
)

// AdmissionType classifies an admission as clinical or surgical.
type AdmissionType string

const (
	AdmissionClinical AdmissionType = "CLINICAL"
	AdmissionSurgical AdmissionType = "SURGICAL"
)

// EntryType is the entry urgency of an admission. Empty means unset.
type EntryType string

const (
	EntryUrgent   EntryType = "URGENT"
	EntryElective EntryType = "ELECTIVE"
)

// RecordStatus is the persisted lifecycle status of a record. For admitted
// records it tracks the overall rollup of the gate evaluator, but the
// evaluator itself is always recomputed from section statuses; the stored
// field is never the source of truth for gating.
type RecordStatus string

const (
	RecordStatusPending          RecordStatus = "PENDING"
	RecordStatusInObservation    RecordStatus = "IN_OBSERVATION"
	RecordStatusAwaitingDecision RecordStatus = "AWAITING_DECISION"
	RecordStatusInProgress       RecordStatus = "EM_ANDAMENTO"
	RecordStatusComplete         RecordStatus = "CONCLUIDO"
	RecordStatusCancelled        RecordStatus = "CANCELLED"
)

// ObservationDeadlineHours is the wall-clock limit of the observation
// holding state before a record escalates to AWAITING_DECISION.
const ObservationDeadlineHours = 24

// AdmissionRecord is the aggregate root for one hospital admission case.
type AdmissionRecord struct {
	ID types.ID `json:"id"`

	// Patient identity
	PatientName         string     `json:"patient_name"`
	PatientRecordNumber string     `json:"patient_record_number,omitempty"`
	PatientBirthDate    *time.Time `json:"patient_birth_date,omitempty"`
	HealthCardNumber    string     `json:"health_card_number,omitempty"`

	// Classification
	AdmissionType AdmissionType `json:"admission_type,omitempty"`
	EntryType     EntryType     `json:"entry_type,omitempty"`

	// Lifecycle
	Status       RecordStatus `json:"status"`
	Cancelled    bool         `json:"cancelled"`
	CancelReason string       `json:"cancel_reason,omitempty"`

	// Section field data
	AdmissionReason string     `json:"admission_reason,omitempty"`
	OriginUnit      string     `json:"origin_unit,omitempty"`
	ScheduledDate   *time.Time `json:"scheduled_date,omitempty"`
	Ward            string     `json:"ward,omitempty"`
	CIDCode         string     `json:"cid_code,omitempty"`
	CIDDescription  string     `json:"cid_description,omitempty"`
	ClinicalNotes   string     `json:"clinical_notes,omitempty"`
	DischargeReason string     `json:"discharge_reason,omitempty"`
	BillingBatch    string     `json:"billing_batch,omitempty"`
	BillingNotes    string     `json:"billing_notes,omitempty"`
	Audited         bool       `json:"audited"`

	// Timestamps
	AdmissionDate *time.Time `json:"admission_date,omitempty"`
	DischargeDate *time.Time `json:"discharge_date,omitempty"`
	FaDatetime    *time.Time `json:"fa_datetime,omitempty"`

	// OperatorID is the regulation user who created the record. Immutable.
	OperatorID types.ID `json:"operator_id"`

	// Owned collections, cascade-deleted with the record
	Sections   []SectionStatus  `json:"sections"`
	Procedures []ProcedureEntry `json:"procedures,omitempty"`
	Events     []RecordEvent    `json:"events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Domain events (not persisted, used for publishing)
	domainEvents []Event
}

// NewAdmission creates a record admitted directly, skipping observation.
func NewAdmission(patientName string, admissionType AdmissionType, entryType EntryType, operatorID types.ID) (*AdmissionRecord, error) {
	if patientName == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if operatorID.IsZero() {
		return nil, fmt.Errorf("operator is required")
	}

	now := time.Now()
	r := &AdmissionRecord{
		ID:            types.NewID(),
		PatientName:   patientName,
		AdmissionType: admissionType,
		EntryType:     entryType,
		Status:        RecordStatusPending,
		AdmissionDate: &now,
		OperatorID:    operatorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	r.EnsureSections()
	r.addEvent(RecordEventTypeCreated, operatorID, SectorNIR, "Admission record created", nil)

	return r, nil
}

// NewObservation creates a record in the observation holding state. The
// faDatetime marks entry into the attendance queue; there is no admission
// date yet.
func NewObservation(patientName string, faDatetime time.Time, operatorID types.ID) (*AdmissionRecord, error) {
	if patientName == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if operatorID.IsZero() {
		return nil, fmt.Errorf("operator is required")
	}

	now := time.Now()
	r := &AdmissionRecord{
		ID:          types.NewID(),
		PatientName: patientName,
		Status:      RecordStatusInObservation,
		FaDatetime:  &faDatetime,
		OperatorID:  operatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.addEvent(RecordEventTypeCreated, operatorID, SectorNIR, "Observation record created", nil)

	return r, nil
}

// EffectiveEntryType is the entry urgency used by every gating computation.
// A surgical admission with no explicit entry type is treated as urgent;
// gating code must never read EntryType directly.
func (r *AdmissionRecord) EffectiveEntryType() EntryType {
	if r.EntryType == "" && r.AdmissionType == AdmissionSurgical {
		return EntryUrgent
	}
	return r.EntryType
}

// InObservation reports whether the record sits in the observation sub-flow.
func (r *AdmissionRecord) InObservation() bool {
	return r.Status == RecordStatusInObservation || r.Status == RecordStatusAwaitingDecision
}

// --- Section status ledger ---

// EnsureSections upserts one ledger row per section in the current
// registry. Existing rows keep their status and audit fields; if the
// classification changed since the row was created, the responsible sector
// is corrected in place.
func (r *AdmissionRecord) EnsureSections() {
	m := SectionMap(r)
	for _, section := range AllSections {
		owner := m[section]
		if existing := r.findSection(section); existing != nil {
			existing.ResponsibleSector = owner
			continue
		}
		r.Sections = append(r.Sections, SectionStatus{
			ID:                types.NewID(),
			RecordID:          r.ID,
			Section:           section,
			ResponsibleSector: owner,
			Status:            FillPending,
		})
	}
}

// MarkFilled sets a section to FILLED and records the acting user and
// timestamp. Filling is one-way; there is no unfill.
func (r *AdmissionRecord) MarkFilled(section Section, userID types.ID) error {
	r.EnsureSections()
	row := r.findSection(section)
	if row == nil {
		return fmt.Errorf("unknown section %s", section)
	}

	now := time.Now()
	row.Status = FillFilled
	row.FilledBy = &userID
	row.FilledAt = &now
	r.UpdatedAt = now

	r.addEvent(RecordEventTypeSectionFilled, userID, row.ResponsibleSector,
		fmt.Sprintf("Section %s filled", section), map[string]any{
			"section": section,
			"sector":  row.ResponsibleSector,
		})

	return nil
}

// SectionsComplete reports whether every named section is FILLED. An empty
// list is vacuously complete: a sector with no owned sections is trivially
// satisfied.
func (r *AdmissionRecord) SectionsComplete(sections []Section) bool {
	for _, section := range sections {
		row := r.findSection(section)
		if row == nil || row.Status != FillFilled {
			return false
		}
	}
	return true
}

func (r *AdmissionRecord) findSection(section Section) *SectionStatus {
	for i := range r.Sections {
		if r.Sections[i].Section == section {
			return &r.Sections[i]
		}
	}
	return nil
}

// --- Observation sub-flow ---

// HoursInObservation returns the wall-clock hours since the record entered
// the attendance queue, zero when no queue entry time is set.
func (r *AdmissionRecord) HoursInObservation(now time.Time) float64 {
	if r.FaDatetime == nil {
		return 0
	}
	return now.Sub(*r.FaDatetime).Hours()
}

// ShouldEscalate reports whether an observation record has exceeded the
// decision deadline.
func (r *AdmissionRecord) ShouldEscalate(now time.Time) bool {
	return r.Status == RecordStatusInObservation && r.HoursInObservation(now) > ObservationDeadlineHours
}

// ApplyEscalation transitions an overdue observation record to
// AWAITING_DECISION. It is idempotent and applied opportunistically on
// every read of an observation worklist; applying it twice is harmless.
// Returns true when a transition happened.
func (r *AdmissionRecord) ApplyEscalation(now time.Time) bool {
	if !r.ShouldEscalate(now) {
		return false
	}

	r.Status = RecordStatusAwaitingDecision
	r.UpdatedAt = now
	r.addEvent(RecordEventTypeEscalated, "", "",
		"Observation exceeded decision deadline", map[string]any{
			"hours_in_observation": r.HoursInObservation(now),
		})
	return true
}

// EvolveToAdmission moves an observation record into the admitted flow.
// Valid only from IN_OBSERVATION or AWAITING_DECISION. The admission date
// is backfilled from the queue entry time when unset, and observation
// timestamps are cleared.
func (r *AdmissionRecord) EvolveToAdmission(actorID types.ID) error {
	if !r.InObservation() {
		return fmt.Errorf("record is not under observation")
	}

	now := time.Now()
	oldStatus := r.Status
	if r.AdmissionDate == nil && r.FaDatetime != nil {
		d := *r.FaDatetime
		r.AdmissionDate = &d
	}
	if r.AdmissionDate == nil {
		r.AdmissionDate = &now
	}
	r.FaDatetime = nil
	r.Status = RecordStatusPending
	r.UpdatedAt = now

	r.EnsureSections()
	r.addEvent(RecordEventTypeEvolved, actorID, SectorNIR, "Observation evolved to admission", map[string]any{
		"old_status": oldStatus,
	})

	return nil
}

// CancelObservation terminally cancels an observation record. Valid only
// from IN_OBSERVATION or AWAITING_DECISION. Cancelled records are excluded
// from every sector worklist.
func (r *AdmissionRecord) CancelObservation(reason string, actorID types.ID) error {
	if !r.InObservation() {
		return fmt.Errorf("record is not under observation")
	}

	now := time.Now()
	oldStatus := r.Status
	r.Cancelled = true
	r.CancelReason = reason
	r.Status = RecordStatusCancelled
	r.UpdatedAt = now

	r.addEvent(RecordEventTypeCancelled, actorID, SectorNIR, reason, map[string]any{
		"old_status": oldStatus,
	})

	return nil
}

// --- Domain events ---

// GetDomainEvents returns and clears domain events
func (r *AdmissionRecord) GetDomainEvents() []Event {
	events := r.domainEvents
	r.domainEvents = nil
	return events
}

// addEvent adds a timeline event and queues it for publishing
func (r *AdmissionRecord) addEvent(eventType RecordEventType, actorID types.ID, actorSector Sector, description string, data map[string]any) {
	event := RecordEvent{
		ID:          types.NewID(),
		RecordID:    r.ID,
		Type:        eventType,
		ActorID:     actorID,
		ActorSector: actorSector,
		Description: description,
		Data:        data,
		Timestamp:   time.Now(),
	}

	r.Events = append(r.Events, event)

	r.domainEvents = append(r.domainEvents, Event{
		Type:        string(eventType),
		RecordID:    r.ID,
		RecordEvent: event,
	})
}
