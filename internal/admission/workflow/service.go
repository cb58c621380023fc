package workflow

import (
	"context"
	"time"

	"github.com/saude-gov/regulacao/internal/admission/domain"
	"github.com/saude-gov/regulacao/internal/reference"
	"github.com/saude-gov/regulacao/internal/shared/errors"
	"github.com/saude-gov/regulacao/internal/shared/events"
	"github.com/saude-gov/regulacao/internal/shared/metrics"
	"github.com/saude-gov/regulacao/internal/shared/types"
)

// Service coordinates admission record mutations: creation, section
// submission, and the observation sub-flow. Every mutation goes through
// here so that gating, ownership checks and event publishing cannot be
// bypassed by a handler.
type Service struct {
	repo   domain.Repository
	bus    events.EventBus
	lookup reference.Lookup
}

// NewService creates a new workflow service. bus and lookup are optional;
// when nil the service skips event publishing and code enrichment.
func NewService(repo domain.Repository, bus events.EventBus, lookup reference.Lookup) *Service {
	return &Service{repo: repo, bus: bus, lookup: lookup}
}

// Actor identifies the user performing a mutation and the sector they act
// for.
type Actor struct {
	ID     types.ID
	Sector domain.Sector
}

// CreateAdmissionInput carries the fields of a direct admission.
type CreateAdmissionInput struct {
	PatientName         string               `json:"patient_name"`
	PatientRecordNumber string               `json:"patient_record_number,omitempty"`
	PatientBirthDate    *time.Time           `json:"patient_birth_date,omitempty"`
	HealthCardNumber    string               `json:"health_card_number,omitempty"`
	AdmissionType       domain.AdmissionType `json:"admission_type,omitempty"`
	EntryType           domain.EntryType     `json:"entry_type,omitempty"`
	AdmissionReason     string               `json:"admission_reason,omitempty"`
	OriginUnit          string               `json:"origin_unit,omitempty"`
}

// CreateAdmission creates a record admitted directly. Only regulation
// creates records.
func (s *Service) CreateAdmission(ctx context.Context, input CreateAdmissionInput, actor Actor) (*domain.AdmissionRecord, error) {
	if actor.Sector != domain.SectorNIR {
		return nil, errors.Forbidden("only regulation creates admission records")
	}
	if err := validateClassification(input.AdmissionType, input.EntryType); err != nil {
		return nil, err
	}

	r, err := domain.NewAdmission(input.PatientName, input.AdmissionType, input.EntryType, actor.ID)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	r.PatientRecordNumber = input.PatientRecordNumber
	r.PatientBirthDate = input.PatientBirthDate
	r.HealthCardNumber = input.HealthCardNumber
	r.AdmissionReason = input.AdmissionReason
	r.OriginUnit = input.OriginUnit

	if err := s.repo.Save(ctx, r); err != nil {
		return nil, errors.Persistence(err, r.ID.String())
	}

	metrics.RecordAdmissionCreated(string(input.AdmissionType), "direct")
	s.publishEvents(ctx, r)

	return r, nil
}

// CreateObservationInput carries the fields of an observation entry.
type CreateObservationInput struct {
	PatientName         string     `json:"patient_name"`
	PatientRecordNumber string     `json:"patient_record_number,omitempty"`
	FaDatetime          time.Time  `json:"fa_datetime"`
	PatientBirthDate    *time.Time `json:"patient_birth_date,omitempty"`
	OriginUnit          string     `json:"origin_unit,omitempty"`
}

// CreateObservation creates a record in the observation holding state.
func (s *Service) CreateObservation(ctx context.Context, input CreateObservationInput, actor Actor) (*domain.AdmissionRecord, error) {
	if actor.Sector != domain.SectorNIR {
		return nil, errors.Forbidden("only regulation creates admission records")
	}
	if input.FaDatetime.IsZero() {
		return nil, errors.BadRequest("fa_datetime is required")
	}

	r, err := domain.NewObservation(input.PatientName, input.FaDatetime, actor.ID)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	r.PatientRecordNumber = input.PatientRecordNumber
	r.PatientBirthDate = input.PatientBirthDate
	r.OriginUnit = input.OriginUnit

	if err := s.repo.Save(ctx, r); err != nil {
		return nil, errors.Persistence(err, r.ID.String())
	}

	metrics.RecordAdmissionCreated("", "observation")
	s.publishEvents(ctx, r)

	return r, nil
}

// Get fetches a record by ID.
func (s *Service) Get(ctx context.Context, id types.ID) (*domain.AdmissionRecord, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns records matching the filter.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.AdmissionRecord, int, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a record and its owned rows.
func (s *Service) Delete(ctx context.Context, id types.ID, actor Actor) error {
	if actor.Sector != domain.SectorNIR {
		return errors.Forbidden("only regulation deletes admission records")
	}
	return s.repo.Delete(ctx, id)
}

// ProcedureInput is one procedure row in a section submission.
type ProcedureInput struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
	Primary  bool   `json:"primary"`
}

// SectionInput carries the typed field data of one section submission.
// Only the fields belonging to the submitted section are applied.
type SectionInput struct {
	// patient-data
	PatientName         string     `json:"patient_name,omitempty"`
	PatientRecordNumber string     `json:"patient_record_number,omitempty"`
	PatientBirthDate    *time.Time `json:"patient_birth_date,omitempty"`
	HealthCardNumber    string     `json:"health_card_number,omitempty"`

	// initial-admission-data
	AdmissionType   domain.AdmissionType `json:"admission_type,omitempty"`
	EntryType       domain.EntryType     `json:"entry_type,omitempty"`
	AdmissionReason string               `json:"admission_reason,omitempty"`
	OriginUnit      string               `json:"origin_unit,omitempty"`

	// scheduling
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	AdmissionDate *time.Time `json:"admission_date,omitempty"`
	Ward          string     `json:"ward,omitempty"`

	// procedures
	Procedures []ProcedureInput `json:"procedures,omitempty"`

	// clinical-info
	CIDCode       string `json:"cid_code,omitempty"`
	ClinicalNotes string `json:"clinical_notes,omitempty"`

	// discharge-data
	DischargeDate   *time.Time `json:"discharge_date,omitempty"`
	DischargeReason string     `json:"discharge_reason,omitempty"`

	// status-control
	BillingBatch string `json:"billing_batch,omitempty"`
	BillingNotes string `json:"billing_notes,omitempty"`
	Audited      *bool  `json:"audited,omitempty"`
}

// SubmitSection fills one section on behalf of a sector. The whole
// operation is atomic from the caller's view: ownership and gating are
// checked against the freshly loaded record, field data is applied, the
// ledger row is marked filled and the rollup status is persisted in one
// update. On any rejection the record is left untouched.
func (s *Service) SubmitSection(ctx context.Context, recordID types.ID, section domain.Section, input SectionInput, actor Actor) (*domain.AdmissionRecord, error) {
	if !domain.ValidSection(section) {
		return nil, errors.BadRequest("unknown section: " + string(section))
	}

	r, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if r.Cancelled {
		metrics.RecordSubmissionRejection("cancelled")
		return nil, errors.InvalidTransition(recordID.String(), string(r.Status), "submit section on")
	}
	if r.InObservation() {
		metrics.RecordSubmissionRejection("in_observation")
		return nil, errors.InvalidTransition(recordID.String(), string(r.Status), "submit section on")
	}

	// Ownership check against the recomputed registry. The persisted row
	// tells us whether the sector held ownership when it last read the
	// record: a stale claim means a concurrent classification change, a
	// claim that never held means a plain ownership violation.
	owner := domain.SectionMap(r)[section]
	if actor.Sector != owner {
		persisted := persistedSector(r, section)
		if persisted == actor.Sector {
			metrics.RecordSubmissionRejection("ownership_changed")
			return nil, errors.OwnershipChanged(recordID.String(), string(section), string(actor.Sector))
		}
		metrics.RecordSubmissionRejection("not_owned")
		return nil, errors.SectionNotOwned(recordID.String(), string(section), string(actor.Sector))
	}

	// Gate check: the sector must be unlocked before it can fill anything.
	if !domain.IsReadyForSector(r, actor.Sector) {
		metrics.RecordSubmissionRejection("sector_locked")
		return nil, errors.InvalidTransition(recordID.String(), string(r.Status), "submit "+string(section)+" before the sector is unlocked on")
	}

	if err := s.applySectionInput(ctx, r, section, input); err != nil {
		return nil, err
	}

	// A classification change in this submission may have reshuffled
	// ownership; the ledger is corrected before the fill is recorded.
	r.EnsureSections()

	if err := r.MarkFilled(section, actor.ID); err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	s.refreshStatus(r)

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, errors.Persistence(err, recordID.String())
	}

	metrics.RecordSectionFilled(string(section), string(actor.Sector))
	s.publishEvents(ctx, r)

	return r, nil
}

// persistedSector returns the responsible sector stored on the ledger row,
// before any in-memory correction.
func persistedSector(r *domain.AdmissionRecord, section domain.Section) domain.Sector {
	for i := range r.Sections {
		if r.Sections[i].Section == section {
			return r.Sections[i].ResponsibleSector
		}
	}
	return ""
}

// applySectionInput copies the typed fields of the submitted section onto
// the record. Fields of other sections are ignored.
func (s *Service) applySectionInput(ctx context.Context, r *domain.AdmissionRecord, section domain.Section, input SectionInput) error {
	switch section {
	case domain.SectionPatientData:
		if input.PatientName != "" {
			r.PatientName = input.PatientName
		}
		if input.PatientRecordNumber != "" {
			r.PatientRecordNumber = input.PatientRecordNumber
		}
		if input.PatientBirthDate != nil {
			r.PatientBirthDate = input.PatientBirthDate
		}
		if input.HealthCardNumber != "" {
			r.HealthCardNumber = input.HealthCardNumber
		}

	case domain.SectionInitialAdmission:
		if err := validateClassification(input.AdmissionType, input.EntryType); err != nil {
			return err
		}
		if input.AdmissionType != "" {
			r.AdmissionType = input.AdmissionType
		}
		if r.AdmissionType == "" {
			return errors.Validation("admission type is required", map[string]string{"admission_type": "required"})
		}
		if input.EntryType != "" {
			r.EntryType = input.EntryType
		}
		if input.AdmissionReason != "" {
			r.AdmissionReason = input.AdmissionReason
		}
		if input.OriginUnit != "" {
			r.OriginUnit = input.OriginUnit
		}

	case domain.SectionScheduling:
		if input.ScheduledDate != nil {
			r.ScheduledDate = input.ScheduledDate
		}
		if input.AdmissionDate != nil {
			r.AdmissionDate = input.AdmissionDate
		}
		if input.Ward != "" {
			r.Ward = input.Ward
		}

	case domain.SectionProcedures:
		if len(input.Procedures) == 0 {
			return errors.Validation("at least one procedure is required", map[string]string{"procedures": "required"})
		}
		entries, err := s.buildProcedureEntries(ctx, r.ID, input.Procedures)
		if err != nil {
			return err
		}
		r.Procedures = entries

	case domain.SectionClinicalInfo:
		if input.CIDCode != "" {
			r.CIDCode = input.CIDCode
			r.CIDDescription = s.resolveCID(ctx, input.CIDCode)
		}
		if input.ClinicalNotes != "" {
			r.ClinicalNotes = input.ClinicalNotes
		}

	case domain.SectionDischargeData:
		if input.DischargeDate == nil {
			return errors.Validation("discharge date is required", map[string]string{"discharge_date": "required"})
		}
		r.DischargeDate = input.DischargeDate
		r.DischargeReason = input.DischargeReason

	case domain.SectionStatusControl:
		if input.BillingBatch != "" {
			r.BillingBatch = input.BillingBatch
		}
		if input.BillingNotes != "" {
			r.BillingNotes = input.BillingNotes
		}
		if input.Audited != nil {
			r.Audited = *input.Audited
		}
	}

	return nil
}

// buildProcedureEntries validates and enriches the procedure list. Exactly
// one entry must be primary; when none is flagged the first one is.
func (s *Service) buildProcedureEntries(ctx context.Context, recordID types.ID, inputs []ProcedureInput) ([]domain.ProcedureEntry, error) {
	primaries := 0
	for _, p := range inputs {
		if p.Code == "" {
			return nil, errors.Validation("procedure code is required", map[string]string{"code": "required"})
		}
		if p.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		return nil, errors.Validation("only one primary procedure is allowed", map[string]string{"procedures": "multiple primaries"})
	}

	entries := make([]domain.ProcedureEntry, 0, len(inputs))
	for i, p := range inputs {
		quantity := p.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		entry := domain.ProcedureEntry{
			ID:       types.NewID(),
			RecordID: recordID,
			Code:     p.Code,
			Quantity: quantity,
			Primary:  p.Primary || (primaries == 0 && i == 0),
			Position: i,
		}

		if s.lookup != nil {
			if proc, err := s.lookup.FindProcedure(ctx, p.Code); err == nil {
				entry.Description = proc.Description
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// resolveCID enriches a CID code with its reference description when the
// lookup is available. Unknown codes are kept as-is.
func (s *Service) resolveCID(ctx context.Context, code string) string {
	if s.lookup == nil {
		return ""
	}
	cid, err := s.lookup.FindCID(ctx, code)
	if err != nil {
		return ""
	}
	return cid.Description
}

// EvolveToAdmission moves an observation record into the admitted flow.
func (s *Service) EvolveToAdmission(ctx context.Context, recordID types.ID, actor Actor) (*domain.AdmissionRecord, error) {
	if actor.Sector != domain.SectorNIR {
		return nil, errors.Forbidden("only regulation evolves observation records")
	}

	r, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	oldStatus := r.Status
	if err := r.EvolveToAdmission(actor.ID); err != nil {
		return nil, errors.InvalidTransition(recordID.String(), string(r.Status), "evolve")
	}

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, errors.Persistence(err, recordID.String())
	}

	metrics.RecordStatusChange(string(oldStatus), string(r.Status))
	s.publishEvents(ctx, r)

	return r, nil
}

// CancelObservation terminally cancels an observation record.
func (s *Service) CancelObservation(ctx context.Context, recordID types.ID, reason string, actor Actor) (*domain.AdmissionRecord, error) {
	if actor.Sector != domain.SectorNIR {
		return nil, errors.Forbidden("only regulation cancels observation records")
	}
	if reason == "" {
		return nil, errors.BadRequest("cancellation reason is required")
	}

	r, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	oldStatus := r.Status
	if err := r.CancelObservation(reason, actor.ID); err != nil {
		return nil, errors.InvalidTransition(recordID.String(), string(r.Status), "cancel")
	}

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, errors.Persistence(err, recordID.String())
	}

	metrics.RecordStatusChange(string(oldStatus), string(r.Status))
	s.publishEvents(ctx, r)

	return r, nil
}

// refreshStatus stores the rollup on the record. The evaluator stays
// authoritative; the stored value only feeds list queries and dashboards.
func (s *Service) refreshStatus(r *domain.AdmissionRecord) {
	old := r.Status
	if r.ApplyOverallStatus() {
		metrics.RecordStatusChange(string(old), string(r.Status))
	}
}

// validateClassification rejects unknown classification values.
func validateClassification(admissionType domain.AdmissionType, entryType domain.EntryType) error {
	switch admissionType {
	case "", domain.AdmissionClinical, domain.AdmissionSurgical:
	default:
		return errors.Validation("invalid admission type", map[string]string{"admission_type": string(admissionType)})
	}
	switch entryType {
	case "", domain.EntryUrgent, domain.EntryElective:
	default:
		return errors.Validation("invalid entry type", map[string]string{"entry_type": string(entryType)})
	}
	return nil
}

// publishEvents drains the record's domain events onto the bus.
func (s *Service) publishEvents(ctx context.Context, r *domain.AdmissionRecord) {
	if s.bus == nil {
		r.GetDomainEvents()
		return
	}

	for _, e := range r.GetDomainEvents() {
		event := events.NewEvent("admission."+e.Type, "regulacao", map[string]any{
			"record_id": r.ID,
			"event":     e.RecordEvent,
		}).WithActor(e.RecordEvent.ActorID, string(e.RecordEvent.ActorSector))

		s.bus.Publish(ctx, event)
	}
}
