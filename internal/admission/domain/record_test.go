package domain

import (
	"testing"
	"time"

	"github.com/saude-gov/regulacao/internal/shared/types"
)

// TestNewAdmission tests creating an admitted record
func TestNewAdmission(t *testing.T) {
	operatorID := types.NewID()

	r, err := NewAdmission("Maria Souza", AdmissionSurgical, EntryElective, operatorID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if r.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}

	if r.Status != RecordStatusPending {
		t.Errorf("Expected status %s, got %s", RecordStatusPending, r.Status)
	}

	if r.AdmissionDate == nil {
		t.Error("Expected admission date to be set")
	}

	if r.FaDatetime != nil {
		t.Error("Admitted record should have no attendance queue time")
	}

	// Every registered section gets a ledger row at creation
	if len(r.Sections) != len(AllSections) {
		t.Errorf("Expected %d section rows, got %d", len(AllSections), len(r.Sections))
	}

	for _, s := range r.Sections {
		if s.Status != FillPending {
			t.Errorf("Section %s should start PENDING, got %s", s.Section, s.Status)
		}
	}

	// Should have creation event
	if len(r.Events) != 1 {
		t.Errorf("Expected 1 event, got %d", len(r.Events))
	}

	if r.Events[0].Type != RecordEventTypeCreated {
		t.Errorf("Expected event type %s, got %s", RecordEventTypeCreated, r.Events[0].Type)
	}
}

// TestNewAdmissionValidation tests validation when creating a record
func TestNewAdmissionValidation(t *testing.T) {
	operatorID := types.NewID()

	tests := []struct {
		name        string
		patientName string
		operatorID  types.ID
		expectError bool
	}{
		{"Empty patient name", "", operatorID, true},
		{"Zero operator ID", "Maria Souza", types.ID(""), true},
		{"Valid record", "Maria Souza", operatorID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdmission(tt.patientName, AdmissionClinical, "", tt.operatorID)

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

// TestNewObservation tests creating a record in the observation holding state
func TestNewObservation(t *testing.T) {
	operatorID := types.NewID()
	fa := time.Now().Add(-2 * time.Hour)

	r, err := NewObservation("Jose Lima", fa, operatorID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if r.Status != RecordStatusInObservation {
		t.Errorf("Expected status %s, got %s", RecordStatusInObservation, r.Status)
	}

	if r.FaDatetime == nil || !r.FaDatetime.Equal(fa) {
		t.Error("Expected faDatetime to be preserved")
	}

	if r.AdmissionDate != nil {
		t.Error("Observation record should not have an admission date")
	}

	if len(r.Sections) != 0 {
		t.Errorf("Observation record should have no section rows yet, got %d", len(r.Sections))
	}
}

// TestEffectiveEntryType tests the default entry urgency rule
func TestEffectiveEntryType(t *testing.T) {
	tests := []struct {
		name          string
		admissionType AdmissionType
		entryType     EntryType
		expected      EntryType
	}{
		{"Surgical with unset entry defaults to urgent", AdmissionSurgical, "", EntryUrgent},
		{"Surgical elective stays elective", AdmissionSurgical, EntryElective, EntryElective},
		{"Surgical urgent stays urgent", AdmissionSurgical, EntryUrgent, EntryUrgent},
		{"Clinical with unset entry stays unset", AdmissionClinical, "", ""},
		{"Unset type with unset entry stays unset", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &AdmissionRecord{AdmissionType: tt.admissionType, EntryType: tt.entryType}
			if got := r.EffectiveEntryType(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// TestMarkFilled tests filling a section
func TestMarkFilled(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

	if err := r.MarkFilled(SectionPatientData, userID); err != nil {
		t.Fatalf("Failed to mark section filled: %v", err)
	}

	row := r.findSection(SectionPatientData)
	if row.Status != FillFilled {
		t.Errorf("Expected status %s, got %s", FillFilled, row.Status)
	}
	if row.FilledBy == nil || *row.FilledBy != userID {
		t.Error("Expected filling user to be recorded")
	}
	if row.FilledAt == nil {
		t.Error("Expected filling timestamp to be recorded")
	}

	// Unknown sections are rejected
	if err := r.MarkFilled(Section("nonexistent"), userID); err == nil {
		t.Error("Expected error for unknown section")
	}

	// Timeline records the fill
	found := false
	for _, e := range r.Events {
		if e.Type == RecordEventTypeSectionFilled {
			found = true
			break
		}
	}
	if !found {
		t.Error("Section fill event not found")
	}
}

// TestSectionsCompleteVacuous tests that an empty section list is complete
func TestSectionsCompleteVacuous(t *testing.T) {
	operatorID := types.NewID()
	r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

	if !r.SectionsComplete(nil) {
		t.Error("Empty section list should be vacuously complete")
	}
	if !r.SectionsComplete([]Section{}) {
		t.Error("Empty section list should be vacuously complete")
	}
	if r.SectionsComplete([]Section{SectionPatientData}) {
		t.Error("Unfilled section should not be complete")
	}
}

// TestEnsureSectionsIdempotent tests that re-running the upsert preserves
// filled status and audit fields while correcting ownership
func TestEnsureSectionsIdempotent(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	r, _ := NewAdmission("Maria Souza", AdmissionSurgical, EntryUrgent, operatorID)
	r.MarkFilled(SectionProcedures, userID)

	if owner := r.findSection(SectionProcedures).ResponsibleSector; owner != SectorSurgery {
		t.Fatalf("Expected procedures owned by %s, got %s", SectorSurgery, owner)
	}

	// Reclassify to clinical: ownership moves to regulation, fill survives
	r.AdmissionType = AdmissionClinical
	r.EnsureSections()

	if len(r.Sections) != len(AllSections) {
		t.Errorf("Expected %d section rows after re-run, got %d", len(AllSections), len(r.Sections))
	}

	row := r.findSection(SectionProcedures)
	if row.ResponsibleSector != SectorNIR {
		t.Errorf("Expected ownership corrected to %s, got %s", SectorNIR, row.ResponsibleSector)
	}
	if row.Status != FillFilled {
		t.Error("Filled status should survive ownership correction")
	}
	if row.FilledBy == nil || *row.FilledBy != userID {
		t.Error("Audit fields should survive ownership correction")
	}
}

// TestObservationEscalation tests the 24h escalation deadline
func TestObservationEscalation(t *testing.T) {
	operatorID := types.NewID()
	now := time.Now()

	t.Run("Overdue record escalates", func(t *testing.T) {
		r, _ := NewObservation("Jose Lima", now.Add(-25*time.Hour), operatorID)

		if !r.ShouldEscalate(now) {
			t.Fatal("Record 25 hours in observation should escalate")
		}

		if !r.ApplyEscalation(now) {
			t.Error("Expected escalation to apply")
		}
		if r.Status != RecordStatusAwaitingDecision {
			t.Errorf("Expected status %s, got %s", RecordStatusAwaitingDecision, r.Status)
		}

		// Applying again is a no-op
		if r.ApplyEscalation(now) {
			t.Error("Second escalation should be a no-op")
		}
	})

	t.Run("Record within deadline does not escalate", func(t *testing.T) {
		r, _ := NewObservation("Jose Lima", now.Add(-23*time.Hour), operatorID)

		if r.ShouldEscalate(now) {
			t.Error("Record 23 hours in observation should not escalate")
		}
		if r.ApplyEscalation(now) {
			t.Error("Escalation should not apply within deadline")
		}
		if r.Status != RecordStatusInObservation {
			t.Errorf("Expected status %s, got %s", RecordStatusInObservation, r.Status)
		}
	})

	t.Run("Admitted record never escalates", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)
		if r.ShouldEscalate(now.Add(48 * time.Hour)) {
			t.Error("Admitted record should never escalate")
		}
	})
}

// TestEvolveToAdmission tests moving an observation record into the admitted flow
func TestEvolveToAdmission(t *testing.T) {
	operatorID := types.NewID()
	actorID := types.NewID()
	fa := time.Now().Add(-5 * time.Hour)

	r, _ := NewObservation("Jose Lima", fa, operatorID)

	if err := r.EvolveToAdmission(actorID); err != nil {
		t.Fatalf("Failed to evolve observation: %v", err)
	}

	if r.Status != RecordStatusPending {
		t.Errorf("Expected status %s, got %s", RecordStatusPending, r.Status)
	}
	if r.AdmissionDate == nil || !r.AdmissionDate.Equal(fa) {
		t.Error("Admission date should be backfilled from queue entry time")
	}
	if r.FaDatetime != nil {
		t.Error("Queue entry time should be cleared after evolving")
	}
	if len(r.Sections) != len(AllSections) {
		t.Errorf("Expected %d section rows after evolving, got %d", len(AllSections), len(r.Sections))
	}

	// Evolving twice fails: the record is no longer under observation
	if err := r.EvolveToAdmission(actorID); err == nil {
		t.Error("Expected error when evolving an already admitted record")
	}
}

// TestEvolveFromAwaitingDecision tests that escalated records can still evolve
func TestEvolveFromAwaitingDecision(t *testing.T) {
	operatorID := types.NewID()
	now := time.Now()

	r, _ := NewObservation("Jose Lima", now.Add(-30*time.Hour), operatorID)
	r.ApplyEscalation(now)

	if err := r.EvolveToAdmission(operatorID); err != nil {
		t.Fatalf("Escalated record should still evolve: %v", err)
	}
	if r.Status != RecordStatusPending {
		t.Errorf("Expected status %s, got %s", RecordStatusPending, r.Status)
	}
}

// TestCancelObservation tests terminal cancellation of observation records
func TestCancelObservation(t *testing.T) {
	operatorID := types.NewID()

	t.Run("Cancel from observation", func(t *testing.T) {
		r, _ := NewObservation("Jose Lima", time.Now(), operatorID)

		if err := r.CancelObservation("patient discharged from emergency", operatorID); err != nil {
			t.Fatalf("Failed to cancel observation: %v", err)
		}

		if !r.Cancelled {
			t.Error("Expected cancelled flag set")
		}
		if r.Status != RecordStatusCancelled {
			t.Errorf("Expected status %s, got %s", RecordStatusCancelled, r.Status)
		}
		if r.CancelReason == "" {
			t.Error("Expected cancel reason recorded")
		}
	})

	t.Run("Cannot cancel admitted record", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

		err := r.CancelObservation("invalid", operatorID)
		if err == nil {
			t.Error("Expected error when cancelling a non-observation record")
		}
		if r.Status != RecordStatusPending {
			t.Errorf("Status should be unchanged, got %s", r.Status)
		}
		if r.Cancelled {
			t.Error("Cancelled flag should be unchanged")
		}
	})
}

// TestDomainEvents tests that domain events are generated and cleared
func TestDomainEvents(t *testing.T) {
	operatorID := types.NewID()

	r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

	events := r.GetDomainEvents()
	if len(events) != 1 {
		t.Errorf("Expected 1 domain event, got %d", len(events))
	}

	// Events should be cleared after getting
	events = r.GetDomainEvents()
	if len(events) != 0 {
		t.Errorf("Expected 0 domain events after clear, got %d", len(events))
	}

	r.MarkFilled(SectionPatientData, operatorID)
	events = r.GetDomainEvents()
	if len(events) != 1 {
		t.Errorf("Expected 1 domain event after fill, got %d", len(events))
	}

	if events[0].Type != string(RecordEventTypeSectionFilled) {
		t.Errorf("Expected event type %s, got %s", RecordEventTypeSectionFilled, events[0].Type)
	}
}
