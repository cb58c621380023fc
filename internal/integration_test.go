package internal

import (
	"testing"
	"time"

	"github.com/saude-gov/regulacao/internal/admission/domain"
	"github.com/saude-gov/regulacao/internal/shared/types"
)

// TestFullSurgicalWorkflow tests the complete lifecycle of a surgical
// admission: regulation opens, surgery takes over, regulation discharges,
// billing closes.
func TestFullSurgicalWorkflow(t *testing.T) {
	operatorID := types.NewID()
	surgeonID := types.NewID()
	billerID := types.NewID()

	// 1. Regulation creates the record
	r, err := domain.NewAdmission("Maria Souza", domain.AdmissionSurgical, domain.EntryUrgent, operatorID)
	if err != nil {
		t.Fatalf("Failed to create admission: %v", err)
	}
	if r.Status != domain.RecordStatusPending {
		t.Errorf("New record should be pending, got %s", r.Status)
	}
	if len(r.Sections) != len(domain.AllSections) {
		t.Fatalf("Expected %d section rows, got %d", len(domain.AllSections), len(r.Sections))
	}

	// 2. Surgery is locked until the opening sections are filled
	if domain.IsReadyForSector(r, domain.SectorSurgery) {
		t.Error("Surgery should be locked before the opening sections are filled")
	}
	if domain.ComputePhase(r) != domain.PhaseInitial {
		t.Errorf("Expected initial phase, got %s", domain.ComputePhase(r))
	}

	// 3. Regulation fills the opening sections
	for _, s := range []domain.Section{
		domain.SectionPatientData, domain.SectionInitialAdmission, domain.SectionScheduling,
	} {
		if err := r.MarkFilled(s, operatorID); err != nil {
			t.Fatalf("Failed to fill %s: %v", s, err)
		}
	}
	r.ApplyOverallStatus()

	if !domain.IsReadyForSector(r, domain.SectorSurgery) {
		t.Fatal("Surgery should be unlocked after the opening sections")
	}
	if domain.ComputePhase(r) != domain.PhaseLockedWaitSurgery {
		t.Errorf("Expected locked-wait-surgery phase, got %s", domain.ComputePhase(r))
	}
	if r.Status != domain.RecordStatusInProgress {
		t.Errorf("Record should be in progress, got %s", r.Status)
	}

	// 4. Surgery fills its sections
	r.MarkFilled(domain.SectionProcedures, surgeonID)
	r.MarkFilled(domain.SectionClinicalInfo, surgeonID)

	next := domain.NextAvailableSector(r)
	if next == nil || *next != domain.SectorNIR {
		t.Fatalf("Regulation should owe the discharge section, got %v", next)
	}
	if domain.IsReadyForSector(r, domain.SectorBilling) {
		t.Error("Billing should stay locked until discharge")
	}

	// 5. Regulation discharges
	r.MarkFilled(domain.SectionDischargeData, operatorID)

	if !domain.IsReadyForSector(r, domain.SectorBilling) {
		t.Fatal("Billing should be unlocked after discharge")
	}

	// 6. Billing closes the record
	r.MarkFilled(domain.SectionStatusControl, billerID)
	r.ApplyOverallStatus()

	if r.Status != domain.RecordStatusComplete {
		t.Errorf("Record should be complete, got %s", r.Status)
	}
	if domain.NextAvailableSector(r) != nil {
		t.Error("No sector should have work left")
	}
	if domain.ComputePhase(r) != domain.PhaseLockedAfterFull {
		t.Errorf("Expected terminal phase, got %s", domain.ComputePhase(r))
	}
}

// TestObservationToAdmissionWorkflow tests the observation sub-flow from
// queue entry through escalation to admission.
func TestObservationToAdmissionWorkflow(t *testing.T) {
	operatorID := types.NewID()
	queueEntry := time.Now().Add(-26 * time.Hour)

	r, err := domain.NewObservation("Joao Lima", queueEntry, operatorID)
	if err != nil {
		t.Fatalf("Failed to create observation: %v", err)
	}
	if r.Status != domain.RecordStatusInObservation {
		t.Errorf("Expected in-observation status, got %s", r.Status)
	}
	if len(r.Sections) != 0 {
		t.Error("Observation records carry no section ledger")
	}

	// Past the deadline the record escalates on read
	if !r.ApplyEscalation(time.Now()) {
		t.Fatal("Record past the deadline should escalate")
	}
	if r.Status != domain.RecordStatusAwaitingDecision {
		t.Errorf("Expected awaiting-decision status, got %s", r.Status)
	}

	// Regulation decides to admit
	if err := r.EvolveToAdmission(operatorID); err != nil {
		t.Fatalf("Failed to evolve: %v", err)
	}
	if r.Status != domain.RecordStatusPending {
		t.Errorf("Evolved record should be pending, got %s", r.Status)
	}
	if r.AdmissionDate == nil || !r.AdmissionDate.Equal(queueEntry) {
		t.Error("Admission date should be backfilled from the queue entry time")
	}
	if r.FaDatetime != nil {
		t.Error("Queue entry time should be cleared after evolving")
	}
	if len(r.Sections) != len(domain.AllSections) {
		t.Error("Evolved record should carry the full section ledger")
	}

	// The evolved record follows the normal flow
	if !domain.IsReadyForSector(r, domain.SectorNIR) {
		t.Error("Regulation should be ready on the evolved record")
	}
}

// TestClassificationChangeReshufflesOwnership tests that reclassifying an
// admission moves section ownership and the downstream gates with it.
func TestClassificationChangeReshufflesOwnership(t *testing.T) {
	operatorID := types.NewID()

	r, err := domain.NewAdmission("Ana Castro", domain.AdmissionSurgical, domain.EntryUrgent, operatorID)
	if err != nil {
		t.Fatalf("Failed to create admission: %v", err)
	}

	if domain.SectionMap(r)[domain.SectionProcedures] != domain.SectorSurgery {
		t.Fatal("Surgery should own procedures on a surgical record")
	}

	// Regulation corrects the classification to clinical
	r.AdmissionType = domain.AdmissionClinical
	r.EnsureSections()

	m := domain.SectionMap(r)
	if m[domain.SectionProcedures] != domain.SectorNIR {
		t.Error("Regulation should own procedures after reclassification")
	}
	for i := range r.Sections {
		if r.Sections[i].ResponsibleSector == domain.SectorSurgery {
			t.Errorf("No ledger row should stay with surgery, found %s", r.Sections[i].Section)
		}
	}
	if domain.IsReadyForSector(r, domain.SectorSurgery) {
		t.Error("Surgery is never ready on a clinical record")
	}
}
