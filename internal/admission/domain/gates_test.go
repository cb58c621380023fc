package domain

import (
	"testing"

	"github.com/saude-gov/regulacao/internal/shared/types"
)

func fillAll(t *testing.T, r *AdmissionRecord, userID types.ID, sections []Section) {
	t.Helper()
	for _, s := range sections {
		if err := r.MarkFilled(s, userID); err != nil {
			t.Fatalf("Failed to fill %s: %v", s, err)
		}
	}
}

// TestNIRAlwaysReady tests that regulation is ready regardless of ledger state
func TestNIRAlwaysReady(t *testing.T) {
	operatorID := types.NewID()

	records := []*AdmissionRecord{}
	clinical, _ := NewAdmission("A", AdmissionClinical, "", operatorID)
	surgical, _ := NewAdmission("B", AdmissionSurgical, EntryUrgent, operatorID)
	unset, _ := NewAdmission("C", "", "", operatorID)
	records = append(records, clinical, surgical, unset)

	for _, r := range records {
		if !IsReadyForSector(r, SectorNIR) {
			t.Errorf("Regulation should always be ready (type=%s)", r.AdmissionType)
		}
	}
}

// TestSurgeryReadiness tests the surgical-center gate
func TestSurgeryReadiness(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	t.Run("Never ready on clinical records", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)
		fillAll(t, r, userID, nirSections(r))
		if IsReadyForSector(r, SectorSurgery) {
			t.Error("Surgical center should never be ready on a clinical record")
		}
	})

	t.Run("Urgent surgical waits on the initial sections only", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionSurgical, EntryUrgent, operatorID)

		if IsReadyForSector(r, SectorSurgery) {
			t.Error("Surgical center should wait for the initial regulation sections")
		}

		fillAll(t, r, userID, initialSections())

		if !IsReadyForSector(r, SectorSurgery) {
			t.Error("Surgical center should be ready once the initial sections are filled")
		}
		// Discharge data is still pending; it must not block surgery
		if r.SectionsComplete(dischargeSections()) {
			t.Fatal("Discharge section should still be pending")
		}
	})

	t.Run("Unset entry type gates like urgent", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionSurgical, "", operatorID)
		fillAll(t, r, userID, initialSections())
		if !IsReadyForSector(r, SectorSurgery) {
			t.Error("Surgical record with unset entry should gate as urgent")
		}
	})
}

// TestBillingReadiness tests the billing gate
func TestBillingReadiness(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	t.Run("Clinical record waits on all regulation sections", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

		fillAll(t, r, userID, initialSections())
		if IsReadyForSector(r, SectorBilling) {
			t.Error("Billing should wait for every regulation section")
		}

		fillAll(t, r, userID, nirSections(r))
		if !IsReadyForSector(r, SectorBilling) {
			t.Error("Billing should be ready once regulation completed everything")
		}
	})

	t.Run("Surgical record also waits on surgery", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionSurgical, EntryUrgent, operatorID)

		fillAll(t, r, userID, nirSections(r))
		if IsReadyForSector(r, SectorBilling) {
			t.Error("Billing should wait for the surgical sections")
		}

		fillAll(t, r, userID, surgerySections())
		if !IsReadyForSector(r, SectorBilling) {
			t.Error("Billing should be ready once regulation and surgery finished")
		}
	})
}

// TestNextAvailableSectorClinical walks the clinical track end to end
func TestNextAvailableSectorClinical(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

	if next := NextAvailableSector(r); next == nil || *next != SectorNIR {
		t.Fatalf("Expected next sector %s, got %v", SectorNIR, next)
	}

	// All regulation sections filled, billing pending
	fillAll(t, r, userID, nirSections(r))

	if next := NextAvailableSector(r); next == nil || *next != SectorBilling {
		t.Errorf("Expected next sector %s, got %v", SectorBilling, next)
	}
	if got := ComputeOverallStatus(r); got != ProgressInProgress {
		t.Errorf("Expected overall status %s, got %s", ProgressInProgress, got)
	}

	fillAll(t, r, userID, billingSections())

	if next := NextAvailableSector(r); next != nil {
		t.Errorf("Expected no next sector after billing, got %s", *next)
	}
}

// TestNextAvailableSectorSurgical walks the surgical track, including the
// return to regulation for discharge before billing
func TestNextAvailableSectorSurgical(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	r, _ := NewAdmission("Maria Souza", AdmissionSurgical, EntryUrgent, operatorID)

	if next := NextAvailableSector(r); next == nil || *next != SectorNIR {
		t.Fatalf("Expected next sector %s, got %v", SectorNIR, next)
	}

	fillAll(t, r, userID, initialSections())
	if next := NextAvailableSector(r); next == nil || *next != SectorSurgery {
		t.Errorf("Expected next sector %s, got %v", SectorSurgery, next)
	}

	// Surgery done, discharge data still pending: the flow returns to
	// regulation, not billing
	fillAll(t, r, userID, surgerySections())
	if next := NextAvailableSector(r); next == nil || *next != SectorNIR {
		t.Errorf("Expected next sector %s for discharge, got %v", SectorNIR, next)
	}
	if IsReadyForSector(r, SectorBilling) {
		t.Error("Billing should still be blocked on discharge data")
	}

	fillAll(t, r, userID, dischargeSections())
	if next := NextAvailableSector(r); next == nil || *next != SectorBilling {
		t.Errorf("Expected next sector %s, got %v", SectorBilling, next)
	}

	fillAll(t, r, userID, billingSections())
	if next := NextAvailableSector(r); next != nil {
		t.Errorf("Expected no next sector, got %s", *next)
	}
}

// TestComputePhase tests phase derivation on both tracks
func TestComputePhase(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	t.Run("Surgical track", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionSurgical, EntryElective, operatorID)

		if got := ComputePhase(r); got != PhaseInitial {
			t.Errorf("Expected phase %s, got %s", PhaseInitial, got)
		}

		fillAll(t, r, userID, initialSections())
		if got := ComputePhase(r); got != PhaseLockedWaitSurgery {
			t.Errorf("Expected phase %s, got %s", PhaseLockedWaitSurgery, got)
		}

		fillAll(t, r, userID, surgerySections())
		if got := ComputePhase(r); got != PhaseFinal {
			t.Errorf("Expected phase %s, got %s", PhaseFinal, got)
		}

		fillAll(t, r, userID, dischargeSections())
		if got := ComputePhase(r); got != PhaseLockedAfter {
			t.Errorf("Expected phase %s, got %s", PhaseLockedAfter, got)
		}

		fillAll(t, r, userID, billingSections())
		if got := ComputePhase(r); got != PhaseLockedAfterFull {
			t.Errorf("Expected phase %s, got %s", PhaseLockedAfterFull, got)
		}
	})

	t.Run("Clinical track", func(t *testing.T) {
		r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

		if got := ComputePhase(r); got != PhaseInitial {
			t.Errorf("Expected phase %s, got %s", PhaseInitial, got)
		}

		fillAll(t, r, userID, initialSections())
		if got := ComputePhase(r); got != PhaseFinal {
			t.Errorf("Expected phase %s, got %s", PhaseFinal, got)
		}

		fillAll(t, r, userID, nirSections(r))
		if got := ComputePhase(r); got != PhaseLockedAfter {
			t.Errorf("Expected phase %s, got %s", PhaseLockedAfter, got)
		}

		fillAll(t, r, userID, billingSections())
		if got := ComputePhase(r); got != PhaseLockedAfterFull {
			t.Errorf("Expected phase %s, got %s", PhaseLockedAfterFull, got)
		}
	})
}

// TestComputeSectorProgress tests per-sector aggregation
func TestComputeSectorProgress(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	r, _ := NewAdmission("Maria Souza", AdmissionSurgical, EntryUrgent, operatorID)

	progress := ComputeSectorProgress(r)
	if progress[SectorNIR].Status != ProgressPending {
		t.Errorf("Expected regulation %s, got %s", ProgressPending, progress[SectorNIR].Status)
	}
	if progress[SectorNIR].Total != 4 {
		t.Errorf("Expected regulation to own 4 sections, got %d", progress[SectorNIR].Total)
	}
	if progress[SectorSurgery].Total != 2 {
		t.Errorf("Expected surgery to own 2 sections, got %d", progress[SectorSurgery].Total)
	}

	r.MarkFilled(SectionPatientData, userID)
	progress = ComputeSectorProgress(r)
	if progress[SectorNIR].Status != ProgressInProgress {
		t.Errorf("Expected regulation %s, got %s", ProgressInProgress, progress[SectorNIR].Status)
	}
	if progress[SectorNIR].Filled != 1 || progress[SectorNIR].Pending != 3 {
		t.Errorf("Expected 1 filled / 3 pending, got %d / %d",
			progress[SectorNIR].Filled, progress[SectorNIR].Pending)
	}

	fillAll(t, r, userID, surgerySections())
	progress = ComputeSectorProgress(r)
	if progress[SectorSurgery].Status != ProgressComplete {
		t.Errorf("Expected surgery %s, got %s", ProgressComplete, progress[SectorSurgery].Status)
	}
}

// TestSectorProgressVacuousComplete tests that a sector owning no sections
// is complete
func TestSectorProgressVacuousComplete(t *testing.T) {
	operatorID := types.NewID()
	r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

	progress := ComputeSectorProgress(r)
	if progress[SectorSurgery].Total != 0 {
		t.Fatalf("Clinical record should leave surgery with 0 sections, got %d", progress[SectorSurgery].Total)
	}
	if progress[SectorSurgery].Status != ProgressComplete {
		t.Errorf("Sector with no sections should be %s, got %s", ProgressComplete, progress[SectorSurgery].Status)
	}
}

// TestOverallStatusMonotonic tests PENDING -> EM_ANDAMENTO -> CONCLUIDO
func TestOverallStatusMonotonic(t *testing.T) {
	operatorID := types.NewID()
	userID := types.NewID()

	r, _ := NewAdmission("Maria Souza", AdmissionClinical, "", operatorID)

	if got := ComputeOverallStatus(r); got != ProgressPending {
		t.Errorf("Expected %s, got %s", ProgressPending, got)
	}

	r.MarkFilled(SectionPatientData, userID)
	if got := ComputeOverallStatus(r); got != ProgressInProgress {
		t.Errorf("Expected %s, got %s", ProgressInProgress, got)
	}

	fillAll(t, r, userID, nirSections(r))
	fillAll(t, r, userID, billingSections())
	if got := ComputeOverallStatus(r); got != ProgressComplete {
		t.Errorf("Expected %s, got %s", ProgressComplete, got)
	}

	// Filling is one-way, so completion cannot regress
	for _, s := range r.Sections {
		if s.Status != FillFilled {
			t.Errorf("Section %s should remain filled", s.Section)
		}
	}
}
