package domain

import "fmt"

// Phase is the computed workflow phase of a record. It is derived from the
// section ledger on every call and never stored.
type Phase string

const (
	// PhaseInitial: the opening regulation sections are the focus.
	PhaseInitial Phase = "INITIAL"
	// PhaseFinal: the discharge sections are the focus.
	PhaseFinal Phase = "FINAL"
	// PhaseFull: every regulation section forms one flat group.
	PhaseFull Phase = "FULL"
	// PhaseLockedWaitSurgery: regulation is locked while the surgical
	// center completes its sections.
	PhaseLockedWaitSurgery Phase = "LOCKED_WAIT_SURGERY"
	// PhaseLockedAfter: clinical work is done, billing remains.
	PhaseLockedAfter Phase = "LOCKED_AFTER"
	// PhaseLockedAfterFull: billing is complete; the flow is terminal.
	PhaseLockedAfterFull Phase = "LOCKED_AFTER_FULL"
)

// ProgressStatus is the aggregate completion status of a sector or record.
type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "PENDING"
	ProgressInProgress ProgressStatus = "EM_ANDAMENTO"
	ProgressComplete   ProgressStatus = "CONCLUIDO"
)

// SectorProgress is the aggregated completion of one sector's sections.
type SectorProgress struct {
	Total   int            `json:"total"`
	Filled  int            `json:"filled"`
	Pending int            `json:"pending"`
	Status  ProgressStatus `json:"status"`
}

// track is the transition layout selected by the record classification.
type track int

const (
	trackClinical track = iota
	trackSurgical
	trackFlat
)

func flowTrack(r *AdmissionRecord) track {
	if r.AdmissionType == AdmissionClinical {
		return trackClinical
	}
	if surgeryOwnsSections(r) {
		return trackSurgical
	}
	return trackFlat
}

// SectionControlConfig exposes the current section-to-sector ownership map.
func SectionControlConfig(r *AdmissionRecord) map[Section]Sector {
	return SectionMap(r)
}

// IsReadyForSector reports whether a sector's work is unlocked on the
// record. Regulation originates every record and is always ready; the
// surgical center waits on the opening regulation sections; billing waits
// on everything upstream.
func IsReadyForSector(r *AdmissionRecord, sector Sector) bool {
	switch sector {
	case SectorNIR:
		return true
	case SectorSurgery:
		if r.AdmissionType == AdmissionClinical {
			return false
		}
		eff := r.EffectiveEntryType()
		if eff == EntryUrgent || eff == EntryElective {
			return r.SectionsComplete(initialSections())
		}
		return r.SectionsComplete(nirSections(r))
	case SectorBilling:
		if !r.SectionsComplete(nirSections(r)) {
			return false
		}
		if surgeryOwnsSections(r) && !r.SectionsComplete(surgerySections()) {
			return false
		}
		return true
	}
	return false
}

// NextAvailableSector walks the ordered stages of the record's track and
// returns the first sector whose sections are not yet complete, or nil
// once billing is complete. This function, not the stored status, is
// authoritative for whose turn it is.
func NextAvailableSector(r *AdmissionRecord) *Sector {
	for _, stage := range stages(r) {
		if !r.SectionsComplete(stage.sections) {
			sector := stage.sector
			return &sector
		}
	}
	return nil
}

type stage struct {
	sector   Sector
	sections []Section
}

// stages returns the ordered gate stages for the record's classification.
// Each stage is a hard gate: its sector may not act until every earlier
// stage is fully filled.
func stages(r *AdmissionRecord) []stage {
	switch flowTrack(r) {
	case trackSurgical:
		return []stage{
			{SectorNIR, initialSections()},
			{SectorSurgery, surgerySections()},
			{SectorNIR, dischargeSections()},
			{SectorBilling, billingSections()},
		}
	default:
		return []stage{
			{SectorNIR, nirSections(r)},
			{SectorBilling, billingSections()},
		}
	}
}

// ComputePhase derives the record's workflow phase from its ledger.
func ComputePhase(r *AdmissionRecord) Phase {
	switch flowTrack(r) {
	case trackSurgical:
		switch {
		case !r.SectionsComplete(initialSections()):
			return PhaseInitial
		case !r.SectionsComplete(surgerySections()):
			return PhaseLockedWaitSurgery
		case !r.SectionsComplete(dischargeSections()):
			return PhaseFinal
		case !r.SectionsComplete(billingSections()):
			return PhaseLockedAfter
		default:
			return PhaseLockedAfterFull
		}
	case trackClinical:
		switch {
		case !r.SectionsComplete(initialSections()):
			return PhaseInitial
		case !r.SectionsComplete(nirSections(r)):
			return PhaseFinal
		case !r.SectionsComplete(billingSections()):
			return PhaseLockedAfter
		default:
			return PhaseLockedAfterFull
		}
	default:
		switch {
		case !r.SectionsComplete(nirSections(r)):
			return PhaseFull
		case !r.SectionsComplete(billingSections()):
			return PhaseLockedAfter
		default:
			return PhaseLockedAfterFull
		}
	}
}

// ComputeSectorProgress aggregates per-sector completion over the current
// section map. A sector owning no sections is vacuously complete.
func ComputeSectorProgress(r *AdmissionRecord) map[Sector]SectorProgress {
	m := SectionMap(r)
	out := map[Sector]SectorProgress{
		SectorNIR:     {},
		SectorSurgery: {},
		SectorBilling: {},
	}

	for section, sector := range m {
		p := out[sector]
		p.Total++
		row := r.findSection(section)
		if row != nil && row.Status == FillFilled {
			p.Filled++
		} else {
			p.Pending++
		}
		out[sector] = p
	}

	for sector, p := range out {
		switch {
		case p.Total == 0 || p.Filled == p.Total:
			p.Status = ProgressComplete
		case p.Filled == 0:
			p.Status = ProgressPending
		default:
			p.Status = ProgressInProgress
		}
		out[sector] = p
	}

	return out
}

// ApplyOverallStatus recomputes the rollup and stores it on the record,
// emitting a timeline event when it changed. Only admitted records carry
// the rollup; observation statuses are managed by the sub-flow.
func (r *AdmissionRecord) ApplyOverallStatus() bool {
	if r.InObservation() || r.Cancelled {
		return false
	}

	var next RecordStatus
	switch ComputeOverallStatus(r) {
	case ProgressComplete:
		next = RecordStatusComplete
	case ProgressInProgress:
		next = RecordStatusInProgress
	default:
		next = RecordStatusPending
	}

	if r.Status == next {
		return false
	}

	old := r.Status
	r.Status = next
	r.addEvent(RecordEventTypeStatusChanged, "", "",
		fmt.Sprintf("Status changed from %s to %s", old, next), map[string]any{
			"old_status": old,
			"new_status": next,
		})
	return true
}

// ComputeOverallStatus is the record rollup: PENDING while nothing is
// filled, CONCLUIDO once billing's sections are complete, EM_ANDAMENTO in
// between. Billing completion is a one-way gate, so CONCLUIDO is final.
func ComputeOverallStatus(r *AdmissionRecord) ProgressStatus {
	if r.SectionsComplete(billingSections()) && len(r.Sections) > 0 {
		return ProgressComplete
	}
	for i := range r.Sections {
		if r.Sections[i].Status == FillFilled {
			return ProgressInProgress
		}
	}
	return ProgressPending
}
