package domain

// Sector is an organizational unit that owns workflow sections.
type Sector string

const (
	SectorNIR     Sector = "NIR"
	SectorSurgery Sector = "SURGERY"
	SectorBilling Sector = "BILLING"
)

// Section is a named group of fields on an admission record, completed by
// its owning sector.
type Section string

const (
	SectionPatientData      Section = "patient-data"
	SectionInitialAdmission Section = "initial-admission-data"
	SectionScheduling       Section = "scheduling"
	SectionProcedures       Section = "procedures"
	SectionClinicalInfo     Section = "clinical-info"
	SectionDischargeData    Section = "discharge-data"
	SectionStatusControl    Section = "status-control"
)

// AllSections lists every section in registry order.
var AllSections = []Section{
	SectionPatientData,
	SectionInitialAdmission,
	SectionScheduling,
	SectionProcedures,
	SectionClinicalInfo,
	SectionDischargeData,
	SectionStatusControl,
}

// ValidSection reports whether the name is a known section.
func ValidSection(s Section) bool {
	for _, known := range AllSections {
		if s == known {
			return true
		}
	}
	return false
}

// SectionMap derives the owning sector for every section from the record's
// current classification. It is a pure function of record state and must be
// recomputed on every gating decision; ownership is never persisted as
// configuration.
func SectionMap(r *AdmissionRecord) map[Section]Sector {
	m := make(map[Section]Sector, len(AllSections))
	for _, s := range AllSections {
		m[s] = sectionOwner(r, s)
	}
	return m
}

func sectionOwner(r *AdmissionRecord, s Section) Sector {
	if s == SectionStatusControl {
		return SectorBilling
	}
	if r.AdmissionType == AdmissionClinical {
		return SectorNIR
	}
	if s == SectionProcedures || s == SectionClinicalInfo {
		if r.AdmissionType == AdmissionSurgical || r.EntryType == "" ||
			r.EffectiveEntryType() == EntryUrgent || r.EffectiveEntryType() == EntryElective {
			return SectorSurgery
		}
	}
	return SectorNIR
}

// surgeryOwnsSections reports whether the surgical center owns any section
// under the record's current classification.
func surgeryOwnsSections(r *AdmissionRecord) bool {
	return sectionOwner(r, SectionProcedures) == SectorSurgery
}

// Section groups used by the gate evaluator. Group membership follows the
// current section map, so a classification change reshuffles the stages on
// the next computation.

// initialSections are the regulation sections that open every flow.
func initialSections() []Section {
	return []Section{SectionPatientData, SectionInitialAdmission, SectionScheduling}
}

// surgerySections are the sections the surgical center completes.
func surgerySections() []Section {
	return []Section{SectionProcedures, SectionClinicalInfo}
}

// dischargeSections are the closing regulation sections.
func dischargeSections() []Section {
	return []Section{SectionDischargeData}
}

// billingSections are the billing sections; their completion is the
// terminal condition of the whole flow.
func billingSections() []Section {
	return []Section{SectionStatusControl}
}

// nirSections returns every section the regulation sector owns under the
// record's current classification.
func nirSections(r *AdmissionRecord) []Section {
	var out []Section
	for _, s := range AllSections {
		if sectionOwner(r, s) == SectorNIR {
			out = append(out, s)
		}
	}
	return out
}
