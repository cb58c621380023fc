package worklist

import (
	"context"
	"log"
	"time"

	"github.com/saude-gov/regulacao/internal/admission/domain"
	"github.com/saude-gov/regulacao/internal/shared/events"
	"github.com/saude-gov/regulacao/internal/shared/metrics"
)

// Service builds the per-sector work queues. Readiness is recomputed from
// the section ledger on every call; the stored record status never decides
// whose turn it is.
type Service struct {
	repo domain.Repository
	bus  events.EventBus
	now  func() time.Time
}

// NewService creates a worklist service. bus is optional.
func NewService(repo domain.Repository, bus events.EventBus) *Service {
	return &Service{repo: repo, bus: bus, now: time.Now}
}

// Item is one worklist row: the record plus its computed gate state.
type Item struct {
	Record     domain.AdmissionRecord                  `json:"record"`
	Ready      bool                                    `json:"ready"`
	NextSector *domain.Sector                          `json:"next_sector,omitempty"`
	Phase      domain.Phase                            `json:"phase"`
	Progress   map[domain.Sector]domain.SectorProgress `json:"progress"`
}

// Worklist is the response of a sector worklist query.
type Worklist struct {
	Sector  domain.Sector `json:"sector"`
	Ready   []Item        `json:"ready"`
	Waiting []Item        `json:"waiting"`
	Total   int           `json:"total"`
}

// ForSector returns the sector's worklist: records where the sector is
// unlocked and still has pending sections, plus records heading its way.
// Cancelled and observation records never appear here.
func (s *Service) ForSector(ctx context.Context, sector domain.Sector) (*Worklist, error) {
	cancelled := false
	records, _, err := s.repo.List(ctx, domain.ListFilter{
		Cancelled: &cancelled,
		Statuses: []domain.RecordStatus{
			domain.RecordStatusPending,
			domain.RecordStatusInProgress,
		},
	})
	if err != nil {
		return nil, err
	}

	wl := &Worklist{Sector: sector}
	for i := range records {
		r := &records[i]
		progress := domain.ComputeSectorProgress(r)

		// Sector has nothing left on this record
		if progress[sector].Pending == 0 {
			continue
		}

		item := Item{
			Record:     *r,
			Ready:      domain.IsReadyForSector(r, sector),
			NextSector: domain.NextAvailableSector(r),
			Phase:      domain.ComputePhase(r),
			Progress:   progress,
		}

		if item.Ready {
			wl.Ready = append(wl.Ready, item)
		} else {
			wl.Waiting = append(wl.Waiting, item)
		}
	}

	wl.Total = len(wl.Ready) + len(wl.Waiting)
	return wl, nil
}

// ObservationItem is one observation queue row.
type ObservationItem struct {
	Record             domain.AdmissionRecord `json:"record"`
	HoursInObservation float64                `json:"hours_in_observation"`
	Overdue            bool                   `json:"overdue"`
}

// ObservationQueue returns the observation holding queue. Records past the
// decision deadline are escalated in place: the transition is applied and
// persisted as part of the read, so every consumer sees AWAITING_DECISION
// without a background scheduler.
func (s *Service) ObservationQueue(ctx context.Context) ([]ObservationItem, error) {
	cancelled := false
	records, _, err := s.repo.List(ctx, domain.ListFilter{
		Cancelled: &cancelled,
		Statuses: []domain.RecordStatus{
			domain.RecordStatusInObservation,
			domain.RecordStatusAwaitingDecision,
		},
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]ObservationItem, 0, len(records))
	for i := range records {
		r := &records[i]

		if r.ApplyEscalation(now) {
			if err := s.repo.Update(ctx, r); err != nil {
				// Keep serving the queue; the next read retries the
				// escalation since the deadline check is idempotent.
				log.Printf("Failed to persist escalation of record %s: %v", r.ID, err)
			} else {
				metrics.RecordObservationEscalation()
				metrics.RecordStatusChange(
					string(domain.RecordStatusInObservation),
					string(domain.RecordStatusAwaitingDecision),
				)
				s.publishEvents(ctx, r)
			}
		}

		items = append(items, ObservationItem{
			Record:             *r,
			HoursInObservation: r.HoursInObservation(now),
			Overdue:            r.Status == domain.RecordStatusAwaitingDecision,
		})
	}

	return items, nil
}

// Dashboard aggregates record counts for the landing view.
type Dashboard struct {
	Pending          int `json:"pending"`
	InProgress       int `json:"in_progress"`
	Complete         int `json:"complete"`
	InObservation    int `json:"in_observation"`
	AwaitingDecision int `json:"awaiting_decision"`
	Cancelled        int `json:"cancelled"`
	Total            int `json:"total"`

	ReadyBySector map[domain.Sector]int `json:"ready_by_sector"`
}

// Dashboard computes the overview counts.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	records, total, err := s.repo.List(ctx, domain.ListFilter{})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Total: total,
		ReadyBySector: map[domain.Sector]int{
			domain.SectorNIR:     0,
			domain.SectorSurgery: 0,
			domain.SectorBilling: 0,
		},
	}

	for i := range records {
		r := &records[i]
		switch r.Status {
		case domain.RecordStatusPending:
			d.Pending++
		case domain.RecordStatusInProgress:
			d.InProgress++
		case domain.RecordStatusComplete:
			d.Complete++
		case domain.RecordStatusInObservation:
			d.InObservation++
		case domain.RecordStatusAwaitingDecision:
			d.AwaitingDecision++
		case domain.RecordStatusCancelled:
			d.Cancelled++
		}

		if r.Cancelled || r.InObservation() {
			continue
		}

		progress := domain.ComputeSectorProgress(r)
		for _, sector := range []domain.Sector{domain.SectorNIR, domain.SectorSurgery, domain.SectorBilling} {
			if progress[sector].Pending > 0 && domain.IsReadyForSector(r, sector) {
				d.ReadyBySector[sector]++
			}
		}
	}

	return d, nil
}

func (s *Service) publishEvents(ctx context.Context, r *domain.AdmissionRecord) {
	if s.bus == nil {
		r.GetDomainEvents()
		return
	}

	for _, e := range r.GetDomainEvents() {
		event := events.NewEvent("admission."+e.Type, "regulacao", map[string]any{
			"record_id": r.ID,
			"event":     e.RecordEvent,
		})
		s.bus.Publish(ctx, event)
	}
}
