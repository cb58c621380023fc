package domain

import (
	"context"

	"github.com/saude-gov/regulacao/internal/shared/types"
)

// Repository defines the interface for admission record persistence
type Repository interface {
	// Record operations
	Save(ctx context.Context, r *AdmissionRecord) error
	FindByID(ctx context.Context, id types.ID) (*AdmissionRecord, error)
	Update(ctx context.Context, r *AdmissionRecord) error
	Delete(ctx context.Context, id types.ID) error

	// Query operations
	List(ctx context.Context, filter ListFilter) ([]AdmissionRecord, int, error)

	// Event operations
	AddEvent(ctx context.Context, recordID types.ID, e *RecordEvent) error
	GetEvents(ctx context.Context, recordID types.ID, limit, offset int) ([]RecordEvent, error)
}

// ListFilter defines filters for listing admission records
type ListFilter struct {
	AdmissionType *AdmissionType `json:"admission_type,omitempty"`
	Status        *RecordStatus  `json:"status,omitempty"`
	Statuses      []RecordStatus `json:"statuses,omitempty"`
	Cancelled     *bool          `json:"cancelled,omitempty"`
	Search        string         `json:"search,omitempty"`
	Limit         int            `json:"limit,omitempty"`
	Offset        int            `json:"offset,omitempty"`
	OrderBy       string         `json:"order_by,omitempty"`
	OrderDesc     bool           `json:"order_desc,omitempty"`
}
