package workorder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilters narrows List queries. Zero values mean "no filter".
type ListFilters struct {
	Statuses      []string
	Priority      string
	AssignedTo    string
	PatientRef    string
	ProcedureRef  string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Stats is a live snapshot of the order book. The buckets are mutually
// exclusive and sum to Total.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Ready      int `json:"ready"`
	Completed  int `json:"completed"` // status == seated
	Cancelled  int `json:"cancelled"`
	OnHold     int `json:"on_hold"`
}

// Repository is the work-order store contract.
type Repository interface {
	Create(ctx context.Context, w *WorkOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*WorkOrder, error)
	// GetByNumber looks an order up by its display number, e.g.
	// LAB-20260828-0042.
	GetByNumber(ctx context.Context, number string) (*WorkOrder, error)
	// GetActiveByProcedureRef returns the non-cancelled order for an
	// upstream procedure, or nil when none exists.
	GetActiveByProcedureRef(ctx context.Context, procedureRef string) (*WorkOrder, error)
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]*WorkOrder, int, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*WorkOrder, error)
	Update(ctx context.Context, w *WorkOrder) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)
}
