package workorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labbridge/labbridge/internal/platform/apierr"
)

// Options tunes service behavior from configuration.
type Options struct {
	// DefaultPriority applies when neither the request nor the clinical
	// text decides one.
	DefaultPriority string
	// DueDateLeadDays sets the due date relative to creation when the
	// request carries none.
	DueDateLeadDays int
	// StrictTransitions enforces the forward production order; the
	// permissive default allows any valid status pair.
	StrictTransitions bool
}

// Service owns work-order business rules on top of the repository.
type Service struct {
	repo Repository
	opts Options
	now  func() time.Time
}

func NewService(repo Repository, opts Options) *Service {
	if opts.DefaultPriority == "" {
		opts.DefaultPriority = PriorityRoutine
	}
	if opts.DueDateLeadDays <= 0 {
		opts.DueDateLeadDays = 14
	}
	return &Service{repo: repo, opts: opts, now: time.Now}
}

// CreateRequest is the inbound payload for a new work order.
type CreateRequest struct {
	PatientRef   string            `json:"patient_id"`
	ProcedureRef string            `json:"procedure_id"`
	Patient      PatientSnapshot   `json:"patient"`
	Procedure    ProcedureSnapshot `json:"procedure"`

	Crown    *CrownSpec    `json:"crown_spec,omitempty"`
	Workflow *WorkflowMeta `json:"workflow,omitempty"`

	Priority   string     `json:"priority,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	AssignedTo string     `json:"assigned_to,omitempty"`

	SpecialInstructions string `json:"special_instructions,omitempty"`
	ClinicalNotes       string `json:"clinical_notes,omitempty"`
}

// Create validates the request, refuses non-crown procedures and
// duplicate active orders, derives the crown defaults, and persists the
// order in the pending state with its first history entry.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor string) (*WorkOrder, error) {
	if res := ValidateProcedure(req.PatientRef, req.ProcedureRef, req.Patient, req.Procedure); !res.Valid {
		return nil, apierr.Validation("procedure is not eligible for a lab work order", res.Errors...)
	}
	if req.Priority != "" && !ValidPriority(req.Priority) {
		return nil, apierr.Validation(fmt.Sprintf("invalid priority %q", req.Priority))
	}

	existing, err := s.repo.GetActiveByProcedureRef(ctx, req.ProcedureRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.Conflict(fmt.Sprintf("an active work order already exists for procedure %s", req.ProcedureRef))
	}

	now := s.now().UTC()
	cls := Classify(req.Procedure.Code)
	clinicalText := req.ClinicalNotes + " " + req.SpecialInstructions

	crown := CrownSpec{}
	if req.Crown != nil {
		crown = *req.Crown
	}
	if crown.Material == "" {
		crown.Material = cls.RecommendedMaterial
	}
	if crown.Shade == "" {
		crown.Shade = ExtractShade(clinicalText)
	}
	if crown.ShadeSystem == "" {
		crown.ShadeSystem = "VITA Classical"
	}

	workflow := WorkflowMeta{}
	if req.Workflow != nil {
		workflow = *req.Workflow
	}

	priority := req.Priority
	if priority == "" {
		priority = DeterminePriority(clinicalText, req.Procedure.AppointmentDate, s.opts.DefaultPriority, now)
	}

	dueDate := req.DueDate
	if dueDate == nil {
		d := now.AddDate(0, 0, s.opts.DueDateLeadDays)
		dueDate = &d
	}

	w := &WorkOrder{
		ID:           uuid.New(),
		Number:       GenerateNumber(now),
		PatientRef:   req.PatientRef,
		ProcedureRef: req.ProcedureRef,
		Patient:      req.Patient,
		Procedure:    req.Procedure,
		Crown:        crown,
		Workflow:     workflow,
		Status:       StatusPending,
		History: []StatusHistoryEntry{
			{Status: StatusPending, Timestamp: now, Actor: actor, Note: "work order created"},
		},
		Priority: priority,
		DueDate:  dueDate,
	}
	if req.AssignedTo != "" {
		w.AssignedTo = &req.AssignedTo
	}
	if req.SpecialInstructions != "" {
		w.SpecialInstructions = &req.SpecialInstructions
	}
	if req.ClinicalNotes != "" {
		w.ClinicalNotes = &req.ClinicalNotes
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber looks an order up by its display number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*WorkOrder, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) List(ctx context.Context, filters ListFilters, limit, offset int) ([]*WorkOrder, int, error) {
	for _, st := range filters.Statuses {
		if !ValidStatus(st) {
			return nil, 0, apierr.Validation(fmt.Sprintf("invalid status filter %q", st))
		}
	}
	if filters.Priority != "" && !ValidPriority(filters.Priority) {
		return nil, 0, apierr.Validation(fmt.Sprintf("invalid priority filter %q", filters.Priority))
	}
	return s.repo.List(ctx, filters, limit, offset)
}

func (s *Service) ListOverdue(ctx context.Context, limit int) ([]*WorkOrder, error) {
	return s.repo.ListOverdue(ctx, s.now().UTC(), limit)
}

// checkTransition applies the strict forward-order policy. The
// permissive policy accepts any valid pair.
func (s *Service) checkTransition(from, to string) error {
	if !s.opts.StrictTransitions {
		return nil
	}
	if from == StatusSeated || from == StatusCancelled {
		return apierr.Validation(fmt.Sprintf("cannot leave terminal status %q", from))
	}
	switch to {
	case StatusCancelled, StatusOnHold:
		return nil
	}
	if from == StatusOnHold {
		return nil
	}
	if productionOrder[to] <= productionOrder[from] {
		return apierr.Validation(fmt.Sprintf("cannot move from %q back to %q", from, to))
	}
	return nil
}

// UpdateStatus transitions an order, appending exactly one history
// entry. Entering seated stamps completed_at; leaving it clears it.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status, actor, note string) (*WorkOrder, error) {
	if !ValidStatus(status) {
		return nil, apierr.Validation(fmt.Sprintf("invalid status %q", status))
	}

	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(w.Status, status); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	w.Status = status
	w.History = append(w.History, StatusHistoryEntry{Status: status, Timestamp: now, Actor: actor, Note: note})

	if status == StatusSeated {
		w.CompletedAt = &now
	} else {
		w.CompletedAt = nil
	}

	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateRequest carries the mutable fields outside the status machine.
// Nil pointers leave the stored value untouched.
type UpdateRequest struct {
	Priority            *string       `json:"priority,omitempty"`
	AssignedTo          *string       `json:"assigned_to,omitempty"`
	DueDate             *time.Time    `json:"due_date,omitempty"`
	Crown               *CrownSpec    `json:"crown_spec,omitempty"`
	Workflow            *WorkflowMeta `json:"workflow,omitempty"`
	SpecialInstructions *string       `json:"special_instructions,omitempty"`
	ClinicalNotes       *string       `json:"clinical_notes,omitempty"`
	LabNotes            *string       `json:"lab_notes,omitempty"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*WorkOrder, error) {
	if req.Priority != nil && !ValidPriority(*req.Priority) {
		return nil, apierr.Validation(fmt.Sprintf("invalid priority %q", *req.Priority))
	}

	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Priority != nil {
		w.Priority = *req.Priority
	}
	if req.AssignedTo != nil {
		w.AssignedTo = req.AssignedTo
	}
	if req.DueDate != nil {
		w.DueDate = req.DueDate
	}
	if req.Crown != nil {
		w.Crown = *req.Crown
	}
	if req.Workflow != nil {
		w.Workflow = *req.Workflow
	}
	if req.SpecialInstructions != nil {
		w.SpecialInstructions = req.SpecialInstructions
	}
	if req.ClinicalNotes != nil {
		w.ClinicalNotes = req.ClinicalNotes
	}
	if req.LabNotes != nil {
		w.LabNotes = req.LabNotes
	}

	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// AttachDocument records a rendered lab slip on the order and stamps
// sent_at the first time a document goes out.
func (s *Service) AttachDocument(ctx context.Context, id uuid.UUID, path string) (*WorkOrder, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	w.DocumentPath = &path
	if w.SentAt == nil {
		now := s.now().UTC()
		w.SentAt = &now
	}
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}
