package workorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labbridge/labbridge/internal/platform/apierr"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the Postgres-backed repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const workOrderCols = `id, number, patient_ref, procedure_ref, patient, procedure,
	crown, workflow, history, status, priority, assigned_to, due_date,
	special_instructions, clinical_notes, lab_notes, document_path,
	sent_at, completed_at, created_at, updated_at`

func scanWorkOrder(row pgx.Row) (*WorkOrder, error) {
	var w WorkOrder
	err := row.Scan(&w.ID, &w.Number, &w.PatientRef, &w.ProcedureRef, &w.Patient, &w.Procedure,
		&w.Crown, &w.Workflow, &w.History, &w.Status, &w.Priority, &w.AssignedTo, &w.DueDate,
		&w.SpecialInstructions, &w.ClinicalNotes, &w.LabNotes, &w.DocumentPath,
		&w.SentAt, &w.CompletedAt, &w.CreatedAt, &w.UpdatedAt)
	return &w, err
}

// isUniqueViolation reports whether err is the partial unique index on
// procedure_ref firing, i.e. a concurrent duplicate create.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, w *WorkOrder) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO work_orders (id, number, patient_ref, procedure_ref, patient, procedure,
			crown, workflow, history, status, priority, assigned_to, due_date,
			special_instructions, clinical_notes, lab_notes, document_path, sent_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING created_at, updated_at`,
		w.ID, w.Number, w.PatientRef, w.ProcedureRef, w.Patient, w.Procedure,
		w.Crown, w.Workflow, w.History, w.Status, w.Priority, w.AssignedTo, w.DueDate,
		w.SpecialInstructions, w.ClinicalNotes, w.LabNotes, w.DocumentPath, w.SentAt, w.CompletedAt).
		Scan(&w.CreatedAt, &w.UpdatedAt)
	if isUniqueViolation(err) {
		return apierr.Conflict(fmt.Sprintf("an active work order already exists for procedure %s", w.ProcedureRef))
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	w, err := scanWorkOrder(r.pool.QueryRow(ctx, `SELECT `+workOrderCols+` FROM work_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.NotFound("work order", id.String())
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repoPG) GetByNumber(ctx context.Context, number string) (*WorkOrder, error) {
	w, err := scanWorkOrder(r.pool.QueryRow(ctx, `SELECT `+workOrderCols+` FROM work_orders WHERE number = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.NotFound("work order", number)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repoPG) GetActiveByProcedureRef(ctx context.Context, procedureRef string) (*WorkOrder, error) {
	w, err := scanWorkOrder(r.pool.QueryRow(ctx,
		`SELECT `+workOrderCols+` FROM work_orders WHERE procedure_ref = $1 AND status <> $2`,
		procedureRef, StatusCancelled))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repoPG) List(ctx context.Context, filters ListFilters, limit, offset int) ([]*WorkOrder, int, error) {
	where := ` FROM work_orders WHERE 1=1`
	var args []interface{}
	idx := 1

	if len(filters.Statuses) > 0 {
		where += fmt.Sprintf(` AND status = ANY($%d)`, idx)
		args = append(args, filters.Statuses)
		idx++
	}
	if filters.Priority != "" {
		where += fmt.Sprintf(` AND priority = $%d`, idx)
		args = append(args, filters.Priority)
		idx++
	}
	if filters.AssignedTo != "" {
		where += fmt.Sprintf(` AND assigned_to = $%d`, idx)
		args = append(args, filters.AssignedTo)
		idx++
	}
	if filters.PatientRef != "" {
		where += fmt.Sprintf(` AND patient_ref = $%d`, idx)
		args = append(args, filters.PatientRef)
		idx++
	}
	if filters.ProcedureRef != "" {
		where += fmt.Sprintf(` AND procedure_ref = $%d`, idx)
		args = append(args, filters.ProcedureRef)
		idx++
	}
	if filters.CreatedAfter != nil {
		where += fmt.Sprintf(` AND created_at >= $%d`, idx)
		args = append(args, *filters.CreatedAfter)
		idx++
	}
	if filters.CreatedBefore != nil {
		where += fmt.Sprintf(` AND created_at <= $%d`, idx)
		args = append(args, *filters.CreatedBefore)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + workOrderCols + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*WorkOrder
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, w)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*WorkOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workOrderCols+` FROM work_orders
		WHERE due_date IS NOT NULL AND due_date < $1 AND status NOT IN ($2, $3)
		ORDER BY due_date ASC LIMIT $4`,
		now, StatusSeated, StatusCancelled, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WorkOrder
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, w *WorkOrder) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE work_orders SET patient=$2, procedure=$3, crown=$4, workflow=$5, history=$6,
			status=$7, priority=$8, assigned_to=$9, due_date=$10, special_instructions=$11,
			clinical_notes=$12, lab_notes=$13, document_path=$14, sent_at=$15, completed_at=$16,
			updated_at=NOW()
		WHERE id = $1`,
		w.ID, w.Patient, w.Procedure, w.Crown, w.Workflow, w.History,
		w.Status, w.Priority, w.AssignedTo, w.DueDate, w.SpecialInstructions,
		w.ClinicalNotes, w.LabNotes, w.DocumentPath, w.SentAt, w.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound("work order", w.ID.String())
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM work_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound("work order", id.String())
	}
	return nil
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status IN ('scanned','designed','milling','sintering','finishing','qc')),
			COUNT(*) FILTER (WHERE status = 'ready'),
			COUNT(*) FILTER (WHERE status = 'seated'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'on_hold')
		FROM work_orders`).
		Scan(&s.Total, &s.Pending, &s.InProgress, &s.Ready, &s.Completed, &s.Cancelled, &s.OnHold)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
