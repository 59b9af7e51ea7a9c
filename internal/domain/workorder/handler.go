package workorder

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labbridge/labbridge/internal/platform/apierr"
	"github.com/labbridge/labbridge/internal/platform/document"
	"github.com/labbridge/labbridge/internal/platform/opendental"
	"github.com/labbridge/labbridge/pkg/pagination"
)

// ProcedureSource lists a patient's upstream procedures for crown
// detection.
type ProcedureSource interface {
	ListProcedures(ctx context.Context, patNum string) ([]opendental.Procedure, error)
}

type Handler struct {
	svc      *Service
	renderer *document.Renderer
	procs    ProcedureSource
}

func NewHandler(svc *Service, renderer *document.Renderer, procs ProcedureSource) *Handler {
	return &Handler{svc: svc, renderer: renderer, procs: procs}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	if h.procs != nil {
		api.GET("/opendental/patients/:id/crown-procedures", h.DetectCrowns)
	}
	api.POST("/work-orders", h.Create)
	api.GET("/work-orders", h.List)
	api.GET("/work-orders/stats", h.GetStats)
	api.GET("/work-orders/overdue", h.ListOverdue)
	api.GET("/work-orders/:id", h.Get)
	api.PATCH("/work-orders/:id", h.Update)
	api.PATCH("/work-orders/:id/status", h.UpdateStatus)
	api.POST("/work-orders/:id/pdf", h.RenderDocument)
	api.DELETE("/work-orders/:id", h.Delete)
}

// actor derives the audit identity from the X-User header; anonymous
// callers are recorded as "system".
func actor(c echo.Context) string {
	if u := c.Request().Header.Get("X-User"); u != "" {
		return u
	}
	return "system"
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apierr.Validation("invalid work order id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.svc.Create(c.Request().Context(), req, actor(c))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return apierr.Respond(c, err)
	}
	w, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	filters := ListFilters{
		Priority:     c.QueryParam("priority"),
		AssignedTo:   c.QueryParam("assigned_to"),
		PatientRef:   c.QueryParam("patient_id"),
		ProcedureRef: c.QueryParam("procedure_id"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filters.Statuses = append(filters.Statuses, s)
			}
		}
	}
	if raw := c.QueryParam("created_after"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apierr.Respond(c, apierr.Validation("created_after must be an RFC 3339 timestamp"))
		}
		filters.CreatedAfter = &ts
	}
	if raw := c.QueryParam("created_before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apierr.Respond(c, apierr.Validation("created_before must be an RFC 3339 timestamp"))
		}
		filters.CreatedBefore = &ts
	}

	items, total, err := h.svc.List(c.Request().Context(), filters, p.Limit, p.Offset)
	if err != nil {
		return apierr.Respond(c, err)
	}
	if items == nil {
		items = []*WorkOrder{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) ListOverdue(c echo.Context) error {
	p := pagination.FromContext(c)
	items, err := h.svc.ListOverdue(c.Request().Context(), p.Limit)
	if err != nil {
		return apierr.Respond(c, err)
	}
	if items == nil {
		items = []*WorkOrder{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "count": len(items)})
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return apierr.Respond(c, err)
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return apierr.Respond(c, apierr.Validation("status is required"))
	}
	w, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, actor(c), req.Notes)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return apierr.Respond(c, err)
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return apierr.Respond(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": true, "id": id})
}

func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.svc.GetStats(c.Request().Context())
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// RenderDocument produces the printable lab prescription for an order
// and records the artifact path on it.
func (h *Handler) RenderDocument(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return apierr.Respond(c, err)
	}
	w, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apierr.Respond(c, err)
	}

	artifact, err := h.renderer.Render(slipData(w))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render document")
	}

	w, err = h.svc.AttachDocument(c.Request().Context(), id, artifact.Path)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"document":   artifact,
		"work_order": w,
	})
}

// DetectCrowns scans a patient's upstream procedure history and reports
// which procedures qualify for a crown work order.
func (h *Handler) DetectCrowns(c echo.Context) error {
	procs, err := h.procs.ListProcedures(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	inputs := make([]ProcedureInput, 0, len(procs))
	for _, p := range procs {
		inputs = append(inputs, ProcedureInput{
			Ref:      strconv.FormatInt(p.ProcNum, 10),
			Snapshot: snapshotFromUpstream(p),
		})
	}
	hits := DetectCrownProcedures(inputs)
	if hits == nil {
		hits = []Detection{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": hits, "count": len(hits)})
}

// snapshotFromUpstream maps an upstream procedure record onto the
// work-order snapshot shape.
func snapshotFromUpstream(p opendental.Procedure) ProcedureSnapshot {
	s := ProcedureSnapshot{
		Code:           p.ProcCode,
		Description:    p.Description,
		ToothNumber:    p.ToothNum,
		Provider:       p.ProvAbbr,
		ClinicalStatus: p.ProcStatus,
	}
	if t, err := time.Parse("2006-01-02", p.ProcDate); err == nil {
		s.ProcedureDate = &t
	}
	return s
}

func slipData(w *WorkOrder) document.SlipData {
	data := document.SlipData{
		WorkOrderNumber: w.Number,
		PatientName:     w.Patient.DisplayName(),
		PatientDOB:      w.Patient.BirthDate,
		ProcedureCode:   w.Procedure.Code,
		ProcedureDesc:   w.Procedure.Description,
		ToothNumber:     w.Procedure.ToothNumber,
		Provider:        w.Procedure.Provider,
		Material:        w.Crown.Material,
		Shade:           w.Crown.Shade,
		ShadeSystem:     w.Crown.ShadeSystem,
		PrepType:        w.Crown.PrepType,
		MarginType:      w.Crown.MarginType,
		Occlusion:       w.Crown.Occlusion,
		Contacts:        w.Crown.Contacts,
		Contour:         w.Crown.Contour,
		Priority:        w.Priority,
	}
	if data.ProcedureDesc == "" {
		data.ProcedureDesc = Classify(w.Procedure.Code).Description
	}
	if w.DueDate != nil {
		data.DueDate = w.DueDate.Format("2006-01-02")
	}
	if w.SpecialInstructions != nil {
		data.SpecialInstructions = *w.SpecialInstructions
	}
	if w.ClinicalNotes != nil {
		data.ClinicalNotes = *w.ClinicalNotes
	}
	return data
}
