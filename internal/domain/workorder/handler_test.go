package workorder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/labbridge/labbridge/internal/platform/document"
	"github.com/labbridge/labbridge/internal/platform/opendental"
)

// fakeProcedureSource stands in for the upstream procedure feed.
type fakeProcedureSource struct {
	procs map[string][]opendental.Procedure
	err   error
}

func (f *fakeProcedureSource) ListProcedures(_ context.Context, patNum string) ([]opendental.Procedure, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.procs[patNum], nil
}

func newTestHandler(t *testing.T) (*Handler, *Service) {
	t.Helper()
	svc, _ := newTestService(Options{})
	renderer, err := document.NewRenderer(t.TempDir(), document.DefaultPractice())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return NewHandler(svc, renderer, &fakeProcedureSource{}), svc
}

func doJSON(h echo.HandlerFunc, method, path, body string, setup func(echo.Context)) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	return rec, h(c)
}

const createBody = `{
	"patient_id": "pat-100",
	"procedure_id": "proc-200",
	"patient": {"first_name": "Jane", "last_name": "Doe", "birth_date": "1980-04-12"},
	"procedure": {"code": "D2740", "tooth_number": "14", "provider": "Dr. Chen"},
	"clinical_notes": "shade: A3"
}`

func TestHandlerCreate(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, err := doJSON(h.Create, http.MethodPost, "/work-orders", createBody, nil)
	if err != nil {
		t.Fatalf("Create handler: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var w WorkOrder
	if err := json.Unmarshal(rec.Body.Bytes(), &w); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if w.Status != StatusPending || w.Crown.Shade != "A3" {
		t.Errorf("unexpected order %+v", w)
	}
}

func TestHandlerCreateValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"patient_id": "pat-100", "procedure_id": "proc-1", "procedure": {"code": "D0120"}}`
	rec, err := doJSON(h.Create, http.MethodPost, "/work-orders", body, nil)
	if err != nil {
		t.Fatalf("Create handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error != "validation_error" || len(resp.Fields) == 0 {
		t.Errorf("unexpected error body %+v", resp)
	}
}

func TestHandlerCreateConflict(t *testing.T) {
	h, _ := newTestHandler(t)

	if rec, _ := doJSON(h.Create, http.MethodPost, "/work-orders", createBody, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first create: %d", rec.Code)
	}
	rec, err := doJSON(h.Create, http.MethodPost, "/work-orders", createBody, nil)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandlerGetNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, err := doJSON(h.Get, http.MethodGet, "/", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("0b37d74c-9f77-4d11-bf42-3e6a96ac5db1")
	})
	if err != nil {
		t.Fatalf("Get handler: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerGetBadID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, err := doJSON(h.Get, http.MethodGet, "/", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("not-a-uuid")
	})
	if err != nil {
		t.Fatalf("Get handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerUpdateStatus(t *testing.T) {
	h, svc := newTestHandler(t)

	w, err := svc.Create(context.Background(), validCreateRequest(), "tester")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := doJSON(h.UpdateStatus, http.MethodPatch, "/", `{"status": "scanned", "notes": "scan done"}`, func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues(w.ID.String())
		c.Request().Header.Set("X-User", "tech-1")
	})
	if err != nil {
		t.Fatalf("UpdateStatus handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var updated WorkOrder
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != StatusScanned || len(updated.History) != 2 {
		t.Errorf("unexpected order %+v", updated)
	}
	if updated.History[1].Actor != "tech-1" {
		t.Errorf("actor = %q, want tech-1", updated.History[1].Actor)
	}
}

func TestHandlerUpdateStatusMissing(t *testing.T) {
	h, svc := newTestHandler(t)

	w, _ := svc.Create(context.Background(), validCreateRequest(), "tester")
	rec, err := doJSON(h.UpdateStatus, http.MethodPatch, "/", `{"notes": "no status"}`, func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues(w.ID.String())
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerList(t *testing.T) {
	h, svc := newTestHandler(t)

	req := validCreateRequest()
	if _, err := svc.Create(context.Background(), req, "tester"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := doJSON(h.List, http.MethodGet, "/work-orders?limit=10", "", nil)
	if err != nil {
		t.Fatalf("List handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Data  []WorkOrder `json:"data"`
		Total int         `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("unexpected list response %+v", resp)
	}
}

func TestHandlerListBadStatusFilter(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, err := doJSON(h.List, http.MethodGet, "/work-orders?status=bogus", "", nil)
	if err != nil {
		t.Fatalf("List handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerStats(t *testing.T) {
	h, svc := newTestHandler(t)

	if _, err := svc.Create(context.Background(), validCreateRequest(), "tester"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := doJSON(h.GetStats, http.MethodGet, "/work-orders/stats", "", nil)
	if err != nil {
		t.Fatalf("GetStats handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 1 || stats.Pending != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHandlerRenderDocument(t *testing.T) {
	h, svc := newTestHandler(t)

	w, err := svc.Create(context.Background(), validCreateRequest(), "tester")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := doJSON(h.RenderDocument, http.MethodPost, "/", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues(w.ID.String())
	})
	if err != nil {
		t.Fatalf("RenderDocument handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Document  document.Artifact `json:"document"`
		WorkOrder WorkOrder         `json:"work_order"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Document.Path == "" || resp.Document.SizeBytes == 0 {
		t.Errorf("unexpected artifact %+v", resp.Document)
	}
	if resp.WorkOrder.DocumentPath == nil || *resp.WorkOrder.DocumentPath != resp.Document.Path {
		t.Errorf("document path not recorded on order")
	}
	if resp.WorkOrder.SentAt == nil {
		t.Error("sent_at not stamped")
	}
}

func TestHandlerDetectCrowns(t *testing.T) {
	h, _ := newTestHandler(t)
	h.procs = &fakeProcedureSource{procs: map[string][]opendental.Procedure{
		"77": {
			{ProcNum: 501, ProcCode: "D2740", ToothNum: "14", ProvAbbr: "DC", ProcDate: "2026-08-20"},
			{ProcNum: 502, ProcCode: "D1110", ToothNum: ""},
			{ProcNum: 503, ProcCode: "D2752", ToothNum: "30"},
		},
	}}

	rec, err := doJSON(h.DetectCrowns, http.MethodGet, "/", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("77")
	})
	if err != nil {
		t.Fatalf("DetectCrowns handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data  []Detection `json:"data"`
		Count int         `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Data) != 2 {
		t.Fatalf("unexpected detection response %+v", resp)
	}
	if resp.Data[0].ProcedureRef != "501" || resp.Data[0].Classification.RecommendedMaterial != MaterialZirconia {
		t.Errorf("unexpected first hit %+v", resp.Data[0])
	}
	if resp.Data[0].Procedure.ProcedureDate == nil {
		t.Error("procedure date not carried over")
	}
	if resp.Data[1].ProcedureRef != "503" || resp.Data[1].Classification.RecommendedMaterial != MaterialPFM {
		t.Errorf("unexpected second hit %+v", resp.Data[1])
	}
}

func TestHandlerDetectCrownsNone(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, err := doJSON(h.DetectCrowns, http.MethodGet, "/", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("99")
	})
	if err != nil {
		t.Fatalf("DetectCrowns handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Errorf("expected empty detection list, got %s", rec.Body.String())
	}
}

func TestHandlerDelete(t *testing.T) {
	h, svc := newTestHandler(t)

	w, _ := svc.Create(context.Background(), validCreateRequest(), "tester")
	rec, err := doJSON(h.Delete, http.MethodDelete, "/", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues(w.ID.String())
	})
	if err != nil {
		t.Fatalf("Delete handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, err := svc.Get(context.Background(), w.ID); err == nil {
		t.Error("order still present after delete")
	}
}
