package opendental

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labbridge/labbridge/internal/platform/apierr"
)

func TestClient_GetPatient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/patients/42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "ODFHIR test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		w.Write([]byte(`{"PatNum":42,"FName":"Jane","LName":"Doe","Birthdate":"1975-03-15"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	p, err := c.GetPatient(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FirstName != "Jane" || p.LastName != "Doe" {
		t.Errorf("unexpected patient: %+v", p)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient("", "")
	_, err := c.GetPatient(context.Background(), "1")
	if !apierr.IsKind(err, apierr.KindUpstreamUnavailable) {
		t.Errorf("expected upstream_unavailable, got %v", err)
	}
}

func TestClient_UpstreamNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.GetPatient(context.Background(), "999")
	if !apierr.IsKind(err, apierr.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("backend down"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.ListProcedures(context.Background(), "42")
	if !apierr.IsKind(err, apierr.KindUpstream) {
		t.Errorf("expected upstream_error, got %v", err)
	}
}

func TestClient_ListAppointmentsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("PatNum") != "42" || q.Get("date") != "2026-08-28" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"AptNum":7,"PatNum":42}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	appts, err := c.ListAppointments(context.Background(), "42", "2026-08-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(appts) != 1 || appts[0].AptNum != 7 {
		t.Errorf("unexpected appointments: %+v", appts)
	}
}
