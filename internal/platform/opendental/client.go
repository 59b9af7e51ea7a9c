// Package opendental proxies the upstream practice-management REST API.
// The upstream owns patients, procedures, appointments, and document
// records; this service only reads them when building work orders.
package opendental

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/labbridge/labbridge/internal/platform/apierr"
)

// Patient is the demographic snapshot the work-order flow needs.
type Patient struct {
	PatNum    int64  `json:"PatNum"`
	FirstName string `json:"FName"`
	LastName  string `json:"LName"`
	BirthDate string `json:"Birthdate"`
	Email     string `json:"Email"`
	Phone     string `json:"WirelessPhone"`
}

// Procedure is the upstream procedure record.
type Procedure struct {
	ProcNum     int64  `json:"ProcNum"`
	PatNum      int64  `json:"PatNum"`
	ProcCode    string `json:"ProcCode"`
	Description string `json:"Descript"`
	ToothNum    string `json:"ToothNum"`
	ProcDate    string `json:"ProcDate"`
	ProvAbbr    string `json:"provAbbr"`
	ProcStatus  string `json:"ProcStatus"`
}

// Appointment is the upstream appointment record.
type Appointment struct {
	AptNum       int64  `json:"AptNum"`
	PatNum       int64  `json:"PatNum"`
	AptDateTime  string `json:"AptDateTime"`
	AptStatus    string `json:"AptStatus"`
	ProvAbbr     string `json:"provAbbr"`
	Note         string `json:"Note"`
	OperatoryNum int64  `json:"Op"`
}

// Document is an upstream document reference.
type Document struct {
	DocNum      int64  `json:"DocNum"`
	PatNum      int64  `json:"PatNum"`
	FileName    string `json:"FileName"`
	Description string `json:"Description"`
	DateCreated string `json:"DateCreated"`
}

// Client talks to the OpenDental API with an API-key header. A nil-safe
// zero value is not provided; use NewClient.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: http.DefaultClient}
}

// Configured reports whether the upstream connection details are present.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if !c.Configured() {
		return apierr.UpstreamUnavailable(
			"practice-management API is not configured",
			"set OPENDENTAL_BASE_URL and OPENDENTAL_API_KEY")
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return apierr.Upstream("practice-management request failed", err)
	}
	req.Header.Set("Authorization", "ODFHIR "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.Upstream("practice-management call failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apierr.NotFound("upstream record", path)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apierr.Upstream("practice-management API error",
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Upstream("practice-management response decode failed", err)
	}
	return nil
}

// GetPatient fetches one patient by upstream id.
func (c *Client) GetPatient(ctx context.Context, patNum string) (*Patient, error) {
	var p Patient
	if err := c.get(ctx, "/patients/"+patNum, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProcedures fetches procedures for a patient.
func (c *Client) ListProcedures(ctx context.Context, patNum string) ([]Procedure, error) {
	q := url.Values{"PatNum": {patNum}}
	var procs []Procedure
	if err := c.get(ctx, "/procedurelogs", q, &procs); err != nil {
		return nil, err
	}
	return procs, nil
}

// ListAppointments fetches appointments, optionally scoped to a patient
// and a date (YYYY-MM-DD).
func (c *Client) ListAppointments(ctx context.Context, patNum, date string) ([]Appointment, error) {
	q := url.Values{}
	if patNum != "" {
		q.Set("PatNum", patNum)
	}
	if date != "" {
		q.Set("date", date)
	}
	var appts []Appointment
	if err := c.get(ctx, "/appointments", q, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// ListDocuments fetches document references for a patient.
func (c *Client) ListDocuments(ctx context.Context, patNum string) ([]Document, error) {
	q := url.Values{"PatNum": {patNum}}
	var docs []Document
	if err := c.get(ctx, "/documents", q, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
