// Package workorder implements the crown work-order lifecycle: procedure
// classification, the persistent store adapter, and the status state
// machine with its append-only history.
package workorder

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Workflow statuses. pending is the initial state, seated the terminal
// production state.
const (
	StatusPending   = "pending"
	StatusScanned   = "scanned"
	StatusDesigned  = "designed"
	StatusMilling   = "milling"
	StatusSintering = "sintering"
	StatusFinishing = "finishing"
	StatusQC        = "qc"
	StatusReady     = "ready"
	StatusSeated    = "seated"
	StatusCancelled = "cancelled"
	StatusOnHold    = "on_hold"
)

// productionOrder indexes the forward workflow for the strict transition
// policy. cancelled and on_hold sit outside the linear flow.
var productionOrder = map[string]int{
	StatusPending:   0,
	StatusScanned:   1,
	StatusDesigned:  2,
	StatusMilling:   3,
	StatusSintering: 4,
	StatusFinishing: 5,
	StatusQC:        6,
	StatusReady:     7,
	StatusSeated:    8,
}

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusScanned:   true,
	StatusDesigned:  true,
	StatusMilling:   true,
	StatusSintering: true,
	StatusFinishing: true,
	StatusQC:        true,
	StatusReady:     true,
	StatusSeated:    true,
	StatusCancelled: true,
	StatusOnHold:    true,
}

// inProgressStatuses are the stats bucket between pending and ready.
var inProgressStatuses = map[string]bool{
	StatusScanned:   true,
	StatusDesigned:  true,
	StatusMilling:   true,
	StatusSintering: true,
	StatusFinishing: true,
	StatusQC:        true,
}

const (
	PriorityRoutine = "routine"
	PriorityUrgent  = "urgent"
	PriorityASAP    = "asap"
)

var validPriorities = map[string]bool{
	PriorityRoutine: true,
	PriorityUrgent:  true,
	PriorityASAP:    true,
}

// PatientSnapshot is the demographic snapshot copied from the
// practice-management system at creation time.
type PatientSnapshot struct {
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	BirthDate string `json:"birth_date,omitempty"` // YYYY-MM-DD
}

// DisplayName returns the best available patient name.
func (p PatientSnapshot) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.FirstName != "" || p.LastName != "" {
		switch {
		case p.FirstName == "":
			return p.LastName
		case p.LastName == "":
			return p.FirstName
		default:
			return p.FirstName + " " + p.LastName
		}
	}
	return ""
}

// Age derives whole years from the birth date at the given time. Returns
// -1 when the birth date is absent or unparsable.
func (p PatientSnapshot) Age(at time.Time) int {
	if p.BirthDate == "" {
		return -1
	}
	dob, err := time.Parse("2006-01-02", p.BirthDate)
	if err != nil {
		return -1
	}
	years := at.Year() - dob.Year()
	if at.YearDay() < dob.YearDay() {
		years--
	}
	if years < 0 {
		return -1
	}
	return years
}

// ProcedureSnapshot is the procedure record copied from the
// practice-management system.
type ProcedureSnapshot struct {
	Code            string     `json:"code"`
	Description     string     `json:"description,omitempty"`
	ToothNumber     string     `json:"tooth_number,omitempty"`
	Provider        string     `json:"provider,omitempty"`
	ClinicalStatus  string     `json:"clinical_status,omitempty"`
	ProcedureDate   *time.Time `json:"procedure_date,omitempty"`
	AppointmentDate *time.Time `json:"appointment_date,omitempty"`
}

// CrownSpec describes the prescribed restoration.
type CrownSpec struct {
	Material    string `json:"material,omitempty"`
	Shade       string `json:"shade,omitempty"`
	ShadeSystem string `json:"shade_system,omitempty"`
	PrepType    string `json:"prep_type,omitempty"`
	MarginType  string `json:"margin_type,omitempty"`
	Occlusion   string `json:"occlusion,omitempty"`
	Contacts    string `json:"contacts,omitempty"`
	Contour     string `json:"contour,omitempty"`
}

// WorkflowMeta captures the digital production pipeline settings.
type WorkflowMeta struct {
	ScanType         string `json:"scan_type,omitempty"`
	DesignSoftware   string `json:"design_software,omitempty"`
	MillDevice       string `json:"mill_device,omitempty"`
	BlockType        string `json:"block_type,omitempty"`
	BlockShade       string `json:"block_shade,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`
}

// StatusHistoryEntry is one line of the append-only audit trail. Every
// committed transition appends exactly one entry.
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
}

// WorkOrder is the central production record tracking one crown from
// procedure detection through patient seating.
type WorkOrder struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Number string    `db:"number" json:"number"`

	// Upstream references owned by the practice-management system.
	PatientRef   string `db:"patient_ref" json:"patient_id"`
	ProcedureRef string `db:"procedure_ref" json:"procedure_id"`

	Patient   PatientSnapshot   `db:"patient" json:"patient"`
	Procedure ProcedureSnapshot `db:"procedure" json:"procedure"`
	Crown     CrownSpec         `db:"crown" json:"crown_spec"`
	Workflow  WorkflowMeta      `db:"workflow" json:"workflow"`

	Status  string               `db:"status" json:"status"`
	History []StatusHistoryEntry `db:"history" json:"status_history"`

	Priority   string     `db:"priority" json:"priority"`
	AssignedTo *string    `db:"assigned_to" json:"assigned_to,omitempty"`
	DueDate    *time.Time `db:"due_date" json:"due_date,omitempty"`

	SpecialInstructions *string `db:"special_instructions" json:"special_instructions,omitempty"`
	ClinicalNotes       *string `db:"clinical_notes" json:"clinical_notes,omitempty"`
	LabNotes            *string `db:"lab_notes" json:"lab_notes,omitempty"`

	DocumentPath *string    `db:"document_path" json:"document_path,omitempty"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GenerateNumber builds a human-readable work-order label from the
// creation date plus a random suffix. Collision-tolerant display label
// only; the UUID is the identity.
func GenerateNumber(at time.Time) string {
	return fmt.Sprintf("LAB-%s-%04d", at.Format("20060102"), rand.Intn(10000))
}

// ValidStatus reports whether s is a known workflow status.
func ValidStatus(s string) bool { return validStatuses[s] }

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool { return validPriorities[p] }

// InProgress reports whether s counts toward the in-progress stats bucket.
func InProgress(s string) bool { return inProgressStatuses[s] }
