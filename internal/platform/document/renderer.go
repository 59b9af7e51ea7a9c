// Package document renders work orders as printable laboratory
// prescription documents and stores the artifacts on local disk.
package document

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Practice identifies the prescribing practice printed on every slip.
type Practice struct {
	Name         string
	Address      string
	CityStateZip string
	Phone        string
}

// DefaultPractice returns the practice block used when none is configured.
func DefaultPractice() Practice {
	return Practice{
		Name:         "Huntington Beach Dental Center",
		Address:      "17692 Beach Blvd STE 310",
		CityStateZip: "Huntington Beach, CA 92647",
		Phone:        "714-842-5035",
	}
}

// SlipData carries everything the rendered prescription needs. The
// work-order service maps its record into this shape so the renderer has
// no dependency on the domain package.
type SlipData struct {
	WorkOrderNumber     string
	LabName             string
	PatientName         string
	PatientDOB          string
	ProcedureCode       string
	ProcedureDesc       string
	ToothNumber         string
	Material            string
	Shade               string
	ShadeSystem         string
	PrepType            string
	MarginType          string
	Occlusion           string
	Contacts            string
	Contour             string
	Priority            string
	DueDate             string
	SpecialInstructions string
	ClinicalNotes       string
	Provider            string
}

// Artifact describes a rendered document on disk.
type Artifact struct {
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Renderer writes printable lab prescription documents under dir.
type Renderer struct {
	dir      string
	practice Practice
	tmpl     *template.Template
}

func NewRenderer(dir string, practice Practice) (*Renderer, error) {
	tmpl, err := template.New("slip").Parse(slipTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse slip template: %w", err)
	}
	return &Renderer{dir: dir, practice: practice, tmpl: tmpl}, nil
}

// Render writes the prescription document for data and returns its
// artifact metadata. The caller records the path on the work order.
func (r *Renderer) Render(data SlipData) (*Artifact, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}

	filename := sanitizeFilename(data.WorkOrderNumber) + ".html"
	path := filepath.Join(r.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create document file: %w", err)
	}
	defer f.Close()

	view := struct {
		Practice    Practice
		Slip        SlipData
		GeneratedAt string
	}{
		Practice:    r.practice,
		Slip:        data,
		GeneratedAt: time.Now().Format("01/02/2006 3:04 PM"),
	}
	if err := r.tmpl.Execute(f, view); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("render document: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}

	return &Artifact{
		Path:      path,
		Filename:  filename,
		SizeBytes: info.Size(),
		CreatedAt: time.Now(),
	}, nil
}

func sanitizeFilename(name string) string {
	if name == "" {
		return "lab-slip"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "_", "..", "-")
	return replacer.Replace(name)
}

const slipTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Lab Prescription {{.Slip.WorkOrderNumber}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; margin: 1in; color: #111; }
  h1 { font-size: 18pt; border-bottom: 2px solid #111; padding-bottom: 8px; }
  h2 { font-size: 12pt; margin-top: 24px; }
  .meta { font-size: 10pt; }
  table { border-collapse: collapse; font-size: 10pt; }
  td { padding: 2px 16px 2px 0; vertical-align: top; }
  .label { font-weight: bold; }
  .rush { color: #b00000; font-weight: bold; }
  .signature { margin-top: 48px; border-top: 1px solid #111; width: 3in; padding-top: 4px; font-size: 9pt; }
  .footer { margin-top: 32px; font-size: 8pt; color: #555; }
</style>
</head>
<body>
<h1>DENTAL LABORATORY PRESCRIPTION</h1>

<h2>FROM</h2>
<div class="meta">
  {{.Practice.Name}}<br>
  {{.Practice.Address}}<br>
  {{.Practice.CityStateZip}}<br>
  Phone: {{.Practice.Phone}}
</div>

<h2>TO</h2>
<div class="meta">Lab: {{if .Slip.LabName}}{{.Slip.LabName}}{{else}}Laboratory{{end}}</div>

<h2>PATIENT INFORMATION</h2>
<table>
  <tr><td class="label">Name</td><td>{{.Slip.PatientName}}</td></tr>
  {{if .Slip.PatientDOB}}<tr><td class="label">Date of Birth</td><td>{{.Slip.PatientDOB}}</td></tr>{{end}}
</table>

<h2>PROCEDURE</h2>
<table>
  <tr><td class="label">Work Order</td><td>{{.Slip.WorkOrderNumber}}</td></tr>
  <tr><td class="label">Code</td><td>{{.Slip.ProcedureCode}}</td></tr>
  {{if .Slip.ProcedureDesc}}<tr><td class="label">Description</td><td>{{.Slip.ProcedureDesc}}</td></tr>{{end}}
  {{if .Slip.ToothNumber}}<tr><td class="label">Tooth</td><td>{{.Slip.ToothNumber}}</td></tr>{{end}}
  {{if .Slip.Provider}}<tr><td class="label">Provider</td><td>{{.Slip.Provider}}</td></tr>{{end}}
</table>

<h2>CROWN SPECIFICATION</h2>
<table>
  {{if .Slip.Material}}<tr><td class="label">Material</td><td>{{.Slip.Material}}</td></tr>{{end}}
  {{if .Slip.Shade}}<tr><td class="label">Shade</td><td>{{.Slip.Shade}}{{if .Slip.ShadeSystem}} ({{.Slip.ShadeSystem}}){{end}}</td></tr>{{end}}
  {{if .Slip.PrepType}}<tr><td class="label">Preparation</td><td>{{.Slip.PrepType}}</td></tr>{{end}}
  {{if .Slip.MarginType}}<tr><td class="label">Margin</td><td>{{.Slip.MarginType}}</td></tr>{{end}}
  {{if .Slip.Occlusion}}<tr><td class="label">Occlusion</td><td>{{.Slip.Occlusion}}</td></tr>{{end}}
  {{if .Slip.Contacts}}<tr><td class="label">Contacts</td><td>{{.Slip.Contacts}}</td></tr>{{end}}
  {{if .Slip.Contour}}<tr><td class="label">Contour</td><td>{{.Slip.Contour}}</td></tr>{{end}}
</table>

<h2>SCHEDULING</h2>
<table>
  <tr><td class="label">Priority</td><td>{{if ne .Slip.Priority "routine"}}<span class="rush">{{.Slip.Priority}}</span>{{else}}{{.Slip.Priority}}{{end}}</td></tr>
  {{if .Slip.DueDate}}<tr><td class="label">Due Date</td><td>{{.Slip.DueDate}}</td></tr>{{end}}
</table>

{{if .Slip.SpecialInstructions}}
<h2>SPECIAL INSTRUCTIONS</h2>
<div class="meta">{{.Slip.SpecialInstructions}}</div>
{{end}}

{{if .Slip.ClinicalNotes}}
<h2>CLINICAL NOTES</h2>
<div class="meta">{{.Slip.ClinicalNotes}}</div>
{{end}}

<div class="signature">Doctor Signature</div>
<div class="footer">Generated {{.GeneratedAt}}</div>
</body>
</html>
`
