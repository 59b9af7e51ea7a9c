package workorder

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	MaterialZirconia = "Zirconia"
	MaterialPFM      = "PFM"

	// DefaultShade is assumed when no shade notation appears anywhere in
	// the clinical text.
	DefaultShade = "A2"
)

type crownCode struct {
	Description string
	Material    string
}

// crownCodes maps CDT procedure codes to the recommended restoration
// material. Only single-unit crown codes are recognized.
var crownCodes = map[string]crownCode{
	"D2740": {"Crown - porcelain/ceramic", MaterialZirconia},
	"D2750": {"Crown - porcelain fused to high noble metal", MaterialPFM},
	"D2751": {"Crown - porcelain fused to predominantly base metal", MaterialPFM},
	"D2752": {"Crown - porcelain fused to noble metal", MaterialPFM},
}

// Classification is the verdict for one procedure code.
type Classification struct {
	IsCrown             bool   `json:"is_crown"`
	Code                string `json:"code"`
	Description         string `json:"description,omitempty"`
	RecommendedMaterial string `json:"recommended_material,omitempty"`
	// Confidence is 1 for a table hit and 0 otherwise.
	Confidence int `json:"confidence"`
}

// Classify looks the procedure code up in the crown table. Codes are
// matched case-insensitively after trimming.
func Classify(code string) Classification {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	info, ok := crownCodes[normalized]
	if !ok {
		return Classification{IsCrown: false, Code: normalized, Confidence: 0}
	}
	return Classification{
		IsCrown:             true,
		Code:                normalized,
		Description:         info.Description,
		RecommendedMaterial: info.Material,
		Confidence:          1,
	}
}

// CrownCodes returns the recognized codes in no particular order.
func CrownCodes() []string {
	codes := make([]string, 0, len(crownCodes))
	for c := range crownCodes {
		codes = append(codes, c)
	}
	return codes
}

// Shade extraction rules, tried in order. The first capture wins.
var shadePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)shade[:\s]+([A-D][1-4](?:\.5)?)`),
	regexp.MustCompile(`(?i)\b([A-D][1-4](?:\.5)?)\s+shade`),
	regexp.MustCompile(`(?i)color[:\s]+([A-D][1-4](?:\.5)?)`),
	regexp.MustCompile(`(?i)\b([A-D][1-4])\b`),
}

// ExtractShade scans clinical text for a VITA classical shade notation
// and falls back to DefaultShade when none is found.
func ExtractShade(text string) string {
	for _, re := range shadePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return DefaultShade
}

var urgentKeywords = []string{"urgent", "rush", "asap", "emergency", "stat"}

// DeterminePriority derives a priority from clinical text and the
// upcoming appointment. Keyword hits take precedence over date deltas;
// an appointment within one day is asap, within three days urgent,
// otherwise the configured default applies.
func DeterminePriority(text string, appointment *time.Time, fallback string, now time.Time) string {
	lower := strings.ToLower(text)
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			if kw == "asap" || kw == "emergency" || kw == "stat" {
				return PriorityASAP
			}
			return PriorityUrgent
		}
	}
	if appointment != nil && !appointment.Before(now) {
		days := int(appointment.Sub(now).Hours() / 24)
		switch {
		case days <= 1:
			return PriorityASAP
		case days <= 3:
			return PriorityUrgent
		}
	}
	if fallback == "" {
		return PriorityRoutine
	}
	return fallback
}

// ValidationResult accumulates every problem found rather than stopping
// at the first.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateProcedure checks that a procedure and its patient snapshot
// carry everything a lab slip needs.
func ValidateProcedure(patientRef, procedureRef string, patient PatientSnapshot, proc ProcedureSnapshot) ValidationResult {
	var errs []string
	if strings.TrimSpace(patientRef) == "" {
		errs = append(errs, "patient_id is required")
	}
	if strings.TrimSpace(procedureRef) == "" {
		errs = append(errs, "procedure_id is required")
	}
	if strings.TrimSpace(proc.Code) == "" {
		errs = append(errs, "procedure code is required")
	} else if !Classify(proc.Code).IsCrown {
		errs = append(errs, fmt.Sprintf("procedure code %s is not a recognized crown code", strings.ToUpper(strings.TrimSpace(proc.Code))))
	}
	if strings.TrimSpace(proc.ToothNumber) == "" {
		errs = append(errs, "tooth number is required")
	}
	if patient.DisplayName() == "" {
		errs = append(errs, "patient name is required")
	}
	if strings.TrimSpace(patient.BirthDate) == "" {
		errs = append(errs, "patient date of birth is required")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ProcedureInput pairs an upstream procedure id with its snapshot for
// batch detection.
type ProcedureInput struct {
	Ref      string
	Snapshot ProcedureSnapshot
}

// Detection is one crown hit from a procedure scan.
type Detection struct {
	ProcedureRef   string            `json:"procedure_id"`
	Classification Classification    `json:"classification"`
	Procedure      ProcedureSnapshot `json:"procedure"`
}

// DetectCrownProcedures filters a patient's procedure list down to the
// ones the crown table recognizes.
func DetectCrownProcedures(in []ProcedureInput) []Detection {
	var hits []Detection
	for _, p := range in {
		cls := Classify(p.Snapshot.Code)
		if !cls.IsCrown {
			continue
		}
		hits = append(hits, Detection{ProcedureRef: p.Ref, Classification: cls, Procedure: p.Snapshot})
	}
	return hits
}
