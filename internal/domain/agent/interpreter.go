// Package agent turns natural-language front-desk commands into
// work-order operations through a two-stage LLM pipeline: a parse call
// that extracts a structured intent, and a response call that phrases
// the outcome conversationally.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labbridge/labbridge/internal/domain/workorder"
	"github.com/labbridge/labbridge/internal/platform/apierr"
	"github.com/labbridge/labbridge/internal/platform/llm"
)

// Supported intents.
const (
	IntentCreateLabSlip = "create_lab_slip"
	IntentListLabSlips  = "list_lab_slips"
	IntentGetStatus     = "get_status"
	IntentUpdateStatus  = "update_status"
	IntentResendEmail   = "resend_email"
	IntentUnknown       = "unknown"
)

// SupportedIntents lists every intent the parser may emit.
var SupportedIntents = []string{
	IntentCreateLabSlip, IntentListLabSlips, IntentGetStatus,
	IntentUpdateStatus, IntentResendEmail, IntentUnknown,
}

// DefaultConfidenceThreshold gates dispatch: parses below it are
// answered with a clarification request instead of an action.
const DefaultConfidenceThreshold = 0.6

// ParseResult is the structured verdict of the parse stage.
type ParseResult struct {
	Intent     string                 `json:"intent"`
	Parameters map[string]interface{} `json:"parameters"`
	Confidence float64                `json:"confidence"`
}

// Result is the assistant's answer to one command.
type Result struct {
	Success    bool        `json:"success"`
	Response   string      `json:"response"`
	Intent     string      `json:"intent"`
	Confidence float64     `json:"confidence"`
	Data       interface{} `json:"data,omitempty"`
}

// Interpreter drives the parse / gate / dispatch / respond pipeline.
type Interpreter struct {
	llm       llm.Completer
	orders    *workorder.Service
	threshold float64
	logger    zerolog.Logger
}

func NewInterpreter(completer llm.Completer, orders *workorder.Service, threshold float64, logger zerolog.Logger) *Interpreter {
	// Negative means "not configured"; an explicit 0 dispatches everything.
	if threshold < 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Interpreter{llm: completer, orders: orders, threshold: threshold, logger: logger}
}

func (i *Interpreter) Threshold() float64 { return i.threshold }

// Handle runs one command through the pipeline. Parse failures never
// error out: they degrade to the unknown intent with zero confidence.
func (i *Interpreter) Handle(ctx context.Context, command string, history []Turn) Result {
	parsed := i.parse(ctx, command, history)

	if parsed.Confidence < i.threshold {
		i.logger.Debug().
			Str("intent", parsed.Intent).
			Float64("confidence", parsed.Confidence).
			Msg("agent parse below confidence threshold")
		return Result{
			Success:    false,
			Intent:     parsed.Intent,
			Confidence: parsed.Confidence,
			Response:   "I'm not sure what you're asking for. You can ask about a work order's status, list open lab cases, or move a case to its next stage.",
		}
	}

	result := i.dispatch(ctx, parsed)
	result.Intent = parsed.Intent
	result.Confidence = parsed.Confidence
	result.Response = i.phrase(ctx, command, result)
	return result
}

func (i *Interpreter) parse(ctx context.Context, command string, history []Turn) ParseResult {
	out, err := i.llm.Complete(ctx, buildParsePrompt(command, history))
	if err != nil {
		i.logger.Warn().Err(err).Msg("agent parse call failed")
		return ParseResult{Intent: IntentUnknown, Confidence: 0}
	}

	var parsed ParseResult
	if err := json.Unmarshal([]byte(extractJSON(out)), &parsed); err != nil {
		i.logger.Warn().Err(err).Str("output", out).Msg("agent parse output was not valid JSON")
		return ParseResult{Intent: IntentUnknown, Confidence: 0}
	}
	if !validIntent(parsed.Intent) {
		return ParseResult{Intent: IntentUnknown, Confidence: 0}
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	return parsed
}

func (i *Interpreter) dispatch(ctx context.Context, parsed ParseResult) Result {
	switch parsed.Intent {
	case IntentGetStatus:
		return i.getStatus(ctx, parsed)
	case IntentListLabSlips:
		return i.listOrders(ctx, parsed)
	case IntentUpdateStatus:
		return i.updateStatus(ctx, parsed)
	case IntentCreateLabSlip:
		return Result{
			Success:  false,
			Response: "Creating lab slips through the assistant isn't supported yet. Use the work-orders screen to create one from a detected crown procedure.",
		}
	case IntentResendEmail:
		return Result{
			Success:  false,
			Response: "Resending lab emails through the assistant isn't supported yet.",
		}
	default:
		return Result{
			Success:  false,
			Response: "I can check a case's status, list open lab cases, or update a case's stage.",
		}
	}
}

// lookupOrder resolves the work_order_id parameter, which may be a UUID
// or a display number like LAB-20260828-0042. The second return is the
// finished failure result when resolution did not produce an order.
func (i *Interpreter) lookupOrder(ctx context.Context, parsed ParseResult) (*workorder.WorkOrder, *Result) {
	ref, ok := paramString(parsed.Parameters, "work_order_id")
	if !ok {
		return nil, &Result{Success: false, Response: "Which work order? Give me its id and I'll look it up."}
	}

	var (
		w   *workorder.WorkOrder
		err error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		w, err = i.orders.Get(ctx, id)
	} else {
		w, err = i.orders.GetByNumber(ctx, ref)
	}
	if apierr.IsKind(err, apierr.KindNotFound) {
		return nil, &Result{Success: false, Response: fmt.Sprintf("I couldn't find a work order matching %s.", ref)}
	}
	if err != nil {
		i.logger.Error().Err(err).Msg("agent work-order lookup failed")
		return nil, &Result{Success: false, Response: "Something went wrong looking that order up. Try again in a moment."}
	}
	return w, nil
}

func (i *Interpreter) getStatus(ctx context.Context, parsed ParseResult) Result {
	w, fail := i.lookupOrder(ctx, parsed)
	if fail != nil {
		return *fail
	}
	return Result{
		Success:  true,
		Response: fmt.Sprintf("Work order %s for %s is currently %s.", w.Number, w.Patient.DisplayName(), w.Status),
		Data:     w,
	}
}

func (i *Interpreter) listOrders(ctx context.Context, parsed ParseResult) Result {
	filters := workorder.ListFilters{}
	if status, ok := paramString(parsed.Parameters, "status"); ok && workorder.ValidStatus(status) {
		filters.Statuses = []string{status}
	}
	items, total, err := i.orders.List(ctx, filters, 10, 0)
	if err != nil {
		i.logger.Error().Err(err).Msg("agent list_lab_slips failed")
		return Result{Success: false, Response: "Something went wrong listing lab cases. Try again in a moment."}
	}
	if total == 0 {
		return Result{Success: true, Response: "There are no matching lab cases right now."}
	}
	var lines []string
	for _, w := range items {
		lines = append(lines, fmt.Sprintf("%s — %s, tooth %s, %s", w.Number, w.Patient.DisplayName(), w.Procedure.ToothNumber, w.Status))
	}
	return Result{
		Success:  true,
		Response: fmt.Sprintf("Found %d lab case(s):\n%s", total, strings.Join(lines, "\n")),
		Data:     items,
	}
}

func (i *Interpreter) updateStatus(ctx context.Context, parsed ParseResult) Result {
	w, fail := i.lookupOrder(ctx, parsed)
	if fail != nil {
		return *fail
	}
	status, ok := paramString(parsed.Parameters, "status")
	if !ok {
		return Result{Success: false, Response: "What status should I move it to?"}
	}
	notes, _ := paramString(parsed.Parameters, "notes")

	w, err := i.orders.UpdateStatus(ctx, w.ID, status, "ai-agent", notes)
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Kind == apierr.KindValidation {
		return Result{Success: false, Response: fmt.Sprintf("I can't make that change: %s", ae.Message)}
	}
	if err != nil {
		i.logger.Error().Err(err).Msg("agent update_status failed")
		return Result{Success: false, Response: "Something went wrong updating that order. Try again in a moment."}
	}
	return Result{
		Success:  true,
		Response: fmt.Sprintf("Done. Work order %s is now %s.", w.Number, w.Status),
		Data:     w,
	}
}

// phrase asks the model to restate the outcome conversationally. On any
// failure the raw response stands.
func (i *Interpreter) phrase(ctx context.Context, command string, result Result) string {
	out, err := i.llm.Complete(ctx, buildResponsePrompt(command, result.Response))
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			i.logger.Debug().Err(err).Msg("agent response call failed, using raw response")
		}
		return result.Response
	}
	return strings.TrimSpace(out)
}

func buildParsePrompt(command string, history []Turn) string {
	var b strings.Builder
	b.WriteString(`You are the command parser for a dental lab work-order system.
Classify the user's request into exactly one intent and extract its parameters.

Intents:
- create_lab_slip: create a new lab slip for a procedure
- list_lab_slips: list lab cases, optionally filtered by status
- get_status: report the status of one work order (parameter: work_order_id)
- update_status: move a work order to a new status (parameters: work_order_id, status, optional notes)
- resend_email: resend the lab notification email
- unknown: anything else

Valid statuses: pending, scanned, designed, milling, sintering, finishing, qc, ready, seated, cancelled, on_hold.

Respond with ONLY a JSON object, no prose and no code fences:
{"intent": "...", "parameters": {...}, "confidence": 0.0}

confidence is your certainty in the classification between 0 and 1.
`)
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
	}
	fmt.Fprintf(&b, "\nUser request: %s\n", command)
	return b.String()
}

func buildResponsePrompt(command, outcome string) string {
	return fmt.Sprintf(`You are a friendly assistant at a dental practice.
The user asked: %s
The system's answer is: %s

Restate the answer in one or two short, natural sentences. Keep every
fact, number, and work-order identifier exactly as given. Respond with
the sentences only.`, command, outcome)
}

// extractJSON trims anything around the outermost JSON object, which
// tolerates models that wrap output in code fences or commentary.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func validIntent(intent string) bool {
	for _, i := range SupportedIntents {
		if i == intent {
			return true
		}
	}
	return false
}

func paramString(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}
