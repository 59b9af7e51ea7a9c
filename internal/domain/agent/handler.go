package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labbridge/labbridge/internal/platform/apierr"
	"github.com/labbridge/labbridge/internal/platform/llm"
)

// PingFunc checks store reachability before a command is accepted.
type PingFunc func(ctx context.Context) error

type Handler struct {
	interp   *Interpreter
	sessions *SessionStore
	llm      llm.Completer
	ping     PingFunc
}

func NewHandler(interp *Interpreter, sessions *SessionStore, completer llm.Completer, ping PingFunc) *Handler {
	return &Handler{interp: interp, sessions: sessions, llm: completer, ping: ping}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/ai-agent/command", h.Command)
	api.GET("/ai-agent/status", h.Status)
}

type commandRequest struct {
	Command   string `json:"command"`
	SessionID string `json:"session_id"`
}

type commandResponse struct {
	Result
	SessionID string `json:"session_id"`
}

func (h *Handler) Command(c echo.Context) error {
	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Command == "" {
		return apierr.Respond(c, apierr.Validation("command is required"))
	}

	if !h.llm.Configured() {
		return apierr.Respond(c, apierr.UpstreamUnavailable(
			"the language model is not configured",
			"set OPENAI_API_KEY or GEMINI_API_KEY and LLM_PROVIDER"))
	}
	if err := h.checkDatabase(c.Request().Context()); err != nil {
		return apierr.Respond(c, apierr.UpstreamUnavailable(
			"the work-order store is unreachable", "check DATABASE_URL and database health"))
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	history := h.sessions.Get(req.SessionID)

	result := h.interp.Handle(c.Request().Context(), req.Command, history)

	now := time.Now().UTC()
	h.sessions.Append(req.SessionID,
		Turn{Role: "user", Content: req.Command, At: now},
		Turn{Role: "assistant", Content: result.Response, At: now},
	)

	return c.JSON(http.StatusOK, commandResponse{Result: result, SessionID: req.SessionID})
}

func (h *Handler) checkDatabase(ctx context.Context) error {
	if h.ping == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.ping(ctx)
}

func (h *Handler) Status(c echo.Context) error {
	dbConnected := h.checkDatabase(c.Request().Context()) == nil
	return c.JSON(http.StatusOK, map[string]interface{}{
		"llm_configured":       h.llm.Configured(),
		"llm_provider":         h.llm.Provider(),
		"database_connected":   dbConnected,
		"confidence_threshold": h.interp.Threshold(),
		"supported_intents":    SupportedIntents,
		"active_sessions":      h.sessions.Len(),
	})
}
