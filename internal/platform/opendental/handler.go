package opendental

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/labbridge/labbridge/internal/platform/apierr"
)

// Handler exposes read-only proxy routes over the upstream API so the
// front office can look up records without separate upstream credentials.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/opendental/patients/:id", h.GetPatient)
	api.GET("/opendental/patients/:id/procedures", h.ListProcedures)
	api.GET("/opendental/patients/:id/documents", h.ListDocuments)
	api.GET("/opendental/appointments", h.ListAppointments)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.client.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProcedures(c echo.Context) error {
	procs, err := h.client.ListProcedures(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  procs,
		"count": len(procs),
	})
}

func (h *Handler) ListDocuments(c echo.Context) error {
	docs, err := h.client.ListDocuments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  docs,
		"count": len(docs),
	})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	appts, err := h.client.ListAppointments(c.Request().Context(),
		c.QueryParam("patient_id"), c.QueryParam("date"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  appts,
		"count": len(appts),
	})
}
