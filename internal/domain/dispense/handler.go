package dispense

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medtrack/medtrack/internal/domain/identity"
	"github.com/medtrack/medtrack/internal/domain/prescription"
	"github.com/medtrack/medtrack/internal/platform/auth"
	"github.com/medtrack/medtrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	pharmacy := api.Group("/pharmacy", auth.RequireRole(auth.RolePharmacist))
	pharmacy.GET("/patients/:medTrackId/prescriptions", h.PatientHistory)
	pharmacy.GET("/prescriptions/:id", h.GetPrescription)
	pharmacy.POST("/prescriptions/:id/dispense", h.Dispense)
	pharmacy.GET("/dispensed", h.ListDispensed)
}

// Dispense returns 201 on the first dispense and 200 on an idempotent
// replay of the same (pharmacist, prescription) pair.
func (h *Handler) Dispense(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	pharmacistID := auth.UserIDFromContext(c.Request().Context())

	result, err := h.svc.Dispense(c.Request().Context(), pharmacistID, c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, prescription.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		case errors.Is(err, ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, "dispense already recorded")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "dispense failed")
		}
	}

	status := http.StatusOK
	if result.Recorded {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

func (h *Handler) ListDispensed(c echo.Context) error {
	pg := pagination.FromContext(c)
	pharmacistID := auth.UserIDFromContext(c.Request().Context())

	views, total, err := h.svc.ListDispensed(c.Request().Context(), pharmacistID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list dispensed failed")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPrescription(c echo.Context) error {
	view, err := h.svc.GetPrescription(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, prescription.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "fetch prescription failed")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	history, err := h.svc.PatientHistory(c.Request().Context(), c.Param("medTrackId"))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "patient lookup failed")
	}
	return c.JSON(http.StatusOK, history)
}
