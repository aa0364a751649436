package prescription

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

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
	me := api.Group("/me")
	me.GET("/prescriptions", h.ListMine)
	me.GET("/prescriptions/:id", h.GetMine)

	doctor := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/prescriptions", h.Issue)
	doctor.GET("/prescriptions", h.ListIssued)
	doctor.GET("/prescriptions/:id", h.GetIssued)
}

func (h *Handler) Issue(c echo.Context) error {
	var req IssueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	doctorID := auth.UserIDFromContext(c.Request().Context())

	view, err := h.svc.Issue(c.Request().Context(), doctorID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		case errors.Is(err, ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, "duplicate issuance")
		case errors.Is(err, ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue prescription")
		}
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) ListMine(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID := auth.UserIDFromContext(c.Request().Context())

	views, total, err := h.svc.ListForPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list prescriptions failed")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetMine(c echo.Context) error {
	patientID := auth.UserIDFromContext(c.Request().Context())

	view, err := h.svc.GetForPatient(c.Request().Context(), patientID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "not your prescription")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "fetch prescription failed")
		}
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ListIssued(c echo.Context) error {
	pg := pagination.FromContext(c)
	doctorID := auth.UserIDFromContext(c.Request().Context())

	views, total, err := h.svc.ListForDoctor(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list prescriptions failed")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetIssued(c echo.Context) error {
	doctorID := auth.UserIDFromContext(c.Request().Context())

	view, err := h.svc.GetForDoctor(c.Request().Context(), doctorID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "fetch prescription failed")
	}
	return c.JSON(http.StatusOK, view)
}
