package reporting

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reporting", auth.RequirePermission("reporting.view_reports"))
	g.GET("/", h.Report)
	g.GET("", h.Report)
	g.GET("/upgrades/", h.Upgrades)
	g.GET("/upgrades", h.Upgrades)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrReportNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Report not found.")
	case errors.Is(err, ErrBadFilter), errors.Is(err, ErrBadParam):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return apperr.HTTP(err)
	}
}

// Report serves GET /reporting/?report_type=...
func (h *Handler) Report(c echo.Context) error {
	req, err := ParseRequest(c.QueryParams())
	if err != nil {
		return httpError(err)
	}
	res, err := h.engine.Run(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// Upgrades serves GET /reporting/upgrades/
func (h *Handler) Upgrades(c echo.Context) error {
	req, err := ParseUpgradeRequest(c.QueryParams())
	if err != nil {
		return httpError(err)
	}
	rep, err := h.engine.Upgrades(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}
