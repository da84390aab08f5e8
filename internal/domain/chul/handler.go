package chul

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/chul")
	g.GET("/statuses", h.ListStatuses)
	g.GET("/approvers", h.ListApprovers)
	g.GET("/approval_statuses", h.ListApprovalStatuses)
	g.GET("/units", h.ListUnits)
	g.GET("/units/:id", h.GetUnit)
	g.GET("/units/:id/approvals", h.ListUnitApprovals)
	g.GET("/workers", h.ListWorkers)
	g.GET("/workers/:id", h.GetWorker)
	g.GET("/workers/:id/approvals", h.ListWorkerApprovals)

	addUnit := g.Group("", auth.RequirePermission("chul.add_communityhealthunit"))
	addUnit.POST("/statuses", h.CreateStatus)
	addUnit.POST("/approvers", h.CreateApprover)
	addUnit.POST("/approval_statuses", h.CreateApprovalStatus)
	addUnit.POST("/units", h.CreateUnit)

	changeUnit := g.Group("", auth.RequirePermission("chul.change_communityhealthunit"))
	changeUnit.PUT("/units/:id", h.UpdateUnit)
	changeUnit.POST("/units/:id/approvals", h.ApproveUnit)

	deleteUnit := g.Group("", auth.RequirePermission("chul.delete_communityhealthunit"))
	deleteUnit.DELETE("/units/:id", h.DeleteUnit)

	addWorker := g.Group("", auth.RequirePermission("chul.add_communityhealthworker"))
	addWorker.POST("/workers", h.CreateWorker)

	changeWorker := g.Group("", auth.RequirePermission("chul.change_communityhealthworker"))
	changeWorker.PUT("/workers/:id", h.UpdateWorker)
	changeWorker.DELETE("/workers/:id", h.DeleteWorker)
	changeWorker.POST("/workers/:id/approvals", h.ApproveWorker)
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// -- Lookups --

func (h *Handler) CreateStatus(c echo.Context) error {
	var st Status
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateStatus(c.Request().Context(), &st); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) ListStatuses(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListStatuses(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) CreateApprover(c echo.Context) error {
	var a Approver
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateApprover(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListApprovers(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListApprovers(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) CreateApprovalStatus(c echo.Context) error {
	var st ApprovalStatus
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateApprovalStatus(c.Request().Context(), &st); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) ListApprovalStatuses(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListApprovalStatuses(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

// -- Units --

func (h *Handler) CreateUnit(c echo.Context) error {
	var req CreateUnitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.CreateUnit(c.Request().Context(), &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUnit(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUnit(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUnit(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var u Unit
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	updated, err := h.svc.UpdateUnit(c.Request().Context(), &u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteUnit(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUnit(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUnits(c echo.Context) error {
	filter := UnitFilter{Name: c.QueryParam("name")}
	var err error
	if filter.Facility, err = queryUUID(c, "facility"); err != nil {
		return err
	}
	if filter.Status, err = queryUUID(c, "status"); err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListUnits(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) ApproveUnit(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var a Approval
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ApproveUnit(c.Request().Context(), id, &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListUnitApprovals(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListUnitApprovals(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

// -- Workers --

func (h *Handler) CreateWorker(c echo.Context) error {
	req := CreateWorkerRequest{Worker: Worker{IsActive: true}}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.svc.CreateWorker(c.Request().Context(), &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) GetWorker(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	w, err := h.svc.GetWorker(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) UpdateWorker(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	w := Worker{IsActive: true}
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w.ID = id
	updated, err := h.svc.UpdateWorker(c.Request().Context(), &w)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteWorker(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWorker(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListWorkers(c echo.Context) error {
	unit, err := queryUUID(c, "health_unit")
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListWorkers(c.Request().Context(), unit, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) ApproveWorker(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var a Approval
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ApproveWorker(c.Request().Context(), id, &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListWorkerApprovals(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListWorkerApprovals(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}
