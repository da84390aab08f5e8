package facilities

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
	api.GET("/owner_types", h.ListOwnerTypes)
	api.GET("/owners", h.ListOwners)
	api.GET("/owners/:id", h.GetOwner)
	api.GET("/facility_types", h.ListFacilityTypes)
	api.GET("/keph_levels", h.ListKephLevels)
	api.GET("/change_reasons", h.ListChangeReasons)

	api.GET("/facilities", h.ListFacilities)
	api.GET("/facilities/:id", h.GetFacility)
	api.GET("/facilities/:id/upgrades", h.ListUpgrades)
	api.GET("/facilities/:id/revisions", h.ListRevisions)
	api.GET("/gis/facility_coordinates", h.FacilityCoordinates)

	add := api.Group("", auth.RequirePermission("facilities.add_facility"))
	add.POST("/owner_types", h.CreateOwnerType)
	add.POST("/owners", h.CreateOwner)
	add.POST("/facility_types", h.CreateFacilityType)
	add.POST("/keph_levels", h.CreateKephLevel)
	add.POST("/change_reasons", h.CreateChangeReason)
	add.POST("/facilities", h.CreateFacility)

	change := api.Group("", auth.RequirePermission("facilities.change_facility"))
	change.PUT("/facilities/:id", h.UpdateFacility)

	del := api.Group("", auth.RequirePermission("facilities.delete_facility"))
	del.DELETE("/facilities/:id", h.DeleteFacility)

	upgrade := api.Group("", auth.RequirePermission("facilities.add_facilityupgrade"))
	upgrade.POST("/facilities/:id/upgrade", h.UpgradeFacility)
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

func (h *Handler) CreateOwnerType(c echo.Context) error {
	var ot OwnerType
	if err := c.Bind(&ot); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateOwnerType(c.Request().Context(), &ot); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, ot)
}

func (h *Handler) ListOwnerTypes(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListOwnerTypes(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) CreateOwner(c echo.Context) error {
	var o Owner
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateOwner(c.Request().Context(), &o); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOwner(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetOwner(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOwners(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListOwners(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) CreateFacilityType(c echo.Context) error {
	var ft FacilityType
	if err := c.Bind(&ft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateFacilityType(c.Request().Context(), &ft); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, ft)
}

func (h *Handler) ListFacilityTypes(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListFacilityTypes(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) CreateKephLevel(c echo.Context) error {
	var k KephLevel
	if err := c.Bind(&k); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateKephLevel(c.Request().Context(), &k); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, k)
}

func (h *Handler) ListKephLevels(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListKephLevels(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) CreateChangeReason(c echo.Context) error {
	var cr ChangeReason
	if err := c.Bind(&cr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateChangeReason(c.Request().Context(), &cr); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, cr)
}

func (h *Handler) ListChangeReasons(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListChangeReasons(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

// -- Facilities --

func (h *Handler) CreateFacility(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.CreateFacility(c.Request().Context(), &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) GetFacility(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	f, err := h.svc.GetFacility(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) UpdateFacility(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var f Facility
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.ID = id
	updated, err := h.svc.UpdateFacility(c.Request().Context(), &f)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteFacility(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteFacility(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListFacilities(c echo.Context) error {
	filter := ListFilter{Name: c.QueryParam("name")}
	for _, q := range []struct {
		name string
		dst  **uuid.UUID
	}{
		{"county", &filter.County},
		{"constituency", &filter.Constituency},
		{"ward", &filter.Ward},
		{"facility_type", &filter.FacilityType},
		{"keph_level", &filter.KephLevel},
		{"owner", &filter.Owner},
	} {
		id, err := queryUUID(c, q.name)
		if err != nil {
			return err
		}
		*q.dst = id
	}

	p := pagination.FromContext(c)
	items, total, err := h.svc.ListFacilities(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) UpgradeFacility(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req UpgradeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpgradeFacility(c.Request().Context(), id, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) ListUpgrades(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListUpgrades(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) ListRevisions(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListRevisions(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) FacilityCoordinates(c echo.Context) error {
	items, err := h.svc.ListWithCoordinates(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	fc, err := CoordinatesCollection(items)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, fc)
}
