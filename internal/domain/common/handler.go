package common

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
	api.GET("/counties", h.ListCounties)
	api.GET("/counties/:id", h.GetCounty)
	api.GET("/constituencies", h.ListConstituencies)
	api.GET("/constituencies/:id", h.GetConstituency)
	api.GET("/wards", h.ListWards)
	api.GET("/wards/:id", h.GetWard)
	api.GET("/contact_types", h.ListContactTypes)
	api.GET("/contacts", h.ListContacts)
	api.GET("/contacts/:id", h.GetContact)

	geoWrite := api.Group("", auth.RequirePermission("common.add_county", "common.change_county"))
	geoWrite.POST("/counties", h.CreateCounty)
	geoWrite.PUT("/counties/:id", h.UpdateCounty)
	geoWrite.POST("/constituencies", h.CreateConstituency)
	geoWrite.PUT("/constituencies/:id", h.UpdateConstituency)
	geoWrite.POST("/wards", h.CreateWard)
	geoWrite.PUT("/wards/:id", h.UpdateWard)

	contactWrite := api.Group("", auth.RequirePermission("common.add_contact"))
	contactWrite.POST("/contact_types", h.CreateContactType)
	contactWrite.POST("/contacts", h.CreateContact)
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// queryUUID parses an optional UUID filter from the query string.
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

// -- Counties --

func (h *Handler) CreateCounty(c echo.Context) error {
	var county County
	if err := c.Bind(&county); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCounty(c.Request().Context(), &county); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, county)
}

func (h *Handler) GetCounty(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	county, err := h.svc.GetCounty(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, county)
}

func (h *Handler) UpdateCounty(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var county County
	if err := c.Bind(&county); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	county.ID = id
	if err := h.svc.UpdateCounty(c.Request().Context(), &county); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, county)
}

func (h *Handler) ListCounties(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListCounties(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

// -- Constituencies --

func (h *Handler) CreateConstituency(c echo.Context) error {
	var con Constituency
	if err := c.Bind(&con); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateConstituency(c.Request().Context(), &con); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, con)
}

func (h *Handler) GetConstituency(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	con, err := h.svc.GetConstituency(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, con)
}

func (h *Handler) UpdateConstituency(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var con Constituency
	if err := c.Bind(&con); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	con.ID = id
	if err := h.svc.UpdateConstituency(c.Request().Context(), &con); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, con)
}

func (h *Handler) ListConstituencies(c echo.Context) error {
	county, err := queryUUID(c, "county")
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListConstituencies(c.Request().Context(), county, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

// -- Wards --

func (h *Handler) CreateWard(c echo.Context) error {
	var w Ward
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateWard(c.Request().Context(), &w); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) GetWard(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	w, err := h.svc.GetWard(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) UpdateWard(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var w Ward
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w.ID = id
	if err := h.svc.UpdateWard(c.Request().Context(), &w); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) ListWards(c echo.Context) error {
	constituency, err := queryUUID(c, "constituency")
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListWards(c.Request().Context(), constituency, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

// -- Contacts --

func (h *Handler) CreateContactType(c echo.Context) error {
	var ct ContactType
	if err := c.Bind(&ct); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateContactType(c.Request().Context(), &ct); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, ct)
}

func (h *Handler) ListContactTypes(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListContactTypes(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

func (h *Handler) CreateContact(c echo.Context) error {
	var ct Contact
	if err := c.Bind(&ct); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateContact(c.Request().Context(), &ct); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, ct)
}

func (h *Handler) GetContact(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	ct, err := h.svc.GetContact(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, ct)
}

func (h *Handler) ListContacts(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListContacts(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}
