package users

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/pkg/pagination"
)

type Handler struct {
	svc    *Service
	issuer *auth.TokenIssuer
}

// NewHandler builds the users handler. issuer may be nil, in which case the
// token endpoint is not served.
func NewHandler(svc *Service, issuer *auth.TokenIssuer) *Handler {
	return &Handler{svc: svc, issuer: issuer}
}

// RegisterPublicRoutes registers the endpoints reachable without a token.
func (h *Handler) RegisterPublicRoutes(api *echo.Group) {
	if h.issuer != nil {
		api.POST("/auth/token", h.Token)
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/auth/me", h.Me)
	api.POST("/auth/password/change", h.ChangePassword)

	api.GET("/users", h.ListUsers)
	api.GET("/users/:id", h.GetUser)
	api.GET("/groups", h.ListGroups)
	api.GET("/groups/:id", h.GetGroup)
	api.GET("/permissions", h.ListPermissions)

	api.POST("/users", h.CreateUser, auth.RequirePermission("users.add_mfluser"))
	api.PUT("/users/:id", h.UpdateUser, auth.RequirePermission("users.change_mfluser"))
	api.DELETE("/users/:id", h.DeleteUser, auth.RequirePermission("users.delete_mfluser"))
	api.POST("/groups", h.CreateGroup, auth.RequirePermission("users.add_group"))
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Auth --

// Token implements the OAuth2 resource owner password grant.
func (h *Handler) Token(c echo.Context) error {
	if c.FormValue("grant_type") != "password" {
		return c.JSON(http.StatusBadRequest, &OAuthError{
			Code:        "unsupported_grant_type",
			Description: "only the password grant is supported",
		})
	}
	p, err := h.svc.Authenticate(c.Request().Context(), c.FormValue("username"), c.FormValue("password"))
	var oerr *OAuthError
	if errors.As(err, &oerr) {
		return c.JSON(http.StatusBadRequest, oerr)
	}
	if err != nil {
		return apperr.HTTP(err)
	}
	token, err := h.issuer.Issue(p)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.issuer.TTL().Seconds()),
	})
}

type profile struct {
	*User
	Permissions []string `json:"permissions"`
	IsAdmin     bool     `json:"is_admin"`
}

func (h *Handler) Me(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id := p.UserUUID()
	if id == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	u, err := h.svc.GetUser(c.Request().Context(), *id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, &profile{User: u, Permissions: p.Permissions, IsAdmin: p.IsAdmin})
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id := auth.PrincipalFromContext(c.Request().Context()).UserUUID()
	if id == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	var pc PasswordChange
	if err := c.Bind(&pc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ChangePassword(c.Request().Context(), *id, &pc); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"detail": "New password has been saved."})
}

// -- Users --

func (h *Handler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	req.IsActive = true
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.CreateUser(c.Request().Context(), &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	updated, err := h.svc.UpdateUser(c.Request().Context(), &u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"detail": "user deleted"})
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Request().URL))
}

// -- Groups --

func (h *Handler) CreateGroup(c echo.Context) error {
	var g Group
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateGroup(c.Request().Context(), &g); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, &g)
}

func (h *Handler) GetGroup(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	g, err := h.svc.GetGroup(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) ListGroups(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListGroups(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Request().URL))
}

func (h *Handler) ListPermissions(c echo.Context) error {
	items, err := h.svc.ListPermissions(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}
