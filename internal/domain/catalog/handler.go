package catalog

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avicare/avicare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts public browsing routes on api and management routes
// on admin (already guarded by the admin session middleware).
func (h *Handler) RegisterRoutes(api *echo.Group, admin *echo.Group) {
	api.GET("/birds", h.ListBirds)
	api.GET("/birds/:id", h.GetBird)

	admin.POST("/birds", h.CreateBird)
	admin.PUT("/birds/:id", h.UpdateBird)
	admin.DELETE("/birds/:id", h.DeleteBird)
	admin.GET("/metrics", h.GetMetrics)
}

func (h *Handler) ListBirds(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	if p := c.QueryParam("species"); p != "" {
		params["species"] = p
	}
	if p := c.QueryParam("available"); p != "" {
		params["available"] = p
	}
	items, total, err := h.svc.SearchBirds(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetBird(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.GetBird(c.Request().Context(), id, c.RealIP())
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "bird not found")
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CreateBird(c echo.Context) error {
	var b Bird
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateBird(c.Request().Context(), &b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) UpdateBird(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var b Bird
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b.ID = id
	if err := h.svc.UpdateBird(c.Request().Context(), &b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBird(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteBird(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"view_counts": h.svc.ViewCounts()})
}
