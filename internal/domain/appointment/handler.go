package appointment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avicare/avicare/internal/domain/subscription"
	"github.com/avicare/avicare/internal/platform/session"
	"github.com/avicare/avicare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts availability on the public group, booking on the
// user (RequireUser) group, and scheduling management on the admin
// (RequireAdmin) group. Cancellation is registered on both authenticated
// groups since either party may cancel.
func (h *Handler) RegisterRoutes(api, user, admin *echo.Group) {
	api.GET("/appointments/available-slots", h.AvailableSlots)
	api.GET("/appointment-settings", h.GetSettings)

	user.POST("/appointments", h.Book)
	user.GET("/appointments/me", h.ListMine)
	user.GET("/appointments/:id", h.Get)
	user.PATCH("/appointments/:id/cancel", h.Cancel)

	admin.GET("/appointments", h.AdminList)
	admin.PATCH("/appointments/:id", h.AdminUpdate)
	admin.PATCH("/appointments/:id/cancel", h.Cancel)
	admin.PATCH("/appointment-settings", h.UpdateSettings)
	admin.POST("/blocked-slots", h.CreateBlockedSlot)
	admin.GET("/blocked-slots", h.ListBlockedSlots)
	admin.DELETE("/blocked-slots/:id", h.DeleteBlockedSlot)
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	avail, err := h.svc.AvailableSlots(c.Request().Context(), date)
	if err != nil {
		if errors.Is(err, ErrSettingsMissing) {
			return echo.NewHTTPError(http.StatusInternalServerError, "appointment settings not configured")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, avail)
}

func (h *Handler) Book(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, remaining, err := h.svc.Book(c.Request().Context(), session.UserPhone(c), req)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNoActiveSubscription):
			return echo.NewHTTPError(http.StatusBadRequest, "active subscription required")
		case errors.Is(err, subscription.ErrNoCreditsRemaining):
			return echo.NewHTTPError(http.StatusBadRequest, "no consultations remaining")
		case errors.Is(err, ErrSlotAlreadyBooked):
			return echo.NewHTTPError(http.StatusBadRequest, "slot already booked, pick another")
		case errors.Is(err, ErrSlotUnavailable):
			return echo.NewHTTPError(http.StatusBadRequest, "slot unavailable, pick another")
		case errors.Is(err, ErrSettingsMissing):
			return echo.NewHTTPError(http.StatusInternalServerError, "appointment settings not configured")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":                "appointment booked",
		"appointment":            appt,
		"remainingConsultations": remaining,
	})
}

type cancelRequest struct {
	Reason *string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sess := session.FromContext(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	canceledBy := "user"
	if sess.IsAdmin() {
		canceledBy = "admin"
	}

	restored, err := h.svc.Cancel(c.Request().Context(), id, session.UserPhone(c), sess.IsAdmin(), canceledBy, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "appointment does not belong to caller")
		case errors.Is(err, ErrAlreadyCanceled):
			return echo.NewHTTPError(http.StatusBadRequest, "appointment already canceled")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":        "appointment canceled",
		"creditRestored": restored,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sess := session.FromContext(c)
	appt, err := h.svc.Get(c.Request().Context(), id, session.UserPhone(c), sess != nil && sess.IsAdmin())
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "appointment does not belong to caller")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListMine(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMine(c.Request().Context(), session.UserPhone(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AdminList(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"phone", "status", "date"} {
		if p := c.QueryParam(key); p != "" {
			params[key] = p
		}
	}
	items, total, err := h.svc.AdminSearch(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type adminUpdateRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *Handler) AdminUpdate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req adminUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.AdminUpdate(c.Request().Context(), id, req.Status, req.Notes)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) GetSettings(c echo.Context) error {
	st, err := h.svc.GetSettings(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrSettingsMissing) {
			return echo.NewHTTPError(http.StatusInternalServerError, "appointment settings not configured")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) UpdateSettings(c echo.Context) error {
	var req SettingsUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.UpdateSettings(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, ErrSettingsMissing) {
			return echo.NewHTTPError(http.StatusInternalServerError, "appointment settings not configured")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

type blockedSlotRequest struct {
	Date      string  `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Reason    string  `json:"reason"`
}

func (h *Handler) CreateBlockedSlot(c echo.Context) error {
	var req blockedSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess := session.FromContext(c)
	if sess == nil || sess.AdminID == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	b, err := h.svc.CreateBlockedSlot(c.Request().Context(), req.Date, req.StartTime, req.EndTime, req.Reason, *sess.AdminID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBlockedSlots(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBlockedSlots(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteBlockedSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteBlockedSlot(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
