package subscription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avicare/avicare/internal/platform/payment"
	"github.com/avicare/avicare/internal/platform/session"
	"github.com/avicare/avicare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts plan/purchase routes on user (RequireUser) and
// management routes on admin (RequireAdmin). Plan listing is public.
func (h *Handler) RegisterRoutes(api, user, admin *echo.Group) {
	api.GET("/subscriptions/plans", h.ListPlans)

	user.POST("/subscriptions/order", h.CreateOrder)
	user.POST("/subscriptions/verify", h.VerifyPayment)
	user.GET("/subscriptions/me", h.Me)

	admin.GET("/subscriptions", h.AdminList)
	admin.POST("/subscriptions/:id/consultations", h.AdminSetConsultations)
	admin.GET("/subscriptions/:id/audit", h.AdminListAudit)
}

func (h *Handler) ListPlans(c echo.Context) error {
	plans := make([]Plan, 0, len(Plans))
	for _, code := range []string{"monthly", "six-month", "annual"} {
		plans = append(plans, Plans[code])
	}
	return c.JSON(http.StatusOK, plans)
}

type orderRequest struct {
	Plan string `json:"plan"`
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req orderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	order, sub, err := h.svc.CreateOrder(c.Request().Context(), session.UserPhone(c), req.Plan)
	if err != nil {
		if errors.Is(err, ErrPlanUnknown) {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown plan")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"order":        order,
		"subscription": sub,
	})
}

type verifyRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

func (h *Handler) VerifyPayment(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sub, err := h.svc.VerifyPayment(c.Request().Context(), session.UserPhone(c), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, ErrOrderMismatch):
			return echo.NewHTTPError(http.StatusForbidden, "order does not belong to caller")
		case errors.Is(err, payment.ErrSignatureMismatch):
			return echo.NewHTTPError(http.StatusBadRequest, "payment verification failed")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "subscription activated",
		"subscription": sub,
	})
}

func (h *Handler) Me(c echo.Context) error {
	sub, err := h.svc.Current(c.Request().Context(), session.UserPhone(c))
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			return echo.NewHTTPError(http.StatusNotFound, "no active subscription")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) AdminList(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"phone", "status", "plan"} {
		if p := c.QueryParam(key); p != "" {
			params[key] = p
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type setConsultationsRequest struct {
	Value int `json:"value"`
}

func (h *Handler) AdminSetConsultations(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req setConsultationsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sess := session.FromContext(c)
	if sess == nil || sess.AdminID == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	sub, err := h.svc.AdminSetConsultations(c.Request().Context(), id, req.Value, *sess.AdminID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) AdminListAudit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListAudit(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
