package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avicare/avicare/internal/platform/session"
)

type Handler struct {
	svc           *Service
	secureCookies bool
}

func NewHandler(svc *Service, secureCookies bool) *Handler {
	return &Handler{svc: svc, secureCookies: secureCookies}
}

// RegisterRoutes mounts auth routes on api and the protected profile routes
// on user (guarded by RequireUser).
func (h *Handler) RegisterRoutes(api *echo.Group, user *echo.Group) {
	api.POST("/auth/otp/request", h.RequestOTP)
	api.POST("/auth/otp/verify", h.VerifyOTP)
	api.POST("/auth/logout", h.Logout)
	api.POST("/admin/login", h.AdminLogin)

	user.GET("/auth/me", h.Me)
	user.PATCH("/auth/me", h.UpdateMe)
}

type otpRequest struct {
	Phone string `json:"phone"`
}

func (h *Handler) RequestOTP(c echo.Context) error {
	var req otpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	challenge, err := h.svc.RequestOTP(c.Request().Context(), req.Phone)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":         "verification code sent",
		"challenge_token": challenge,
	})
}

type otpVerifyRequest struct {
	Phone          string `json:"phone"`
	Code           string `json:"code"`
	ChallengeToken string `json:"challenge_token"`
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var req otpVerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.VerifyOTP(c.Request().Context(), req.Phone, req.Code, req.ChallengeToken)
	if err != nil {
		if errors.Is(err, ErrChallengeInvalid) || errors.Is(err, ErrCodeMismatch) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.SetCookie(session.NewCookie(sess.Token, sess.ExpiresAt, h.secureCookies))
	return c.JSON(http.StatusOK, map[string]string{"message": "logged in", "phone": req.Phone})
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) AdminLogin(c echo.Context) error {
	var req adminLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.AdminLogin(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.SetCookie(session.NewCookie(sess.Token, sess.ExpiresAt, h.secureCookies))
	return c.JSON(http.StatusOK, map[string]string{"message": "logged in"})
}

func (h *Handler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		if err := h.svc.Logout(c.Request().Context(), cookie.Value); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	c.SetCookie(session.ExpiredCookie(h.secureCookies))
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) Me(c echo.Context) error {
	phone := session.UserPhone(c)
	user, err := h.svc.GetUser(c.Request().Context(), phone)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	return c.JSON(http.StatusOK, user)
}

type updateMeRequest struct {
	Name string `json:"name"`
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var req updateMeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	phone := session.UserPhone(c)
	if err := h.svc.UpdateName(c.Request().Context(), phone, req.Name); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "profile updated"})
}
