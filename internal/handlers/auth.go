package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskdesk/taskdesk/internal/events"
	"github.com/taskdesk/taskdesk/internal/logging"
	authmw "github.com/taskdesk/taskdesk/internal/middleware/auth"
	"github.com/taskdesk/taskdesk/internal/session"
	"github.com/taskdesk/taskdesk/internal/tokens"
)

type AuthHandler struct {
	Sessions *session.Manager
	Producer *events.Producer
	Secure   bool
}

func CreateCookie(name, value, path string, exp time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string, secure bool) *http.Cookie {
	return CreateCookie(name, "", path, time.Now().Add(-1*time.Hour), secure)
}

// statusOf is the single place session and token errors turn into HTTP codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrMissingFields):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrDuplicateUser):
		return http.StatusConflict
	case errors.Is(err, session.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrUnauthorized),
		errors.Is(err, session.ErrTokenMismatch),
		errors.Is(err, tokens.ErrTokenExpired),
		errors.Is(err, tokens.ErrTokenInvalid),
		errors.Is(err, tokens.ErrTokenMalformed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func httpError(err error) *echo.HTTPError {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal error")
	}
	return echo.NewHTTPError(code, err.Error())
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", topic, "error", err)
	}
}

func (h *AuthHandler) setSessionCookies(c echo.Context, pair *session.TokenPair) {
	c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", pair.AccessExp, h.Secure))
	c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp, h.Secure))
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Sessions.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, pair, err := h.Sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.setSessionCookies(c, pair)

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return httpError(session.ErrUnauthorized)
	}

	if err := h.Sessions.Logout(c.Request().Context(), user.ID); err != nil {
		return httpError(err)
	}

	c.SetCookie(DeleteCookie("accessToken", "/", h.Secure))
	c.SetCookie(DeleteCookie("refreshToken", "/", h.Secure))

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":    "user_logged_out",
		"user_id": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// RefreshAccessToken reads the refresh token from the cookie first, then the
// JSON body, and rotates the pair.
func (h *AuthHandler) RefreshAccessToken(c echo.Context) error {
	var presented string
	if cookie, err := c.Cookie("refreshToken"); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.Bind(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	pair, err := h.Sessions.Refresh(c.Request().Context(), presented)
	if err != nil {
		return httpError(err)
	}

	h.setSessionCookies(c, pair)

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHandler) GetCurrentUser(c echo.Context) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return httpError(session.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, user)
}
