package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/taskdesk/taskdesk/internal/logging"
	"github.com/taskdesk/taskdesk/internal/models"
	"github.com/taskdesk/taskdesk/internal/tokens"
)

const userContextKey = "user"

// RequireLogin admits a request only when it carries a valid access token for
// an existing user. The token comes from the accessToken cookie, falling back
// to an Authorization bearer header. Any failure aborts with 401 before the
// handler runs.
func RequireLogin(db *gorm.DB, accessSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("middleware", "require_login")

			raw := extractToken(c)
			if raw == "" {
				l.Warn("auth_failed", "reason", "missing_token")
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized request")
			}

			claims, err := tokens.AccessClaimsFromToken(raw, accessSecret)
			if err != nil {
				l.Warn("auth_failed", "reason", "invalid_token", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			id, err := tokens.SubjectID(claims.Subject)
			if err != nil {
				l.Warn("auth_failed", "reason", "bad_subject")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			var user models.User
			if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
				l.Warn("auth_failed", "reason", "user_not_found", "user_id", id)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set(userContextKey, &user)
			return next(c)
		}
	}
}

// CurrentUser returns the identity attached by RequireLogin, if any.
func CurrentUser(c echo.Context) (*models.User, bool) {
	user, ok := c.Get(userContextKey).(*models.User)
	return user, ok
}

func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
