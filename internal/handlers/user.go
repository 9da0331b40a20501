package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/taskdesk/taskdesk/internal/hash"
	authmw "github.com/taskdesk/taskdesk/internal/middleware/auth"
	"github.com/taskdesk/taskdesk/internal/models"
	"github.com/taskdesk/taskdesk/internal/session"
)

type UserHandler struct {
	DB *gorm.DB
}

// EditUserDetails updates the caller's own record; empty fields are left as is.
func (h *UserHandler) EditUserDetails(c echo.Context) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return httpError(session.ErrUnauthorized)
	}

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	updates := map[string]interface{}{}
	if v := strings.ToLower(strings.TrimSpace(req.Username)); v != "" {
		updates["username"] = v
	}
	if v := strings.ToLower(strings.TrimSpace(req.Email)); v != "" {
		updates["email"] = v
	}
	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		updates["password_hash"] = pwHash
	}
	if len(updates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	err := h.DB.WithContext(c.Request().Context()).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(updates).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "username or email already taken")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "user updated"})
}

// GetAssignedProjects lists projects the caller is a member of.
func (h *UserHandler) GetAssignedProjects(c echo.Context) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return httpError(session.ErrUnauthorized)
	}

	var projects []models.Project
	err := h.DB.WithContext(c.Request().Context()).
		Joins("JOIN project_members pm ON pm.project_id = projects.id").
		Where("pm.user_id = ?", user.ID).
		Find(&projects).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, projects)
}

// GetAssignedTasks lists tasks in the caller's projects.
func (h *UserHandler) GetAssignedTasks(c echo.Context) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return httpError(session.ErrUnauthorized)
	}

	var tasks []models.Task
	err := h.DB.WithContext(c.Request().Context()).
		Joins("JOIN project_members pm ON pm.project_id = tasks.project_id").
		Where("pm.user_id = ?", user.ID).
		Find(&tasks).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, tasks)
}
