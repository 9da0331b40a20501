package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/taskdesk/taskdesk/internal/events"
	"github.com/taskdesk/taskdesk/internal/logging"
	authmw "github.com/taskdesk/taskdesk/internal/middleware/auth"
	"github.com/taskdesk/taskdesk/internal/models"
	"github.com/taskdesk/taskdesk/internal/service/search"
	"github.com/taskdesk/taskdesk/internal/session"
)

type ProjectHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *ProjectHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicProjectEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", events.TopicProjectEvents, "error", err)
	}
}

func (h *ProjectHandler) index(c echo.Context, p *models.Project) {
	if err := search.IndexProject(c.Request().Context(), h.ES, h.Index, p); err != nil {
		logging.FromContext(c.Request().Context()).Error("es index error", "project_id", p.ID, "error", err)
	}
}

func (h *ProjectHandler) CreateProject(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	project := models.Project{Name: req.Name, Description: req.Description}
	if err := h.DB.WithContext(c.Request().Context()).Create(&project).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.index(c, &project)
	h.publish(c, fmt.Sprint(project.ID), map[string]interface{}{
		"type":       "project_created",
		"project_id": project.ID,
		"name":       project.Name,
	})

	return c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) GetAllProjects(c echo.Context) error {
	var projects []models.Project
	if err := h.DB.WithContext(c.Request().Context()).Order("id ASC").Find(&projects).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) GetProject(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid project id")
	}

	var project models.Project
	if err := h.DB.WithContext(c.Request().Context()).First(&project, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	return c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) UpdateProject(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid project id")
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var project models.Project
	if err := h.DB.WithContext(c.Request().Context()).First(&project, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}

	project.Name = req.Name
	project.Description = req.Description
	if err := h.DB.WithContext(c.Request().Context()).Save(&project).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.index(c, &project)
	return c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid project id")
	}

	ctx := c.Request().Context()
	if err := h.DB.WithContext(ctx).Delete(&models.Project{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	h.DB.WithContext(ctx).Where("project_id = ?", id).Delete(&models.ProjectMember{})
	h.DB.WithContext(ctx).Where("project_id = ?", id).Delete(&models.Task{})

	if err := search.DeleteProject(c.Request().Context(), h.ES, h.Index, uint(id)); err != nil {
		logging.FromContext(c.Request().Context()).Error("es delete error", "project_id", id, "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "project deleted"})
}

// AssignUser adds the caller to the project's member set; assigning twice is
// not an error.
func (h *ProjectHandler) AssignUser(c echo.Context) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return httpError(session.ErrUnauthorized)
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid project id")
	}

	var project models.Project
	if err := h.DB.WithContext(c.Request().Context()).First(&project, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}

	member := models.ProjectMember{ProjectID: project.ID, UserID: user.ID}
	tx := h.DB.WithContext(c.Request().Context()).
		Where("project_id = ? AND user_id = ?", project.ID, user.ID).
		FirstOrCreate(&member)
	if tx.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, fmt.Sprint(project.ID), map[string]interface{}{
		"type":       "user_assigned",
		"project_id": project.ID,
		"user_id":    user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "user assigned to project"})
}

func (h *ProjectHandler) UnassignUser(c echo.Context) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return httpError(session.ErrUnauthorized)
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid project id")
	}

	err = h.DB.WithContext(c.Request().Context()).
		Where("project_id = ? AND user_id = ?", id, user.ID).
		Delete(&models.ProjectMember{}).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "user removed from project"})
}

func (h *ProjectHandler) GetProjectTasks(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid project id")
	}

	var tasks []models.Task
	err = h.DB.WithContext(c.Request().Context()).
		Where("project_id = ?", id).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, tasks)
}
