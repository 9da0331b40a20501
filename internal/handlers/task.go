package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/taskdesk/taskdesk/internal/events"
	"github.com/taskdesk/taskdesk/internal/logging"
	"github.com/taskdesk/taskdesk/internal/models"
)

type TaskHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *TaskHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicTaskEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", events.TopicTaskEvents, "error", err)
	}
}

func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req struct {
		Title     string `json:"title"`
		Status    string `json:"status"`
		ProjectID uint   `json:"project_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" || req.ProjectID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "missing required fields")
	}
	if req.Status == "" {
		req.Status = models.StatusToDo
	}
	if !models.ValidStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status (only To Do, In Progress and Done are allowed)")
	}

	var project models.Project
	if err := h.DB.WithContext(c.Request().Context()).First(&project, req.ProjectID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}

	task := models.Task{Title: req.Title, Status: req.Status, ProjectID: req.ProjectID}
	if err := h.DB.WithContext(c.Request().Context()).Create(&task).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, fmt.Sprint(task.ID), map[string]interface{}{
		"type":       "task_created",
		"task_id":    task.ID,
		"project_id": task.ProjectID,
		"title":      task.Title,
	})

	return c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}

	var task models.Task
	if err := h.DB.WithContext(c.Request().Context()).First(&task, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}

	var req struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" || req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing required fields")
	}
	if !models.ValidStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status (only To Do, In Progress and Done are allowed)")
	}

	var task models.Task
	if err := h.DB.WithContext(c.Request().Context()).First(&task, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}

	task.Title = req.Title
	task.Status = req.Status
	if err := h.DB.WithContext(c.Request().Context()).Save(&task).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, fmt.Sprint(task.ID), map[string]interface{}{
		"type":    "task_updated",
		"task_id": task.ID,
		"status":  task.Status,
	})

	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}

	if err := h.DB.WithContext(c.Request().Context()).Delete(&models.Task{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "task deleted"})
}
