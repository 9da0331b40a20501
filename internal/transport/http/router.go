package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/taskdesk/taskdesk/internal/handlers"
	authmw "github.com/taskdesk/taskdesk/internal/middleware/auth"
)

type Deps struct {
	DB             *gorm.DB
	AccessSecret   []byte
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	ProjectHandler *handlers.ProjectHandler
	TaskHandler    *handlers.TaskHandler
	SearchHandler  *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")
	gate := authmw.RequireLogin(d.DB, d.AccessSecret)

	users := v1.Group("/users")
	users.POST("/register", d.AuthHandler.Register)
	users.POST("/login", d.AuthHandler.Login)
	users.POST("/refreshAccessToken", d.AuthHandler.RefreshAccessToken)
	users.POST("/logout", d.AuthHandler.LogOut, gate)
	users.GET("/currentUser", d.AuthHandler.GetCurrentUser, gate)
	users.PUT("/editUserDetails", d.UserHandler.EditUserDetails, gate)
	users.GET("/projects", d.UserHandler.GetAssignedProjects, gate)
	users.GET("/tasks", d.UserHandler.GetAssignedTasks, gate)

	projects := v1.Group("/projects", gate)
	projects.POST("", d.ProjectHandler.CreateProject)
	projects.GET("", d.ProjectHandler.GetAllProjects)
	projects.GET("/:id", d.ProjectHandler.GetProject)
	projects.PUT("/:id", d.ProjectHandler.UpdateProject)
	projects.DELETE("/:id", d.ProjectHandler.DeleteProject)
	projects.POST("/:id/assign", d.ProjectHandler.AssignUser)
	projects.POST("/:id/unassign", d.ProjectHandler.UnassignUser)
	projects.GET("/:id/tasks", d.ProjectHandler.GetProjectTasks)

	tasks := v1.Group("/tasks", gate)
	tasks.POST("", d.TaskHandler.CreateTask)
	tasks.GET("/:id", d.TaskHandler.GetTask)
	tasks.PUT("/:id", d.TaskHandler.UpdateTask)
	tasks.DELETE("/:id", d.TaskHandler.DeleteTask)

	v1.GET("/search", d.SearchHandler.Search, gate)
}
