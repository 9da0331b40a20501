package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdesk/taskdesk/internal/models"
)

func (env *testEnv) projectHandler() *ProjectHandler {
	return &ProjectHandler{DB: env.DB, Producer: nil, ES: nil, Index: "projects"}
}

func (env *testEnv) userHandler() *UserHandler {
	return &UserHandler{DB: env.DB}
}

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	h := env.projectHandler()

	rec, c := env.doJSON(http.MethodPost, "/api/v1/projects", map[string]string{
		"name":        "Website Redesign",
		"description": "Redesign the company website",
	})
	require.NoError(t, h.CreateProject(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var project models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	assert.Equal(t, "Website Redesign", project.Name)
	assert.NotZero(t, project.ID)
}

func TestCreateProject_MissingName(t *testing.T) {
	env := newTestEnv(t)
	h := env.projectHandler()

	_, c := env.doJSON(http.MethodPost, "/api/v1/projects", map[string]string{
		"description": "no name",
	})
	err := h.CreateProject(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestGetProject_NotFound(t *testing.T) {
	env := newTestEnv(t)
	h := env.projectHandler()

	_, c := env.doJSON(http.MethodGet, "/api/v1/projects/999", nil)
	c.SetParamNames("id")
	c.SetParamValues("999")

	err := h.GetProject(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestAssignAndListProjects(t *testing.T) {
	env := newTestEnv(t)
	h := env.projectHandler()
	uh := env.userHandler()

	user := env.register(t, "alice", "alice@x.com", "pw")
	project := models.Project{Name: "Website Redesign"}
	require.NoError(t, env.DB.Create(&project).Error)

	rec, c := env.doJSON(http.MethodPost, "/api/v1/projects/1/assign", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	c.Set("user", user)
	require.NoError(t, h.AssignUser(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// Assigning twice is idempotent.
	rec2, c2 := env.doJSON(http.MethodPost, "/api/v1/projects/1/assign", nil)
	c2.SetParamNames("id")
	c2.SetParamValues("1")
	c2.Set("user", user)
	require.NoError(t, h.AssignUser(c2))
	require.Equal(t, http.StatusOK, rec2.Code)

	var count int64
	env.DB.Model(&models.ProjectMember{}).Count(&count)
	assert.Equal(t, int64(1), count)

	rec3, c3 := env.doJSON(http.MethodGet, "/api/v1/users/projects", nil)
	c3.Set("user", user)
	require.NoError(t, uh.GetAssignedProjects(c3))

	var projects []models.Project
	require.NoError(t, json.Unmarshal(rec3.Body.Bytes(), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "Website Redesign", projects[0].Name)

	// Unassign empties the listing.
	_, c4 := env.doJSON(http.MethodPost, "/api/v1/projects/1/unassign", nil)
	c4.SetParamNames("id")
	c4.SetParamValues("1")
	c4.Set("user", user)
	require.NoError(t, h.UnassignUser(c4))

	rec5, c5 := env.doJSON(http.MethodGet, "/api/v1/users/projects", nil)
	c5.Set("user", user)
	require.NoError(t, uh.GetAssignedProjects(c5))
	require.NoError(t, json.Unmarshal(rec5.Body.Bytes(), &projects))
	assert.Empty(t, projects)
}
