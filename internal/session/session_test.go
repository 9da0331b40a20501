package session

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskdesk/taskdesk/internal/models"
	"github.com/taskdesk/taskdesk/internal/tokens"
)

func newTestManager(t *testing.T) *Manager {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Project{}, &models.Task{}, &models.ProjectMember{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return &Manager{
		DB: db,
		Issuer: &tokens.Issuer{
			AccessSecret:  []byte("test-access-secret"),
			AccessTTL:     15 * time.Minute,
			RefreshSecret: []byte("test-refresh-secret"),
			RefreshTTL:    7 * 24 * time.Hour,
		},
	}
}

func TestManager_Register(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	user, err := m.Register(ctx, "Alice", "Alice@X.com", "password")
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@x.com", user.Email)
	assert.NotEqual(t, "password", user.PasswordHash)
	assert.Nil(t, user.RefreshToken)
}

func TestManager_Register_MissingFields(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{name: "empty username", username: "", email: "a@x.com", password: "pw"},
		{name: "empty email", username: "a", email: "", password: "pw"},
		{name: "empty password", username: "a", email: "a@x.com", password: ""},
		{name: "whitespace only", username: "  ", email: "a@x.com", password: "pw"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := m.Register(ctx, tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrMissingFields)
		})
	}
}

func TestManager_Register_Duplicate(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "alice@x.com", "pw")
	require.NoError(t, err)

	_, err = m.Register(ctx, "ALICE", "other@x.com", "pw")
	assert.ErrorIs(t, err, ErrDuplicateUser, "username collision is case-insensitive")

	_, err = m.Register(ctx, "bob", "Alice@X.com", "pw")
	assert.ErrorIs(t, err, ErrDuplicateUser, "email collision is case-insensitive")

	var count int64
	m.DB.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count, "failed registrations must not write")
}

func TestManager_Login(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "alice@x.com", "password")
	require.NoError(t, err)

	user, pair, err := m.Login(ctx, "alice@x.com", "password")
	require.NoError(t, err)
	require.NotNil(t, pair)

	// Both tokens verify right after issuance.
	accessClaims, err := tokens.AccessClaimsFromToken(pair.AccessToken, m.Issuer.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", accessClaims.Username)
	assert.Equal(t, "alice@x.com", accessClaims.Email)

	refreshClaims, err := tokens.RefreshClaimsFromToken(pair.RefreshToken, m.Issuer.RefreshSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", refreshClaims.Username)

	// The refresh token is persisted on the user row.
	var stored models.User
	require.NoError(t, m.DB.First(&stored, user.ID).Error)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, pair.RefreshToken, *stored.RefreshToken)
}

func TestManager_Login_Failures(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	user, err := m.Register(ctx, "alice", "alice@x.com", "password")
	require.NoError(t, err)

	_, _, err = m.Login(ctx, "", "password")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, _, err = m.Login(ctx, "nobody@x.com", "password")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, _, err = m.Login(ctx, "alice@x.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	var stored models.User
	require.NoError(t, m.DB.First(&stored, user.ID).Error)
	assert.Nil(t, stored.RefreshToken, "failed login must not touch the stored refresh token")
}

func TestManager_Login_SupersedesPreviousSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "alice@x.com", "password")
	require.NoError(t, err)

	_, first, err := m.Login(ctx, "alice@x.com", "password")
	require.NoError(t, err)

	_, _, err = m.Login(ctx, "alice@x.com", "password")
	require.NoError(t, err)

	_, err = m.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch, "second login invalidates the first session's refresh token")
}

func TestManager_Refresh_RotatesExactlyOnce(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "alice@x.com", "pw")
	require.NoError(t, err)

	_, pair1, err := m.Login(ctx, "alice@x.com", "pw")
	require.NoError(t, err)

	pair2, err := m.Refresh(ctx, pair1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)

	_, err = tokens.AccessClaimsFromToken(pair2.AccessToken, m.Issuer.AccessSecret)
	require.NoError(t, err)

	// The superseded token fails on reuse.
	_, err = m.Refresh(ctx, pair1.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	// The rotated one keeps working.
	_, err = m.Refresh(ctx, pair2.RefreshToken)
	require.NoError(t, err)
}

func TestManager_Refresh_Failures(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = m.Refresh(ctx, "not.a.token")
	assert.ErrorIs(t, err, tokens.ErrTokenMalformed)

	// A well-formed token for a user that no longer exists.
	ghost := &models.User{ID: 999, Username: "ghost"}
	token, _, err := m.Issuer.RefreshToken(ghost)
	require.NoError(t, err)
	_, err = m.Refresh(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestManager_Refresh_ExpiredToken(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	m.Issuer.RefreshTTL = -1 * time.Minute
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "alice@x.com", "pw")
	require.NoError(t, err)

	_, pair, err := m.Login(ctx, "alice@x.com", "pw")
	require.NoError(t, err)

	_, err = m.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, tokens.ErrTokenExpired)
}

func TestManager_Logout(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	user, err := m.Register(ctx, "alice", "alice@x.com", "pw")
	require.NoError(t, err)

	_, pair, err := m.Login(ctx, "alice@x.com", "pw")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, user.ID))

	var stored models.User
	require.NoError(t, m.DB.First(&stored, user.ID).Error)
	assert.Nil(t, stored.RefreshToken)

	// A previously valid refresh token no longer matches anything.
	_, err = m.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	// Logging out again is not an error.
	require.NoError(t, m.Logout(ctx, user.ID))
}
