package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/taskdesk/taskdesk/internal/hash"
	"github.com/taskdesk/taskdesk/internal/logging"
	"github.com/taskdesk/taskdesk/internal/models"
	"github.com/taskdesk/taskdesk/internal/tokens"
)

var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenMismatch      = errors.New("refresh token is superseded or revoked")
)

type Manager struct {
	DB     *gorm.DB
	Issuer *tokens.Issuer
}

type TokenPair struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Register creates a user with no active session. Username and email are
// folded to lower case, so the uniqueness check is case-insensitive.
func (m *Manager) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "session.register")

	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, ErrMissingFields
	}

	var existing models.User
	err := m.DB.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		First(&existing).Error
	if err == nil {
		l.Warn("register_failed", "reason", "user_exists")
		return nil, ErrDuplicateUser
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		RefreshToken: nil,
	}
	if err := m.DB.WithContext(ctx).Create(&user).Error; err != nil {
		l.Error("register_failed", "reason", "db_error", "error", err)
		return nil, err
	}

	l.Info("register_success", "user_id", user.ID)
	return &user, nil
}

// Login verifies credentials and starts a session. The new refresh token
// overwrites any stored one, which ends a previous session for the same user.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "session.login")

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, ErrMissingFields
	}

	var user models.User
	if err := m.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "reason", "user_not_found")
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "invalid_password", "user_id", user.ID)
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := m.issuePair(ctx, &user)
	if err != nil {
		l.Error("login_failed", "reason", "cannot issue tokens", "error", err)
		return nil, nil, err
	}

	l.Info("login_success", "user_id", user.ID)
	return &user, pair, nil
}

// Refresh rotates the session: the presented token must match the stored one
// exactly, and the new refresh token supersedes it. A token that already lost
// a concurrent rotation fails the comparison here.
func (m *Manager) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "session.refresh")

	if presented == "" {
		return nil, ErrUnauthorized
	}

	claims, err := tokens.RefreshClaimsFromToken(presented, m.Issuer.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "reason", "invalid_token", "error", err)
		return nil, err
	}

	id, err := tokens.SubjectID(claims.Subject)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := m.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("refresh_failed", "reason", "user_not_found", "user_id", id)
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if user.RefreshToken == nil || *user.RefreshToken != presented {
		l.Warn("refresh_failed", "reason", "token_mismatch", "user_id", user.ID)
		return nil, ErrTokenMismatch
	}

	pair, err := m.issuePair(ctx, &user)
	if err != nil {
		l.Error("refresh_failed", "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	l.Info("refresh_success", "user_id", user.ID)
	return pair, nil
}

// Logout clears the stored refresh token. Clearing an already-clear token is
// not an error. Issued access tokens stay valid to their own expiry.
func (m *Manager) Logout(ctx context.Context, userID uint) error {
	l := logging.FromContext(ctx).With("svc", "session.logout")

	err := m.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", nil).Error
	if err != nil {
		l.Error("logout_failed", "user_id", userID, "error", err)
		return err
	}

	l.Info("logout_success", "user_id", userID)
	return nil
}

func (m *Manager) issuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, accessExp, err := m.Issuer.AccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := m.Issuer.RefreshToken(user)
	if err != nil {
		return nil, err
	}

	// The row update is the only serialization point; concurrent callers for
	// one user race under last-write-wins.
	err = m.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("refresh_token", refreshToken).Error
	if err != nil {
		return nil, err
	}
	user.RefreshToken = &refreshToken

	return &TokenPair{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
	}, nil
}
