// Package auth handles admin authentication: password login, server-side
// sessions and optional OIDC single sign-on.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/repository"
)

// SessionCookie is the admin session cookie name.
const SessionCookie = "agentpost_session"

// ErrInvalidCredentials is returned for a wrong password or an unset admin
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Sessions manages admin sessions backed by the settings repository.
type Sessions struct {
	settings *repository.SettingsRepository
	ttl      time.Duration
	secure   bool
}

// NewSessions creates a session manager. secure controls the cookie Secure
// flag and should be true whenever the site is served over HTTPS.
func NewSessions(settings *repository.SettingsRepository, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{settings: settings, ttl: ttl, secure: secure}
}

// Login verifies the admin password and creates a session. The password is
// checked against the bcrypt hash stored in settings.
func (s *Sessions) Login(password string) (*models.Session, error) {
	hash, err := s.settings.GetSetting(models.SettingAdminPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin password: %w", err)
	}
	if hash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.Create("admin")
}

// Create starts a session for an already authenticated user.
func (s *Sessions) Create(userEmail string) (*models.Session, error) {
	sess := &models.Session{
		ID:        uuid.New().String(),
		UserEmail: userEmail,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.settings.CreateSession(sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Validate returns the session for a request, or nil when the request
// carries no valid session cookie.
func (s *Sessions) Validate(r *http.Request) (*models.Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, nil
	}
	return s.settings.GetSession(cookie.Value)
}

// Destroy deletes the request's session, if any.
func (s *Sessions) Destroy(r *http.Request) error {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	return s.settings.DeleteSession(cookie.Value)
}

// SetCookie writes the session cookie on the response.
func (s *Sessions) SetCookie(w http.ResponseWriter, sess *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the response.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HashPassword returns the bcrypt hash to store for an admin password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
