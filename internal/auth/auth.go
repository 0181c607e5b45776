// Package auth is the identity service: email/password accounts, cookie
// sessions, password reset, and the administrator check.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/vbonduro/musicals/internal/domain"
	"github.com/vbonduro/musicals/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned by SignUp when the email already has an account.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrInvalidEmail is returned when the email is blank or malformed.
	ErrInvalidEmail = errors.New("a valid email is required")
	// ErrWeakPassword is returned when the password length is out of range.
	ErrWeakPassword = errors.New("password must be between 6 and 72 characters")
	// ErrInvalidToken is returned for unknown, used, or expired reset tokens.
	ErrInvalidToken = errors.New("reset link is invalid or has expired")
)

const (
	sessionName   = "musicals_session"
	sessionUserID = "user_id"

	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

// userRepository is the subset of store.UserStore that Gateway requires.
type userRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// resetRepository is the subset of store.ResetStore that Gateway requires.
type resetRepository interface {
	Create(ctx context.Context, userID string, expiresAt time.Time) (*domain.PasswordReset, error)
	Get(ctx context.Context, token string) (*domain.PasswordReset, error)
	Redeem(ctx context.Context, token, passwordHash string) error
}

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

type Gateway struct {
	users      userRepository
	resets     resetRepository
	sessions   sessions.Store
	mailer     Mailer
	adminEmail string
	resetTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewGateway(
	users userRepository,
	resets resetRepository,
	sessionStore sessions.Store,
	mailer Mailer,
	adminEmail string,
	resetTTL time.Duration,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		users:      users,
		resets:     resets,
		sessions:   sessionStore,
		mailer:     mailer,
		adminEmail: normalizeEmail(adminEmail),
		resetTTL:   resetTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// SignUp creates an account. It does not start a session.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := g.users.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	g.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// SignIn checks the credentials and returns the matching user.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := g.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn the same bcrypt cost so unknown emails are not distinguishable by timing.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login binds user to the caller's session cookie.
func (g *Gateway) Login(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	session, _ := g.sessions.Get(r, sessionName)
	session.Values[sessionUserID] = user.ID
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	g.logger.Info("user signed in", "user_id", user.ID)
	return nil
}

// SignOut expires the session cookie.
func (g *Gateway) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := g.sessions.Get(r, sessionName)
	delete(session.Values, sessionUserID)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// CurrentUser returns the signed-in user, or nil for anonymous requests and
// sessions whose user no longer exists.
func (g *Gateway) CurrentUser(r *http.Request) (*domain.User, error) {
	session, err := g.sessions.Get(r, sessionName)
	if err != nil {
		// Undecodable cookie, e.g. after a key rotation.
		return nil, nil
	}
	id, ok := session.Values[sessionUserID].(string)
	if !ok || id == "" {
		return nil, nil
	}
	return g.users.GetByID(r.Context(), id)
}

// IsAdmin reports whether user may edit the catalogue.
func (g *Gateway) IsAdmin(user *domain.User) bool {
	return user != nil && g.adminEmail != "" && normalizeEmail(user.Email) == g.adminEmail
}

// SendPasswordReset mails a single-use reset link to email. Unknown emails
// are accepted silently so the endpoint cannot be used to probe accounts.
func (g *Gateway) SendPasswordReset(ctx context.Context, email, baseURL string) error {
	user, err := g.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		g.logger.Info("password reset requested for unknown email")
		return nil
	}

	reset, err := g.resets.Create(ctx, user.ID, g.now().Add(g.resetTTL))
	if err != nil {
		return err
	}

	link := strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(reset.Token)
	if err := g.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		return fmt.Errorf("failed to send password reset: %w", err)
	}
	g.logger.Info("password reset sent", "user_id", user.ID)
	return nil
}

// CheckResetToken returns the reset record if token can still be redeemed.
func (g *Gateway) CheckResetToken(ctx context.Context, token string) (*domain.PasswordReset, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	reset, err := g.resets.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if reset == nil || reset.Used || !g.now().Before(reset.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	return reset, nil
}

// ResetPassword redeems token and sets the new password.
func (g *Gateway) ResetPassword(ctx context.Context, token, newPassword string) error {
	reset, err := g.CheckResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := g.resets.Redeem(ctx, reset.Token, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	g.logger.Info("password reset completed", "user_id", reset.UserID)
	return nil
}

// AddFlash queues a one-shot status message for the next page render.
func (g *Gateway) AddFlash(w http.ResponseWriter, r *http.Request, msg string) {
	session, _ := g.sessions.Get(r, sessionName)
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		g.logger.Error("failed to save flash", "error", err)
	}
}

// Flashes pops all queued status messages.
func (g *Gateway) Flashes(w http.ResponseWriter, r *http.Request) []string {
	session, err := g.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		g.logger.Error("failed to clear flashes", "error", err)
	}
	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			msgs = append(msgs, s)
		}
	}
	return msgs
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// dummyHash is compared against when the email is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
