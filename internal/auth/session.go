package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/vbonduro/musicals/internal/domain"
)

const sessionMaxAge = 7 * 24 * 60 * 60

// NewCookieStore returns the session store used in production. An empty key
// gets a random one, which signs everyone out on restart.
func NewCookieStore(key string, secure bool, logger *slog.Logger) *sessions.CookieStore {
	hashKey := []byte(key)
	if key == "" {
		logger.Warn("SESSION_KEY not set; generating an ephemeral key")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	cs := sessions.NewCookieStore(hashKey)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return cs
}

type userKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey{}).(*domain.User)
	return user
}

// Identify resolves the session user for every request and stores it in the
// request context. Lookup failures are logged and treated as anonymous.
func (g *Gateway) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.CurrentUser(r)
		if err != nil {
			g.logger.Error("failed to load session user", "error", err)
		}
		if user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser redirects anonymous requests to /login. It expects Identify to
// have run first.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LogMailer writes reset links to the log instead of sending email.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.Logger.Info("password reset link", "to", to, "link", link)
	return nil
}
