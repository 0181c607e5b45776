package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/musicals/internal/db"
	"github.com/vbonduro/musicals/internal/domain"
	"github.com/vbonduro/musicals/internal/store"
)

type recordingMailer struct {
	mu    sync.Mutex
	to    []string
	links []string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.links = append(m.links, link)
	return nil
}

func (m *recordingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.links)
	u, err := url.Parse(m.links[len(m.links)-1])
	require.NoError(t, err)
	return u.Query().Get("token")
}

func newTestGateway(t *testing.T) (*Gateway, *recordingMailer) {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	mailer := &recordingMailer{}
	g := NewGateway(
		store.NewUserStore(d),
		store.NewResetStore(d),
		sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		mailer,
		"Owner@Example.com",
		time.Hour,
		slog.Default(),
	)
	return g, mailer
}

func TestSignUpAndSignIn(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	user, err := g.SignUp(ctx, " Buyer@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	got, err := g.SignIn(ctx, "buyer@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = g.SignIn(ctx, "buyer@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = g.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	_, err := g.SignUp(ctx, "", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = g.SignUp(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = g.SignUp(ctx, "buyer@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = g.SignUp(ctx, "buyer@example.com", "secret1")
	require.NoError(t, err)
	_, err = g.SignUp(ctx, "BUYER@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestIsAdmin(t *testing.T) {
	g, _ := newTestGateway(t)

	assert.True(t, g.IsAdmin(&domain.User{Email: "owner@example.com"}))
	assert.False(t, g.IsAdmin(&domain.User{Email: "buyer@example.com"}))
	assert.False(t, g.IsAdmin(nil))

	g.adminEmail = ""
	assert.False(t, g.IsAdmin(&domain.User{Email: ""}))
}

// sessionCookies replays the cookies set on rec onto a fresh request.
func sessionCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestLoginCurrentUserSignOut(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	user, err := g.SignUp(ctx, "buyer@example.com", "secret1")
	require.NoError(t, err)

	anon, err := g.CurrentUser(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Nil(t, anon)

	rec := httptest.NewRecorder()
	require.NoError(t, g.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), user))

	current, err := g.CurrentUser(sessionCookies(rec))
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)

	out := httptest.NewRecorder()
	require.NoError(t, g.SignOut(out, sessionCookies(rec)))
	cookies := out.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestCurrentUserIgnoresForgedCookie(t *testing.T) {
	g, _ := newTestGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionName, Value: "forged"})

	user, err := g.CurrentUser(req)
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestFlashes(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := httptest.NewRecorder()
	g.AddFlash(rec, httptest.NewRequest(http.MethodPost, "/", nil), "Instrument added successfully!")

	next := httptest.NewRecorder()
	msgs := g.Flashes(next, sessionCookies(rec))
	assert.Equal(t, []string{"Instrument added successfully!"}, msgs)

	// Popping saves the emptied session.
	assert.Empty(t, g.Flashes(httptest.NewRecorder(), sessionCookies(next)))
}

func TestPasswordResetFlow(t *testing.T) {
	g, mailer := newTestGateway(t)
	ctx := context.Background()

	_, err := g.SignUp(ctx, "buyer@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, g.SendPasswordReset(ctx, "Buyer@example.com", "https://shop.example.com/"))
	require.Len(t, mailer.to, 1)
	assert.Equal(t, "buyer@example.com", mailer.to[0])
	assert.Contains(t, mailer.links[0], "https://shop.example.com/reset-password?token=")

	token := mailer.lastToken(t)
	_, err = g.CheckResetToken(ctx, token)
	require.NoError(t, err)

	assert.ErrorIs(t, g.ResetPassword(ctx, token, "tiny"), ErrWeakPassword)
	require.NoError(t, g.ResetPassword(ctx, token, "newsecret"))

	_, err = g.SignIn(ctx, "buyer@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = g.SignIn(ctx, "buyer@example.com", "newsecret")
	assert.NoError(t, err)

	// Tokens are single-use.
	assert.ErrorIs(t, g.ResetPassword(ctx, token, "another1"), ErrInvalidToken)
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	g, mailer := newTestGateway(t)

	require.NoError(t, g.SendPasswordReset(context.Background(), "nobody@example.com", "http://localhost"))
	assert.Empty(t, mailer.links)
}

func TestPasswordResetExpired(t *testing.T) {
	g, mailer := newTestGateway(t)
	ctx := context.Background()

	_, err := g.SignUp(ctx, "buyer@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, g.SendPasswordReset(ctx, "buyer@example.com", "http://localhost"))
	token := mailer.lastToken(t)

	g.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, g.ResetPassword(ctx, token, "newsecret"), ErrInvalidToken)

	_, err = g.CheckResetToken(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = g.CheckResetToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireUser(t *testing.T) {
	protected := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(WithUser(req.Context(), &domain.User{ID: "u1"}))
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
