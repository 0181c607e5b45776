package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vbonduro/musicals/internal/auth"
	"github.com/vbonduro/musicals/internal/imagestore"
	"github.com/vbonduro/musicals/internal/service"
)

// Options carries deployment settings the pages need.
type Options struct {
	// BaseURL is the externally visible origin used in password reset links.
	BaseURL string
	// WhatsAppNumber enables the "Buy It" link on catalogue cards when set.
	WhatsAppNumber string
}

type Server struct {
	catalogue *service.CatalogueService
	auth      *auth.Gateway
	images    imagestore.ImageStore
	templates fs.FS
	opts      Options
	mux       *http.ServeMux
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(
	catalogue *service.CatalogueService,
	gateway *auth.Gateway,
	images imagestore.ImageStore,
	tmpl fs.FS,
	opts Options,
	logger *slog.Logger,
) *Server {
	s := &Server{
		catalogue: catalogue,
		auth:      gateway,
		images:    images,
		templates: tmpl,
		opts:      opts,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.tmplFuncs = template.FuncMap{
		"whatsappLink": s.whatsappLink,
		"year":         func() int { return time.Now().Year() },
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /catalogue", s.handleCatalogue)
	s.mux.HandleFunc("GET /contact", s.handleContactForm)
	s.mux.HandleFunc("POST /contact", s.handleContactSubmit)

	s.mux.HandleFunc("GET /login", s.handleLoginForm)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /signup", s.handleSignupForm)
	s.mux.HandleFunc("POST /signup", s.handleSignup)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("POST /forgot-password", s.handleForgotPassword)
	s.mux.HandleFunc("GET /reset-password", s.handleResetForm)
	s.mux.HandleFunc("POST /reset-password", s.handleReset)

	s.mux.Handle("GET /dashboard", guarded(s.handleDashboard))
	s.mux.Handle("POST /dashboard/reset-password", guarded(s.handleDashboardReset))
	s.mux.Handle("GET /add-instrument", guarded(s.requireAdmin(s.handleAddForm)))
	s.mux.Handle("POST /add-instrument", guarded(s.requireAdmin(s.handleAdd)))
	s.mux.Handle("GET /edit-instrument/{id}", guarded(s.requireAdmin(s.handleEditForm)))
	s.mux.Handle("POST /edit-instrument/{id}", guarded(s.requireAdmin(s.handleEdit)))
	s.mux.Handle("GET /delete-instrument/{id}", guarded(s.requireAdmin(s.handleDeleteConfirm)))
	s.mux.Handle("POST /delete-instrument/{id}", guarded(s.requireAdmin(s.handleDelete)))

	s.mux.HandleFunc("GET /images/{key}", s.handleImage)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "ok")
	})
	s.mux.HandleFunc("/", s.handleNotFound)
}

// guarded wraps h so anonymous visitors are sent to /login.
func guarded(h http.HandlerFunc) http.Handler {
	return auth.RequireUser(h)
}

// requireAdmin rejects signed-in users who are not the shop administrator.
// The check runs on every request that can change the catalogue.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if !s.auth.IsAdmin(user) {
			s.logger.Warn("non-admin attempted catalogue change", "user_id", user.ID, "path", r.URL.Path)
			s.renderPageStatus(w, http.StatusForbidden, s.pageData(w, r, ""), "pages/forbidden.html")
			return
		}
		next(w, r)
	}
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data: https:; "+
				"form-action 'self'; "+
				"frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.auth.Identify(s.mux))).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

// pageData returns the values every page layout needs. It pops pending flash
// messages, so it must run before anything is written to w.
func (s *Server) pageData(w http.ResponseWriter, r *http.Request, nav string) map[string]any {
	user := auth.UserFromContext(r.Context())
	return map[string]any{
		"ActiveNav": nav,
		"User":      user,
		"IsAdmin":   s.auth.IsAdmin(user),
		"Flashes":   s.auth.Flashes(w, r),
	}
}

// renderPage parses and executes a full-page template set with status 200.
func (s *Server) renderPage(w http.ResponseWriter, data any, files ...string) {
	s.renderPageStatus(w, http.StatusOK, data, files...)
}

// renderPageStatus renders into a buffer first so a template failure still
// yields a clean 500 instead of a half-written page.
func (s *Server) renderPageStatus(w http.ResponseWriter, status int, data any, files ...string) {
	files = append([]string{"base.html"}, files...)
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		s.logger.Error("parse templates failed", "files", files, "error", err)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		s.logger.Error("render page failed", "files", files, "error", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("write page failed", "error", err)
	}
}

// whatsappLink returns a wa.me deep link asking about the named instrument,
// or "" when no shop number is configured.
func (s *Server) whatsappLink(name string) string {
	if s.opts.WhatsAppNumber == "" {
		return ""
	}
	text := fmt.Sprintf("Hello, I'm interested in the %s I saw on your website.", name)
	return "https://wa.me/" + url.PathEscape(s.opts.WhatsAppNumber) + "?text=" + url.QueryEscape(text)
}
