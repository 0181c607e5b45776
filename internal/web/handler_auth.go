package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/musicals/internal/auth"
)

const (
	msgResetSent    = "Password reset link sent to your email. Please check your inbox."
	msgResetFailed  = "Failed to send password reset email. Please try again."
	msgResetMaybe   = "If an account exists for that email, a reset link is on its way."
	msgPasswordSet  = "Password updated. Please log in."
	msgLoginBlank   = "Email and password are required."
	msgLoginInvalid = "Invalid email or password."
)

type credentialsForm struct {
	Email string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(w, r, "login")
	data["Form"] = credentialsForm{}
	s.renderPage(w, data, "pages/login.html")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email, password := r.PostFormValue("email"), r.PostFormValue("password")

	fail := func(status int, msg string) {
		data := s.pageData(w, r, "login")
		data["Form"] = credentialsForm{Email: email}
		data["Error"] = msg
		s.renderPageStatus(w, status, data, "pages/login.html")
	}

	if email == "" || password == "" {
		fail(http.StatusBadRequest, msgLoginBlank)
		return
	}
	user, err := s.auth.SignIn(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			fail(http.StatusUnauthorized, msgLoginInvalid)
			return
		}
		s.logger.Error("sign in failed", "error", err)
		fail(http.StatusInternalServerError, msgSomethingWent)
		return
	}
	if err := s.auth.Login(w, r, user); err != nil {
		s.logger.Error("start session failed", "error", err)
		fail(http.StatusInternalServerError, msgSomethingWent)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(w, r, "signup")
	data["Form"] = credentialsForm{}
	s.renderPage(w, data, "pages/signup.html")
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email, password := r.PostFormValue("email"), r.PostFormValue("password")

	fail := func(status int, msg string) {
		data := s.pageData(w, r, "signup")
		data["Form"] = credentialsForm{Email: email}
		data["Error"] = msg
		s.renderPageStatus(w, status, data, "pages/signup.html")
	}

	user, err := s.auth.SignUp(r.Context(), email, password)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		fail(http.StatusConflict, "An account with this email already exists.")
		return
	case errors.Is(err, auth.ErrInvalidEmail):
		fail(http.StatusBadRequest, "Please enter a valid email address.")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		fail(http.StatusBadRequest, "Password must be between 6 and 72 characters.")
		return
	case err != nil:
		s.logger.Error("sign up failed", "error", err)
		fail(http.StatusInternalServerError, msgSomethingWent)
		return
	}

	if err := s.auth.Login(w, r, user); err != nil {
		s.logger.Error("start session failed", "error", err)
		fail(http.StatusInternalServerError, msgSomethingWent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(w, r); err != nil {
		s.logger.Error("sign out failed", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleDashboardReset mails a reset link to the signed-in user.
func (s *Server) handleDashboardReset(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if err := s.auth.SendPasswordReset(r.Context(), user.Email, s.opts.BaseURL); err != nil {
		s.logger.Error("send password reset failed", "user_id", user.ID, "error", err)
		s.auth.AddFlash(w, r, msgResetFailed)
	} else {
		s.auth.AddFlash(w, r, msgResetSent)
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleForgotPassword answers the same way whether or not the email has an
// account.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := s.auth.SendPasswordReset(r.Context(), r.PostFormValue("email"), s.opts.BaseURL); err != nil {
		s.logger.Error("send password reset failed", "error", err)
		s.auth.AddFlash(w, r, msgResetFailed)
	} else {
		s.auth.AddFlash(w, r, msgResetMaybe)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleResetForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	data := s.pageData(w, r, "")
	data["Token"] = token

	if _, err := s.auth.CheckResetToken(r.Context(), token); err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			s.logger.Error("check reset token failed", "error", err)
		}
		data["Error"] = "This reset link is invalid or has expired."
		data["Invalid"] = true
		s.renderPageStatus(w, http.StatusBadRequest, data, "pages/reset_password.html")
		return
	}
	s.renderPage(w, data, "pages/reset_password.html")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	token := r.PostFormValue("token")

	err := s.auth.ResetPassword(r.Context(), token, r.PostFormValue("password"))
	if err == nil {
		s.auth.AddFlash(w, r, msgPasswordSet)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := s.pageData(w, r, "")
	data["Token"] = token
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		data["Error"] = "Password must be between 6 and 72 characters."
	case errors.Is(err, auth.ErrInvalidToken):
		data["Error"] = "This reset link is invalid or has expired."
		data["Invalid"] = true
	default:
		s.logger.Error("reset password failed", "error", err)
		data["Error"] = msgSomethingWent
		status = http.StatusInternalServerError
	}
	s.renderPageStatus(w, status, data, "pages/reset_password.html")
}
