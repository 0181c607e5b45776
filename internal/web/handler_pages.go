package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/musicals/internal/auth"
	"github.com/vbonduro/musicals/internal/domain"
	"github.com/vbonduro/musicals/internal/imagestore"
	"github.com/vbonduro/musicals/internal/service"
)

const (
	msgContactSent   = "Message sent successfully! We'll get back to you soon."
	msgFillAllFields = "Please fill all fields."
	msgSomethingWent = "Something went wrong. Please try again."
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(w, r, "home")
	data["Instruments"] = s.listForDisplay(r)
	s.renderPage(w, data, "pages/home.html", "partials/catalogue_grid.html")
}

func (s *Server) handleCatalogue(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(w, r, "catalogue")
	data["Instruments"] = s.listForDisplay(r)
	s.renderPage(w, data, "pages/catalogue.html", "partials/catalogue_grid.html")
}

// listForDisplay reads the catalogue for public pages. A failed read is
// logged and shown as an empty catalogue.
func (s *Server) listForDisplay(r *http.Request) []*domain.Instrument {
	list, err := s.catalogue.ListInstruments(r.Context())
	if err != nil {
		s.logger.Error("list instruments failed", "error", err)
		return nil
	}
	return list
}

type contactForm struct {
	Name    string
	Email   string
	Message string
}

func (s *Server) handleContactForm(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(w, r, "contact")
	form := contactForm{}
	if user := auth.UserFromContext(r.Context()); user != nil {
		form.Email = user.Email
	}
	data["Form"] = form
	s.renderPage(w, data, "pages/contact.html")
}

func (s *Server) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := contactForm{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Message: r.PostFormValue("message"),
	}

	var userID string
	if user := auth.UserFromContext(r.Context()); user != nil {
		userID = user.ID
	}

	data := s.pageData(w, r, "contact")
	_, err := s.catalogue.SubmitContact(r.Context(), form.Name, form.Email, form.Message, userID)
	switch {
	case err == nil:
		data["Form"] = contactForm{}
		data["Status"] = msgContactSent
		s.renderPage(w, data, "pages/contact.html")
	case errors.Is(err, service.ErrMissingFields):
		data["Form"] = form
		data["Error"] = msgFillAllFields
		s.renderPageStatus(w, http.StatusUnprocessableEntity, data, "pages/contact.html")
	default:
		s.logger.Error("submit contact failed", "error", err)
		data["Form"] = form
		data["Error"] = msgSomethingWent
		s.renderPageStatus(w, http.StatusInternalServerError, data, "pages/contact.html")
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	rc, mimeType, err := s.images.Open(r.Context(), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, imagestore.ErrNotFound) || errors.Is(err, imagestore.ErrInvalidKey) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("open image failed", "key", r.PathValue("key"), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("stream image failed", "error", err)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderPageStatus(w, http.StatusNotFound, s.pageData(w, r, ""), "pages/not_found.html")
}
