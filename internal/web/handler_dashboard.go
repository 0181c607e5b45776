package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vbonduro/musicals/internal/auth"
	"github.com/vbonduro/musicals/internal/domain"
	"github.com/vbonduro/musicals/internal/imagestore"
	"github.com/vbonduro/musicals/internal/service"
	"github.com/vbonduro/musicals/internal/store"
)

const (
	maxImageSize = 10 << 20 // 10 MB

	imagePathPrefix = "/images/"

	msgAdded          = "Instrument added successfully!"
	msgUpdated        = "Instrument updated successfully!"
	msgDeleted        = "Instrument deleted successfully!"
	msgDeleteFailed   = "Failed to delete instrument. Please try again."
	msgNotFound       = "Instrument not found."
	msgBadImage       = "Unsupported image type. Please upload a JPEG, PNG, GIF, or WebP file."
	msgInvalidPrice   = "Price must be a number."
	msgImageTooLarge  = "Image is too large. The limit is 10 MB."
	msgCouldNotUpload = "Could not store the image. Please try again."
)

// editorForm is the state of the instrument editor. ID is empty when adding.
type editorForm struct {
	ID     string
	Fields domain.InstrumentFields

	uploadedKey string
}

// Action is the URL the editor form posts to.
func (f editorForm) Action() string {
	if f.ID == "" {
		return "/add-instrument"
	}
	return "/edit-instrument/" + f.ID
}

func (f editorForm) Editing() bool { return f.ID != "" }

// handleDashboard shows admins the editor and the catalogue table. Other
// signed-in users get a welcome message.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(w, r, "dashboard")
	if !s.auth.IsAdmin(auth.UserFromContext(r.Context())) {
		s.renderPage(w, data, "pages/dashboard.html", "partials/instrument_form.html")
		return
	}

	list, err := s.catalogue.ListInstruments(r.Context())
	if err != nil {
		s.logger.Error("list instruments failed", "error", err)
		data["Error"] = msgSomethingWent
	}
	data["Instruments"] = list
	data["Editor"] = editorForm{}
	s.renderPage(w, data, "pages/dashboard.html", "partials/instrument_form.html")
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(w, r, "dashboard")
	data["Editor"] = editorForm{}
	s.renderPage(w, data, "pages/editor.html", "partials/instrument_form.html")
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readEditorForm(w, r, editorForm{})
	if !ok {
		return
	}

	if _, err := s.catalogue.CreateInstrument(r.Context(), form.Fields); err != nil {
		s.discardUpload(r, form)
		s.editorFailed(w, r, form, err)
		return
	}
	s.auth.AddFlash(w, r, msgAdded)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.loadInstrument(w, r)
	if !ok {
		return
	}
	data := s.pageData(w, r, "dashboard")
	data["Editor"] = editorForm{ID: inst.ID, Fields: inst.Fields()}
	s.renderPage(w, data, "pages/editor.html", "partials/instrument_form.html")
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.loadInstrument(w, r)
	if !ok {
		return
	}
	form, ok := s.readEditorForm(w, r, editorForm{ID: existing.ID})
	if !ok {
		return
	}

	if _, err := s.catalogue.UpdateInstrument(r.Context(), existing.ID, form.Fields); err != nil {
		s.discardUpload(r, form)
		s.editorFailed(w, r, form, err)
		return
	}
	if existing.Image != form.Fields.Image {
		s.discardImage(r.Context(), existing.Image)
	}
	s.auth.AddFlash(w, r, msgUpdated)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleDeleteConfirm asks the admin to confirm a deletion.
func (s *Server) handleDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.loadInstrument(w, r)
	if !ok {
		return
	}
	data := s.pageData(w, r, "dashboard")
	data["Instrument"] = inst
	s.renderPage(w, data, "pages/confirm_delete.html")
}

// handleDelete removes the instrument only when the form carries confirm=yes.
// Any other answer is a cancel and leaves the catalogue untouched.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if r.PostFormValue("confirm") != "yes" {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	id := r.PathValue("id")
	inst, err := s.catalogue.GetInstrument(r.Context(), id)
	if err == nil && inst != nil {
		err = s.catalogue.DeleteInstrument(r.Context(), id)
	} else if err == nil {
		err = store.ErrNotFound
	}
	if err != nil {
		s.logger.Error("delete instrument failed", "instrument_id", id, "error", err)
		s.auth.AddFlash(w, r, msgDeleteFailed)
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	s.discardImage(r.Context(), inst.Image)
	s.auth.AddFlash(w, r, msgDeleted)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// loadInstrument fetches the instrument named by the {id} path value, writing
// a not-found page when it is missing.
func (s *Server) loadInstrument(w http.ResponseWriter, r *http.Request) (*domain.Instrument, bool) {
	inst, err := s.catalogue.GetInstrument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("get instrument failed", "instrument_id", r.PathValue("id"), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if inst == nil {
		data := s.pageData(w, r, "dashboard")
		data["Message"] = msgNotFound
		s.renderPageStatus(w, http.StatusNotFound, data, "pages/not_found.html")
		return nil, false
	}
	return inst, true
}

// readEditorForm parses the editor fields and stores an uploaded image, if
// any, replacing the image URL with the stored file's path. On failure the
// response has already been written.
func (s *Server) readEditorForm(w http.ResponseWriter, r *http.Request, form editorForm) (editorForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+1<<20)
	if err := r.ParseMultipartForm(maxImageSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.renderEditor(w, r, http.StatusRequestEntityTooLarge, form, msgImageTooLarge)
			return form, false
		}
		http.Error(w, "invalid form", http.StatusBadRequest)
		return form, false
	}

	form.Fields = domain.InstrumentFields{
		Name:  r.FormValue("name"),
		Price: r.FormValue("price"),
		Desc:  r.FormValue("desc"),
		Image: r.FormValue("image"),
	}

	key, err := s.storeUpload(r)
	switch {
	case errors.Is(err, errUnsupportedImage):
		s.renderEditor(w, r, http.StatusUnsupportedMediaType, form, msgBadImage)
		return form, false
	case errors.Is(err, errImageTooLarge):
		s.renderEditor(w, r, http.StatusRequestEntityTooLarge, form, msgImageTooLarge)
		return form, false
	case err != nil:
		s.logger.Error("store uploaded image failed", "error", err)
		s.renderEditor(w, r, http.StatusInternalServerError, form, msgCouldNotUpload)
		return form, false
	case key != "":
		form.uploadedKey = key
		form.Fields.Image = imagePathPrefix + key
	}
	return form, true
}

var (
	errUnsupportedImage = errors.New("unsupported image type")
	errImageTooLarge    = errors.New("image too large")
)

// storeUpload saves the optional image_file part and returns its key, or ""
// when no file was sent.
func (s *Server) storeUpload(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile("image_file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	if header.Size == 0 {
		return "", nil
	}
	if header.Size > maxImageSize {
		return "", errImageTooLarge
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	mimeType, ok := imagestore.DetectMIME(data)
	if !ok {
		return "", errUnsupportedImage
	}
	return s.images.Save(r.Context(), mimeType, bytes.NewReader(data))
}

// editorFailed maps a create or update error to the editor status line. The
// form values are kept so nothing the admin typed is lost.
func (s *Server) editorFailed(w http.ResponseWriter, r *http.Request, form editorForm, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		s.renderEditor(w, r, http.StatusUnprocessableEntity, form, msgFillAllFields)
	case errors.Is(err, service.ErrInvalidPrice):
		s.renderEditor(w, r, http.StatusUnprocessableEntity, form, msgInvalidPrice)
	case errors.Is(err, store.ErrNotFound):
		s.renderEditor(w, r, http.StatusNotFound, form, msgNotFound)
	default:
		s.logger.Error("save instrument failed", "instrument_id", form.ID, "error", err)
		s.renderEditor(w, r, http.StatusInternalServerError, form, msgSomethingWent)
	}
}

func (s *Server) renderEditor(w http.ResponseWriter, r *http.Request, status int, form editorForm, msg string) {
	data := s.pageData(w, r, "dashboard")
	data["Editor"] = form
	data["Error"] = msg
	s.renderPageStatus(w, status, data, "pages/editor.html", "partials/instrument_form.html")
}

// discardUpload removes an image stored for a form that was then rejected.
func (s *Server) discardUpload(r *http.Request, form editorForm) {
	if form.uploadedKey != "" {
		s.discardImage(r.Context(), imagePathPrefix+form.uploadedKey)
	}
}

// discardImage deletes a locally stored image. External URLs are ignored.
func (s *Server) discardImage(ctx context.Context, imageURL string) {
	key, ok := strings.CutPrefix(imageURL, imagePathPrefix)
	if !ok || key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil && !errors.Is(err, imagestore.ErrNotFound) {
		s.logger.Warn("delete image failed", "key", key, "error", err)
	}
}
