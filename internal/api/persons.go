package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/pkg/httputil"
	"github.com/familyhub/aniversaris/internal/service/importer"
	"github.com/familyhub/aniversaris/internal/service/registry"
)

// personInput is a create or update body. force may come with it or as
// ?force=true.
type personInput struct {
	domain.PersonPatch
	Force bool `json:"force"`
}

// locatorUpdate targets a person by name and birthday instead of id.
type locatorUpdate struct {
	Locator registry.Locator   `json:"locator"`
	Changes domain.PersonPatch `json:"changes"`
	Force   bool               `json:"force"`
}

type createdPerson struct {
	ID     int64          `json:"id"`
	Person *domain.Person `json:"person"`
}

func personID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: "id", Message: "invalid person id"}
	}
	return id, nil
}

// ListPersons handles GET /api/personas
func (h *Handlers) ListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.registry.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if persons == nil {
		persons = []domain.Person{}
	}
	respondData(w, http.StatusOK, persons)
}

// GetPerson handles GET /api/personas/{id}
func (h *Handlers) GetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, p)
}

// CreatePerson handles POST /api/personas?force=true. Without force a
// duplicate or similar name answers 409 and the client may retry forced.
func (h *Handlers) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var in personInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	p := domain.Person{Alive: true}
	in.Apply(&p)

	created, err := h.registry.Create(r.Context(), p, in.Force || queryFlag(r, "force"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusCreated, "Aniversari afegit correctament", createdPerson{ID: created.ID, Person: created})
}

// UpdatePerson handles PUT /api/personas/{id}?force=true
func (h *Handlers) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var in personInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.update(w, r, registry.Locator{ID: id}, in.PersonPatch, in.Force)
}

// UpdatePersonByLocator handles PUT /api/personas with a locator body.
func (h *Handlers) UpdatePersonByLocator(w http.ResponseWriter, r *http.Request) {
	var in locatorUpdate
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.update(w, r, in.Locator, in.Changes, in.Force)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request, loc registry.Locator, patch domain.PersonPatch, force bool) {
	p, err := h.registry.Update(r.Context(), loc, patch, force || queryFlag(r, "force"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Aniversari actualitzat correctament", p)
}

// DeletePerson handles DELETE /api/personas/{id}
func (h *Handlers) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.delete(w, r, registry.Locator{ID: id})
}

// DeletePersonByLocator handles DELETE /api/personas with a locator body.
func (h *Handlers) DeletePersonByLocator(w http.ResponseWriter, r *http.Request) {
	var loc registry.Locator
	if !httputil.Decode(w, r, &loc) {
		return
	}
	h.delete(w, r, loc)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request, loc registry.Locator) {
	p, err := h.registry.Delete(r.Context(), loc)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Aniversari eliminat correctament", p)
}

// SearchPersons handles GET /api/personas/search?q=
func (h *Handlers) SearchPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.registry.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if persons == nil {
		persons = []domain.Person{}
	}
	respondData(w, http.StatusOK, persons)
}

// ExportPersons handles GET /api/personas/export.xlsx
func (h *Handlers) ExportPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.registry.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="aniversaris.xlsx"`)
	if err := importer.WriteXLSX(w, persons); err != nil {
		h.log.Error("export roster", zap.Error(err), zap.String("request_id", requestID(r)))
	}
}

// UploadPhoto handles POST /api/personas/{id}/photo. The image comes as
// the "photo" field of a multipart form or as the raw body.
func (h *Handlers) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	if h.photos == nil {
		httputil.Error(w, http.StatusNotImplemented, "photo uploads are not configured")
		return
	}
	id, err := personID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if _, err := h.registry.Get(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	body := r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("photo")
		if err != nil {
			h.respondError(w, r, &domain.ValidationError{Field: "photo", Message: "missing photo file"})
			return
		}
		defer file.Close()
		body = file
	}

	photo, err := h.photos.Upload(r.Context(), id, body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, photo)
}
