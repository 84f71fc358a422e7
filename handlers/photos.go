package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/photowall/canvas"
	"github.com/camden-git/photowall/models"
)

// maxCaptionLength bounds user-typed captions.
const maxCaptionLength = 200

type PhotoHandler struct {
	Store *canvas.Store
}

// ListPhotos returns the wall in insertion order.
func (ph *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ph.Store.List())
}

func (ph *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "photo_id")
	photo, ok := ph.Store.Get(id)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Photo not found")
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

// UpdatePhoto applies the edits a user can make from the card: caption, like
// and frame style. Geometry is only changed through gestures.
func (ph *PhotoHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "photo_id")

	var req struct {
		Caption *string `json:"caption"`
		Liked   *bool   `json:"liked"`
		Style   *string `json:"style"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	var patch models.PhotoPatch
	if req.Caption != nil {
		caption := strings.TrimSpace(*req.Caption)
		if len(caption) > maxCaptionLength {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Caption is too long")
			return
		}
		patch.Caption = &caption
	}
	patch.Liked = req.Liked
	if req.Style != nil {
		style := models.Style(*req.Style)
		if !style.Valid() {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Unknown style '"+*req.Style+"'")
			return
		}
		patch.Style = &style
	}

	current, ok := ph.Store.Get(id)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Photo not found")
		return
	}
	if patch.Caption != nil && current.CaptionPending {
		WriteAPIError(w, http.StatusConflict, CodeConflict, "Caption is still developing")
		return
	}

	ok, err := ph.Store.Update(r.Context(), id, patch)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Photo not found")
		return
	}
	if err != nil {
		log.Printf("PhotoHandler: update of %s accepted but not persisted: %v", id, err)
	}
	photo, _ := ph.Store.Get(id)
	writeJSON(w, http.StatusOK, photo)
}

// FocusPhoto brings a photo to the front.
func (ph *PhotoHandler) FocusPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "photo_id")
	ok, err := ph.Store.Focus(r.Context(), id)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Photo not found")
		return
	}
	if err != nil {
		log.Printf("PhotoHandler: focus of %s accepted but not persisted: %v", id, err)
	}
	photo, _ := ph.Store.Get(id)
	writeJSON(w, http.StatusOK, photo)
}

// DeletePhoto removes a photo. Deleting an id that is not on the wall succeeds.
func (ph *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "photo_id")
	if _, err := ph.Store.Delete(r.Context(), id); err != nil {
		log.Printf("PhotoHandler: delete of %s accepted but not persisted: %v", id, err)
	}
	w.WriteHeader(http.StatusNoContent)
}
