package handlers

import (
	"encoding/json"
	"net/http"

	"travel-diary-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// TagRequest is the classifier's result for one photo
type TagRequest struct {
	Tag string `json:"tag"`
}

// PhotoHandler handles photo files and classifier callbacks
type PhotoHandler struct {
	diaryService DiaryService
	store        storage.Store
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(diaryService DiaryService, store storage.Store) *PhotoHandler {
	return &PhotoHandler{
		diaryService: diaryService,
		store:        store,
	}
}

// TagPhoto handles PUT /internal/photos/{photo_id}/tag
func (h *PhotoHandler) TagPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	photoID := chi.URLParam(r, "photo_id")

	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.diaryService.TagPhoto(ctx, photoID, req.Tag); err != nil {
		log.Warn().Err(err).Str("photo_id", photoID).Str("tag", req.Tag).Msg("Failed to tag photo")
		respondAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ServePhoto handles GET /uploads/{file_name}
func (h *PhotoHandler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file_name")
	if !storage.ValidName(name) {
		respondError(w, "file not found", http.StatusNotFound)
		return
	}
	h.store.Serve(w, r, name)
}
