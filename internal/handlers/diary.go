package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"travel-diary-backend/internal/middleware"
	"travel-diary-backend/internal/models"
	"travel-diary-backend/internal/prompt"
	"travel-diary-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// DiaryService is what the diary endpoints need from the service layer
type DiaryService interface {
	Generate(ctx context.Context, in services.GenerateInput) (*services.GenerateResult, error)
	Get(ctx context.Context, diaryID string) (*models.DiaryWithPhotos, error)
	GetByPhoto(ctx context.Context, photoID, userID string) (*models.DiarySummary, error)
	Recent(ctx context.Context, userID string) ([]models.DiarySummary, error)
	Random(ctx context.Context, userID string) ([]models.DiarySummary, error)
	Delete(ctx context.Context, diaryID, userID string) error
	TagPhoto(ctx context.Context, photoID, tag string) error
}

// DiaryHandler handles diary-related HTTP requests
type DiaryHandler struct {
	diaryService   DiaryService
	maxUploadBytes int64
}

// NewDiaryHandler creates a new diary handler
func NewDiaryHandler(diaryService DiaryService, maxUploadBytes int64) *DiaryHandler {
	return &DiaryHandler{
		diaryService:   diaryService,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateDiary handles POST /api/v1/diaries
func (h *DiaryHandler) CreateDiary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	if formUser := strings.TrimSpace(r.FormValue("user_id")); formUser != "" && formUser != userID {
		respondError(w, "user_id does not match the session", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		respondError(w, "images are required", http.StatusBadRequest)
		return
	}
	if len(files) > services.MaxImages {
		respondError(w, fmt.Sprintf("at most %d images are allowed", services.MaxImages), http.StatusBadRequest)
		return
	}

	uploads := make([]services.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondError(w, "Failed to read image", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, "Failed to read image", http.StatusBadRequest)
			return
		}
		uploads = append(uploads, services.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	result, err := h.diaryService.Generate(ctx, services.GenerateInput{
		UserID: userID,
		Options: prompt.Options{
			Companion: r.FormValue("companion"),
			Feeling:   r.FormValue("feeling"),
			Length:    r.FormValue("length"),
			Tone:      r.FormValue("tone"),
			Weather:   r.FormValue("weather"),
		},
		Images: uploads,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Int("images", len(uploads)).Msg("Failed to create diary")
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetDiary handles GET /api/v1/diaries/{diary_id}
func (h *DiaryHandler) GetDiary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	diaryID := chi.URLParam(r, "diary_id")

	diary, err := h.diaryService.Get(ctx, diaryID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if diary.Diary.UserID != userID {
		respondError(w, "diary not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, diary)
}

// GetDiaryByPhoto handles GET /api/v1/photos/{photo_id}/diary
func (h *DiaryHandler) GetDiaryByPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	summary, err := h.diaryService.GetByPhoto(ctx, chi.URLParam(r, "photo_id"), userID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetRecentDiaries handles GET /api/v1/diaries/recent
func (h *DiaryHandler) GetRecentDiaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	diaries, err := h.diaryService.Recent(ctx, middleware.GetUserID(ctx))
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, diaries)
}

// GetRandomDiaries handles GET /api/v1/diaries/random
func (h *DiaryHandler) GetRandomDiaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	diaries, err := h.diaryService.Random(ctx, middleware.GetUserID(ctx))
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, diaries)
}

// DeleteDiary handles DELETE /api/v1/diaries/{diary_id}
func (h *DiaryHandler) DeleteDiary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	diaryID := chi.URLParam(r, "diary_id")

	if err := h.diaryService.Delete(ctx, diaryID, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("diary_id", diaryID).Msg("Failed to delete diary")
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "diary deleted"})
}
