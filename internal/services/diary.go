package services

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"travel-diary-backend/internal/apperr"
	"travel-diary-backend/internal/events"
	"travel-diary-backend/internal/generation"
	"travel-diary-backend/internal/metadata"
	"travel-diary-backend/internal/models"
	"travel-diary-backend/internal/prompt"
	"travel-diary-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxImages is the largest batch a single diary can be generated from
const MaxImages = 5

// DiaryRepository is the persistence used by DiaryService
type DiaryRepository interface {
	CreateWithPhotos(ctx context.Context, in *models.NewDiary) (*models.DiaryWithPhotos, error)
	GetByID(ctx context.Context, id string) (*models.DiaryWithPhotos, error)
	GetByPhoto(ctx context.Context, photoID, userID string) (*models.DiarySummary, error)
	GetRecentByUser(ctx context.Context, userID string) ([]models.DiarySummary, error)
	GetRandomByUser(ctx context.Context, userID string) ([]models.DiarySummary, error)
	DeleteWithPhotos(ctx context.Context, diaryID, userID string) ([]string, error)
}

// PhotoTagger stores classifier results
type PhotoTagger interface {
	UpdateTag(ctx context.Context, photoID, tag string) (string, error)
}

// Generator produces a diary entry from a composed request
type Generator interface {
	Generate(ctx context.Context, req *prompt.Request) (generation.Entry, error)
}

// Publisher emits post-commit events
type Publisher interface {
	Publish(e events.Event)
}

// Upload is one uploaded image, fully buffered
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// GenerateInput is a diary generation request
type GenerateInput struct {
	UserID  string
	Options prompt.Options
	Images  []Upload
}

// GenerateResult is returned to the client after a diary is stored
type GenerateResult struct {
	DiaryID  string `json:"diary_idx"`
	TripDate string `json:"trip_date"`
}

// DiaryService runs the diary generation pipeline and the diary read/delete paths
type DiaryService struct {
	diaries   DiaryRepository
	photos    PhotoTagger
	extractor *metadata.Extractor
	composer  *prompt.Composer
	generator Generator
	store     storage.Store
	events    Publisher
	now       func() time.Time
}

// NewDiaryService creates a new diary service
func NewDiaryService(
	diaries DiaryRepository,
	photos PhotoTagger,
	extractor *metadata.Extractor,
	composer *prompt.Composer,
	generator Generator,
	store storage.Store,
	events Publisher,
) *DiaryService {
	return &DiaryService{
		diaries:   diaries,
		photos:    photos,
		extractor: extractor,
		composer:  composer,
		generator: generator,
		store:     store,
		events:    events,
		now:       time.Now,
	}
}

// Generate extracts metadata, generates the diary text, stores the files and
// persists diary, photos and links in one transaction. Nothing is persisted
// unless every step succeeds.
func (s *DiaryService) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	opts, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	images := make([]metadata.Image, len(in.Images))
	for i, u := range in.Images {
		images[i] = metadata.Image{Name: u.FileName, Data: u.Data}
	}

	results := s.extractor.Extract(ctx, images)
	now := s.now()
	tripDate := metadata.TripDate(results, now)

	req := s.composer.Compose(tripDate, results, opts, images)
	entry, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	names, err := s.saveFiles(ctx, in.Images)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrPersistence, err)
	}

	newDiary := &models.NewDiary{
		UserID:    in.UserID,
		Title:     entry.Title,
		Body:      entry.Body,
		TripDate:  tripDate,
		TripStart: metadata.TripStart(results, now),
		Photos:    make([]models.NewPhoto, len(results)),
	}
	for i, r := range results {
		newDiary.Photos[i] = models.NewPhoto{
			FileName:    names[i],
			Coordinates: r.Coordinates,
			PlaceName:   r.PlaceName,
			TakenAt:     r.TakenAt,
		}
	}

	created, err := s.diaries.CreateWithPhotos(ctx, newDiary)
	if err != nil {
		s.removeFiles(names)
		return nil, err
	}

	refs := make([]events.PhotoRef, len(created.Photos))
	for i, p := range created.Photos {
		refs[i] = events.PhotoRef{PhotoID: p.ID, FileName: p.FileName}
	}
	s.events.Publish(events.Event{
		Type:     events.DiaryCreated,
		UserID:   in.UserID,
		DiaryID:  created.Diary.ID,
		TripDate: tripDate,
		Photos:   refs,
	})

	log.Info().
		Str("user_id", in.UserID).
		Str("diary_id", created.Diary.ID).
		Int("photos", len(created.Photos)).
		Msg("Diary created")

	return &GenerateResult{DiaryID: created.Diary.ID, TripDate: tripDate}, nil
}

func validateInput(in GenerateInput) (prompt.Options, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return prompt.Options{}, apperr.Validation("user_id is required")
	}
	if len(in.Images) == 0 {
		return prompt.Options{}, apperr.Validation("at least one image is required")
	}
	if len(in.Images) > MaxImages {
		return prompt.Options{}, apperr.Validation(fmt.Sprintf("at most %d images are allowed", MaxImages))
	}
	for _, img := range in.Images {
		if len(img.Data) == 0 {
			return prompt.Options{}, apperr.Validation(fmt.Sprintf("image %q is empty", img.FileName))
		}
	}
	return in.Options.Normalize()
}

// saveFiles stores every upload under a fresh name. On failure the files
// saved so far are removed.
func (s *DiaryService) saveFiles(ctx context.Context, uploads []Upload) ([]string, error) {
	names := make([]string, 0, len(uploads))
	for _, u := range uploads {
		name := uuid.New().String() + fileExt(u)
		contentType := u.ContentType
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(u.Data)
		}
		if err := s.store.Save(ctx, name, u.Data, contentType); err != nil {
			s.removeFiles(names)
			return nil, fmt.Errorf("failed to store %s: %w", u.FileName, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// removeFiles deletes stored files best-effort; the rows are already gone or never existed.
func (s *DiaryService) removeFiles(names []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, name := range names {
		if err := s.store.Delete(ctx, name); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Failed to remove stored photo")
		}
	}
}

var imageExts = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".gif":  ".gif",
	".webp": ".webp",
	".heic": ".heic",
}

func fileExt(u Upload) string {
	if ext, ok := imageExts[strings.ToLower(filepath.Ext(u.FileName))]; ok {
		return ext
	}
	switch http.DetectContentType(u.Data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

// Get returns a diary with its photos
func (s *DiaryService) Get(ctx context.Context, diaryID string) (*models.DiaryWithPhotos, error) {
	return s.diaries.GetByID(ctx, diaryID)
}

// GetByPhoto returns the diary of a photo if it belongs to userID
func (s *DiaryService) GetByPhoto(ctx context.Context, photoID, userID string) (*models.DiarySummary, error) {
	return s.diaries.GetByPhoto(ctx, photoID, userID)
}

// Recent returns the user's most recent diaries
func (s *DiaryService) Recent(ctx context.Context, userID string) ([]models.DiarySummary, error) {
	return s.diaries.GetRecentByUser(ctx, userID)
}

// Random returns a random sample of the user's diaries
func (s *DiaryService) Random(ctx context.Context, userID string) ([]models.DiarySummary, error) {
	return s.diaries.GetRandomByUser(ctx, userID)
}

// Delete removes a diary and the user's photos linked to it, then their stored files
func (s *DiaryService) Delete(ctx context.Context, diaryID, userID string) error {
	fileNames, err := s.diaries.DeleteWithPhotos(ctx, diaryID, userID)
	if err != nil {
		return err
	}

	s.removeFiles(fileNames)

	s.events.Publish(events.Event{
		Type:    events.DiaryDeleted,
		UserID:  userID,
		DiaryID: diaryID,
	})

	log.Info().
		Str("user_id", userID).
		Str("diary_id", diaryID).
		Int("photos", len(fileNames)).
		Msg("Diary deleted")
	return nil
}

// TagPhoto stores a classifier tag and notifies the photo's owner
func (s *DiaryService) TagPhoto(ctx context.Context, photoID, tag string) error {
	userID, err := s.photos.UpdateTag(ctx, photoID, tag)
	if err != nil {
		return err
	}

	s.events.Publish(events.Event{
		Type:   events.PhotoTagged,
		UserID: userID,
		Photos: []events.PhotoRef{{PhotoID: photoID, Tag: tag}},
	})
	return nil
}
