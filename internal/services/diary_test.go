package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"travel-diary-backend/internal/apperr"
	"travel-diary-backend/internal/events"
	"travel-diary-backend/internal/generation"
	"travel-diary-backend/internal/metadata"
	"travel-diary-backend/internal/models"
	"travel-diary-backend/internal/prompt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	entry generation.Entry
	err   error
	calls int
	req   *prompt.Request
}

func (g *fakeGenerator) Generate(ctx context.Context, req *prompt.Request) (generation.Entry, error) {
	g.calls++
	g.req = req
	return g.entry, g.err
}

type memStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (s *memStore) Save(ctx context.Context, name string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil && len(s.files) > 0 {
		return s.saveErr
	}
	s.files[name] = data
	return nil
}

func (s *memStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	return nil
}

func (s *memStore) Serve(w http.ResponseWriter, r *http.Request, name string) {
	w.WriteHeader(http.StatusOK)
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type fakeDiaryRepo struct {
	created   *models.NewDiary
	createErr error
	deleted   []string
	deleteErr error
}

func (r *fakeDiaryRepo) CreateWithPhotos(ctx context.Context, in *models.NewDiary) (*models.DiaryWithPhotos, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.created = in
	out := &models.DiaryWithPhotos{Diary: models.Diary{
		ID: uuid.NewString(), UserID: in.UserID, Title: in.Title, Body: in.Body, TripDate: in.TripDate,
	}}
	for _, p := range in.Photos {
		out.Photos = append(out.Photos, models.Photo{ID: uuid.NewString(), UserID: in.UserID, FileName: p.FileName})
	}
	return out, nil
}

func (r *fakeDiaryRepo) GetByID(ctx context.Context, id string) (*models.DiaryWithPhotos, error) {
	return nil, apperr.NotFound("diary not found")
}

func (r *fakeDiaryRepo) GetByPhoto(ctx context.Context, photoID, userID string) (*models.DiarySummary, error) {
	return nil, apperr.NotFound("diary not found")
}

func (r *fakeDiaryRepo) GetRecentByUser(ctx context.Context, userID string) ([]models.DiarySummary, error) {
	return nil, apperr.NotFound("no diaries found")
}

func (r *fakeDiaryRepo) GetRandomByUser(ctx context.Context, userID string) ([]models.DiarySummary, error) {
	return []models.DiarySummary{}, nil
}

func (r *fakeDiaryRepo) DeleteWithPhotos(ctx context.Context, diaryID, userID string) ([]string, error) {
	return r.deleted, r.deleteErr
}

type fakeTagger struct {
	owner string
	err   error
}

func (f fakeTagger) UpdateTag(ctx context.Context, photoID, tag string) (string, error) {
	return f.owner, f.err
}

type eventLog struct {
	events []events.Event
}

func (l *eventLog) Publish(e events.Event) {
	l.events = append(l.events, e)
}

type fixture struct {
	svc   *DiaryService
	gen   *fakeGenerator
	store *memStore
	repo  *fakeDiaryRepo
	log   *eventLog
}

func newFixture() *fixture {
	f := &fixture{
		gen:   &fakeGenerator{entry: generation.Entry{Title: "제주 여행", Body: "바다를 봤다."}},
		store: newMemStore(),
		repo:  &fakeDiaryRepo{},
		log:   &eventLog{},
	}
	f.svc = NewDiaryService(
		f.repo,
		fakeTagger{owner: "owner"},
		metadata.NewExtractor(nil),
		prompt.NewComposer(1024, 1000, 0.7),
		f.gen,
		f.store,
		f.log,
	)
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func uploads(n int) []Upload {
	out := make([]Upload, n)
	for i := range out {
		out[i] = Upload{FileName: "IMG.JPG", ContentType: "image/jpeg", Data: []byte("not really a jpeg")}
	}
	return out
}

func TestGenerateStoresDiaryAndPublishes(t *testing.T) {
	f := newFixture()
	userID := uuid.NewString()

	res, err := f.svc.Generate(context.Background(), GenerateInput{
		UserID:  userID,
		Options: prompt.Options{Tone: "담백한", Companion: "friends"},
		Images:  uploads(2),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, res.DiaryID)
	assert.Equal(t, "2024-05-01", res.TripDate, "images without EXIF dates fall back to today")

	require.NotNil(t, f.repo.created)
	assert.Equal(t, "제주 여행", f.repo.created.Title)
	assert.Len(t, f.repo.created.Photos, 2)
	for _, p := range f.repo.created.Photos {
		assert.Regexp(t, `^[0-9a-f-]{36}\.jpg$`, p.FileName)
		assert.Nil(t, p.Coordinates)
	}
	assert.Equal(t, 2, f.store.count())

	require.Len(t, f.log.events, 1)
	assert.Equal(t, events.DiaryCreated, f.log.events[0].Type)
	assert.Equal(t, res.DiaryID, f.log.events[0].DiaryID)
	assert.Len(t, f.log.events[0].Photos, 2)

	require.NotNil(t, f.gen.req)
	assert.Len(t, f.gen.req.Images, 2)
	assert.Contains(t, f.gen.req.User, "2024-05-01")
}

func TestGenerateValidatesBeforeCallingOut(t *testing.T) {
	cases := []struct {
		name string
		in   GenerateInput
	}{
		{"no user", GenerateInput{Images: uploads(1)}},
		{"no images", GenerateInput{UserID: "u"}},
		{"too many images", GenerateInput{UserID: "u", Images: uploads(MaxImages + 1)}},
		{"empty image", GenerateInput{UserID: "u", Images: []Upload{{FileName: "a.jpg"}}}},
		{"unknown tone", GenerateInput{UserID: "u", Images: uploads(1), Options: prompt.Options{Tone: "angry"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()

			_, err := f.svc.Generate(context.Background(), tc.in)

			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
			assert.Zero(t, f.gen.calls)
			assert.Zero(t, f.store.count())
			assert.Empty(t, f.log.events)
		})
	}
}

func TestGenerateFailureWritesNothing(t *testing.T) {
	f := newFixture()
	f.gen.err = apperr.ErrGeneration

	_, err := f.svc.Generate(context.Background(), GenerateInput{UserID: "u", Images: uploads(3)})

	assert.True(t, errors.Is(err, apperr.ErrGeneration))
	assert.Nil(t, f.repo.created)
	assert.Zero(t, f.store.count())
	assert.Empty(t, f.log.events)
}

func TestGeneratePersistenceFailureRemovesFiles(t *testing.T) {
	f := newFixture()
	f.repo.createErr = apperr.ErrPersistence

	_, err := f.svc.Generate(context.Background(), GenerateInput{UserID: "u", Images: uploads(3)})

	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	assert.Zero(t, f.store.count())
	assert.Empty(t, f.log.events)
}

func TestGenerateStorageFailureRemovesPartialFiles(t *testing.T) {
	f := newFixture()
	f.store.saveErr = errors.New("disk full")

	_, err := f.svc.Generate(context.Background(), GenerateInput{UserID: "u", Images: uploads(3)})

	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	assert.Zero(t, f.store.count())
	assert.Nil(t, f.repo.created)
}

func TestDeleteRemovesFilesAndPublishes(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.Save(context.Background(), "a.jpg", []byte("x"), "image/jpeg"))
	require.NoError(t, f.store.Save(context.Background(), "b.jpg", []byte("x"), "image/jpeg"))
	f.repo.deleted = []string{"a.jpg"}

	require.NoError(t, f.svc.Delete(context.Background(), "d", "u"))

	assert.Equal(t, 1, f.store.count(), "only the deleted photo's file is removed")
	require.Len(t, f.log.events, 1)
	assert.Equal(t, events.DiaryDeleted, f.log.events[0].Type)
}

func TestDeleteNotFoundPublishesNothing(t *testing.T) {
	f := newFixture()
	f.repo.deleteErr = apperr.NotFound("diary not found")

	err := f.svc.Delete(context.Background(), "d", "u")

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, f.log.events)
}

func TestTagPhotoPublishesToOwner(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.svc.TagPhoto(context.Background(), "p", models.TagFood))

	require.Len(t, f.log.events, 1)
	e := f.log.events[0]
	assert.Equal(t, events.PhotoTagged, e.Type)
	assert.Equal(t, "owner", e.UserID)
	assert.Equal(t, models.TagFood, e.Photos[0].Tag)
}

func TestFileExt(t *testing.T) {
	assert.Equal(t, ".jpg", fileExt(Upload{FileName: "a.JPEG"}))
	assert.Equal(t, ".heic", fileExt(Upload{FileName: "a.heic"}))
	assert.Equal(t, ".png", fileExt(Upload{FileName: "blob", Data: []byte("\x89PNG\r\n\x1a\n0000")}))
	assert.Equal(t, ".jpg", fileExt(Upload{FileName: "../../x"}))
}
