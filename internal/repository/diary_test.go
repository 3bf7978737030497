package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"travel-diary-backend/internal/apperr"
	"travel-diary-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func strPtr(s string) *string { return &s }

func newDiaryInput(userID string, n int) *models.NewDiary {
	in := &models.NewDiary{
		UserID:    userID,
		Title:     "바다",
		Body:      "파도",
		TripDate:  "2024-03-01",
		TripStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < n; i++ {
		in.Photos = append(in.Photos, models.NewPhoto{FileName: uuid.NewString() + ".jpg"})
	}
	in.Photos[0].Coordinates = &models.Coordinates{Lat: 33.5, Lng: 126.5}
	in.Photos[0].PlaceName = "제주"
	return in
}

func expectDiaryInsert(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO diaries")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "바다", "파도", "2024-03-01", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestCreateWithPhotosCommitsAllRows(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	userID := uuid.NewString()
	in := newDiaryInput(userID, 2)

	mock.ExpectBegin()
	expectDiaryInsert(mock)
	for range in.Photos {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO photos")).
			WithArgs(anyArgs(8)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for i := range in.Photos {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO diary_photos")).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), i, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	created, err := repo.CreateWithPhotos(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, created.Diary.ID)
	assert.Equal(t, userID, created.Diary.UserID)
	require.Len(t, created.Photos, 2)
	assert.NotNil(t, created.Photos[0].Latitude)
	assert.NotNil(t, created.Photos[0].Longitude)
	assert.Equal(t, "제주", *created.Photos[0].PlaceName)
	assert.Nil(t, created.Photos[1].Latitude)
	assert.Nil(t, created.Photos[1].Longitude)
	assert.Nil(t, created.Photos[1].PlaceName)
	require.NoError(t, mock.ExpectationsWereMet())
}

// capture matches any argument and keeps the last value it saw
type capture struct{ value any }

func (c *capture) Match(v any) bool {
	c.value = v
	return true
}

func TestCreateWithPhotosLinksEachPhotoInOrder(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	in := newDiaryInput(uuid.NewString(), 3)

	diaryID := &capture{}
	photoIDs := make([]*capture, len(in.Photos))
	linkDiaryIDs := make([]*capture, len(in.Photos))
	linkPhotoIDs := make([]*capture, len(in.Photos))
	linkTimes := make([]*capture, len(in.Photos))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO diaries")).
		WithArgs(diaryID, pgxmock.AnyArg(), "바다", "파도", "2024-03-01", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for i := range in.Photos {
		photoIDs[i] = &capture{}
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO photos")).
			WithArgs(append([]any{photoIDs[i]}, anyArgs(7)...)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for i := range in.Photos {
		linkDiaryIDs[i], linkPhotoIDs[i], linkTimes[i] = &capture{}, &capture{}, &capture{}
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO diary_photos")).
			WithArgs(linkDiaryIDs[i], linkPhotoIDs[i], i, linkTimes[i]).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	created, err := repo.CreateWithPhotos(context.Background(), in)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	var prev time.Time
	for i := range in.Photos {
		assert.Equal(t, created.Diary.ID, diaryID.value)
		assert.Equal(t, created.Diary.ID, linkDiaryIDs[i].value)
		assert.Equal(t, created.Photos[i].ID, photoIDs[i].value)
		assert.Equal(t, created.Photos[i].ID, linkPhotoIDs[i].value)

		linkedAt, ok := linkTimes[i].value.(time.Time)
		require.True(t, ok)
		assert.True(t, linkedAt.After(prev), "link %d must be created after link %d", i, i-1)
		prev = linkedAt
	}
}

func TestCreateWithPhotosRollsBackOnPhotoFailure(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	in := newDiaryInput(uuid.NewString(), 3)

	mock.ExpectBegin()
	expectDiaryInsert(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO photos")).
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO photos")).
		WithArgs(anyArgs(8)...).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	created, err := repo.CreateWithPhotos(context.Background(), in)

	require.Error(t, err)
	assert.Nil(t, created)
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithPhotosRollsBackOnLinkFailure(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	in := newDiaryInput(uuid.NewString(), 1)

	mock.ExpectBegin()
	expectDiaryInsert(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO photos")).
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO diary_photos")).
		WithArgs(anyArgs(4)...).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.CreateWithPhotos(context.Background(), in)

	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithPhotosBeginFailure(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)

	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

	_, err := repo.CreateWithPhotos(context.Background(), newDiaryInput(uuid.NewString(), 1))

	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("FROM diaries")).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDRejectsMalformedID(t *testing.T) {
	repo := NewDiaryRepository(newMock(t))

	_, err := repo.GetByID(context.Background(), "42; DROP TABLE diaries")

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGetByIDReturnsPhotos(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	id, userID := uuid.NewString(), uuid.NewString()
	created := time.Now()
	lat, lng := 37.5, 127.0

	mock.ExpectQuery(regexp.QuoteMeta("FROM diaries")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "title", "body", "trip_date", "created_at"}).
			AddRow(id, userID, "title", "body", "2024-03-01", created))
	mock.ExpectQuery(regexp.QuoteMeta("FROM diary_photos dp")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "file_name", "latitude", "longitude", "place_name", "taken_at", "uploaded_at", "tag"}).
			AddRow("p1", userID, "a.jpg", &lat, &lng, strPtr("서울"), &created, created, strPtr(models.TagFood)).
			AddRow("p2", userID, "b.jpg", (*float64)(nil), (*float64)(nil), (*string)(nil), (*time.Time)(nil), created, (*string)(nil)))

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, "title", got.Diary.Title)
	require.Len(t, got.Photos, 2)
	require.NotNil(t, got.Photos[0].Latitude)
	assert.Equal(t, 37.5, *got.Photos[0].Latitude)
	assert.Equal(t, 127.0, *got.Photos[0].Longitude)
	assert.Nil(t, got.Photos[1].Latitude)
	assert.Nil(t, got.Photos[1].Longitude)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPhotoOwnerMismatchIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	photoID, otherUser := uuid.NewString(), uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT diary_id FROM diary_photos WHERE photo_id = $1")).
		WithArgs(photoID, otherUser).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "body", "trip_date", "file_name"}))

	got, err := repo.GetByPhoto(context.Background(), photoID, otherUser)

	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentByUserEmptyIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	userID := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY d.trip_start DESC")).
		WithArgs(userID, recentLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "body", "trip_date", "file_name"}))

	_, err := repo.GetRecentByUser(context.Background(), userID)

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentByUserReturnsThumbnails(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	userID := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY d.trip_start DESC")).
		WithArgs(userID, recentLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "body", "trip_date", "file_name"}).
			AddRow("d1", "t1", "b1", "2024-03-02", strPtr("a.jpg")).
			AddRow("d2", "t2", "b2", "2024-03-01", (*string)(nil)))

	got, err := repo.GetRecentByUser(context.Background(), userID)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "a.jpg", *got[0].FileName)
	assert.Nil(t, got[1].FileName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRandomByUserEmptyIsNotAnError(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	userID := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY random()")).
		WithArgs(userID, randomLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "body", "trip_date", "file_name"}))

	got, err := repo.GetRandomByUser(context.Background(), userID)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWithPhotosRemovesEverything(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	diaryID, userID := uuid.NewString(), uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(diaryID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(diaryID))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM diary_photos WHERE diary_id = $1 RETURNING photo_id")).
		WithArgs(diaryID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"file_name"}).AddRow("a.jpg").AddRow("b.jpg"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM diaries WHERE id = $1 AND user_id = $2")).
		WithArgs(diaryID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	files, err := repo.DeleteWithPhotos(context.Background(), diaryID, userID)

	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, files)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWithPhotosForeignDiaryDeletesNothing(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	diaryID, otherUser := uuid.NewString(), uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(diaryID, otherUser).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	files, err := repo.DeleteWithPhotos(context.Background(), diaryID, otherUser)

	assert.Nil(t, files)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWithPhotosRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	repo := NewDiaryRepository(mock)
	diaryID, userID := uuid.NewString(), uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(diaryID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(diaryID))
	mock.ExpectQuery(regexp.QuoteMeta("WITH links AS")).
		WithArgs(diaryID, userID).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	_, err := repo.DeleteWithPhotos(context.Background(), diaryID, userID)

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
