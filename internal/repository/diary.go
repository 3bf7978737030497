package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travel-diary-backend/internal/apperr"
	"travel-diary-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	recentLimit = 5
	randomLimit = 3
)

// summaryColumns selects a diary with the file of its first-linked photo
const summaryColumns = `
	SELECT d.id, d.title, d.body, d.trip_date,
		(SELECT p.file_name
		 FROM diary_photos dp
		 JOIN photos p ON p.id = dp.photo_id
		 WHERE dp.diary_id = d.id
		 ORDER BY dp.created_at, dp.position
		 LIMIT 1) AS file_name
	FROM diaries d
`

// DiaryRepository handles database operations for diaries and their photo links
type DiaryRepository struct {
	db  DB
	now func() time.Time
}

// NewDiaryRepository creates a new diary repository
func NewDiaryRepository(db DB) *DiaryRepository {
	return &DiaryRepository{db: db, now: time.Now}
}

// CreateWithPhotos inserts the diary, one photo per input photo and one link
// per photo in a single transaction. Any failure rolls back every row and is
// reported as apperr.ErrPersistence.
func (r *DiaryRepository) CreateWithPhotos(ctx context.Context, in *models.NewDiary) (*models.DiaryWithPhotos, error) {
	now := r.now().UTC()

	diary := models.Diary{
		ID:        uuid.New().String(),
		UserID:    in.UserID,
		Title:     in.Title,
		Body:      in.Body,
		TripDate:  in.TripDate,
		CreatedAt: now,
	}

	photos := make([]models.Photo, len(in.Photos))
	links := make([]models.DiaryPhoto, len(in.Photos))
	for i, p := range in.Photos {
		photos[i] = newPhotoRow(in.UserID, p, now)
		// strictly increasing so the first upload is the first-linked photo
		links[i] = models.DiaryPhoto{
			DiaryID:   diary.ID,
			PhotoID:   photos[i].ID,
			Position:  i,
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
	}

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO diaries (id, user_id, title, body, trip_date, trip_start, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, diary.ID, diary.UserID, diary.Title, diary.Body, diary.TripDate, in.TripStart, diary.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create diary: %w", err)
		}

		for i := range photos {
			if err := insertPhoto(ctx, tx, &photos[i]); err != nil {
				return err
			}
		}

		for _, l := range links {
			_, err := tx.Exec(ctx, `
				INSERT INTO diary_photos (diary_id, photo_id, position, created_at)
				VALUES ($1, $2, $3, $4)
			`, l.DiaryID, l.PhotoID, l.Position, l.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to link photo %s: %w", l.PhotoID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrPersistence, err)
	}

	return &models.DiaryWithPhotos{Diary: diary, Photos: photos}, nil
}

// GetByID retrieves a diary with its photos in link order
func (r *DiaryRepository) GetByID(ctx context.Context, id string) (*models.DiaryWithPhotos, error) {
	if !validID(id) {
		return nil, apperr.NotFound("diary not found")
	}

	var d models.Diary
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, title, body, trip_date, created_at
		FROM diaries
		WHERE id = $1
	`, id).Scan(&d.ID, &d.UserID, &d.Title, &d.Body, &d.TripDate, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("diary not found")
		}
		return nil, fmt.Errorf("failed to get diary: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+photoColumns+`
		FROM diary_photos dp
		JOIN photos p ON p.id = dp.photo_id
		WHERE dp.diary_id = $1
		ORDER BY dp.created_at, dp.position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get diary photos: %w", err)
	}
	photos, err := scanPhotos(rows)
	if err != nil {
		return nil, err
	}

	return &models.DiaryWithPhotos{Diary: d, Photos: photos}, nil
}

// GetByPhoto returns the diary a photo is linked to, only when the diary
// belongs to userID. A mismatched owner is reported as not found.
func (r *DiaryRepository) GetByPhoto(ctx context.Context, photoID, userID string) (*models.DiarySummary, error) {
	if !validID(photoID) || !validID(userID) {
		return nil, apperr.NotFound("diary not found")
	}

	rows, err := r.db.Query(ctx, summaryColumns+`
		WHERE d.user_id = $2
		  AND d.id = (SELECT diary_id FROM diary_photos WHERE photo_id = $1)
	`, photoID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get diary by photo: %w", err)
	}
	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, apperr.NotFound("diary not found")
	}
	return &summaries[0], nil
}

// GetRecentByUser returns the user's most recent diaries by trip date.
// A user without diaries is reported as not found.
func (r *DiaryRepository) GetRecentByUser(ctx context.Context, userID string) ([]models.DiarySummary, error) {
	if !validID(userID) {
		return nil, apperr.NotFound("no diaries found")
	}

	rows, err := r.db.Query(ctx, summaryColumns+`
		WHERE d.user_id = $1
		ORDER BY d.trip_start DESC, d.created_at DESC
		LIMIT $2
	`, userID, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent diaries: %w", err)
	}
	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, apperr.NotFound("no diaries found")
	}
	return summaries, nil
}

// GetRandomByUser returns a uniform random sample of the user's diaries; it is
// empty, not an error, when the user has none.
func (r *DiaryRepository) GetRandomByUser(ctx context.Context, userID string) ([]models.DiarySummary, error) {
	if !validID(userID) {
		return []models.DiarySummary{}, nil
	}

	rows, err := r.db.Query(ctx, summaryColumns+`
		WHERE d.user_id = $1
		ORDER BY random()
		LIMIT $2
	`, userID, randomLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get random diaries: %w", err)
	}
	return scanSummaries(rows)
}

// DeleteWithPhotos removes the diary's links, the linked photos owned by
// userID and the diary itself in one transaction. It returns the file names of
// the deleted photos. A missing or foreign diary deletes nothing and is
// reported as not found.
func (r *DiaryRepository) DeleteWithPhotos(ctx context.Context, diaryID, userID string) ([]string, error) {
	if !validID(diaryID) || !validID(userID) {
		return nil, apperr.NotFound("diary not found")
	}

	var fileNames []string
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
			SELECT id FROM diaries WHERE id = $1 AND user_id = $2 FOR UPDATE
		`, diaryID, userID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("diary not found")
			}
			return fmt.Errorf("failed to lock diary: %w", err)
		}

		rows, err := tx.Query(ctx, `
			WITH links AS (
				DELETE FROM diary_photos WHERE diary_id = $1 RETURNING photo_id
			)
			DELETE FROM photos
			WHERE user_id = $2 AND id IN (SELECT photo_id FROM links)
			RETURNING file_name
		`, diaryID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete diary photos: %w", err)
		}
		fileNames, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("failed to delete diary photos: %w", err)
		}

		result, err := tx.Exec(ctx, `DELETE FROM diaries WHERE id = $1 AND user_id = $2`, diaryID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete diary: %w", err)
		}
		if result.RowsAffected() == 0 {
			return apperr.NotFound("diary not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return fileNames, nil
}

func scanSummaries(rows pgx.Rows) ([]models.DiarySummary, error) {
	defer rows.Close()

	summaries := []models.DiarySummary{}
	for rows.Next() {
		var s models.DiarySummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Body, &s.TripDate, &s.FileName); err != nil {
			return nil, fmt.Errorf("failed to scan diary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diaries: %w", err)
	}

	return summaries, nil
}
