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

const photoColumns = `p.id, p.user_id, p.file_name, p.latitude, p.longitude, p.place_name, p.taken_at, p.uploaded_at, p.tag`

// PhotoRepository handles database operations for photos
type PhotoRepository struct {
	db DB
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// UpdateTag sets the classifier tag of a photo and returns the owning user id
func (r *PhotoRepository) UpdateTag(ctx context.Context, photoID, tag string) (string, error) {
	if !models.IsValidTag(tag) {
		return "", apperr.Validation(fmt.Sprintf("invalid tag %q", tag))
	}
	if !validID(photoID) {
		return "", apperr.NotFound("photo not found")
	}

	var userID string
	err := r.db.QueryRow(ctx, `UPDATE photos SET tag = $1 WHERE id = $2 RETURNING user_id`, tag, photoID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("photo not found")
		}
		return "", fmt.Errorf("failed to update photo tag: %w", err)
	}
	return userID, nil
}

// newPhotoRow builds the row for an uploaded photo. Coordinates are stored as
// both columns or neither.
func newPhotoRow(userID string, in models.NewPhoto, uploadedAt time.Time) models.Photo {
	p := models.Photo{
		ID:         uuid.New().String(),
		UserID:     userID,
		FileName:   in.FileName,
		TakenAt:    in.TakenAt,
		UploadedAt: uploadedAt,
	}
	if in.Coordinates != nil {
		lat, lng := in.Coordinates.Lat, in.Coordinates.Lng
		p.Latitude = &lat
		p.Longitude = &lng
	}
	if in.PlaceName != "" {
		place := in.PlaceName
		p.PlaceName = &place
	}
	return p
}

func insertPhoto(ctx context.Context, q Querier, p *models.Photo) error {
	_, err := q.Exec(ctx, `
		INSERT INTO photos (id, user_id, file_name, latitude, longitude, place_name, taken_at, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.UserID, p.FileName, p.Latitude, p.Longitude, p.PlaceName, p.TakenAt, p.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo %s: %w", p.FileName, err)
	}
	return nil
}

func scanPhotos(rows pgx.Rows) ([]models.Photo, error) {
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		var p models.Photo
		err := rows.Scan(
			&p.ID, &p.UserID, &p.FileName, &p.Latitude, &p.Longitude,
			&p.PlaceName, &p.TakenAt, &p.UploadedAt, &p.Tag,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}

	return photos, nil
}
