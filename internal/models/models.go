package models

import "time"

// User represents a diary owner
type User struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Coordinates is a GPS position. A photo either has both values or none.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Diary represents a generated travel diary entry
type Diary struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	TripDate  string    `json:"trip_date"`
	CreatedAt time.Time `json:"created_at"`
}

// Photo represents an uploaded image linked to at most one diary
type Photo struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	FileName   string     `json:"file_name"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	PlaceName  *string    `json:"place_name,omitempty"`
	TakenAt    *time.Time `json:"taken_at"`
	UploadedAt time.Time  `json:"uploaded_at"`
	Tag        *string    `json:"tag,omitempty"`
}

// DiaryPhoto is the link row between a diary and one of its photos
type DiaryPhoto struct {
	DiaryID   string    `json:"diary_id"`
	PhotoID   string    `json:"photo_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// DiaryWithPhotos is a diary joined with its photos in link order
type DiaryWithPhotos struct {
	Diary  Diary   `json:"diary"`
	Photos []Photo `json:"photos"`
}

// DiarySummary is a diary annotated with its first-linked photo for thumbnails
type DiarySummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	TripDate string  `json:"trip_date"`
	FileName *string `json:"file_name"`
}

// NewPhoto carries one image's stored file and extracted metadata into the write transaction
type NewPhoto struct {
	FileName    string
	Coordinates *Coordinates
	PlaceName   string
	TakenAt     *time.Time
}

// NewDiary is the input of the diary write transaction
type NewDiary struct {
	UserID    string
	Title     string
	Body      string
	TripDate  string
	TripStart time.Time
	Photos    []NewPhoto
}

// Photo classification tags assigned by the external classifier
const (
	TagPeople        = "people"
	TagLandscape     = "landscape"
	TagFood          = "food"
	TagAccommodation = "accommodation"
)

// IsValidTag reports whether tag is one of the classifier categories.
func IsValidTag(tag string) bool {
	switch tag {
	case TagPeople, TagLandscape, TagFood, TagAccommodation:
		return true
	}
	return false
}
