// Package metadata reads capture time and GPS position from uploaded photos
// and derives the trip date of a batch.
package metadata

import (
	"bytes"
	"context"
	"math"
	"time"

	"travel-diary-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"golang.org/x/sync/errgroup"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

const exifDateLayout = "2006:01:02 15:04:05"

// Image is one uploaded photo, fully buffered
type Image struct {
	Name string
	Data []byte
}

// Result is the metadata extracted from one image. Coordinates is nil unless
// both latitude and longitude were present.
type Result struct {
	TakenAt     *time.Time
	Coordinates *models.Coordinates
	PlaceName   string
}

// Extractor extracts EXIF metadata and resolves place names
type Extractor struct {
	geocoder Geocoder
	limit    int
}

// NewExtractor creates a new extractor. A nil geocoder disables place lookups.
func NewExtractor(geocoder Geocoder) *Extractor {
	if geocoder == nil {
		geocoder = NopGeocoder{}
	}
	return &Extractor{geocoder: geocoder, limit: 5}
}

// Extract returns one result per image in input order. Images without usable
// EXIF data yield an empty result; no image can fail the batch.
func (e *Extractor) Extract(ctx context.Context, images []Image) []Result {
	results := make([]Result, len(images))

	var g errgroup.Group
	g.SetLimit(e.limit)
	for i, img := range images {
		g.Go(func() error {
			results[i] = Decode(img.Data)
			if results[i].Coordinates == nil {
				log.Debug().Str("file", img.Name).Msg("No GPS data in image")
				return nil
			}
			results[i].PlaceName = e.locate(ctx, img.Name, *results[i].Coordinates)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// locate resolves a place name; any lookup failure degrades to no name.
func (e *Extractor) locate(ctx context.Context, name string, c models.Coordinates) string {
	place, err := e.geocoder.ReverseGeocode(ctx, c.Lat, c.Lng)
	if err != nil {
		log.Warn().
			Err(err).
			Str("file", name).
			Float64("lat", c.Lat).
			Float64("lng", c.Lng).
			Msg("Reverse geocoding failed")
		return ""
	}
	return place
}

// Decode reads capture time and coordinates from raw image bytes. Corrupt
// EXIF blocks yield an empty result.
func Decode(data []byte) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("EXIF decoder panicked")
			res = Result{}
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return res
	}

	if t, err := x.DateTime(); err == nil {
		res.TakenAt = &t
	} else if tag, err := x.Get(exif.DateTimeDigitized); err == nil {
		if s, err := tag.StringVal(); err == nil {
			if t, err := time.ParseInLocation(exifDateLayout, s, time.Local); err == nil {
				res.TakenAt = &t
			}
		}
	}

	if lat, lng, err := x.LatLong(); err == nil && validCoordinates(lat, lng) {
		res.Coordinates = &models.Coordinates{Lat: lat, Lng: lng}
	}

	return res
}

func validCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
