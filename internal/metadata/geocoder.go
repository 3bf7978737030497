package metadata

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"
)

// Geocoder resolves coordinates to a human-readable place name
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// NopGeocoder is used when reverse geocoding is disabled
type NopGeocoder struct{}

// ReverseGeocode always returns no place name
func (NopGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return "", nil
}

// GoogleGeocoder resolves coordinates with the Google Maps Geocoding API
type GoogleGeocoder struct {
	client   *maps.Client
	language string
	timeout  time.Duration
}

// NewGoogleGeocoder creates a geocoder for the given API key
func NewGoogleGeocoder(apiKey, language string, timeout time.Duration) (*GoogleGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleGeocoder{client: client, language: language, timeout: timeout}, nil
}

// ReverseGeocode returns the formatted address of the first result, or "" when there is none
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: lat, Lng: lng},
		Language: g.language,
	})
	if err != nil {
		return "", fmt.Errorf("failed to reverse geocode: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0].FormattedAddress, nil
}
