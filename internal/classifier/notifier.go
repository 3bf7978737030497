// Package classifier notifies the external photo classifier about newly
// stored photos. The classifier tags them later through the internal API.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"travel-diary-backend/internal/events"

	"github.com/rs/zerolog/log"
)

// Notifier posts diary.created events to the classifier
type Notifier struct {
	url    string
	token  string
	client *http.Client
}

// NewNotifier creates a notifier for the classifier endpoint
func NewNotifier(url, token string, timeout time.Duration) *Notifier {
	return &Notifier{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

type notification struct {
	UserID  string            `json:"user_id"`
	DiaryID string            `json:"diary_id"`
	Photos  []events.PhotoRef `json:"photos"`
}

// Handle sends one notification per event. It does not retry.
func (n *Notifier) Handle(ctx context.Context, e events.Event) error {
	if len(e.Photos) == 0 {
		return nil
	}

	body, err := json.Marshal(notification{UserID: e.UserID, DiaryID: e.DiaryID, Photos: e.Photos})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to notify classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("classifier error (status %d): %s", resp.StatusCode, string(msg))
	}

	log.Debug().
		Str("diary_id", e.DiaryID).
		Int("photos", len(e.Photos)).
		Msg("Classifier notified")
	return nil
}
