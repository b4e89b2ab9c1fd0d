package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mr1hm/go-relief-coordination/internal/models"
)

const httpTimeout = 10 * time.Second

// Webhook posts notifications as JSON to a configured URL. If the URL is
// empty, Notify is a no-op.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: httpTimeout},
	}
}

func (w *Webhook) Notify(ctx context.Context, n models.Notification) error {
	if w.url == "" {
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("webhook: marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
