package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// Payload is the JSON body posted to a user's webhook. The field set is a
// stable contract; consumers rely on these exact keys.
type Payload struct {
	Subject        string `json:"subject"`
	Message        string `json:"message"`
	Board          string `json:"board"`
	Column         string `json:"column"`
	DueDate        string `json:"due_date"`
	NotificationAt string `json:"notification_at"`
	TaskID         string `json:"task_id"`
}

// WebhookClient posts notification payloads with a bounded per-request
// timeout. Delivery is best-effort; callers never retry.
type WebhookClient struct {
	client *http.Client
}

// NewWebhookClient creates a client with the given timeout.
func NewWebhookClient(timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookClient{client: &http.Client{Timeout: timeout}}
}

// Post delivers the payload to url. A non-2xx response counts as a delivery
// failure.
func (w *WebhookClient) Post(ctx context.Context, url string, p Payload) error {
	body, err := sonic.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
