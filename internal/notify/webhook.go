package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DeliveryError is a failed webhook delivery. Status is zero when the
// request never produced an HTTP response (transport error, timeout).
type DeliveryError struct {
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook returned status %d", e.Status)
	}
	return fmt.Sprintf("webhook request failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsDeliveryError reports whether err is a webhook delivery failure.
func IsDeliveryError(err error) bool {
	var deliveryErr *DeliveryError
	return errors.As(err, &deliveryErr)
}

// Webhook posts payloads to a single endpoint URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a delivery client for the given endpoint.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Deliver posts the payload as JSON. Any 2xx response is success;
// transport errors and non-2xx statuses both return a *DeliveryError,
// leaving the caller one failure path.
func (w *Webhook) Deliver(ctx context.Context, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Status: resp.StatusCode}
	}
	return nil
}
