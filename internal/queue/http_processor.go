package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quizdrill/quizdrill-backend/internal/model"
)

// NewHTTPProcessor returns a ProcessFunc that POSTs each action as JSON
// to the sync target. Connection failures and 5xx responses are
// retryable; a 4xx means the target permanently rejected the action, so
// it is reported as delivered=false with an error and retried until
// abandoned into the dead-letter list.
func NewHTTPProcessor(url string, client *http.Client) ProcessFunc {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, action model.PendingAction) (bool, error) {
		body, err := json.Marshal(action)
		if err != nil {
			return false, fmt.Errorf("marshal action: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return false, fmt.Errorf("sync target unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true, nil
		}
		return false, fmt.Errorf("sync target returned %d", resp.StatusCode)
	}
}
