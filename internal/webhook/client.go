package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"example.com/backstage/services/jamfops/internal/failure"
)

const maxErrorBody = 512

// Client posts JSON payloads to chat webhooks.
type Client struct {
	client *http.Client
}

// NewClient creates a webhook client with the given request timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(nil),
		},
	}
}

// Post sends body unchanged to url as application/json. Any non-2xx
// response is reported as rejected.
func (c *Client) Post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failure.Wrap(failure.ErrTransport, "build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return failure.Wrap(failure.ErrTransport, "post webhook", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return failure.Wrap(failure.ErrRejected, "post webhook",
			fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
