// Package runner defines the flow-runner collaborator: the external engine
// that turns inbound envelopes into outbound messages.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/greentic/messaging/pkg/message"
)

// Client invokes the flow runner with an inbound envelope and returns the
// outbound messages it produced.
type Client interface {
	Invoke(ctx context.Context, env *message.MessageEnvelope) ([]message.OutMessage, error)
}

// HTTPClient invokes a remote runner over HTTP. The runner answers with a
// JSON array of out messages.
type HTTPClient struct {
	http    *http.Client
	baseURL string
}

// NewHTTPClient creates a runner client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

// Invoke POSTs the envelope to {base}/invoke.
func (c *HTTPClient) Invoke(ctx context.Context, env *message.MessageEnvelope) ([]message.OutMessage, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runner returned status %d", res.StatusCode)
	}

	var out []message.OutMessage
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding runner response: %w", err)
	}
	return out, nil
}
