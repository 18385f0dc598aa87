// Package oauth defines the OAuth broker collaborator: the external service
// that mints authorization start URLs for OAuth cards.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StartRequest asks the broker to begin an authorization flow.
type StartRequest struct {
	Tenant   string   `json:"tenant"`
	Provider string   `json:"provider"`
	Scopes   []string `json:"scopes"`
	Resource string   `json:"resource,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
}

// StartResponse carries the minted start URL.
type StartResponse struct {
	URL            string `json:"url"`
	ConnectionName string `json:"connection_name,omitempty"`
}

// Broker is the consumed collaborator interface.
type Broker interface {
	Start(ctx context.Context, req StartRequest) (*StartResponse, error)
}

// HTTPBroker talks to a remote broker over HTTP.
type HTTPBroker struct {
	http    *http.Client
	baseURL string
}

// NewHTTPBroker creates a broker client for the given base URL.
func NewHTTPBroker(baseURL string) *HTTPBroker {
	return &HTTPBroker{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

// Start POSTs the request to {base}/oauth/start and decodes the response.
func (b *HTTPBroker) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding start request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/oauth/start", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := b.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oauth broker: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth broker returned status %d", res.StatusCode)
	}

	var out StartResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding start response: %w", err)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("oauth broker returned empty start url")
	}
	return &out, nil
}
