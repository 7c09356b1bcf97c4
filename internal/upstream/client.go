// Package upstream is the HTTP client for the content generation
// service. Responses are event streams consumed with the stream package.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ExploreRequest asks for destination research on one query.
type ExploreRequest struct {
	City  string `json:"city"`
	Query string `json:"query"`
}

// TripRequest asks for a full itinerary.
type TripRequest struct {
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Interests   string `json:"interests,omitempty"`
	TravelStyle string `json:"travelStyle,omitempty"`
}

// Client talks to the upstream content service. The zero timeout is
// deliberate: streams run until the sentinel arrives, and cancellation
// comes from the request context.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Explore opens a content stream for a destination query. The caller
// owns the returned body and must close it.
func (c *Client) Explore(ctx context.Context, req ExploreRequest) (io.ReadCloser, error) {
	if req.City == "" || req.Query == "" {
		return nil, fmt.Errorf("upstream: city and query are required")
	}
	return c.stream(ctx, "/api/travel/explore", req)
}

// GenerateTrip opens a content stream for an itinerary request.
func (c *Client) GenerateTrip(ctx context.Context, req TripRequest) (io.ReadCloser, error) {
	if req.Description == "" {
		return nil, fmt.Errorf("upstream: trip description is required")
	}
	if req.Duration <= 0 {
		req.Duration = 5
	}
	return c.stream(ctx, "/api/travel/generate-trip", req)
}

func (c *Client) stream(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upstream: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp.Body, nil
}
