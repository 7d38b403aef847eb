package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when the daemon does not know the scheduler.
	ErrNotFound = errors.New("scheduler not found")
	// ErrNoLeader is returned for writes while no daemon holds the lease.
	ErrNoLeader = errors.New("no leader elected")
)

// StatusError carries a non-2xx response that has no dedicated error.
type StatusError struct {
	Code    int
	Message string
	Reason  string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unexpected status %d: %s (%s)", e.Code, e.Message, e.Reason)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Client is the spawnlord SDK client.
type Client struct {
	endpoint   string
	http       *http.Client
	backoff    BackoffStrategy
	maxRetries int
}

// NewClient creates a new client. endpoint defaults to
// "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff:    DefaultBackoff(),
		maxRetries: 3,
	}
}

// SetRetry configures how reads are retried. maxRetries of 0 disables retries.
func (c *Client) SetRetry(b BackoffStrategy, maxRetries int) {
	if b != nil {
		c.backoff = b
	}
	if maxRetries >= 0 {
		c.maxRetries = maxRetries
	}
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Health, error) {
	var h Health
	err := c.get(ctx, "/v1/health", &h)
	return h, err
}

// ListSchedulers returns every registered scheduler, sorted by id.
func (c *Client) ListSchedulers(ctx context.Context) ([]Scheduler, error) {
	var out []Scheduler
	if err := c.get(ctx, "/v1/schedulers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetScheduler(ctx context.Context, id string) (Scheduler, error) {
	var out Scheduler
	err := c.get(ctx, "/v1/schedulers/"+url.PathEscape(id), &out)
	return out, err
}

// SetSpawning opens or closes a scheduler's spawn gate. Followers redirect
// writes to the leader; the redirect is followed transparently.
func (c *Client) SetSpawning(ctx context.Context, id string, enabled bool, reason string) error {
	action := "disable"
	if enabled {
		action = "enable"
	}
	_, err := c.post(ctx, "/v1/schedulers/"+url.PathEscape(id)+"/"+action, spawningRequest{Reason: reason})
	return err
}

// Toggle flips the spawn gate and returns the new state.
func (c *Client) Toggle(ctx context.Context, id string) (bool, error) {
	resp, err := c.post(ctx, "/v1/schedulers/"+url.PathEscape(id)+"/toggle", nil)
	if err != nil {
		return false, err
	}
	return resp.SpawningEnabled, nil
}

// GetEvents fetches recent events, newest first.
func (c *Client) GetEvents(ctx context.Context, opts EventsOptions) ([]Event, error) {
	q := url.Values{}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q.Set("limit", strconv.Itoa(limit))
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if opts.SchedulerID != "" {
		q.Set("scheduler_id", opts.SchedulerID)
	}

	var events []Event
	if err := c.get(ctx, "/v1/events?"+q.Encode(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// get decodes a GET response into out, retrying network errors and 5xx
// responses with backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Next(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		err = decode(resp, out)
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 500 {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

// post is not retried: gate writes are not idempotent for toggle.
func (c *Client) post(ctx context.Context, path string, body any) (spawningResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return spawningResponse{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, reader)
	if err != nil {
		return spawningResponse{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return spawningResponse{}, err
	}
	var out spawningResponse
	err = decode(resp, &out)
	return out, err
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	var er errorResponse
	json.NewDecoder(resp.Body).Decode(&er)
	switch {
	case resp.StatusCode == http.StatusNotFound && er.Error == "scheduler_not_found":
		return ErrNotFound
	case resp.StatusCode == http.StatusServiceUnavailable && er.Reason == "no_leader_elected":
		return ErrNoLeader
	}
	return &StatusError{Code: resp.StatusCode, Message: er.Error, Reason: er.Reason}
}
