// Package hound talks to the Hound server's REST API for per-dog reminder
// operations. It provides a [Client] whose methods match the sync engine's
// needs, translation between the server's JSON envelopes and
// [reminder.Reminder], and a [Retry] backoff helper wrapping every request.
package hound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/houndapp/houndsync/internal/reminder"
)

// queryTimeLayout formats the lastSynchronization query parameter.
const queryTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// envelope is the server's uniform response wrapper. Successful responses
// carry the requested data under "result"; failures carry "message" and an
// error code.
type envelope struct {
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
	Code    string          `json:"error"`
}

// Client calls the Hound server's reminder endpoints for the dogs of a single
// family. Create one with [NewClient]. Its methods are safe for concurrent
// use.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
	log     *slog.Logger
}

// NewClient builds a [Client] for the server at baseURL authenticating with
// token. A nil logger falls back to [slog.Default].
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: 30 * time.Second},
		log:     logger,
	}
}

// FetchReminders retrieves a dog's reminders. A zero since requests the full
// set; otherwise the server scopes the response to reminders modified at or
// after since, including soft-deleted rows so the caller can observe
// deletions.
func (c *Client) FetchReminders(ctx context.Context, dogID int64, since time.Time) ([]*reminder.Reminder, error) {
	endpoint := fmt.Sprintf("%s/dogs/%d/reminders", c.baseURL, dogID)
	if !since.IsZero() {
		endpoint += "?lastSynchronization=" + url.QueryEscape(since.UTC().Format(queryTimeLayout))
	}

	var payloads []map[string]any
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.do(ctx, http.MethodGet, endpoint, nil, &payloads)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching reminders for dog %d: %w", dogID, err)
	}

	out := make([]*reminder.Reminder, 0, len(payloads))
	for _, p := range payloads {
		r := reminder.FromPayload(p)
		r.DogID = dogID
		out = append(out, r)
	}
	c.log.Debug("fetched reminders", "dogID", dogID, "count", len(out), "incremental", !since.IsZero())
	return out, nil
}

// CreateReminders persists placeholder reminders and returns the server's
// copies carrying the assigned real identifiers, in request order.
func (c *Client) CreateReminders(ctx context.Context, dogID int64, reminders []*reminder.Reminder) ([]*reminder.Reminder, error) {
	if len(reminders) == 0 {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/dogs/%d/reminders", c.baseURL, dogID)

	var payloads []map[string]any
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.do(ctx, http.MethodPost, endpoint, remindersBody(reminders), &payloads)
	})
	if err != nil {
		return nil, fmt.Errorf("creating %d reminders for dog %d: %w", len(reminders), dogID, err)
	}
	if len(payloads) != len(reminders) {
		return nil, fmt.Errorf("creating reminders for dog %d: sent %d, server returned %d", dogID, len(reminders), len(payloads))
	}

	out := make([]*reminder.Reminder, 0, len(payloads))
	for _, p := range payloads {
		r := reminder.FromPayload(p)
		r.DogID = dogID
		out = append(out, r)
	}
	return out, nil
}

// UpdateReminders pushes modified reminders to the server.
func (c *Client) UpdateReminders(ctx context.Context, dogID int64, reminders []*reminder.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}
	endpoint := fmt.Sprintf("%s/dogs/%d/reminders", c.baseURL, dogID)

	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.do(ctx, http.MethodPut, endpoint, remindersBody(reminders), nil)
	})
	if err != nil {
		return fmt.Errorf("updating %d reminders for dog %d: %w", len(reminders), dogID, err)
	}
	return nil
}

// DeleteReminders soft-deletes reminders on the server by identifier.
func (c *Client) DeleteReminders(ctx context.Context, dogID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	endpoint := fmt.Sprintf("%s/dogs/%d/reminders", c.baseURL, dogID)

	type ref struct {
		ReminderID int64 `json:"reminderId"`
	}
	refs := make([]ref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, ref{ReminderID: id})
	}
	body, err := json.Marshal(map[string]any{"reminders": refs})
	if err != nil {
		return fmt.Errorf("encoding delete body: %w", err)
	}

	err = Retry(ctx, defaultMaxAttempts, func() error {
		return c.do(ctx, http.MethodDelete, endpoint, body, nil)
	})
	if err != nil {
		return fmt.Errorf("deleting %d reminders for dog %d: %w", len(ids), dogID, err)
	}
	return nil
}

// Ping checks connectivity and credentials with a cheap request.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/ping", nil, nil); err != nil {
		return fmt.Errorf("pinging server: %w", err)
	}
	return nil
}

// remindersBody wraps reminders in the {"reminders": [...]} request envelope.
func remindersBody(reminders []*reminder.Reminder) []byte {
	payloads := make([]map[string]any, 0, len(reminders))
	for _, r := range reminders {
		payloads = append(payloads, r.ToPayload())
	}
	body, _ := json.Marshal(map[string]any{"reminders": payloads})
	return body
}

// do executes one HTTP request and decodes the envelope's result into out
// (when out is non-nil). Server failures surface as errors built from the
// envelope's message.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("executing %s request: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("server returned 401 Unauthorized, check api_token")
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("server returned unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if env.Message != "" {
			return fmt.Errorf("server error %s (status %d): %s", env.Code, resp.StatusCode, env.Message)
		}
		return fmt.Errorf("server returned unexpected status %d", resp.StatusCode)
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}
