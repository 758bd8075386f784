// Package backend is the HTTP client for the integration backend's /ghl endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"

	"github.com/waabox/ghlconnect/internal/domain"
)

const defaultTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response is read while looking for a message.
const maxErrorBody = 64 << 10

// Client implements domain.IntegrationAPI over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// Ensure Client implements IntegrationAPI.
var _ domain.IntegrationAPI = (*Client)(nil)

// NewClient creates a backend client.
// baseURL includes the API prefix (e.g. https://backend.example.com/api).
// A zero timeout falls back to 15 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// InitiateAuth asks the backend for the provider authorization URL for brandID.
func (c *Client) InitiateAuth(ctx context.Context, brandID string) (string, error) {
	var data struct {
		AuthorizationURL string `json:"authorizationUrl"`
	}
	body := map[string]string{"brandId": brandID}
	if err := c.do(ctx, http.MethodPost, "/ghl/initiate-auth", nil, body, &data); err != nil {
		return "", fmt.Errorf("initiating auth: %w", err)
	}
	return data.AuthorizationURL, nil
}

// Status reports whether brandID has a live connection.
func (c *Client) Status(ctx context.Context, brandID string) (domain.ConnectionStatus, error) {
	var data struct {
		IsConnected bool   `json:"isConnected"`
		LocationID  string `json:"locationId"`
	}
	q := url.Values{"brandId": {brandID}}
	if err := c.do(ctx, http.MethodGet, "/ghl/status", q, nil, &data); err != nil {
		return domain.ConnectionStatus{}, fmt.Errorf("checking status: %w", err)
	}
	return domain.ConnectionStatus{IsConnected: data.IsConnected, LocationID: data.LocationID}, nil
}

// Users lists the users of the location connected to brandID.
func (c *Client) Users(ctx context.Context, brandID string) ([]domain.User, error) {
	var data struct {
		Users []user `json:"users"`
	}
	q := url.Values{"brandId": {brandID}}
	if err := c.do(ctx, http.MethodGet, "/ghl/users", q, nil, &data); err != nil {
		return nil, fmt.Errorf("fetching users: %w", err)
	}
	users := make([]domain.User, len(data.Users))
	for i, u := range data.Users {
		users[i] = u.toUser()
	}
	return users, nil
}

// CalendarEvents lists calendar events for brandID within r.
func (c *Client) CalendarEvents(ctx context.Context, brandID string, r domain.DateRange) ([]domain.CalendarEvent, error) {
	var data struct {
		Events []calendarEvent `json:"events"`
	}
	q := url.Values{
		"brandId":   {brandID},
		"startDate": {r.Start},
		"endDate":   {r.End},
	}
	if err := c.do(ctx, http.MethodGet, "/ghl/calendar", q, nil, &data); err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	events := make([]domain.CalendarEvent, len(data.Events))
	for i, e := range data.Events {
		events[i] = e.toEvent()
	}
	return events, nil
}

// ExchangeToken redeems an authorization code for a token payload.
func (c *Client) ExchangeToken(ctx context.Context, req domain.ExchangeRequest) (domain.TokenPayload, error) {
	var data domain.TokenPayload
	if err := c.do(ctx, http.MethodPost, "/ghl/exchange-token", nil, req, &data); err != nil {
		return domain.TokenPayload{}, fmt.Errorf("exchanging token: %w", err)
	}
	return data, nil
}

// do issues one request and decodes the "data" member of the response envelope into target.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, target any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("building URL: %w", err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ctx = slogctx.Append(ctx, "requestId", requestID, "method", method, "path", path)
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		slogctx.Warn(ctx, "backend request failed", "error", err)
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()
	slogctx.Debug(ctx, "backend responded", "status", resp.StatusCode, slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		apiErr := &domain.APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp.Body)}
		slogctx.Warn(ctx, "backend returned an error", "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: target}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeErrorMessage extracts the structured "message" field from an error body.
// Returns "" when the body is not JSON or carries no message.
func decodeErrorMessage(r io.Reader) string {
	var raw struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&raw); err != nil {
		return ""
	}
	return raw.Message
}

// user is the raw backend response shape for a user.
type user struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (u user) toUser() domain.User {
	return domain.User{Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// calendarEvent is the raw backend response shape for a calendar event.
type calendarEvent struct {
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Status    string `json:"status"`
}

func (e calendarEvent) toEvent() domain.CalendarEvent {
	start, _ := time.Parse(time.RFC3339, e.StartTime)
	end, _ := time.Parse(time.RFC3339, e.EndTime)
	return domain.CalendarEvent{
		Title:     e.Title,
		StartTime: start,
		EndTime:   end,
		RawStart:  e.StartTime,
		RawEnd:    e.EndTime,
		Status:    e.Status,
	}
}
