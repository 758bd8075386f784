package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/waabox/ghlconnect/internal/backend"
	"github.com/waabox/ghlconnect/internal/domain"
)

func TestInitiateAuth_PostsBrandIDAndReturnsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ghl/initiate-auth" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("expected X-Request-Id header")
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body["brandId"] != "brand-1" {
			t.Errorf("brandId: want 'brand-1', got '%s'", body["brandId"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"authorizationUrl": "https://marketplace.example.com/oauth/chooselocation?x=1"},
		})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL+"/api", 0)
	got, err := client.InitiateAuth(context.Background(), "brand-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://marketplace.example.com/oauth/chooselocation?x=1" {
		t.Errorf("authorization URL: got '%s'", got)
	}
}

func TestStatus_SendsBrandIDQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ghl/status" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("brandId") != "brand 2" {
			t.Errorf("brandId query: got '%s'", r.URL.Query().Get("brandId"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"isConnected": true, "locationId": "loc_9"},
		})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL+"/api", 0)
	got, err := client.Status(context.Background(), "brand 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.ConnectionStatus{IsConnected: true, LocationID: "loc_9"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestUsers_MapsOptionalPhone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"users": []map[string]interface{}{
					{"name": "Ada", "email": "ada@example.com", "phone": "+15550100"},
					{"name": "Bob", "email": "bob@example.com"},
				},
			},
		})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, 0)
	got, err := client.Users(context.Background(), "brand-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.User{
		{Name: "Ada", Email: "ada@example.com", Phone: "+15550100"},
		{Name: "Bob", Email: "bob@example.com"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
}

func TestCalendarEvents_SendsRangeAndParsesTimes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("brandId") != "brand-1" || q.Get("startDate") != "2024-01-01" || q.Get("endDate") != "2024-12-31" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"events": []map[string]interface{}{
					{"title": "Demo", "startTime": "2024-03-01T10:00:00Z", "endTime": "2024-03-01T10:30:00Z", "status": "confirmed"},
					{"title": "Odd", "startTime": "tomorrow", "endTime": "", "status": "new"},
				},
			},
		})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, 0)
	got, err := client.CalendarEvents(context.Background(), "brand-1", domain.DefaultDateRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	wantStart := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !got[0].StartTime.Equal(wantStart) {
		t.Errorf("start time: want %s, got %s", wantStart, got[0].StartTime)
	}
	if got[0].Status != "confirmed" {
		t.Errorf("status: want 'confirmed', got '%s'", got[0].Status)
	}
	if !got[1].StartTime.IsZero() {
		t.Errorf("expected zero start time for unparseable value, got %s", got[1].StartTime)
	}
	if got[1].RawStart != "tomorrow" {
		t.Errorf("raw start: want 'tomorrow', got '%s'", got[1].RawStart)
	}
}

func TestExchangeToken_PostsCodeStateAndRedirectURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ghl/exchange-token" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type: got '%s'", r.Header.Get("Content-Type"))
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		want := map[string]string{"code": "abc123", "state": "xyz", "redirectUri": "http://localhost:3000/oauth/callback"}
		if diff := cmp.Diff(want, body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"accessToken": "A", "refreshToken": "B", "expiresIn": 3600, "tokenType": "Bearer",
			},
		})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL+"/api", 0)
	got, err := client.ExchangeToken(context.Background(), domain.ExchangeRequest{
		Code: "abc123", State: "xyz", RedirectURI: "http://localhost:3000/oauth/callback",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.TokenPayload{AccessToken: "A", RefreshToken: "B", ExpiresIn: 3600, TokenType: "Bearer"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorResponse_CarriesStructuredMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "Brand not found"})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, 0)
	_, err := client.Status(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status: want 400, got %d", apiErr.StatusCode)
	}
	if got := domain.MessageOr(err, "fallback"); got != "Brand not found" {
		t.Errorf("message: want 'Brand not found', got '%s'", got)
	}
}

func TestErrorResponse_WithoutMessageUsesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, 0)
	_, err := client.Users(context.Background(), "brand-1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := domain.MessageOr(err, "Failed to fetch users"); got != "Failed to fetch users" {
		t.Errorf("message: want fallback, got '%s'", got)
	}
}

func TestUnauthorized_MatchesErrUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, 0)
	_, err := client.InitiateAuth(context.Background(), "brand-1")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCancelledContext_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{}})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	client := backend.NewClient(server.URL, 0)
	_, err := client.Status(ctx, "brand-1")
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
	if got := domain.MessageOr(err, "Failed to check status"); got != "Failed to check status" {
		t.Errorf("transport failures must not carry a structured message, got '%s'", got)
	}
}
