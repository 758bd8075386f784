package domain

import "context"

// IntegrationAPI is the port interface for the backend that brokers the CRM integration.
// The tester and the callback handler depend on it, never on the HTTP client directly.
type IntegrationAPI interface {
	InitiateAuth(ctx context.Context, brandID string) (string, error)
	Status(ctx context.Context, brandID string) (ConnectionStatus, error)
	Users(ctx context.Context, brandID string) ([]User, error)
	CalendarEvents(ctx context.Context, brandID string, r DateRange) ([]CalendarEvent, error)
	TokenExchanger
}

// TokenExchanger redeems an authorization code for a token payload.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, req ExchangeRequest) (TokenPayload, error)
}
