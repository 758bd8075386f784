package domain

import "time"

// ViewStatus is the state of a single operation as shown to the user.
type ViewStatus string

const (
	StatusLoading ViewStatus = "loading"
	StatusSuccess ViewStatus = "success"
	StatusError   ViewStatus = "error"
)

// TokenPayload is the result of a token exchange. It is displayed, never stored.
// LocationID and CompanyID are empty when the backend omits them.
type TokenPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
	LocationID   string `json:"locationId,omitempty"`
	CompanyID    string `json:"companyId,omitempty"`
}

// ExchangeRequest is what the callback forwards to the backend.
type ExchangeRequest struct {
	Code        string `json:"code"`
	State       string `json:"state"`
	RedirectURI string `json:"redirectUri"`
}

// ConnectionStatus reports whether a brand has a live integration.
type ConnectionStatus struct {
	IsConnected bool
	LocationID  string
}

// User is a user of the connected CRM location.
type User struct {
	Name  string
	Email string
	Phone string
}

// CalendarEvent is a single appointment on the connected location's calendars.
// StartTime and EndTime are zero when the backend sent an unparseable timestamp;
// RawStart and RawEnd keep the original strings for display.
type CalendarEvent struct {
	Title     string
	StartTime time.Time
	EndTime   time.Time
	RawStart  string
	RawEnd    string
	Status    string
}

// DateLayout is the wire format of calendar range bounds.
const DateLayout = "2006-01-02"

// DateRange bounds a calendar query. Both ends are inclusive calendar dates.
type DateRange struct {
	Start string
	End   string
}

// DefaultDateRange is the fixed range the tester queries.
var DefaultDateRange = DateRange{Start: "2024-01-01", End: "2024-12-31"}
