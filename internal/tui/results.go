package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/waabox/ghlconnect/internal/callback"
	"github.com/waabox/ghlconnect/internal/domain"
)

const eventTimeLayout = "2006-01-02 15:04"

func renderAuthURL(authURL string) string {
	if authURL == "" {
		return ""
	}
	return " Open the link below to authorize:\n " + authURL + "\n"
}

func renderStatus(status *domain.ConnectionStatus) string {
	if status == nil {
		return ""
	}
	connected := errorStyle.Render("✗ No")
	if status.IsConnected {
		connected = successStyle.Render("✓ Yes")
	}
	out := fmt.Sprintf(" Connected: %s\n", connected)
	if status.LocationID != "" {
		out += fmt.Sprintf(" Location ID: %s\n", status.LocationID)
	}
	return out
}

func renderUsers(users []domain.User) string {
	if len(users) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(" Users (%d):\n", len(users)))
	for _, u := range users {
		sb.WriteString(fmt.Sprintf("   %s  %s", u.Name, mutedStyle.Render(u.Email)))
		if u.Phone != "" {
			sb.WriteString("  " + mutedStyle.Render(u.Phone))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderEvents(events []domain.CalendarEvent) string {
	if len(events) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(" Events (%d):\n", len(events)))
	for _, e := range events {
		sb.WriteString(fmt.Sprintf("   %s\n", e.Title))
		sb.WriteString(fmt.Sprintf("     %s - %s\n", formatEventTime(e.StartTime, e.RawStart), formatEventTime(e.EndTime, e.RawEnd)))
		sb.WriteString(fmt.Sprintf("     Status: %s\n", e.Status))
	}
	return sb.String()
}

// formatEventTime shows t in local time, or the raw backend value when it did not parse.
func formatEventTime(t time.Time, raw string) string {
	if t.IsZero() {
		if raw == "" {
			return "--"
		}
		return raw
	}
	return t.Local().Format(eventTimeLayout)
}

func renderCallback(o *callback.Outcome) string {
	if o == nil {
		return ""
	}
	var sb strings.Builder
	switch o.Status {
	case domain.StatusSuccess:
		sb.WriteString(" " + successStyle.Render(o.Message) + "\n")
	case domain.StatusError:
		sb.WriteString(" " + errorStyle.Render(o.Message) + "\n")
	default:
		sb.WriteString(" " + o.Message + "\n")
	}
	if o.Detail != "" {
		sb.WriteString(" " + mutedStyle.Render(o.Detail) + "\n")
	}
	if t := o.Tokens; t != nil {
		sb.WriteString(fmt.Sprintf(" Access Token:  %s\n", truncate(t.AccessToken, 48)))
		sb.WriteString(fmt.Sprintf(" Refresh Token: %s\n", truncate(t.RefreshToken, 48)))
		sb.WriteString(fmt.Sprintf(" Expires In:    %ds (%s)\n", t.ExpiresIn, t.TokenType))
		if t.LocationID != "" {
			sb.WriteString(fmt.Sprintf(" Location ID:   %s\n", t.LocationID))
		}
		if t.CompanyID != "" {
			sb.WriteString(fmt.Sprintf(" Company ID:    %s\n", t.CompanyID))
		}
	}
	return sb.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
