package tui

import (
	"fmt"
	"strings"
)

// Action identifies one of the tester's backend operations.
type Action int

const (
	ActionInitiateAuth Action = iota
	ActionCheckStatus
	ActionFetchUsers
	ActionFetchCalendar
)

// Actions lists every action in display order.
var Actions = []Action{ActionInitiateAuth, ActionCheckStatus, ActionFetchUsers, ActionFetchCalendar}

// Title is the section heading. The step numbering is advisory: actions can run in any order.
func (a Action) Title() string {
	switch a {
	case ActionInitiateAuth:
		return "Step 1: Initiate OAuth"
	case ActionCheckStatus:
		return "Step 2: Check OAuth Status"
	case ActionFetchUsers:
		return "Step 3: Fetch Users"
	case ActionFetchCalendar:
		return "Step 4: Fetch Calendar Events"
	default:
		return "Unknown"
	}
}

// Label is the button text.
func (a Action) Label() string {
	switch a {
	case ActionInitiateAuth:
		return "Generate Auth URL"
	case ActionCheckStatus:
		return "Check Status"
	case ActionFetchUsers:
		return "Fetch Users"
	case ActionFetchCalendar:
		return "Fetch Calendar"
	default:
		return "Unknown"
	}
}

// fallback is shown when a failure carries no backend message.
func (a Action) fallback() string {
	switch a {
	case ActionInitiateAuth:
		return "Failed to initiate auth"
	case ActionCheckStatus:
		return "Failed to check status"
	case ActionFetchUsers:
		return "Failed to fetch users"
	case ActionFetchCalendar:
		return "Failed to fetch calendar"
	default:
		return "Request failed"
	}
}

// ActionListModel is an immutable Bubbletea-compatible model for the action buttons.
type ActionListModel struct {
	cursor int
}

// NewActionListModel creates an action list with the first action selected.
func NewActionListModel() ActionListModel {
	return ActionListModel{}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m ActionListModel) MoveDown() ActionListModel {
	if m.cursor < len(Actions)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m ActionListModel) MoveUp() ActionListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Selected returns the highlighted action.
func (m ActionListModel) Selected() Action {
	return Actions[m.cursor]
}

// View renders the buttons. Disabled buttons are dimmed; while loading every
// button reads "Loading...".
func (m ActionListModel) View(enabled func(Action) bool, loading, focused bool) string {
	var sb strings.Builder
	for i, a := range Actions {
		prefix := "  "
		if focused && i == m.cursor {
			prefix = "> "
		}
		label := a.Label()
		if loading {
			label = "Loading..."
		}
		button := fmt.Sprintf("[%d] %s", i+1, label)
		if enabled(a) {
			button = buttonStyle.Render(button)
		} else {
			button = disabledStyle.Render(button)
		}
		sb.WriteString(prefix + button + "\n")
	}
	return sb.String()
}
