package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	slogctx "github.com/veqryn/slog-context"

	"github.com/waabox/ghlconnect/internal/callback"
	"github.com/waabox/ghlconnect/internal/domain"
)

// ActionResultMsg is sent when an action's backend call completes.
// It is exported so that tests can inject it directly into AppModel.Update.
type ActionResultMsg struct {
	Action  Action
	AuthURL string
	Status  domain.ConnectionStatus
	Users   []domain.User
	Events  []domain.CalendarEvent
	Err     error
}

// CallbackOutcomeMsg carries the final outcome of a redirect handled by the
// embedded callback server.
type CallbackOutcomeMsg struct {
	Outcome callback.Outcome
}

// focusArea indicates which part of the screen receives key presses.
type focusArea int

const (
	focusBrand focusArea = iota
	focusActions
)

// AppModel is the root Bubbletea model for the tester.
type AppModel struct {
	api       domain.IntegrationAPI
	dateRange domain.DateRange
	apiURL    string

	focus   focusArea
	brandID string
	actions ActionListModel

	// loading is shared by all actions, like a single spinner.
	loading bool
	err     string

	// One result slot per action.
	authURL string
	status  *domain.ConnectionStatus
	users   []domain.User
	events  []domain.CalendarEvent

	callback *callback.Outcome

	width  int
	height int
}

// NewAppModel creates the root application model.
// apiURL is only displayed; calls go through api.
func NewAppModel(api domain.IntegrationAPI, dateRange domain.DateRange, apiURL string) AppModel {
	return AppModel{
		api:       api,
		dateRange: dateRange,
		apiURL:    apiURL,
		actions:   NewActionListModel(),
	}
}

// Init implements tea.Model. Nothing runs until the user acts.
func (m AppModel) Init() tea.Cmd {
	return nil
}

// BrandID returns the trimmed brand identifier.
func (m AppModel) BrandID() string {
	return strings.TrimSpace(m.brandID)
}

// Enabled reports whether action a can be started: a brand identifier is required
// and no other action may be in flight.
func (m AppModel) Enabled(a Action) bool {
	return m.BrandID() != "" && !m.loading
}

// Loading reports whether an action is in flight.
func (m AppModel) Loading() bool {
	return m.loading
}

// Err returns the message of the last failed action, or "".
func (m AppModel) Err() string {
	return m.err
}

func (m AppModel) runAction(a Action) tea.Cmd {
	api := m.api
	brandID := m.BrandID()
	dateRange := m.dateRange
	return func() tea.Msg {
		ctx := slogctx.Append(context.Background(), "action", a.Label(), "brandId", brandID)
		slogctx.Info(ctx, "running action")
		result := ActionResultMsg{Action: a}
		switch a {
		case ActionInitiateAuth:
			result.AuthURL, result.Err = api.InitiateAuth(ctx, brandID)
		case ActionCheckStatus:
			result.Status, result.Err = api.Status(ctx, brandID)
		case ActionFetchUsers:
			result.Users, result.Err = api.Users(ctx, brandID)
		case ActionFetchCalendar:
			result.Events, result.Err = api.CalendarEvents(ctx, brandID, dateRange)
		}
		if result.Err != nil {
			slogctx.Error(ctx, "action failed", "error", result.Err)
		}
		return result
	}
}

// start begins action a if it is enabled.
func (m AppModel) start(a Action) (tea.Model, tea.Cmd) {
	if !m.Enabled(a) {
		return m, nil
	}
	m.loading = true
	m.err = ""
	return m, m.runAction(a)
}

// Update handles all incoming messages and key events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case ActionResultMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = domain.MessageOr(msg.Err, msg.Action.fallback())
			return m, nil
		}
		switch msg.Action {
		case ActionInitiateAuth:
			m.authURL = msg.AuthURL
		case ActionCheckStatus:
			status := msg.Status
			m.status = &status
		case ActionFetchUsers:
			m.users = msg.Users
		case ActionFetchCalendar:
			m.events = msg.Events
		}

	case CallbackOutcomeMsg:
		outcome := msg.Outcome
		m.callback = &outcome

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab", "shift+tab":
			if m.focus == focusBrand {
				m.focus = focusActions
			} else {
				m.focus = focusBrand
			}
			return m, nil
		}
		if m.focus == focusBrand {
			return m.updateBrand(msg)
		}
		return m.updateActions(msg)
	}
	return m, nil
}

func (m AppModel) updateBrand(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyRunes:
		m.brandID += string(msg.Runes)
	case tea.KeySpace:
		m.brandID += " "
	case tea.KeyBackspace:
		if r := []rune(m.brandID); len(r) > 0 {
			m.brandID = string(r[:len(r)-1])
		}
	case tea.KeyCtrlU:
		m.brandID = ""
	case tea.KeyEnter, tea.KeyDown:
		m.focus = focusActions
	}
	return m, nil
}

func (m AppModel) updateActions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down", "j":
		m.actions = m.actions.MoveDown()
	case "up", "k":
		m.actions = m.actions.MoveUp()
	case "enter":
		return m.start(m.actions.Selected())
	case "1", "2", "3", "4":
		return m.start(Actions[int(msg.String()[0]-'1')])
	case "esc":
		m.focus = focusBrand
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

// View renders the full TUI.
func (m AppModel) View() string {
	var sb strings.Builder
	sb.WriteString(" " + titleStyle.Render("GHL OAuth Integration Tester") + "  " + mutedStyle.Render(m.apiURL) + "\n")
	sb.WriteString(separator)

	input := m.brandID
	box := inputStyle
	if m.focus == focusBrand {
		input += "█"
		box = focusedInput
	} else if input == "" {
		input = mutedStyle.Render("Enter your brand ID")
	}
	sb.WriteString(" Brand ID\n")
	sb.WriteString(box.Render(input) + "\n")

	if m.err != "" {
		sb.WriteString(" " + errorStyle.Render("Error: "+m.err) + "\n")
	}
	sb.WriteString(separator)

	sb.WriteString(m.actions.View(m.Enabled, m.loading, m.focus == focusActions))
	sb.WriteString(separator)

	sections := []struct {
		action Action
		body   string
	}{
		{ActionInitiateAuth, renderAuthURL(m.authURL)},
		{ActionCheckStatus, renderStatus(m.status)},
		{ActionFetchUsers, renderUsers(m.users)},
		{ActionFetchCalendar, renderEvents(m.events)},
	}
	for _, s := range sections {
		if s.body == "" {
			continue
		}
		sb.WriteString(" " + sectionStyle.Render(s.action.Title()) + "\n")
		sb.WriteString(s.body)
	}
	if cb := renderCallback(m.callback); cb != "" {
		sb.WriteString(" " + sectionStyle.Render("OAuth Callback") + "\n")
		sb.WriteString(cb)
	}

	sb.WriteString(separator)
	if m.focus == focusBrand {
		sb.WriteString(" type: brand ID   enter/tab: actions   ctrl+u: clear   ctrl+c: quit\n")
	} else {
		sb.WriteString(" ↑/↓: navigate   enter/1-4: run   tab/esc: brand ID   q: quit\n")
	}
	return sb.String()
}

// Run starts the Bubbletea program and blocks until the user quits or ctx is done.
// Outcomes received on callbacks are shown in the callback panel.
func Run(ctx context.Context, m AppModel, callbacks <-chan callback.Outcome) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if callbacks != nil {
		go func() {
			for {
				select {
				case o, ok := <-callbacks:
					if !ok {
						return
					}
					p.Send(CallbackOutcomeMsg{Outcome: o})
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running tester: %w", err)
	}
	return nil
}
