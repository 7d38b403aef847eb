package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/spawnlord/pkg/client"
)

const (
	pollRate       = time.Second
	maxEvents      = 20
	viewportHeight = 12
	requestTimeout = 2 * time.Second
)

var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	eventTimeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	eventTypeStyle  = lipgloss.NewStyle().Width(20).Bold(true)
	eventSchedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	spawnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// API is the part of the client the dashboard uses.
type API interface {
	ListSchedulers(ctx context.Context) ([]client.Scheduler, error)
	GetEvents(ctx context.Context, opts client.EventsOptions) ([]client.Event, error)
	SetSpawning(ctx context.Context, id string, enabled bool, reason string) error
	Toggle(ctx context.Context, id string) (bool, error)
}

type tickMsg time.Time

type dataMsg struct {
	schedulers []client.Scheduler
	events     []client.Event
	err        error
}

type actionMsg struct {
	id     string
	action string
	err    error
}

type model struct {
	api        API
	spinner    spinner.Model
	table      table.Model
	viewport   viewport.Model
	schedulers []client.Scheduler
	events     []client.Event
	status     string
	err        error
	ready      bool
}

var schedulerColumns = []table.Column{
	{Title: "Scheduler", Width: 14},
	{Title: "Gate", Width: 6},
	{Title: "Elapsed", Width: 9},
	{Title: "Bounds", Width: 15},
	{Title: "Next", Width: 7},
	{Title: "Milestones", Width: 10},
	{Title: "Tiers (in use/size)", Width: 30},
}

func initialModel(api API) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	t := table.New(
		table.WithColumns(schedulerColumns),
		table.WithFocused(true),
		table.WithHeight(6),
	)

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{
		api:      api,
		spinner:  s,
		table:    t,
		viewport: vp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "e", "d", "t":
			if id := m.selectedID(); id != "" {
				return m, runAction(m.api, id, msg.String())
			}
			return m, nil
		case "pgup", "pgdown":
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), tick())

	case dataMsg:
		m.ready = true
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.err = nil
		m.schedulers = msg.schedulers
		m.events = msg.events
		m.table.SetRows(schedulerRows(m.schedulers))
		m.viewport.SetContent(renderEvents(m.events))

	case actionMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("%s %s failed: %v", msg.action, msg.id, msg.err))
		} else {
			m.status = okStyle.Render(fmt.Sprintf("%s %s", msg.action, msg.id))
		}
		cmds = append(cmds, fetchData(m.api))

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

func (m model) selectedID() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

func schedulerRows(schedulers []client.Scheduler) []table.Row {
	rows := make([]table.Row, 0, len(schedulers))
	for _, s := range schedulers {
		gate := "open"
		if !s.State.SpawningEnabled {
			gate = "closed"
		}
		if s.BindErr != "" {
			gate = "inert"
		}
		fired := 0
		for _, ms := range s.State.Milestones {
			if ms.Fired {
				fired++
			}
		}
		milestones := fmt.Sprintf("%d/%d", fired, len(s.State.Milestones))
		if s.State.Frozen {
			milestones += " *"
		}
		tiers := make([]string, 0, len(s.Tiers))
		for _, t := range s.Tiers {
			if !t.Enabled {
				continue
			}
			tiers = append(tiers, fmt.Sprintf("%s %d/%d", t.Name, t.InUse, t.Size))
		}
		rows = append(rows, table.Row{
			s.ID,
			gate,
			fmt.Sprintf("%.1fs", s.State.Elapsed.Seconds()),
			fmt.Sprintf("%.2f-%.2fs", s.State.Bounds.Min.Seconds(), s.State.Bounds.Max.Seconds()),
			fmt.Sprintf("%.2fs", s.State.NextInterval.Seconds()),
			milestones,
			strings.Join(tiers, ", "),
		})
	}
	return rows
}

func renderEvents(events []client.Event) string {
	var sb strings.Builder
	for _, e := range events {
		var typeStr string
		switch e.EventType {
		case "pool_exhausted", "scheduler_inert":
			typeStr = warnStyle.Render(e.EventType)
		case "spawn_batch", "milestone_fired":
			typeStr = spawnStyle.Render(e.EventType)
		default:
			typeStr = infoStyle.Render(e.EventType)
		}
		tier := ""
		if e.Dimensions.Tier != "" {
			tier = " " + e.Dimensions.Tier
		}
		fmt.Fprintf(&sb, "%s %s %s%s\n",
			eventTimeStyle.Render(e.TsEvent.Local().Format("15:04:05")),
			eventTypeStyle.Render(typeStr),
			eventSchedStyle.Render(e.Dimensions.SchedulerID),
			tier,
		)
	}
	return sb.String()
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting...", m.spinner.View())
	}

	var top string
	if len(m.schedulers) == 0 {
		top = paneStyle.Render(subtleStyle.Render("No schedulers registered."))
	} else {
		top = paneStyle.Render(m.table.View())
	}

	header := headerStyle.Render(fmt.Sprintf("%s Spawn Events", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Schedulers • %d Events", len(m.schedulers), len(m.events)))
	}
	if m.status != "" {
		status += "  " + m.status
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\ne enable • d disable • t toggle • q quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, top, header, m.viewport.View(), footer)
}

func fetchData(api API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		schedulers, err := api.ListSchedulers(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		events, err := api.GetEvents(ctx, client.EventsOptions{Limit: maxEvents})
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{schedulers: schedulers, events: events}
	}
}

func runAction(api API, id, key string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		switch key {
		case "e":
			return actionMsg{id: id, action: "enable", err: api.SetSpawning(ctx, id, true, "tui")}
		case "d":
			return actionMsg{id: id, action: "disable", err: api.SetSpawning(ctx, id, false, "tui")}
		default:
			_, err := api.Toggle(ctx, id)
			return actionMsg{id: id, action: "toggle", err: err}
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
