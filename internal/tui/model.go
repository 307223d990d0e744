// Package tui renders the monitor dashboard in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nwchenyw/tw-live-frontend/internal/dashboard"
	"github.com/nwchenyw/tw-live-frontend/internal/models"
)

const (
	toastTTL     = 5 * time.Second
	tickInterval = time.Second
)

var (
	intervalSteps = []int{0, 10, 30, 60}
	pageSizeSteps = []int{5, 10, 20, 50}
)

// Controller is the slice of *dashboard.Controller the UI drives.
type Controller interface {
	Start(ctx context.Context) error
	TriggerRefresh(ctx context.Context) bool
	AddMonitor(ctx context.Context, idOrURL, name string) (models.VideoItem, error)
	DeleteMonitor(ctx context.Context, rowID string) error
	Snapshot() dashboard.Snapshot
	View() dashboard.Page
	Config() dashboard.ViewConfig
	SetInterval(secs int)
	SetFilter(f dashboard.Filter)
	SetPageSize(n int)
	NextPage()
	PrevPage()
}

// Session is what the sign-out key needs.
type Session interface {
	IsAuthenticated() bool
	SignOut()
}

// Messages
type (
	tickMsg         time.Time
	updatedMsg      struct{}
	notificationMsg dashboard.Notification
	startedMsg      struct{ err error }
	refreshMsg      struct{ started bool }
	actionMsg       struct{ err error }
)

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	session Session
	updates <-chan struct{}
	notes   <-chan dashboard.Notification
	baseURL string
	now     func() time.Time

	width    int
	selected int
	adding   bool
	input    []rune
	busy     bool
	toast    *dashboard.Notification
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithUpdates wakes the model whenever the snapshot changes. Pair it with
// Forward as a controller listener.
func WithUpdates(ch <-chan struct{}) Option {
	return func(m *Model) { m.updates = ch }
}

// WithNotifications feeds toasts, typically from a *dashboard.Queue.
func WithNotifications(ch <-chan dashboard.Notification) Option {
	return func(m *Model) { m.notes = ch }
}

// WithBaseURL shows the backend address in the header.
func WithBaseURL(u string) Option {
	return func(m *Model) { m.baseURL = u }
}

func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

func New(ctx context.Context, ctrl Controller, session Session, opts ...Option) *Model {
	m := &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		session: session,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Forward returns a snapshot listener that wakes a model built with
// WithUpdates(ch). It never blocks; ch should have capacity 1.
func Forward(ch chan<- struct{}) func(dashboard.Snapshot) {
	return func(dashboard.Snapshot) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.start(),
		tickEvery(tickInterval),
		waitFor(m.updates, func() tea.Msg { return updatedMsg{} }),
		m.waitForNotification(),
	)
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.adding {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)

	case tickMsg:
		if m.toast != nil && m.now().Sub(m.toast.At) > toastTTL {
			m.toast = nil
		}
		return m, tickEvery(tickInterval)

	case updatedMsg:
		m.clampSelection()
		return m, waitFor(m.updates, func() tea.Msg { return updatedMsg{} })

	case notificationMsg:
		n := dashboard.Notification(msg)
		m.toast = &n
		return m, m.waitForNotification()

	case startedMsg:
		if msg.err != nil {
			m.showError(msg.err.Error())
		}
		return m, nil

	case refreshMsg:
		m.busy = false
		if !msg.started {
			m.showInfo("更新進行中")
		}
		m.clampSelection()
		return m, nil

	case actionMsg:
		m.busy = false
		m.clampSelection()
		return m, nil
	}

	return m, nil
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "L":
		if m.session != nil && m.session.IsAuthenticated() {
			m.session.SignOut()
			m.showInfo("已登出，自動更新已停止")
		}
		return m, nil
	}

	if !m.signedIn() {
		return m, nil
	}

	switch msg.String() {
	case "r":
		m.busy = true
		return m, m.refresh()

	case "f":
		m.ctrl.SetFilter(m.ctrl.Config().Filter.Next())
		m.selected = 0

	case "+", "=":
		m.ctrl.SetPageSize(nextStep(pageSizeSteps, m.ctrl.Config().PageSize, 1))
		m.selected = 0

	case "-", "_":
		m.ctrl.SetPageSize(nextStep(pageSizeSteps, m.ctrl.Config().PageSize, -1))
		m.selected = 0

	case "right", "l":
		m.ctrl.NextPage()
		m.selected = 0

	case "left", "h":
		m.ctrl.PrevPage()
		m.selected = 0

	case "down", "j":
		m.selected++
		m.clampSelection()

	case "up", "k":
		m.selected--
		m.clampSelection()

	case "i":
		m.ctrl.SetInterval(cycleStep(intervalSteps, m.ctrl.Config().IntervalSeconds))

	case "a":
		m.adding = true
		m.input = m.input[:0]

	case "d":
		rows := m.ctrl.View().Rows
		if m.selected < len(rows) {
			m.busy = true
			return m, m.delete(rows[m.selected].ID.String())
		}
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEsc:
		m.adding = false
		m.input = m.input[:0]

	case tea.KeyEnter:
		idOrURL, name := splitInput(string(m.input))
		m.adding = false
		m.input = m.input[:0]
		if idOrURL == "" {
			return m, nil
		}
		m.busy = true
		return m, m.add(idOrURL, name)

	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}

	case tea.KeySpace:
		m.input = append(m.input, ' ')

	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return "Shutting down dashboard...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTable())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	snap := m.ctrl.Snapshot()
	cfg := m.ctrl.Config()

	badge := DisconnectedStyle.Render("● 未連線")
	if snap.Connected {
		badge = ConnectedStyle.Render("● 已連線")
	}
	if !m.signedIn() {
		badge = WarningStyle.Render("● 已登出")
	}

	last := "—"
	if !snap.LastUpdate.IsZero() {
		last = humanize.RelTime(snap.LastUpdate, m.now(), "ago", "from now")
	}

	interval := "關閉"
	if cfg.IntervalSeconds > 0 {
		interval = fmt.Sprintf("%ds", cfg.IntervalSeconds)
	}

	title := HeaderStyle.Render("YouTube 直播監控")
	if m.baseURL != "" {
		title += " " + MutedStyle.Render(m.baseURL)
	}

	stats := fmt.Sprintf("%s  監控 %s  快取 %s  最後更新 %s  自動更新 %s",
		badge,
		humanize.Comma(int64(snap.WatchingCount)),
		humanize.Comma(int64(snap.CachedCount)),
		last,
		interval,
	)
	if m.busy {
		stats += "  " + InfoStyle.Render("更新中…")
	}
	return title + "\n" + stats
}

var columns = []struct {
	title string
	width int
}{
	{"狀態", 10},
	{"影片 ID", 13},
	{"名稱", 20},
	{"說明", 18},
	{"最後檢測", 20},
}

func cellStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().Width(width).MaxWidth(width)
}

func (m *Model) renderTable() string {
	page := m.ctrl.View()
	cfg := m.ctrl.Config()

	var lines []string
	var head []string
	for _, c := range columns {
		head = append(head, ColumnHeaderStyle.Width(c.width).MaxWidth(c.width).Render(c.title))
	}
	lines = append(lines, strings.Join(head, " "))

	if len(page.Rows) == 0 {
		lines = append(lines, MutedStyle.Render("沒有符合條件的影片"))
	}
	for i, row := range page.Rows {
		name := row.DisplayName
		if name == "" {
			name = "-"
		}
		cells := []string{
			statusStyle(row.Status).Width(columns[0].width).MaxWidth(columns[0].width).Render(statusIcon(row.Status)),
			cellStyle(columns[1].width).Render(row.VideoID),
			cellStyle(columns[2].width).Render(name),
			cellStyle(columns[3].width).Render(row.DetailLabel),
			cellStyle(columns[4].width).Render(row.LastCheckedLabel),
		}
		line := strings.Join(cells, " ")
		if i == m.selected {
			line = SelectedStyle.Render(line)
		}
		lines = append(lines, line)
	}

	pages := page.TotalPages
	if pages == 0 {
		pages = 1
	}
	lines = append(lines, MutedStyle.Render(fmt.Sprintf("篩選 %s  第 %d/%d 頁  每頁 %d  共 %d 筆",
		cfg.Filter, page.PageIndex, pages, page.PageSize, page.TotalFiltered)))

	style := PanelStyle
	if m.width > 4 {
		style = style.Width(m.width - 2)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	var lines []string
	if m.adding {
		lines = append(lines, InputStyle.Render("新增 (id 或網址 [名稱]): "+string(m.input)+"█"))
	}
	if m.toast != nil {
		style := InfoStyle
		if m.toast.Level == dashboard.LevelError {
			style = ErrorStyle
		}
		lines = append(lines, style.Render(m.toast.Message))
	}
	lines = append(lines, MutedStyle.Render(
		"r 更新 · f 篩選 · +/- 每頁 · ←/→ 換頁 · ↑/↓ 選取 · i 間隔 · a 新增 · d 刪除 · L 登出 · q 離開"))
	return strings.Join(lines, "\n")
}

func (m *Model) signedIn() bool {
	return m.session == nil || m.session.IsAuthenticated()
}

func (m *Model) clampSelection() {
	n := len(m.ctrl.View().Rows)
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) showInfo(msg string) {
	m.toast = &dashboard.Notification{Level: dashboard.LevelInfo, Message: msg, At: m.now()}
}

func (m *Model) showError(msg string) {
	m.toast = &dashboard.Notification{Level: dashboard.LevelError, Message: msg, At: m.now()}
}

func (m *Model) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.ctrl.Start(m.ctx)}
	}
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshMsg{started: m.ctrl.TriggerRefresh(m.ctx)}
	}
}

func (m *Model) add(idOrURL, name string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.ctrl.AddMonitor(m.ctx, idOrURL, name)
		return actionMsg{err: err}
	}
}

func (m *Model) delete(rowID string) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{err: m.ctrl.DeleteMonitor(m.ctx, rowID)}
	}
}

func (m *Model) waitForNotification() tea.Cmd {
	if m.notes == nil {
		return nil
	}
	ch := m.notes
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

func waitFor(ch <-chan struct{}, msg func() tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg()
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// splitInput splits "id-or-url [name...]" at the first run of spaces.
func splitInput(s string) (idOrURL, name string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// nextStep moves to the neighbouring step in dir, snapping values that are
// not on the list to the nearest step in that direction.
func nextStep(steps []int, cur, dir int) int {
	if dir > 0 {
		for _, s := range steps {
			if s > cur {
				return s
			}
		}
		return steps[len(steps)-1]
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i] < cur {
			return steps[i]
		}
	}
	return steps[0]
}

// cycleStep returns the step after cur, wrapping around.
func cycleStep(steps []int, cur int) int {
	for i, s := range steps {
		if s == cur {
			return steps[(i+1)%len(steps)]
		}
	}
	return steps[0]
}
