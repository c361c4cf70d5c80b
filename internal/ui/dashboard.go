package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"github.com/josephgoksu/taskfleet/internal/reconcile"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// Layout constants
const (
	DefaultRefresh      = 5 * time.Second
	DefaultTailLines    = 15
	DefaultWidth        = 100
	DefaultHeight       = 30
	DetailHeight        = 12
	MinListHeight       = 3
	changeDebounce      = 500 * time.Millisecond
	dashboardChromeRows = 8 // header, bar, counts, rollups, spacer, status, help, slack
)

// DashboardOptions configures the dashboard.
type DashboardOptions struct {
	Title     string
	Refresh   time.Duration
	TailLines int
	// Changes triggers an early refresh. nil relies on the ticker alone.
	Changes <-chan struct{}
	Getenv  func(string) string
}

// Dashboard is the live progress view. It only observes: nothing it does
// reaches a running worker.
type Dashboard struct {
	fs    afero.Fs
	rec   *reconcile.Reconciler
	opts  DashboardOptions
	graph *task.Graph

	keys   keyMap
	help   help.Model
	bar    progress.Model
	detail viewport.Model

	snap   *reconcile.Snapshot
	err    error
	notice string
	cursor int
	offset int
	width  int
	height int

	// detailID is the item the detail pane shows; its scroll survives polls
	detailID string
}

type snapshotMsg struct {
	snap *reconcile.Snapshot
	err  error
}

type tickMsg time.Time

type changedMsg struct{}

type pollNowMsg struct{}

type pagerDoneMsg struct{ err error }

// NewDashboard builds the model. rec must read through fs.
func NewDashboard(fs afero.Fs, rec *reconcile.Reconciler, opts DashboardOptions) Dashboard {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.TailLines <= 0 {
		opts.TailLines = DefaultTailLines
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	return Dashboard{
		fs:     fs,
		rec:    rec,
		opts:   opts,
		graph:  task.NewGraph(rec.Items()),
		keys:   defaultKeyMap(),
		help:   help.New(),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		detail: viewport.New(DefaultWidth-4, DetailHeight),
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// RunDashboard runs the dashboard full screen until the user quits.
func RunDashboard(m Dashboard) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.tick(), m.waitChange())
}

func (m Dashboard) poll() tea.Cmd {
	rec := m.rec
	return func() tea.Msg {
		snap, err := rec.Poll()
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Dashboard) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Dashboard) waitChange() tea.Cmd {
	ch := m.opts.Changes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(10, min(m.width-20, 60))
		m.detail.Width = max(20, m.width-4)
		m.detail.Height = m.detailHeight()
		m.help.Width = m.width
		m.clampCursor()
		m.refreshDetail()
		return m, nil

	case snapshotMsg:
		if msg.snap != nil {
			m.snap = msg.snap
		}
		m.err = msg.err
		m.clampCursor()
		m.refreshDetail()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.poll(), m.tick())

	case changedMsg:
		// coalesce bursts of writes into one poll
		return m, tea.Tick(changeDebounce, func(time.Time) tea.Msg { return pollNowMsg{} })

	case pollNowMsg:
		return m, tea.Batch(m.poll(), m.waitChange())

	case pagerDoneMsg:
		m.notice = ""
		if msg.err != nil {
			m.notice = "pager: " + msg.err.Error()
		}
		return m, m.poll()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, m.keys.DetailUp):
		m.detail.HalfViewUp()
	case key.Matches(msg, m.keys.DetailDown):
		m.detail.HalfViewDown()
	case key.Matches(msg, m.keys.Refresh):
		m.notice = ""
		return m, m.poll()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.detail.Height = m.detailHeight()
	case key.Matches(msg, m.keys.Logs):
		return m.openLog()
	}
	return m, nil
}

func (m Dashboard) openLog() (tea.Model, tea.Cmd) {
	sel, ok := m.selected()
	if !ok {
		return m, nil
	}
	if _, err := m.fs.Stat(sel.LogPath); err != nil {
		m.notice = fmt.Sprintf("no log for %s yet", sel.Item.ID)
		return m, nil
	}
	cmd := PagerCommand(m.opts.Getenv, sel.LogPath)
	return m, tea.ExecProcess(cmd, func(err error) tea.Msg { return pagerDoneMsg{err: err} })
}

func (m *Dashboard) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.refreshDetail()
}

func (m *Dashboard) clampCursor() {
	n := 0
	if m.snap != nil {
		n = len(m.snap.Items)
	}
	m.cursor = max(0, min(m.cursor, n-1))
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = max(0, min(m.offset, max(0, n-h)))
}

func (m Dashboard) selected() (reconcile.ItemState, bool) {
	if m.snap == nil || m.cursor >= len(m.snap.Items) {
		return reconcile.ItemState{}, false
	}
	return m.snap.Items[m.cursor], true
}

func (m Dashboard) detailHeight() int {
	h := DetailHeight
	if m.height < DefaultHeight {
		h = max(4, m.height/3)
	}
	return h
}

func (m Dashboard) listHeight() int {
	chrome := dashboardChromeRows + m.detailHeight() + 2
	if m.help.ShowAll {
		chrome += 3
	}
	return max(MinListHeight, m.height-chrome)
}

func (m *Dashboard) refreshDetail() {
	sel, ok := m.selected()
	if !ok {
		m.detail.SetContent(StyleSubtle.Render("No items."))
		return
	}
	m.detail.SetContent(m.renderDetail(sel))
	if sel.Item.ID != m.detailID {
		m.detail.GotoTop()
		m.detailID = sel.Item.ID
	}
}

func (m Dashboard) renderDetail(st reconcile.ItemState) string {
	var sb strings.Builder
	it := st.Item
	width := max(20, m.detail.Width-2)

	sb.WriteString(StyleTitle.Render(fmt.Sprintf("%s  %s", it.ID, it.Title())) + "\n")
	sb.WriteString(fmt.Sprintf("%s %s   Priority: %s   Category: %s\n",
		Icon(StateGlyph(st.State), StateStyle(st.State)), StateStyle(st.State).Render(string(st.State)),
		PriorityStyle(it.Priority).Render(it.Priority.String()), orDash(it.Category)))
	if len(it.DependsOn) > 0 {
		sb.WriteString("Depends on: " + strings.Join(it.DependsOn, ", ") + "\n")
	}
	if waiting := m.waitingOn(st); len(waiting) > 0 {
		sb.WriteString(StyleWarning.Render("Waiting on: "+strings.Join(waiting, ", ")) + "\n")
	}
	if next := m.graph.Dependents(it.ID); len(next) > 0 {
		sb.WriteString("Unblocks: " + strings.Join(next, ", ") + "\n")
	}
	if !st.LaunchedAt.IsZero() && m.snap != nil {
		sb.WriteString(fmt.Sprintf("Launched: %s (%s ago)\n",
			st.LaunchedAt.Local().Format("15:04:05"), FormatElapsed(m.snap.PolledAt.Sub(st.LaunchedAt))))
	}
	if st.Note != "" {
		sb.WriteString(WrapText("Note: "+st.Note, width) + "\n")
	}

	if r := st.Result; r != nil {
		sb.WriteString("\n" + StyleSectionTitle.Render("Result") + "\n")
		sb.WriteString(fmt.Sprintf("status: %s", r.Status))
		if r.TestResult != "" {
			sb.WriteString(fmt.Sprintf("   test: %s", r.TestResult))
		}
		if r.Engine != "" {
			sb.WriteString(fmt.Sprintf("   engine: %s", r.Engine))
		}
		if !r.Timestamp.IsZero() {
			sb.WriteString("   at " + r.Timestamp.Local().Format("2006-01-02 15:04:05"))
		}
		sb.WriteString("\n")
		if r.Error != "" {
			sb.WriteString(StyleError.Render(WrapText("error: "+r.Error, width)) + "\n")
		}
		for _, f := range r.FilesCreated {
			sb.WriteString("  + " + f + "\n")
		}
		if r.Output != "" {
			sb.WriteString(WrapText(Truncate(r.Output, 2000), width) + "\n")
		}
	}

	sb.WriteString("\n" + StyleSectionTitle.Render("Log") + " " + StyleSubtle.Render(st.LogPath) + "\n")
	lines, err := reconcile.TailLog(m.fs, st.LogPath, m.opts.TailLines)
	switch {
	case errors.Is(err, os.ErrNotExist):
		sb.WriteString(StyleSubtle.Render("(no log yet)"))
	case err != nil:
		sb.WriteString(StyleError.Render("(unreadable: " + err.Error() + ")"))
	case len(lines) == 0:
		sb.WriteString(StyleSubtle.Render("(empty)"))
	default:
		sb.WriteString(strings.Join(lines, "\n"))
	}
	return sb.String()
}

// waitingOn lists the transitive dependencies of an unfinished item that
// have not completed yet.
func (m Dashboard) waitingOn(st reconcile.ItemState) []string {
	if st.State.Terminal() || m.snap == nil {
		return nil
	}
	done := make(map[string]bool, len(m.snap.Items))
	for _, other := range m.snap.Items {
		done[other.Item.ID] = other.State == reconcile.StateCompleted
	}
	var out []string
	for _, dep := range m.graph.TransitiveDependencies(st.Item.ID) {
		if !done[dep] {
			out = append(out, dep)
		}
	}
	return out
}

func (m Dashboard) View() string {
	if m.snap == nil {
		if m.err != nil {
			return StyleError.Render("taskfleet: "+m.err.Error()) + "\n"
		}
		return StyleSubtle.Render("Reading workspace...") + "\n"
	}
	s := m.snap
	var sb strings.Builder

	title := m.opts.Title
	if title == "" {
		title = "taskfleet"
	}
	sb.WriteString(StyleHeader.Render(title) + "  " +
		StyleSubtle.Render(fmt.Sprintf("elapsed %s · polled %s", FormatElapsed(s.Elapsed()), s.PolledAt.Local().Format("15:04:05"))) + "\n")

	pct := 0.0
	if s.Counts.Total > 0 {
		pct = float64(s.Counts.Completed) / float64(s.Counts.Total)
	}
	sb.WriteString(m.bar.ViewAs(pct) + fmt.Sprintf("  %d/%d\n", s.Counts.Completed, s.Counts.Total))
	sb.WriteString(m.countsLine() + "\n")
	sb.WriteString(m.rollupLine() + "\n\n")

	end := min(len(s.Items), m.offset+m.listHeight())
	for i := m.offset; i < end; i++ {
		sb.WriteString(m.renderRow(i) + "\n")
	}
	for i := end - m.offset; i < m.listHeight(); i++ {
		sb.WriteString("\n")
	}

	sb.WriteString(StyleDetailBox.Width(max(20, m.width-2)).Render(m.detail.View()) + "\n")

	switch {
	case m.notice != "":
		sb.WriteString(StyleWarning.Render(m.notice) + "\n")
	case m.err != nil:
		sb.WriteString(StyleError.Render(m.err.Error()) + "\n")
	default:
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m Dashboard) countsLine() string {
	parts := []string{
		StyleSuccess.Render(fmt.Sprintf("✅ %d completed", m.snap.Count(reconcile.StateCompleted))),
		StyleError.Render(fmt.Sprintf("❌ %d failed", m.snap.Count(reconcile.StateFailed))),
		StyleBlocked.Render(fmt.Sprintf("🚫 %d blocked", m.snap.Count(reconcile.StateBlocked))),
		StyleRunning.Render(fmt.Sprintf("🔄 %d running", m.snap.Count(reconcile.StateRunning))),
	}
	for _, extra := range []reconcile.State{reconcile.StateStalled, reconcile.StateLaunchFailed, reconcile.StateError} {
		if n := m.snap.Count(extra); n > 0 {
			label := strings.ReplaceAll(string(extra), "_", " ")
			parts = append(parts, StateStyle(extra).Render(fmt.Sprintf("%s %d %s", StateGlyph(extra), n, label)))
		}
	}
	parts = append(parts, StyleSubtle.Render(fmt.Sprintf("⬜ %d pending", m.snap.Count(reconcile.StatePending))))
	return strings.Join(parts, "  ")
}

func (m Dashboard) rollupLine() string {
	var parts []string
	for _, r := range m.snap.Rollups {
		style := StyleText
		if r.Completed == r.Total {
			style = StyleSuccess
		} else if r.Failed+r.Blocked > 0 {
			style = StyleWarning
		}
		parts = append(parts, style.Render(fmt.Sprintf("%s %d/%d", r.Category, r.Completed, r.Total)))
	}
	return StyleSubtle.Render("categories: ") + strings.Join(parts, StyleSubtle.Render(" · "))
}

func (m Dashboard) renderRow(i int) string {
	st := m.snap.Items[i]
	it := st.Item
	titleWidth := max(10, m.width-42)
	row := fmt.Sprintf("%s %s %s %s %s",
		StateGlyph(st.State),
		padRight(truncateWidth(it.ID, 10), 10),
		PriorityStyle(it.Priority).Render(padRight(it.Priority.String(), 8)),
		StateStyle(st.State).Render(padRight(string(st.State), 13)),
		truncateWidth(it.Title(), titleWidth))
	if i == m.cursor {
		return StyleSelected.Render("› " + row)
	}
	return "  " + row
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
