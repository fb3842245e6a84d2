// Package tui provides the interactive terminal client for listsync. Edits are
// applied locally at once, queued on disk, and replayed to the daemon as a
// batch whenever it is reachable.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/listsync/internal/controlplane"
	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// syncInterval is how often the app checks the daemon and flushes the queue.
const syncInterval = 10 * time.Second

const (
	modeRelations = "relations"
	modeTasks     = "tasks"
	modeAudit     = "audit"
)

// Options configures the TUI.
type Options struct {
	API    string
	Token  string
	UserID string
	Email  string
	Queue  *Queue
}

// App is the main TUI application model.
type App struct {
	client       *Client
	queue        *Queue
	userID       string
	email        string
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string
	relations    []models.RelationSummary
	relationIdx  int
	board        *Board
	taskIdx      int
	message      string
	loading      bool
	syncing      bool
	daemonOnline bool
	suggestions  *Suggestions
	now          func() time.Time
}

// New creates a new TUI application.
func New(opts Options) *App {
	ti := textinput.New()
	ti.Placeholder = "/add <task> | /rename <name> | /share <email> | /sync"
	ti.CharLimit = 256
	ti.Width = 80

	vp := viewport.New(80, 20)

	queue := opts.Queue
	if queue == nil {
		queue, _ = OpenQueue("")
	}

	return &App{
		client:      NewClient(opts.API, opts.Token),
		queue:       queue,
		userID:      opts.UserID,
		email:       opts.Email,
		input:       ti,
		viewport:    vp,
		mode:        modeRelations,
		suggestions: NewSuggestions(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchRelations(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.input.Focused() {
			return a.updateInput(msg)
		}
		return a, a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = max(5, msg.Height-8)

	case relationsLoadedMsg:
		a.loading = false
		a.relations = msg.relations
		if a.relationIdx >= len(a.relations) {
			a.relationIdx = max(0, len(a.relations)-1)
		}

	case relationLoadedMsg:
		a.loading = false
		a.board = NewBoard(*msg.relation, a.userID)
		if a.taskIdx >= len(a.board.Tasks()) {
			a.taskIdx = max(0, len(a.board.Tasks())-1)
		}

	case auditLoadedMsg:
		a.viewport.SetContent(renderAudit(msg.entries))
		a.viewport.GotoTop()

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case tickMsg:
		cmds := []tea.Cmd{a.checkDaemon(), a.tickCmd()}
		if a.daemonOnline && a.queue.Len() > 0 {
			cmds = append(cmds, a.syncQueue())
		}
		return a, tea.Batch(cmds...)

	case syncedMsg:
		a.syncing = false
		return a, a.applySync(msg)

	case syncFailedMsg:
		a.syncing = false
		a.daemonOnline = false
		a.message = fmt.Sprintf("Offline: %d queued (%v)", a.queue.Len(), msg.err)

	case commandResultMsg:
		a.message = msg.message
		if msg.refresh {
			return a, a.refresh()
		}

	case errMsg:
		a.loading = false
		a.message = "Error: " + msg.err.Error()
	}

	if a.mode == modeAudit {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

// updateInput handles keys while the command bar has focus.
func (a *App) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.input.SetValue("")
		a.input.Blur()
		a.suggestions.Update("")
		return a, nil

	case "up":
		if a.suggestions.IsVisible() {
			a.suggestions.Prev()
			return a, nil
		}

	case "down":
		if a.suggestions.IsVisible() {
			a.suggestions.Next()
			return a, nil
		}

	case "tab":
		if selected := a.suggestions.Selected(); selected != nil {
			a.input.SetValue(a.suggestions.Complete(*selected))
			a.input.CursorEnd()
			a.updateSuggestions()
		}
		return a, nil

	case "enter":
		value := strings.TrimSpace(a.input.Value())
		a.input.SetValue("")
		a.input.Blur()
		a.suggestions.Update("")
		if value == "" {
			return a, nil
		}
		return a, a.executeCommand(value)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.updateSuggestions()
	return a, cmd
}

// updateSuggestions refreshes the dropdown from the current input.
func (a *App) updateSuggestions() {
	a.suggestions.Update(a.input.Value())
	if strings.HasPrefix(a.input.Value(), "@") {
		names := make([]string, len(a.relations))
		for i, r := range a.relations {
			names[i] = r.Name
		}
		a.suggestions.SetRelations(names)
	}
}

// handleKey handles single-key shortcuts while the command bar is idle.
func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit

	case "/", ":":
		a.input.Focus()
		a.input.SetValue("/")
		a.input.CursorEnd()
		a.suggestions.Update("/")
		return textinput.Blink

	case "@":
		a.input.Focus()
		a.input.SetValue("@")
		a.input.CursorEnd()
		a.updateSuggestions()
		return textinput.Blink

	case "a":
		if a.mode == modeTasks {
			a.input.Focus()
			a.input.SetValue("/add ")
			a.input.CursorEnd()
			return textinput.Blink
		}
		a.mode = modeAudit
		return a.fetchAudit()

	case "esc", "backspace":
		switch a.mode {
		case modeTasks, modeAudit:
			a.mode = modeRelations
			a.board = nil
			a.taskIdx = 0
			return a.fetchRelations()
		}

	case "up", "k":
		a.moveCursor(-1)

	case "down", "j":
		a.moveCursor(1)

	case "shift+up", "K":
		return a.moveTask(-1)

	case "shift+down", "J":
		return a.moveTask(1)

	case "enter":
		if a.mode == modeRelations && len(a.relations) > 0 {
			return a.openRelation(a.relations[a.relationIdx].ID)
		}

	case " ", "x", "space":
		if a.mode == modeTasks && a.board != nil {
			return a.toggleTask()
		}

	case "d", "delete":
		if a.mode == modeTasks && a.board != nil {
			return a.deleteTask()
		}

	case "s":
		return a.syncQueue()

	case "r":
		return tea.Batch(a.refresh(), a.checkDaemon())
	}

	if a.mode == modeAudit {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (a *App) moveCursor(delta int) {
	switch a.mode {
	case modeRelations:
		a.relationIdx = clamp(a.relationIdx+delta, len(a.relations))
	case modeTasks:
		if a.board != nil {
			a.taskIdx = clamp(a.taskIdx+delta, len(a.board.Tasks()))
		}
	case modeAudit:
		if delta < 0 {
			a.viewport.LineUp(1)
		} else {
			a.viewport.LineDown(1)
		}
	}
}

func clamp(idx, n int) int {
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	userStatus := lipgloss.NewStyle().Foreground(mutedColor).Render("○ anonymous")
	if a.email != "" {
		userStatus = lipgloss.NewStyle().Foreground(successColor).Render("● " + a.email)
	}

	queueStyle := lipgloss.NewStyle().Foreground(cyanColor)
	if a.queue.Len() > 0 {
		queueStyle = lipgloss.NewStyle().Foreground(warningColor)
	}

	header := titleStyle.Render("listsync")
	header += "  " + daemonStatus
	header += "  " + queueStyle.Render(fmt.Sprintf("[%d queued]", a.queue.Len()))
	header += "  " + userStatus

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case modeRelations:
		b.WriteString(a.renderRelations(contentHeight))
	case modeTasks:
		b.WriteString(a.renderTasks(contentHeight))
	case modeAudit:
		b.WriteString(a.viewport.View())
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") || strings.HasPrefix(a.message, "Offline") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))

	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case modeRelations:
		status = fmt.Sprintf(" Lists: %d | ↑↓:nav | Enter:open | a:audit | s:sync | r:refresh | /:command | q:quit", len(a.relations))
	case modeTasks:
		n := 0
		if a.board != nil {
			n = len(a.board.Tasks())
		}
		status = fmt.Sprintf(" Tasks: %d | Space:toggle | a:add | d:delete | J/K:move | s:sync | Esc:back", n)
	case modeAudit:
		status = " Audit | ↑↓:scroll | Esc:back"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderRelations(height int) string {
	if a.loading && len(a.relations) == 0 {
		return "\n  Loading lists...\n"
	}
	if len(a.relations) == 0 {
		return "\n  No lists yet. Type: /new <name> to create one.\n"
	}

	var lines []string
	for i, r := range a.relations {
		shared := ""
		if len(r.SharedWith) > 0 {
			shared = lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf(" (+%d)", len(r.SharedWith)))
		}
		if i == a.relationIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %-5s %s", r.Permission, r.Name))+shared)
		} else {
			perm := lipgloss.NewStyle().Foreground(secondaryColor).Render(fmt.Sprintf("%-5s", r.Permission))
			lines = append(lines, itemStyle.Render(fmt.Sprintf("  %s %s", perm, r.Name))+shared)
		}
	}
	return window(lines, a.relationIdx, height)
}

func (a *App) renderTasks(height int) string {
	if a.board == nil {
		return "\n  Loading...\n"
	}

	var b strings.Builder
	rel := a.board.Relation
	b.WriteString(fmt.Sprintf("  %s  %s\n", lipgloss.NewStyle().Bold(true).Render(rel.Name),
		helpStyle.Render(string(rel.Permission))))

	tasks := a.board.Tasks()
	if len(tasks) == 0 {
		b.WriteString("\n  No tasks. Press a to add one.\n")
		return b.String()
	}

	lines := make([]string, 0, len(tasks))
	for i, t := range tasks {
		if i == a.taskIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s", checkPlain(t), t.Text)))
		} else {
			lines = append(lines, itemStyle.Render(fmt.Sprintf("  %s  %s", check(t), t.Text)))
		}
	}
	b.WriteString(window(lines, a.taskIdx, height-1))
	return b.String()
}

// window keeps the selected line visible within height lines.
func window(lines []string, selected, height int) string {
	if len(lines) > height {
		start := selected - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}
	return strings.Join(lines, "\n")
}

func check(t models.Task) string {
	if t.Completed() {
		return lipgloss.NewStyle().Foreground(successColor).Render("●")
	}
	return lipgloss.NewStyle().Foreground(warningColor).Render("○")
}

func checkPlain(t models.Task) string {
	if t.Completed() {
		return "●"
	}
	return "○"
}

func renderAudit(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "\n  No reconciliation records yet.\n"
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cyanColor)
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
		headerStyle.Render(fmt.Sprintf("%-19s", "TIME")),
		headerStyle.Render(fmt.Sprintf("%-15s", "KIND")),
		headerStyle.Render(fmt.Sprintf("%-9s", "OUTCOME")),
		headerStyle.Render("REASON"),
	))
	for _, e := range entries {
		outcome := lipgloss.NewStyle().Foreground(successColor)
		if e.Outcome != "accepted" {
			outcome = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString(fmt.Sprintf("  %-19s  %-15s  %s  %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Kind,
			outcome.Render(fmt.Sprintf("%-9s", e.Outcome)),
			e.Reason,
		))
	}
	return b.String()
}

// enqueue records a local edit and flushes the queue if the daemon is up.
func (a *App) enqueue(p reconcile.Payload) tea.Cmd {
	if _, err := a.queue.Enqueue(p, a.now()); err != nil {
		a.message = "Error: " + err.Error()
		return nil
	}
	if a.daemonOnline {
		return a.syncQueue()
	}
	a.message = fmt.Sprintf("Queued offline (%d pending)", a.queue.Len())
	return nil
}

func (a *App) toggleTask() tea.Cmd {
	op, ok := a.board.Toggle(a.taskIdx, a.now())
	if !ok {
		return nil
	}
	return a.enqueue(op)
}

func (a *App) deleteTask() tea.Cmd {
	op, ok := a.board.Delete(a.taskIdx, a.now())
	if !ok {
		return nil
	}
	a.taskIdx = clamp(a.taskIdx, len(a.board.Tasks()))
	return a.enqueue(op)
}

func (a *App) moveTask(delta int) tea.Cmd {
	if a.mode != modeTasks || a.board == nil {
		return nil
	}
	op, idx, ok := a.board.Move(a.taskIdx, delta, a.now())
	if !ok {
		return nil
	}
	a.taskIdx = idx
	return a.enqueue(op)
}

func (a *App) openRelation(id string) tea.Cmd {
	a.mode = modeTasks
	a.board = nil
	a.taskIdx = 0
	return a.fetchRelation(id)
}

// applySync folds a batch result into the view.
func (a *App) applySync(msg syncedMsg) tea.Cmd {
	res := msg.resolution
	if a.board != nil && len(res.Rejected) > 0 {
		if gone := a.board.Adopt(res.Rejected, msg.submitted); gone {
			a.mode = modeRelations
			a.board = nil
			a.taskIdx = 0
		}
	}

	a.message = fmt.Sprintf("✓ Synced: %d applied", res.Applied)
	if n := len(res.Rejected); n > 0 {
		a.message += fmt.Sprintf(", %d rejected (%s)", n, res.Rejected[0].Reason)
	}
	if res.Retrying > 0 {
		a.message += fmt.Sprintf(", %d retrying", res.Retrying)
	}

	// Pending edits would be overwritten by a refetch.
	if a.queue.Len() == 0 {
		return a.refresh()
	}
	return nil
}

func (a *App) refresh() tea.Cmd {
	switch a.mode {
	case modeTasks:
		if a.board != nil {
			return a.fetchRelation(a.board.Relation.ID)
		}
	case modeAudit:
		return a.fetchAudit()
	}
	return a.fetchRelations()
}

func (a *App) fetchRelations() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		relations, err := a.client.ListRelations()
		if err != nil {
			return errMsg{err}
		}
		return relationsLoadedMsg{relations}
	}
}

func (a *App) fetchRelation(id string) tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		rel, err := a.client.GetRelation(id)
		if err != nil {
			return errMsg{err}
		}
		return relationLoadedMsg{rel}
	}
}

func (a *App) fetchAudit() tea.Cmd {
	return func() tea.Msg {
		entries, err := a.client.ListAudit(100)
		if err != nil {
			return errMsg{err}
		}
		return auditLoadedMsg{entries}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

// syncQueue replays the queued operations as one batch. Only one sync runs
// at a time; edits made meanwhile stay queued for the next one.
func (a *App) syncQueue() tea.Cmd {
	if a.syncing {
		return nil
	}
	pending := a.queue.Pending()
	if len(pending) == 0 {
		a.message = "Nothing to sync"
		return nil
	}
	a.syncing = true
	return func() tea.Msg {
		result, err := a.client.SubmitBatch(pending)
		if err != nil {
			return syncFailedMsg{err}
		}
		res, err := a.queue.Resolve(*result)
		if err != nil {
			return errMsg{err}
		}
		return syncedMsg{resolution: res, submitted: pending}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(syncInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) executeCommand(input string) tea.Cmd {
	if strings.HasPrefix(input, "@") {
		name := strings.TrimSpace(strings.TrimPrefix(input, "@"))
		for _, r := range a.relations {
			if strings.EqualFold(r.Name, name) {
				return a.openRelation(r.ID)
			}
		}
		a.message = "Error: no list named " + name
		return nil
	}

	input = strings.TrimPrefix(input, "/")
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "add":
		if arg == "" {
			a.message = "Usage: /add <task>"
			return nil
		}
		if a.mode != modeTasks || a.board == nil {
			a.message = "Open a list first"
			return nil
		}
		op := a.board.AddTask(arg, a.now())
		a.taskIdx = len(a.board.Tasks()) - 1
		return a.enqueue(op)

	case "edit":
		if arg == "" {
			a.message = "Usage: /edit <text>"
			return nil
		}
		if a.mode != modeTasks || a.board == nil {
			a.message = "Open a list first"
			return nil
		}
		op, ok := a.board.Edit(a.taskIdx, arg, a.now())
		if !ok {
			a.message = "No task selected"
			return nil
		}
		return a.enqueue(op)

	case "rename":
		if arg == "" {
			a.message = "Usage: /rename <name>"
			return nil
		}
		if a.mode != modeTasks || a.board == nil {
			a.message = "Open a list first"
			return nil
		}
		return a.enqueue(a.board.Rename(arg, a.now()))

	case "delete-list":
		if a.mode != modeTasks || a.board == nil {
			a.message = "Open a list first"
			return nil
		}
		op := a.board.DeleteRelation(a.now())
		a.mode = modeRelations
		a.board = nil
		return tea.Batch(a.enqueue(op), a.fetchRelations())

	case "new":
		if arg == "" {
			a.message = "Usage: /new <name>"
			return nil
		}
		return func() tea.Msg {
			rel, err := a.client.CreateRelation(arg)
			if err != nil {
				return commandResultMsg{message: "Error: " + err.Error()}
			}
			return commandResultMsg{message: "✓ Created list: " + rel.Name, refresh: true}
		}

	case "share":
		if arg == "" {
			a.message = "Usage: /share <email>"
			return nil
		}
		if a.mode != modeTasks || a.board == nil {
			a.message = "Open a list first"
			return nil
		}
		id := a.board.Relation.ID
		return func() tea.Msg {
			if err := a.client.ShareRelation(id, arg); err != nil {
				return commandResultMsg{message: "Error: " + err.Error()}
			}
			return commandResultMsg{message: "✓ Shared with " + arg, refresh: true}
		}

	case "sync":
		return a.syncQueue()

	case "audit":
		a.mode = modeAudit
		a.board = nil
		return a.fetchAudit()

	case "q", "quit", "exit":
		return tea.Quit

	default:
		a.message = fmt.Sprintf("Unknown: %s (try: add, edit, rename, share, sync)", cmd)
		return nil
	}
}

type commandResultMsg struct {
	message string
	refresh bool
}

type errMsg struct {
	err error
}

type relationsLoadedMsg struct {
	relations []models.RelationSummary
}

type relationLoadedMsg struct {
	relation *controlplane.RelationDetail
}

type auditLoadedMsg struct {
	entries []models.AuditEntry
}

type daemonStatusMsg struct {
	online bool
}

type syncedMsg struct {
	resolution Resolution
	submitted  []reconcile.Operation
}

type syncFailedMsg struct {
	err error
}

type tickMsg time.Time
