package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/khirayama/reader-sub001/internal/api"
	"github.com/khirayama/reader-sub001/internal/browser"
	"github.com/khirayama/reader-sub001/internal/notify"
	"github.com/khirayama/reader-sub001/internal/state"
	"github.com/khirayama/reader-sub001/internal/stream"
)

type focusPane int

const (
	focusList focusPane = iota
	focusPreview
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeHelp
)

type App struct {
	coord *stream.Coordinator
	bus   *notify.Bus
	st    *state.DB // may be nil
	log   *zap.Logger

	activeView string
	cursor     int
	focus      focusPane
	mode       mode

	width  int
	height int

	// Sub-components
	searchInput textinput.Model
	spinner     spinner.Model

	// Read models pulled from the coordinator after every change
	snapshot stream.Snapshot
	tabs     []stream.Tab

	// State
	trig          continuation
	refreshing    bool
	previewScroll int
	currentDate   string
	err           error
	toast         *toast

	// Scroll offsets persisted by a previous session, used until the
	// live store has its own memory for a view.
	savedScroll map[string]int
}

// RunOpts holds all parameters for launching the TUI.
type RunOpts struct {
	Coordinator *stream.Coordinator
	Bus         *notify.Bus
	State       *state.DB
	Logger      *zap.Logger
}

func NewApp(opts RunOpts) *App {
	ti := textinput.New()
	ti.Placeholder = "Search articles..."
	ti.Prompt = searchPromptStyle.Render("/ ")
	ti.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	active := stream.ViewAll
	saved := map[string]int{}
	if opts.State != nil {
		if v := opts.State.ActiveView(); v != "" {
			active = v
		}
		if offs, err := opts.State.ScrollOffsets(); err == nil {
			saved = offs
		}
	}

	a := &App{
		coord:       opts.Coordinator,
		bus:         opts.Bus,
		st:          opts.State,
		log:         log,
		activeView:  active,
		searchInput: ti,
		spinner:     sp,
		trig:        newContinuation(loadMoreMargin),
		currentDate: time.Now().Format("Jan 2"),
		savedScroll: saved,
	}
	a.coord.Select(active)
	a.cursor = saved[active]
	a.sync()
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.loadTagsCmd(),
		a.loadViewCmd(a.activeView),
		a.waitForEvent(),
		a.spinner.Tick,
	)
}

// sync pulls fresh read models from the coordinator and keeps the
// cursor inside the active view's bounds.
func (a *App) sync() {
	if snap, ok := a.coord.Snapshot(a.activeView); ok {
		a.snapshot = snap
	} else {
		a.snapshot = stream.Snapshot{ID: a.activeView}
	}
	a.tabs = a.coord.Tabs()
	if a.cursor >= len(a.snapshot.Articles) {
		a.cursor = max(0, len(a.snapshot.Articles)-1)
	}
}

func (a *App) currentArticle() (api.Article, bool) {
	if len(a.snapshot.Articles) == 0 || a.cursor >= len(a.snapshot.Articles) {
		return api.Article{}, false
	}
	return a.snapshot.Articles[a.cursor], true
}

func (a *App) loading() bool {
	return a.snapshot.Loading || a.refreshing
}

// --- Commands -----------------------------------------------------------

func (a *App) loadTagsCmd() tea.Cmd {
	coord := a.coord
	return func() tea.Msg {
		return tagsLoadedMsg{err: coord.LoadTags(context.Background())}
	}
}

func (a *App) loadViewCmd(viewID string) tea.Cmd {
	coord := a.coord
	return func() tea.Msg {
		return viewLoadedMsg{viewID: viewID, err: coord.Load(context.Background(), viewID)}
	}
}

func (a *App) loadMoreCmd(viewID string) tea.Cmd {
	coord := a.coord
	return func() tea.Msg {
		return moreLoadedMsg{viewID: viewID, err: coord.LoadMore(context.Background(), viewID)}
	}
}

func (a *App) refreshViewCmd(viewID string) tea.Cmd {
	coord := a.coord
	return func() tea.Msg {
		return viewLoadedMsg{viewID: viewID, err: coord.Refresh(context.Background(), viewID)}
	}
}

func (a *App) refreshAllCmd() tea.Cmd {
	coord := a.coord
	return func() tea.Msg {
		return refreshAllDoneMsg{err: coord.RefreshAll(context.Background())}
	}
}

func pushMutationCmd(articleID string, push func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return mutationDoneMsg{articleID: articleID, err: push(context.Background())}
	}
}

func (a *App) waitForEvent() tea.Cmd {
	bus := a.bus
	return func() tea.Msg {
		return busEventMsg(<-bus.Events())
	}
}

func toastTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return toastTickMsg{}
	})
}

func openBrowserCmd(url string) tea.Cmd {
	return func() tea.Msg {
		if err := browser.Open(url); err != nil {
			return openURLErrMsg{err: err}
		}
		return nil
	}
}

// --- Update -------------------------------------------------------------

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		// Clear sticky error on any keypress
		a.err = nil
		return a.handleKey(msg)

	case tagsLoadedMsg:
		if msg.err != nil {
			a.err = msg.err
		}
		// The coordinator may have dropped the active view along with a
		// deleted tag; follow it.
		a.activeView = a.coord.Active()
		a.sync()
		return a, nil

	case viewLoadedMsg:
		a.sync()
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		if msg.viewID == a.activeView && a.cursor == 0 {
			a.cursor = a.recallCursor(a.activeView)
			a.sync()
		}
		return a, nil

	case moreLoadedMsg:
		a.trig.Complete()
		a.sync()
		if msg.err != nil {
			a.err = msg.err
		}
		return a, nil

	case mutationDoneMsg:
		// No rollback on failure: the optimistic patch stays until the
		// next reload reconciles against server truth.
		if msg.err != nil {
			a.err = msg.err
		}
		a.sync()
		return a, nil

	case refreshAllDoneMsg:
		a.refreshing = false
		a.sync()
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		return a, a.loadViewCmd(a.activeView)

	case busEventMsg:
		cmds := []tea.Cmd{a.waitForEvent()}
		switch msg.Kind {
		case notify.KindRateLimited:
			first := a.toast == nil
			a.toast = newToast(notify.Event(msg))
			if first {
				cmds = append(cmds, toastTickCmd())
			}
		case notify.KindError:
			a.err = errors.New(msg.Message)
		}
		return a, tea.Batch(cmds...)

	case toastTickMsg:
		if a.toast == nil {
			return a, nil
		}
		if !a.toast.tick() {
			a.toast = nil
			return a, nil
		}
		return a, toastTickCmd()

	case openURLErrMsg:
		a.err = msg.err
		return a, nil

	case spinner.TickMsg:
		if a.loading() {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a.quit()
	}

	switch a.mode {
	case modeSearch:
		return a.handleSearchKey(msg)
	case modeHelp:
		if msg.String() == "?" || msg.String() == "esc" || msg.String() == "q" {
			a.mode = modeNormal
		}
		return a, nil
	}

	switch msg.String() {
	case "q":
		return a.quit()
	case "j", "down":
		if a.focus == focusPreview {
			a.previewScroll++
			return a, nil
		}
		if a.cursor < len(a.snapshot.Articles)-1 {
			a.cursor++
			a.previewScroll = 0
		}
		return a, a.maybeLoadMore()
	case "k", "up":
		if a.focus == focusPreview {
			if a.previewScroll > 0 {
				a.previewScroll--
			}
			return a, nil
		}
		if a.cursor > 0 {
			a.cursor--
			a.previewScroll = 0
		}
		return a, nil
	case "g":
		a.cursor = 0
		a.previewScroll = 0
		return a, nil
	case "G":
		if n := len(a.snapshot.Articles); n > 0 {
			a.cursor = n - 1
			a.previewScroll = 0
		}
		return a, a.maybeLoadMore()
	case "tab":
		if a.focus == focusList {
			a.focus = focusPreview
		} else {
			a.focus = focusList
		}
		return a, nil
	case "left", "[":
		return a, a.switchView(a.adjacentView(-1))
	case "right", "]":
		return a, a.switchView(a.adjacentView(1))
	case "o", "enter":
		art, ok := a.currentArticle()
		if !ok {
			return a, nil
		}
		cmds := []tea.Cmd{openBrowserCmd(art.URL)}
		if cmd := a.markReadCurrent(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)
	case "m":
		return a, a.markReadCurrent()
	case "b":
		return a, a.toggleBookmarkCurrent()
	case "/":
		a.mode = modeSearch
		a.searchInput.SetValue(a.coord.SearchTerm())
		a.searchInput.Focus()
		return a, textinput.Blink
	case "f":
		art, ok := a.currentArticle()
		if !ok {
			return a, nil
		}
		viewID, changed := a.coord.SelectFeed(art.Feed.ID)
		if !changed && viewID == a.activeView {
			return a, nil
		}
		return a, a.switchView(viewID)
	case "F":
		if _, changed := a.coord.SelectFeed(""); changed {
			return a, a.switchView(stream.ViewAll)
		}
		return a, nil
	case "r":
		a.sync()
		return a, tea.Batch(a.refreshViewCmd(a.activeView), a.spinner.Tick)
	case "R":
		if !a.refreshing {
			a.refreshing = true
			return a, tea.Batch(a.refreshAllCmd(), a.spinner.Tick)
		}
		return a, nil
	case "?":
		a.mode = modeHelp
		return a, nil
	}

	return a, nil
}

func (a *App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeNormal
		a.searchInput.SetValue("")
		a.searchInput.Blur()
		return a, a.applySearch("")
	case "enter":
		a.mode = modeNormal
		a.searchInput.Blur()
		return a, a.applySearch(a.searchInput.Value())
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	// Only re-query on submit, not on every keystroke
	return a, cmd
}

// applySearch installs a new search term; every view resets and the
// active one reloads.
func (a *App) applySearch(term string) tea.Cmd {
	if !a.coord.Search(term) {
		return nil
	}
	a.cursor = 0
	a.previewScroll = 0
	a.trig.Complete()
	a.sync()
	return tea.Batch(a.loadViewCmd(a.activeView), a.spinner.Tick)
}

// maybeLoadMore fires the continuation trigger when the cursor is close
// enough to the bottom of the loaded list.
func (a *App) maybeLoadMore() tea.Cmd {
	if a.focus != focusList || !a.snapshot.HasMore || !a.snapshot.Loaded {
		return nil
	}
	dist := len(a.snapshot.Articles) - 1 - a.cursor
	if !a.trig.Crossed(dist) {
		return nil
	}
	return tea.Batch(a.loadMoreCmd(a.activeView), a.spinner.Tick)
}

// switchView remembers the old view's scroll position, activates the
// new view, recalls its position, and loads it if needed.
func (a *App) switchView(viewID string) tea.Cmd {
	if viewID == "" || viewID == a.activeView {
		return nil
	}
	a.coord.RememberScroll(a.activeView, a.cursor)
	a.persistScroll(a.activeView, a.cursor)

	a.activeView = viewID
	needLoad := a.coord.Select(viewID)
	a.cursor = a.recallCursor(viewID)
	a.previewScroll = 0
	a.trig.Complete()
	a.sync()

	if needLoad {
		return tea.Batch(a.loadViewCmd(viewID), a.spinner.Tick)
	}
	return nil
}

// recallCursor prefers the live store's memory, falling back to the
// offset persisted by a previous session.
func (a *App) recallCursor(viewID string) int {
	if off := a.coord.RecallScroll(viewID); off > 0 {
		return off
	}
	return a.savedScroll[viewID]
}

func (a *App) adjacentView(delta int) string {
	if len(a.tabs) == 0 {
		return ""
	}
	idx := 0
	for i, t := range a.tabs {
		if t.ID == a.activeView {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(a.tabs)) % len(a.tabs)
	return a.tabs[idx].ID
}

func (a *App) markReadCurrent() tea.Cmd {
	art, ok := a.currentArticle()
	if !ok {
		return nil
	}
	push := a.coord.MarkRead(art.ID)
	a.sync()
	if push == nil {
		return nil
	}
	return pushMutationCmd(art.ID, push)
}

func (a *App) toggleBookmarkCurrent() tea.Cmd {
	art, ok := a.currentArticle()
	if !ok {
		return nil
	}
	push := a.coord.ToggleBookmark(art.ID)
	a.sync()
	if push == nil {
		return nil
	}
	return pushMutationCmd(art.ID, push)
}

func (a *App) persistScroll(viewID string, offset int) {
	if a.st == nil {
		return
	}
	if err := a.st.SetScrollOffset(viewID, offset); err != nil {
		a.log.Warn("persisting scroll offset", zap.String("view", viewID), zap.Error(err))
	}
}

func (a *App) quit() (tea.Model, tea.Cmd) {
	a.coord.RememberScroll(a.activeView, a.cursor)
	a.persistScroll(a.activeView, a.cursor)
	if a.st != nil {
		if err := a.st.SetActiveView(a.activeView); err != nil {
			a.log.Warn("persisting active view", zap.Error(err))
		}
	}
	return a, tea.Quit
}

// --- View ---------------------------------------------------------------

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  reader")
	}

	if a.mode == modeHelp {
		return a.renderHelp()
	}

	// Layout calculations
	headerHeight := 1
	tabsHeight := 1
	statusHeight := 1
	contentHeight := a.height - headerHeight - tabsHeight - statusHeight - 4 // borders

	listWidth := int(float64(a.width) * 0.35)
	previewWidth := a.width - listWidth - 1 // gap

	if contentHeight < 3 {
		contentHeight = 3
	}

	// Header
	headerLeft := headerStyle.Render("reader")
	if term := a.coord.SearchTerm(); term != "" {
		headerLeft += itemTimeStyle.Render(fmt.Sprintf("  search: %q", term))
	}
	headerRight := headerDateStyle.Render(a.currentDate)
	headerGap := a.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight)
	if headerGap < 0 {
		headerGap = 0
	}
	header := headerLeft + fmt.Sprintf("%*s", headerGap, "") + headerRight

	// Tab bar (replaced by the search input while searching)
	tabBar := renderTabBar(a.tabs, a.activeView, a.width)
	if a.mode == modeSearch {
		tabBar = a.searchInput.View()
	}

	// List pane
	innerListW := listWidth - 4 // border + padding
	listContent := renderList(a.snapshot.Articles, a.cursor, a.snapshot.HasMore, contentHeight, innerListW)

	var listPane string
	if a.focus == focusList {
		listPane = listPaneActiveStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	} else {
		listPane = listPaneStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	}

	// Preview pane
	var selected *api.Article
	if art, ok := a.currentArticle(); ok {
		selected = &art
	}
	innerPreviewW := previewWidth - 4
	previewContent := renderPreview(selected, innerPreviewW, contentHeight, a.previewScroll)

	var previewPane string
	if a.focus == focusPreview {
		previewPane = previewPaneActiveStyle.Width(previewWidth - 2).Height(contentHeight).Render(previewContent)
	} else {
		previewPane = previewPaneStyle.Width(previewWidth - 2).Height(contentHeight).Render(previewContent)
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, listPane, previewPane)

	// Status bar: toast > error > normal status
	var status string
	switch {
	case a.toast != nil:
		status = a.toast.render()
	case a.err != nil:
		status = errorStyle.Render(a.err.Error())
	default:
		status = renderStatusBar(
			len(a.snapshot.Articles),
			a.activeLabel(),
			a.snapshot.HasMore,
			a.width,
			a.mode == modeSearch,
			a.refreshing,
		)
		if a.loading() {
			status = a.spinner.View() + " " + status
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, tabBar, content, status)
}

func (a *App) activeLabel() string {
	for _, t := range a.tabs {
		if t.ID == a.activeView {
			return t.Label
		}
	}
	return a.activeView
}

func (a *App) renderHelp() string {
	title := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("reader")
	dim := helpDimStyle

	help := title + dim.Render(" — Keyboard Shortcuts") + "\n\n" +
		dim.Render("Navigation") + "\n" +
		"  j/k, ↑/↓     Move through the article list\n" +
		"  g/G           Jump to top / bottom\n" +
		"  tab           Switch focus between list and preview\n" +
		"  ←/→, [/]     Switch view (All, tags, feed)\n\n" +
		dim.Render("Actions") + "\n" +
		"  o, enter      Open article in browser (marks it read)\n" +
		"  m             Mark article as read\n" +
		"  b             Toggle bookmark\n" +
		"  f             View the article's feed  ·  F clear feed view\n" +
		"  /             Search all views\n" +
		"  r             Reload current view\n" +
		"  R             Refresh all feeds on the server\n\n" +
		dim.Render("General") + "\n" +
		"  ?             Toggle this help\n" +
		"  q, ctrl+c    Quit"

	card := helpCardStyle.Render(help)

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

// Run starts the TUI application.
func Run(opts RunOpts) error {
	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
