package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/playback"
	"github.com/desertthunder/melodyfetch/internal/services"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SearchView ViewState = iota
	DetailView
)

// Player is the subset of [playback.Controller] the TUI drives.
type Player interface {
	Toggle(ctx context.Context, track models.Track) error
	Teardown()
	Snapshot() playback.Snapshot
	BeginScrub()
	ScrubTo(fraction float64)
	EndScrub(fraction float64) error
	SeekTo(fraction float64) error
}

// Downloader saves a track's stream to a directory.
type Downloader interface {
	Download(ctx context.Context, track models.Track, dir string, progress services.ProgressFunc) (string, error)
}

// ModelOpts holds the dependencies of a [Model]. Searcher, Player and Bridge are required.
type ModelOpts struct {
	Searcher    Searcher
	Player      Player
	Downloader  Downloader
	Bridge      *Bridge
	OpenURL     func(string) error
	Links       shared.LinksConfig
	DownloadDir string
	Logger      *log.Logger
}

// barLayout records where the progress bar was last drawn, in terminal cells.
type barLayout struct {
	row    int
	left   int
	width  int
	handle int
}

func (b barLayout) contains(x, y int) bool {
	return b.width > 0 && y == b.row && x >= b.left && x < b.left+b.width
}

type notice struct {
	text    string
	kind    shared.NoticeKind
	visible bool
}

const (
	actionPlay = "play"
	actionSeek = "seek"
	actionOpen = "open"
)

var (
	_ Renderer        = (*Model)(nil)
	_ shared.Notifier = (*Model)(nil)
)

// Model represents the TUI application state.
//
// Its Renderer and Notifier methods mutate state and must only be called from Update.
type Model struct {
	ctx         context.Context
	view        ViewState
	searcher    Searcher
	player      Player
	downloader  Downloader
	bridge      *Bridge
	openURL     func(string) error
	links       shared.LinksConfig
	downloadDir string
	logger      *log.Logger

	width   int
	height  int
	input   textinput.Model
	results list.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	searching bool
	keyword   string
	status    string
	tracks    []models.Track

	detail        *models.Track
	loadingDetail bool
	detailSeq     uint64
	cancelDetail  context.CancelFunc
	detailGen     int // bumped each time a detail view closes

	progress playback.Progress
	playing  bool
	dragging bool
	bar      barLayout

	downloading bool
	dlReceived  int64
	dlTotal     int64

	notice   notice
	noticeID int
	pending  []tea.Cmd
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	input := textinput.New()
	input.Placeholder = "Song title, artist, or track id"
	input.CharLimit = 120
	input.Focus()

	results := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	results.Title = "Results"
	results.SetShowHelp(false)
	results.SetFilteringEnabled(false)
	results.DisableQuitKeybindings()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = styles.bar

	return &Model{
		ctx:         ctx,
		view:        SearchView,
		searcher:    opts.Searcher,
		player:      opts.Player,
		downloader:  opts.Downloader,
		bridge:      opts.Bridge,
		openURL:     opts.OpenURL,
		links:       opts.Links,
		downloadDir: opts.DownloadDir,
		logger:      shared.WithLogger(opts.Logger, "component", "tui"),
		input:       input,
		results:     results,
		spinner:     spin,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init starts the cursor blink, listens on the bridge and shows the startup notice.
func (m *Model) Init() tea.Cmd {
	m.Notify("melodyfetch initialized", shared.NoticeSuccess, shared.DefaultNoticeDuration)
	cmds := []tea.Cmd{textinput.Blink, m.bridge.Next()}
	return tea.Batch(append(cmds, m.drain()...)...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		m.results.SetSize(max(msg.Width-4, 0), max(msg.Height-8, 0))
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))
	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))
	case spinner.TickMsg:
		if m.searching || m.loadingDetail {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case Msg:
		cmds = append(cmds, m.handleMsg(msg))
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, m.drain()...)
	return m, tea.Batch(cmds...)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DetailView:
		return m.renderDetail()
	default:
		return m.renderSearch()
	}
}

// Notify shows a notice and schedules its expiry. A newer notice replaces the visible one.
func (m *Model) Notify(message string, kind shared.NoticeKind, d time.Duration) {
	if d <= 0 {
		d = shared.DefaultNoticeDuration
	}
	m.noticeID++
	id := m.noticeID
	m.notice = notice{text: message, kind: kind, visible: true}
	m.pending = append(m.pending, tea.Tick(d, func(time.Time) tea.Msg { return noticeExpiredMsg(id) }))
}

func (m *Model) RenderResultList(tracks []models.Track) {
	m.tracks = tracks
	m.status = ""
	m.pending = append(m.pending, m.results.SetItems(trackItems(tracks)))
	m.results.Select(0)
	m.input.Blur()
}

func (m *Model) RenderNoResults(message string) {
	m.tracks = nil
	m.status = message
	m.pending = append(m.pending, m.results.SetItems(nil))
}

// RenderDetail switches to the detail view for track.
func (m *Model) RenderDetail(track models.Track) {
	m.detail = &track
	m.view = DetailView
	m.progress = playback.Progress{Current: shared.FormatClock(0), Total: shared.FormatDuration(track.Duration)}
	m.playing = false
	m.dragging = false
	m.dlReceived, m.dlTotal = 0, 0
}

func (m *Model) UpdateProgressDisplay(current, total string, percent float64) {
	m.progress = playback.Progress{Current: current, Total: total, Percent: percent}
}

func (m *Model) UpdatePlayState(playing bool) {
	m.playing = playing
}

func (m *Model) drain() []tea.Cmd {
	cmds := m.pending
	m.pending = nil
	return cmds
}

func (m *Model) handleMsg(msg Msg) tea.Cmd {
	switch msg.kind {
	case MsgSearchDone:
		r := msg.data.(searchResult)
		m.searching = false
		PresentSearch(m, m, r.keyword, r.tracks, r.err)
	case MsgDetailLoaded:
		r := msg.data.(detailResult)
		if r.seq != m.detailSeq {
			return nil
		}
		m.cancelPendingDetail()
		PresentDetail(m, m, r.track, r.err)
	case MsgProgress:
		p := msg.data.(playback.Progress)
		m.UpdateProgressDisplay(p.Current, p.Total, p.Percent)
		return m.bridge.Next()
	case MsgPlayState:
		m.UpdatePlayState(msg.data.(bool))
		return m.bridge.Next()
	case MsgNotice:
		n := msg.data.(noticePayload)
		m.Notify(n.text, n.kind, n.d)
		return m.bridge.Next()
	case MsgNoticeExpired:
		if msg.data.(int) == m.noticeID {
			m.notice.visible = false
		}
	case MsgDownloadProgress:
		p := msg.data.(downloadProgress)
		if m.downloading {
			m.dlReceived, m.dlTotal = p.received, p.total
		}
		return m.bridge.Next()
	case MsgDownloadDone:
		r := msg.data.(downloadResult)
		m.downloading = false
		if r.err != nil {
			m.logger.Error("download failed", "error", r.err)
			m.Notify(fmt.Sprintf("Download failed: %s", services.Message(r.err)), shared.NoticeError, shared.DefaultNoticeDuration)
			return nil
		}
		m.Notify(fmt.Sprintf("Saved to %s", r.path), shared.NoticeSuccess, shared.DefaultNoticeDuration)
	case MsgActionDone:
		r := msg.data.(actionResult)
		if r.action == actionPlay && r.gen != m.detailGen {
			m.dropStalePlayback(r.trackID)
		}
		m.handleActionError(r.action, r.err)
	}
	return nil
}

// dropStalePlayback stops audio started for a detail view that closed while the play request was in flight.
func (m *Model) dropStalePlayback(trackID string) {
	if m.view == DetailView && m.detail != nil && m.detail.ID == trackID {
		return
	}
	if snap := m.player.Snapshot(); snap.Active() && snap.Track.ID == trackID {
		m.logger.Debug("stopping playback for closed view", "track", trackID)
		m.player.Teardown()
	}
}

// handleActionError reports failures the controller has not already surfaced as notices.
func (m *Model) handleActionError(action string, err error) {
	if err == nil || errors.Is(err, playback.ErrSuperseded) {
		return
	}
	m.logger.Debug("action failed", "action", action, "error", err)
	if action == actionOpen {
		m.Notify("Cannot open this song", shared.NoticeError, shared.DefaultNoticeDuration)
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.forceQuit) {
		m.closeDetail()
		return tea.Quit
	}
	if m.view == DetailView {
		return m.handleDetailKeys(msg)
	}
	return m.handleSearchKeys(msg)
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) tea.Cmd {
	if m.input.Focused() {
		switch {
		case key.Matches(msg, m.keys.enter):
			return m.submitSearch()
		case key.Matches(msg, m.keys.back):
			m.input.Blur()
			return nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancelPendingDetail()
		return tea.Quit
	case key.Matches(msg, m.keys.focus):
		return m.input.Focus()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.results.SelectedItem().(trackItem); ok {
			return m.openDetail(item.track)
		}
		return nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.closeDetail()
		return tea.Quit
	case key.Matches(msg, m.keys.back):
		m.closeDetail()
		return nil
	case key.Matches(msg, m.keys.toggle):
		return m.togglePlayback()
	case key.Matches(msg, m.keys.download):
		return m.startDownload()
	case key.Matches(msg, m.keys.open):
		return m.openPage()
	case key.Matches(msg, m.keys.seek):
		f := float64(msg.String()[0]-'0') / 10
		return m.playerCmd(actionSeek, func() error { return m.player.SeekTo(f) })
	}
	return nil
}

// handleMouse maps presses on the bar handle to a drag and presses elsewhere on the bar to a seek.
func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.view != DetailView || m.detail == nil {
		return nil
	}
	f := playback.FractionAt(msg.X, m.bar.left, m.bar.width)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !m.bar.contains(msg.X, msg.Y) {
			return nil
		}
		if abs(msg.X-m.bar.handle) <= 1 {
			m.dragging = true
			m.player.BeginScrub()
			m.player.ScrubTo(f)
			return nil
		}
		return m.playerCmd(actionSeek, func() error { return m.player.SeekTo(f) })
	case tea.MouseActionMotion:
		if m.dragging {
			m.player.ScrubTo(f)
		}
	case tea.MouseActionRelease:
		if m.dragging {
			m.dragging = false
			return m.playerCmd(actionSeek, func() error { return m.player.EndScrub(f) })
		}
	}
	return nil
}

// submitSearch starts a search unless one is already running.
func (m *Model) submitSearch() tea.Cmd {
	if m.searching {
		return nil
	}
	keyword := m.input.Value()
	if _, err := models.NewSearchQuery(keyword); err != nil {
		PresentSearch(m, m, keyword, nil, err)
		return nil
	}
	m.searching = true
	m.keyword = strings.TrimSpace(keyword)
	m.status = ""
	return tea.Batch(m.spinner.Tick, m.searchCmd(keyword))
}

func (m *Model) searchCmd(keyword string) tea.Cmd {
	ctx, s := m.ctx, m.searcher
	return func() tea.Msg {
		tracks, err := s.Resolve(ctx, keyword)
		return searchDoneMsg(keyword, tracks, err)
	}
}

// openDetail requests the full record for track. Any earlier request is cancelled and its reply dropped.
func (m *Model) openDetail(track models.Track) tea.Cmd {
	m.cancelPendingDetail()
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelDetail = cancel
	m.detailSeq++
	m.loadingDetail = true
	return tea.Batch(m.spinner.Tick, m.detailCmd(ctx, m.detailSeq, track.ID))
}

func (m *Model) detailCmd(ctx context.Context, seq uint64, id string) tea.Cmd {
	s := m.searcher
	return func() tea.Msg {
		track, err := s.FetchTrackDetail(ctx, id)
		return detailLoadedMsg(seq, track, err)
	}
}

// cancelPendingDetail abandons the outstanding detail request. Bumping the sequence drops a reply already in flight.
func (m *Model) cancelPendingDetail() {
	if m.cancelDetail != nil {
		m.cancelDetail()
		m.cancelDetail = nil
	}
	if m.loadingDetail {
		m.detailSeq++
		m.loadingDetail = false
	}
}

// closeDetail tears down playback and returns to the result list.
func (m *Model) closeDetail() {
	m.cancelPendingDetail()
	if m.view != DetailView {
		return
	}
	m.player.Teardown()
	m.detailGen++
	m.view = SearchView
	m.detail = nil
	m.playing = false
	m.dragging = false
	m.bar = barLayout{}
	m.progress = playback.Progress{}
}

func (m *Model) togglePlayback() tea.Cmd {
	if m.detail == nil {
		return nil
	}
	ctx, track, gen, p := m.ctx, *m.detail, m.detailGen, m.player
	return func() tea.Msg {
		return playDoneMsg(gen, track.ID, p.Toggle(ctx, track))
	}
}

func (m *Model) playerCmd(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(action, fn())
	}
}

func (m *Model) startDownload() tea.Cmd {
	if m.detail == nil || m.downloading || m.downloader == nil {
		return nil
	}
	if !m.detail.HasStream() {
		m.Notify("No download link for this track", shared.NoticeWarning, shared.DefaultNoticeDuration)
		return nil
	}
	m.downloading = true
	m.dlReceived, m.dlTotal = 0, -1

	ctx, track, dir, d, b := m.ctx, *m.detail, m.downloadDir, m.downloader, m.bridge
	return func() tea.Msg {
		path, err := d.Download(ctx, track, dir, b.DownloadProgress)
		return downloadDoneMsg(path, err)
	}
}

func (m *Model) openPage() tea.Cmd {
	if m.detail == nil {
		return nil
	}
	url := m.links.SongPageURL(m.detail.ID)
	m.logger.Debug("opening song page", "url", url)
	open := m.openURL
	return func() tea.Msg {
		return actionDoneMsg(actionOpen, open(url))
	}
}

func (m *Model) renderNotice() string {
	if !m.notice.visible {
		return ""
	}
	return styles.notice(m.notice.text, m.notice.kind)
}

func (m *Model) renderSearch() string {
	title := styles.title.Render("melodyfetch")

	var body string
	switch {
	case m.searching:
		body = fmt.Sprintf("%s Searching for \"%s\"...", m.spinner.View(), m.keyword)
	case m.loadingDetail:
		body = fmt.Sprintf("%s Loading track details...", m.spinner.View())
	case m.status != "":
		body = styles.help.Render(m.status)
	case len(m.tracks) > 0:
		body = m.results.View()
	}

	var helpKeys []key.Binding
	if m.input.Focused() {
		helpKeys = []key.Binding{m.keys.enter, m.keys.back, m.keys.forceQuit}
	} else {
		helpKeys = []key.Binding{m.keys.up, m.keys.down, m.keys.enter, m.keys.focus, m.keys.quit}
	}

	return strings.Join([]string{
		title,
		m.input.View(),
		m.renderNotice(),
		body,
		m.help.ShortHelpView(helpKeys),
	}, "\n")
}

// renderDetail draws the track panel and records the bar layout for mouse hit-testing.
func (m *Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	track := *m.detail

	lines := []string{styles.title.Render(track.Title)}
	for _, row := range detailRows(track) {
		if row[0] == "Title" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s", styles.label.Render(fmt.Sprintf("%-9s", row[0]+":")), row[1]))
	}
	lines = append(lines, "")
	head := strings.Join(lines, "\n")

	prefix := fmt.Sprintf("%s %s ", playIcon(m.playing), m.progress.Current)
	suffix := " " + m.progress.Total
	width := 40
	if m.width > 0 {
		width = min(max(m.width-lipgloss.Width(prefix)-lipgloss.Width(suffix)-1, 10), 60)
	}
	bar, handle := progressBar(width, m.progress.Percent)
	left := lipgloss.Width(prefix)
	m.bar = barLayout{row: lipgloss.Height(head), left: left, width: width, handle: left + handle}

	var status string
	if m.downloading {
		if m.dlTotal > 0 {
			status = fmt.Sprintf("Downloading %s / %s", shared.FormatBytes(m.dlReceived), shared.FormatBytes(m.dlTotal))
		} else {
			status = fmt.Sprintf("Downloading %s", shared.FormatBytes(m.dlReceived))
		}
	}

	helpKeys := []key.Binding{m.keys.toggle, m.keys.seek, m.keys.download, m.keys.open, m.keys.back, m.keys.quit}
	return strings.Join([]string{
		head,
		prefix + styles.bar.Render(bar) + suffix,
		"",
		status,
		m.renderNotice(),
		m.help.ShortHelpView(helpKeys),
	}, "\n")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
