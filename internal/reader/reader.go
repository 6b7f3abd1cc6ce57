// Package reader is a terminal reader for structured books. It shows one
// section at a time and marks sections read with a tracking.Tracker.
package reader

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jackzampolin/bitbybit/internal/tracking"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// lineHeight converts terminal rows to the pixel units the tracker's scroll
// proximity is configured in.
const lineHeight = 20

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E8E8E8"))

	chapterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	readStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00CC66")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)
)

// Options configures a reader.
type Options struct {
	Client  Client
	Tracker *tracking.Tracker
	BookID  string

	// SectionID opens this section first. The first unread section is
	// used when empty.
	SectionID string
}

type position struct {
	chapter, section int
}

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	client  Client
	tracker *tracking.Tracker
	bookID  string
	startID string

	chapters []Chapter
	order    []position
	current  int
	section  *types.Section
	sub      *tracking.Subscription
	events   chan tea.Msg

	viewport viewport.Model
	width    int
	height   int
	loading  bool
	status   string
	err      error
	quitting bool
}

type loadedMsg struct{ chapters []Chapter }

type sectionMsg struct {
	index   int
	section *types.Section
}

// readStateMsg carries a section whose read flag changed.
type readStateMsg struct{ section *types.Section }

type trackedMsg struct{ sectionID string }

type errMsg struct{ err error }

// New creates a reader model.
func New(ctx context.Context, opts Options) Model {
	if opts.Tracker == nil {
		opts.Tracker = tracking.NewTracker(tracking.TrackerConfig{Config: tracking.DefaultConfig()})
	}
	return Model{
		ctx:      ctx,
		client:   opts.Client,
		tracker:  opts.Tracker,
		bookID:   opts.BookID,
		startID:  opts.SectionID,
		current:  -1,
		events:   make(chan tea.Msg, 8),
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
		loading:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.listen())
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.client.OpenBook(m.ctx, m.bookID); err != nil {
			return errMsg{err}
		}
		chapters, err := m.client.Chapters(m.ctx, m.bookID)
		if err != nil {
			return errMsg{err}
		}
		return loadedMsg{chapters}
	}
}

// listen delivers tracker callbacks, which arrive on other goroutines.
func (m Model) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

func (m Model) fetch(index int) tea.Cmd {
	id := m.sectionAt(index).ID
	return func() tea.Msg {
		sec, err := m.client.Section(m.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return sectionMsg{index: index, section: sec}
	}
}

func (m Model) toggleRead() tea.Cmd {
	if m.section == nil {
		return nil
	}
	id, read := m.section.ID, m.section.IsRead
	return func() tea.Msg {
		var sec *types.Section
		var err error
		if read {
			sec, err = m.client.MarkUnread(m.ctx, id)
		} else {
			sec, err = m.client.MarkRead(m.ctx, id)
		}
		if err != nil {
			return errMsg{err}
		}
		return readStateMsg{sec}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			m.dispose()
			m.quitting = true
			return m, tea.Quit

		case "n", "right":
			if m.current >= 0 && m.current+1 < len(m.order) {
				return m, m.fetch(m.current + 1)
			}
			return m, nil

		case "p", "left":
			if m.current > 0 {
				return m, m.fetch(m.current - 1)
			}
			return m, nil

		case "m":
			return m, m.toggleRead()
		}

		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.reportScroll()
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.reportScroll()
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.render()
		m.reportScroll()
		return m, nil

	case loadedMsg:
		m.loading = false
		m.chapters = msg.chapters
		m.order = m.order[:0]
		for ci, ch := range m.chapters {
			for si := range ch.Sections {
				m.order = append(m.order, position{ci, si})
			}
		}
		if len(m.order) == 0 {
			m.status = "This book has no sections yet. Structure it first."
			return m, nil
		}
		return m, m.fetch(m.startIndex())

	case sectionMsg:
		m.open(msg.index, msg.section)
		return m, nil

	case trackedMsg:
		m.setRead(msg.sectionID, true)
		m.status = "Marked as read"
		return m, m.listen()

	case readStateMsg:
		m.setRead(msg.section.ID, msg.section.IsRead)
		if m.section != nil && m.section.ID == msg.section.ID {
			if msg.section.IsRead {
				m.dispose()
			} else {
				m.track()
			}
		}
		return m, nil

	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// open shows a section, replacing the previous subscription.
func (m *Model) open(index int, sec *types.Section) {
	m.dispose()
	m.current = index
	m.section = sec
	m.err = nil
	m.status = ""
	m.render()
	m.viewport.GotoTop()
	m.track()
}

func (m *Model) track() {
	m.dispose()
	if m.section == nil {
		return
	}
	id := m.section.ID
	events := m.events
	m.sub = m.tracker.Track(id, m.section.IsRead, m.metrics(), func() {
		select {
		case events <- trackedMsg{sectionID: id}:
		default:
		}
	})
}

func (m *Model) dispose() {
	if m.sub != nil {
		m.sub.Dispose()
		m.sub = nil
	}
}

func (m *Model) reportScroll() {
	if m.sub != nil {
		m.sub.ReportScroll(m.metrics())
	}
}

func (m Model) metrics() tracking.Viewport {
	return tracking.Viewport{
		ScrollTop:    float64(m.viewport.YOffset * lineHeight),
		ClientHeight: float64(m.viewport.Height * lineHeight),
		ScrollHeight: float64(m.viewport.TotalLineCount() * lineHeight),
	}
}

func (m *Model) render() {
	if m.section == nil {
		return
	}
	text := "(no text extracted for this section)"
	if m.section.ExtractedText != nil && strings.TrimSpace(*m.section.ExtractedText) != "" {
		text = *m.section.ExtractedText
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(max(m.viewport.Width-2, 20)).Render(text))
}

func (m *Model) setRead(sectionID string, read bool) {
	for ci := range m.chapters {
		for si := range m.chapters[ci].Sections {
			if m.chapters[ci].Sections[si].ID == sectionID {
				m.chapters[ci].Sections[si].IsRead = read
			}
		}
	}
	if m.section != nil && m.section.ID == sectionID {
		m.section.IsRead = read
	}
}

func (m Model) startIndex() int {
	first := -1
	for i := range m.order {
		sec := m.sectionAt(i)
		if m.startID != "" && sec.ID == m.startID {
			return i
		}
		if first < 0 && !sec.IsRead {
			first = i
		}
	}
	return max(first, 0)
}

func (m Model) sectionAt(i int) types.Section {
	p := m.order[i]
	return m.chapters[p.chapter].Sections[p.section]
}

// Progress returns read and total section counts.
func (m Model) Progress() (read, total int) {
	for _, ch := range m.chapters {
		for _, s := range ch.Sections {
			total++
			if s.IsRead {
				read++
			}
		}
	}
	return read, total
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.loading {
		return statusStyle.Render("Loading...")
	}

	var sb strings.Builder
	if m.section != nil {
		p := m.order[m.current]
		sb.WriteString(chapterStyle.Render(m.chapters[p.chapter].Title))
		sb.WriteString("\n")
		title := titleStyle.Render(m.section.Title)
		if m.section.IsRead {
			title += " " + readStyle.Render("✓ read")
		}
		sb.WriteString(title)
		sb.WriteString("\n")
		sb.WriteString(m.viewport.View())
		sb.WriteString("\n")
	}

	read, total := m.Progress()
	status := fmt.Sprintf("Section %d/%d | %d/%d read", m.current+1, len(m.order), read, total)
	if m.status != "" {
		status += " | " + m.status
	}
	sb.WriteString(statusStyle.Render(status))
	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}
	sb.WriteString("\n")
	sb.WriteString(controlsStyle.Render("↑/↓: scroll  ←/→ or p/n: section  m: toggle read  q: quit"))
	return sb.String()
}

// Run starts the reader full screen and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		m.dispose()
	}
	return err
}
