// Package shell is a terminal reader on top of a session.
package shell

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/yuanying/epubspread/internal/flow"
	"github.com/yuanying/epubspread/internal/session"
)

// Book is what the shell needs from an open session.
type Book interface {
	session.Navigator
	Spread() (left, right int, err error)
	PageText(page int) (string, error)
	SetSpread(on bool) error
}

var _ Book = (*session.Session)(nil)

const (
	chromeRows = 2 // header and status line
	frameRows  = 2 // page border
	frameCols  = 4 // page border and padding
	gutterCols = 1
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pageStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	blankStyle  = pageStyle.BorderForeground(lipgloss.Color("238"))
)

// TerminalLayout maps one layout unit to one terminal cell: a normal line
// is one row and a narrow glyph one column.
func TerminalLayout(v flow.Viewport) flow.Layout {
	return flow.Layout{Viewport: v, FontSize: 2, LineHeight: 0.5}
}

// PageViewport returns the size of one page on a terminal of the given size.
func PageViewport(width, height int, spread bool) flow.Viewport {
	cols := width - frameCols
	if spread {
		cols = (width-gutterCols)/2 - frameCols
	}
	return flow.Viewport{
		Width:  max(cols, 1),
		Height: max(height-chromeRows-frameRows, 1),
	}
}

// Model is the bubbletea model of the reader.
type Model struct {
	book   Book
	title  string
	spread bool

	width, height int
	page          flow.Viewport
	err           error
}

// New returns a model for a book already opened with TerminalLayout.
func New(book Book, title string, spread bool) Model {
	return Model{book: book, title: title, spread: spread}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.err = m.resize()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "right", "l", "n", " ", "pgdown":
			_, m.err = m.book.PageNext()
		case "left", "h", "p", "pgup":
			_, m.err = m.book.PagePrev()
		case "s":
			m.spread = !m.spread
			if m.err = m.book.SetSpread(m.spread); m.err == nil {
				m.err = m.resize()
			}
		}
	}
	return m, nil
}

func (m *Model) resize() error {
	if m.width == 0 || m.height == 0 {
		return nil
	}
	m.page = PageViewport(m.width, m.height, m.spread)
	return m.book.Resize(m.page)
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(truncate(m.title, m.width)))
	b.WriteString("\n")

	pages, err := m.renderPages()
	if err != nil {
		return b.String() + errorStyle.Render("Error: "+err.Error()) + "\n"
	}
	b.WriteString(pages)
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	} else {
		b.WriteString(statusStyle.Render(m.status()))
	}
	return b.String()
}

// status renders "progress / chapter / chapters", chapter counted from 1.
func (m Model) status() string {
	pos, err := m.book.Pos()
	if err != nil {
		return err.Error()
	}
	c, _ := m.book.Chapter()
	n, _ := m.book.NChapters()
	return fmt.Sprintf("%5.2f%% / %d / %d", pos, c+1, n)
}

func (m Model) renderPages() (string, error) {
	left, right, err := m.book.Spread()
	if err != nil {
		return "", err
	}
	l, err := m.renderPage(left)
	if err != nil {
		return "", err
	}
	if !m.spread {
		return l, nil
	}
	r, err := m.renderPage(right)
	if err != nil {
		return "", err
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, l, strings.Repeat(" ", gutterCols), r), nil
}

func (m Model) renderPage(page int) (string, error) {
	w, h := m.page.Width, m.page.Height
	if page < 0 {
		return blankStyle.Width(w + 2).Height(h).Render(""), nil
	}
	text, err := m.book.PageText(page)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimRight(wordwrap.String(text, w), "\n"), "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for i, ln := range lines {
		lines[i] = truncate(ln, w)
	}
	return pageStyle.Width(w + 2).Height(h).Render(strings.Join(lines, "\n")), nil
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if lipgloss.Width(b.String()+string(r)) > width {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
