// Package tui provides the BubbleTea interactive search interface for
// sonicsearch: a header/input/results/status-bar layout with debounced live
// search, result rows showing (file, timestamp, distance).
//
//	┌─────────────────────────────────────┐
//	│  sonicsearch  semantic audio search  │  ← header
//	│  ❯ <query input>                     │  ← search bar
//	│  ─────────────────────────────────   │  ← divider
//	│  0.12  a_dog_barking.wav  @ 5.0s      │  ← results
//	│  ─────────────────────────────────   │  ← divider
//	│  [3 results]  ↑↓ enter  ^Q            │  ← status bar
//	└─────────────────────────────────────┘
package tui

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/screenager/sonicsearch/internal/bridge"
)

var (
	colorAccent  = lipgloss.Color("#7C6AF7")
	colorDim     = lipgloss.Color("#555555")
	colorMuted   = lipgloss.Color("#888888")
	colorText    = lipgloss.Color("#DDDDDD")
	colorSubdued = lipgloss.Color("#444444")
	colorScore   = lipgloss.Color("#5ECEF5")
	colorErr     = lipgloss.Color("#FF6B6B")
	colorGreen   = lipgloss.Color("#5AF078")

	sTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	sAccent  = lipgloss.NewStyle().Foreground(colorAccent)
	sDim     = lipgloss.NewStyle().Foreground(colorDim)
	sMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	sScore   = lipgloss.NewStyle().Foreground(colorScore).Bold(true)
	sPath    = lipgloss.NewStyle().Foreground(colorText)
	sDir     = lipgloss.NewStyle().Foreground(colorMuted)
	sErr     = lipgloss.NewStyle().Foreground(colorErr)
	sGreen   = lipgloss.NewStyle().Foreground(colorGreen)
	sSel     = lipgloss.NewStyle().Background(lipgloss.Color("#1E1A3A")).Foreground(colorText)
	sHint    = lipgloss.NewStyle().Foreground(colorDim).Background(lipgloss.Color("#111111"))
	sDivider = lipgloss.NewStyle().Foreground(colorSubdued)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type spinTickMsg struct{}

func spinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return spinTickMsg{} })
}

type (
	searchResultMsg []bridge.Hit
	errMsg          struct{ err error }
	debounceMsg     struct {
		query string
		id    int
	}
)

// Model is the BubbleTea application model.
type Model struct {
	b          *bridge.Bridge
	input      textinput.Model
	results    []bridge.Hit
	cursor     int
	err        error
	width      int
	height     int
	searching  bool
	spinFrame  int
	debounceID int
	lastQuery  string
}

// New creates a new TUI model backed by b.
func New(b *bridge.Bridge) Model {
	ti := textinput.New()
	ti.Placeholder = "search your sound library…"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60
	ti.PromptStyle = sAccent
	ti.Prompt = "❯ "
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorText)

	return Model{b: b, input: ti}
}

// Init is the BubbleTea init hook.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, spinTick())
}

// Update processes messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 8
		return m, nil

	case spinTickMsg:
		m.spinFrame = (m.spinFrame + 1) % len(spinnerFrames)
		return m, spinTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			return m, tea.Quit

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.results)-1 {
				m.cursor++
			}
			return m, nil

		case "enter":
			if len(m.results) > 0 {
				return m, openFile(m.results[m.cursor].FilePath)
			}
			return m, nil
		}

	case debounceMsg:
		if msg.id == m.debounceID && msg.query == m.input.Value() {
			if strings.TrimSpace(msg.query) == "" {
				m.searching = false
				m.results = nil
				return m, nil
			}
			m.searching = true
			m.lastQuery = msg.query
			return m, searchCmd(m.b, msg.query)
		}
		return m, nil

	case searchResultMsg:
		m.searching = false
		m.results = []bridge.Hit(msg)
		m.cursor = 0
		m.err = nil
		return m, nil

	case errMsg:
		m.searching = false
		m.err = msg.err
		return m, nil
	}

	prevVal := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != prevVal {
		m.debounceID++
		id := m.debounceID
		q := m.input.Value()
		return m, tea.Batch(cmd, debounceCmd(q, id, 280*time.Millisecond))
	}
	return m, cmd
}

// View renders the model.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	var b strings.Builder
	w := m.width
	divider := sDivider.Render(strings.Repeat("─", clamp(w-2, 10, 200)))

	left := "  " + sTitle.Render("sonicsearch") + "  " + sMuted.Render("semantic audio search")
	fmt.Fprintln(&b, left)

	fmt.Fprintln(&b, "  "+m.input.View())
	fmt.Fprintln(&b, "  "+divider)

	switch {
	case m.err != nil:
		fmt.Fprintln(&b, sErr.Render("  error: "+m.err.Error()))
	case m.searching:
		frame := spinnerFrames[m.spinFrame]
		fmt.Fprintln(&b, "  "+sAccent.Render(frame)+"  "+sMuted.Render("searching…"))
	case len(m.results) == 0 && m.input.Value() == "":
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, sMuted.Render("  Start typing to search your sound library."))
		fmt.Fprintln(&b, sDim.Render("  Natural language works: ")+sMuted.Render("\"a dog barking\""))
	case len(m.results) == 0:
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, sMuted.Render("  no results for ")+sAccent.Render("\""+m.lastQuery+"\""))
	default:
		bodyHeight := m.height - 6
		m.renderResults(&b, bodyHeight)
	}

	b.WriteString("\n  " + divider + "\n")
	m.renderStatusBar(&b)
	return b.String()
}

func (m *Model) renderResults(b *strings.Builder, maxRows int) {
	maxResults := maxRows
	if maxResults < 1 {
		maxResults = 1
	}
	for i, r := range m.results {
		if i >= maxResults {
			fmt.Fprintf(b, "  %s\n", sDim.Render(fmt.Sprintf("  … %d more results", len(m.results)-i)))
			break
		}

		dir := filepath.Dir(r.FilePath)
		base := filepath.Base(r.FilePath)
		score := fmt.Sprintf("%.3f", r.Distance)
		ts := fmt.Sprintf("@ %.1fs", r.StartingTimestamp)

		line := fmt.Sprintf("  %s  %s%s  %s", sScore.Render(score), sDir.Render(dir+"/"), sPath.Render(base), sMuted.Render(ts))
		if i == m.cursor {
			raw := score + "  " + dir + "/" + base + "  " + ts
			pad := clamp(m.width-len(raw)-3, 0, m.width)
			line = sSel.Render("  " + sScore.Render(score) + "  " + sDir.Render(dir+"/") + sPath.Render(base) + "  " + sMuted.Render(ts) + strings.Repeat(" ", pad))
		}
		fmt.Fprintln(b, line)
	}
}

func (m *Model) renderStatusBar(b *strings.Builder) {
	var left string
	switch {
	case len(m.results) > 0:
		left = sGreen.Render(fmt.Sprintf("  %d result", len(m.results)))
		if len(m.results) != 1 {
			left += sGreen.Render("s")
		}
	case m.err != nil:
		left = "  " + sErr.Render(m.err.Error())
	default:
		left = sDim.Render("  no results")
	}
	right := sHint.Render("↑↓ nav  enter open  ^q quit  ")
	fmt.Fprint(b, padBetween(left, right, m.width))
}

func debounceCmd(query string, id int, delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(delay)
		return debounceMsg{query: query, id: id}
	}
}

func searchCmd(b *bridge.Bridge, query string) tea.Cmd {
	return func() tea.Msg {
		hits, err := b.SearchIndex(context.Background(), query)
		if err != nil {
			return errMsg{err}
		}
		return searchResultMsg(hits)
	}
}

// openFile opens path with the host OS's default file handler. Playback
// itself is out of scope; this just hands the file to whatever the OS
// associates with .wav.
func openFile(path string) tea.Cmd {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "cmd"
	default:
		name = "xdg-open"
	}
	args := []string{path}
	if runtime.GOOS == "windows" {
		args = []string{"/c", "start", "", path}
	}
	c := exec.Command(name, args...)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		if err != nil {
			return errMsg{err}
		}
		return nil
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func padBetween(left, right string, width int) string {
	lv := visibleLen(left)
	rv := visibleLen(right)
	gap := width - lv - rv - 2
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func visibleLen(s string) int {
	n := 0
	inEsc := false
	for _, c := range s {
		if c == '\x1b' {
			inEsc = true
		}
		if inEsc {
			if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
