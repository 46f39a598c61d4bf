package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	liveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))
)

// Pager shows rendered session content in an interactive viewport.
type Pager struct {
	title string
}

// NewPager creates a pager with the given header title.
func NewPager(title string) *Pager {
	return &Pager{title: title}
}

// Run displays static content until the user quits.
func (p *Pager) Run(content string) error {
	prog := tea.NewProgram(
		&pagerModel{title: p.title, content: content},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := prog.Run()
	return err
}

// RunLive displays content that re-renders whenever the transcript
// file changes, for watching a session as it runs.
func (p *Pager) RunLive(path string, render func() (string, error)) error {
	content, err := render()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch session: %w", err)
	}

	prog := tea.NewProgram(
		&pagerModel{
			title:   p.title,
			content: content,
			live:    true,
			render:  render,
			watcher: watcher,
		},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = prog.Run()
	return err
}

type transcriptChangedMsg struct{}

type pagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	wrapped  string
	ready    bool

	live    bool
	follow  bool
	render  func() (string, error)
	watcher *fsnotify.Watcher
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live {
		return m.waitForChange()
	}
	return nil
}

// waitForChange blocks on the watcher until the transcript grows.
// A short settle delay coalesces bursts of appends.
func (m *pagerModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					time.Sleep(100 * time.Millisecond)
					return transcriptChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case transcriptChangedMsg:
		if m.render != nil {
			if content, err := m.render(); err == nil {
				offset := m.viewport.YOffset
				m.content = content
				m.wrapped = wrapContent(m.content, m.viewport.Width)
				m.viewport.SetContent(m.wrapped)
				if m.follow {
					m.viewport.GotoBottom()
				} else {
					m.viewport.YOffset = offset
				}
			}
		}
		cmds = append(cmds, m.waitForChange())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "g":
			m.follow = false
			m.viewport.GotoTop()
		case "G":
			m.follow = false
			m.viewport.GotoBottom()
		case "f":
			if m.live {
				m.follow = !m.follow
				if m.follow {
					m.viewport.GotoBottom()
				}
			}
		}

	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 1, 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.wrapped = wrapContent(m.content, msg.Width)
		m.viewport.SetContent(m.wrapped)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	rule := strings.Repeat("─", maxInt(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerDimStyle.Render(rule))

	percent := 100
	if scrollable := m.viewport.TotalLineCount() - m.viewport.Height; scrollable > 0 {
		percent = m.viewport.YOffset * 100 / scrollable
		if percent > 100 {
			percent = 100
		}
	}
	info := fmt.Sprintf(" %d%% ", percent)

	help := " q: quit │ g/G: top/bottom "
	if m.live {
		indicator := liveStyle.Render("● LIVE")
		mode := "f: follow"
		if m.follow {
			mode = "f: unfollow"
		}
		help = fmt.Sprintf(" %s │ q: quit │ %s │ g/G: top/bottom ", indicator, mode)
	}
	pad := maxInt(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info))
	footer := pagerDimStyle.Render(help) +
		pagerDimStyle.Render(strings.Repeat("─", pad)) +
		pagerDimStyle.Render(info)

	return header + "\n" + m.viewport.View() + "\n" + footer
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// wrapContent wraps long lines to the viewport width, keeping the
// timeline's "seq │ time │" prefix column aligned on continuations.
func wrapContent(content string, width int) string {
	if width <= 0 {
		return content
	}

	var out []string
	for _, line := range strings.Split(content, "\n") {
		if lipgloss.Width(line) <= width {
			out = append(out, line)
			continue
		}

		if idx := strings.LastIndex(line, "│"); idx > 0 && idx < len(line)-1 {
			prefixWidth := lipgloss.Width(line[:idx+1]) + 1
			bodyWidth := maxInt(20, width-prefixWidth)

			start := idx + 1
			for start < len(line) && line[start] == ' ' {
				start++
			}
			wrapped := strings.Split(wordwrap.String(line[start:], bodyWidth), "\n")
			indent := strings.Repeat(" ", prefixWidth)

			out = append(out, line[:start]+wrapped[0])
			for _, cont := range wrapped[1:] {
				out = append(out, indent+cont)
			}
			continue
		}

		out = append(out, strings.Split(wordwrap.String(line, width), "\n")...)
	}
	return strings.Join(out, "\n")
}
