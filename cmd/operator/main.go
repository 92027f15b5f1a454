package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// #region styles
var (
	// Nord palette
	nord0  = lipgloss.Color("#2E3440")
	nord3  = lipgloss.Color("#4C566A")
	nord4  = lipgloss.Color("#D8DEE9")
	nord8  = lipgloss.Color("#88C0D0")
	nord9  = lipgloss.Color("#81A1C1")
	nord11 = lipgloss.Color("#BF616A")
	nord13 = lipgloss.Color("#EBCB8B")
	nord14 = lipgloss.Color("#A3BE8C")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(nord8)
	sectionStyle = lipgloss.NewStyle().Foreground(nord9)
	sentStyle    = lipgloss.NewStyle().Foreground(nord13)
	errorStyle   = lipgloss.NewStyle().Foreground(nord11)
	okStyle      = lipgloss.NewStyle().Foreground(nord14)
	nameStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(nord0).Background(nord9)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(nord3).Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Faint(true).Foreground(nord4)
)

// #endregion styles

// #region model
type msgLinePoll struct{}

type msgDisconnected struct{ err error }

type model struct {
	addr   string
	conn   net.Conn
	lineCh chan string
	errCh  chan error

	names     []string
	log       []string
	input     textinput.Model
	vp        viewport.Model
	history   []string
	histIndex int
	width     int
	closed    bool
	lastErr   error
}

func newModel(addr string, conn net.Conn) *model {
	ti := textinput.New()
	ti.Placeholder = "name=const(1.0, 0.0, float, TIME_SEC_SINCE_GO, EVERY_FRAME)"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Width = 76
	ti.Focus()

	m := &model{
		addr:   addr,
		conn:   conn,
		lineCh: make(chan string, 1024),
		errCh:  make(chan error, 1),
		input:  ti,
		vp:     viewport.Model{Width: 80, Height: 16},
	}
	go m.readLines()
	return m
}

// readLines forwards server lines to the UI until the connection ends.
func (m *model) readLines() {
	sc := bufio.NewScanner(m.conn)
	for sc.Scan() {
		m.lineCh <- sc.Text()
	}
	m.errCh <- sc.Err()
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.scheduleLinePoll())
}

func (m *model) scheduleLinePoll() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg { return msgLinePoll{} })
}

// #endregion model

// #region update
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m, m.send(strings.TrimSpace(m.input.Value()))
		case "up":
			if m.histIndex > 0 {
				m.histIndex--
				m.input.SetValue(m.history[m.histIndex])
				m.input.CursorEnd()
			}
			return m, nil
		case "down":
			if m.histIndex < len(m.history)-1 {
				m.histIndex++
				m.input.SetValue(m.history[m.histIndex])
			} else {
				m.histIndex = len(m.history)
				m.input.SetValue("")
			}
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.vp.Width = max(40, msg.Width-4)
		m.vp.Height = max(5, msg.Height-9)
		m.input.Width = max(20, msg.Width-8)
		return m, nil
	case msgLinePoll:
		m.drain()
		if m.closed {
			return m, nil
		}
		return m, m.scheduleLinePoll()
	case msgDisconnected:
		m.closed = true
		m.lastErr = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) drain() {
	changed := false
	for i := 0; i < 512; i++ {
		select {
		case line := <-m.lineCh:
			m.receive(line)
			changed = true
			continue
		case err := <-m.errCh:
			m.closed = true
			m.lastErr = err
			m.appendLog(errorStyle.Render("connection closed"))
			changed = true
		default:
		}
		break
	}
	if changed {
		m.vp.SetContent(strings.Join(m.log, "\n"))
		m.vp.GotoBottom()
	}
}

func (m *model) receive(line string) {
	if strings.HasSuffix(line, " controllable with this connection.") {
		if name, err := strconv.Unquote(strings.TrimSuffix(line, " controllable with this connection.")); err == nil {
			m.names = append(m.names, name)
		}
	}
	switch {
	case strings.HasPrefix(line, "Error"):
		m.appendLog(errorStyle.Render(line))
	case strings.Contains(line, "="):
		m.appendLog(okStyle.Render(line))
	default:
		m.appendLog(line)
	}
}

func (m *model) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > 2000 {
		m.log = m.log[len(m.log)-2000:]
	}
}

// send writes one command line to the server.
func (m *model) send(line string) tea.Cmd {
	if line == "" || m.closed {
		return nil
	}
	m.input.SetValue("")
	m.history = append(m.history, line)
	m.histIndex = len(m.history)
	m.appendLog(sentStyle.Render("> " + line))
	m.vp.SetContent(strings.Join(m.log, "\n"))
	m.vp.GotoBottom()

	conn := m.conn
	return func() tea.Msg {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			return msgDisconnected{err: err}
		}
		return nil
	}
}

// #endregion update

// #region view
func (m *model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, titleStyle.Render("stimulus operator")+"  "+helpStyle.Render(m.addr))

	names := make([]string, len(m.names))
	for i, n := range m.names {
		names[i] = nameStyle.Render(n)
	}
	if len(names) == 0 {
		names = append(names, helpStyle.Render("<waiting for server>"))
	}
	fmt.Fprintln(b, sectionStyle.Render("Controllable:")+" "+strings.Join(names, " "))

	fmt.Fprintln(b, panelStyle.Render(m.vp.View()))
	if m.closed {
		status := "disconnected"
		if m.lastErr != nil {
			status += ": " + m.lastErr.Error()
		}
		fmt.Fprintln(b, errorStyle.Render(status))
	} else {
		fmt.Fprintln(b, m.input.View())
	}
	fmt.Fprint(b, helpStyle.Render("enter send · ↑/↓ history · pgup/pgdown scroll · go / show name / help · esc quit"))
	return b.String()
}

// #endregion view

// #region main
func main() {
	addr := flag.String("addr", envOr("STIM_TCP_ADDR", "localhost:7766"), "stimd TCP control address")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	p := tea.NewProgram(newModel(*addr, conn), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion main
