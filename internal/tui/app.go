package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/internal/orchestrator"
	"github.com/ShayCichocki/jit/internal/state"
)

// Input commands handled by the App instead of the responder.
const (
	CommandTools        = "tools"
	CommandMemoryStatus = "memory:status"
	CommandMemoryClear  = "memory:clear"
	CommandQuit         = "quit"
)

// inputHeight is the bordered input box plus the status line above it.
const inputHeight = 4

// Responder answers one request. *orchestrator.Facade implements it.
type Responder interface {
	Respond(ctx context.Context, request string) *orchestrator.Response
}

// Memory is the session memory behind the memory commands.
type Memory interface {
	Status() (state.MemoryStatus, error)
	Clear() error
}

// Config wires the App to the rest of jit. Only Responder is required.
type Config struct {
	Responder Responder
	Memory    Memory
	Registry  func() *capability.Registry
	Version   string
}

// ResponseMsg carries the answer to a submitted request.
type ResponseMsg struct {
	Response *orchestrator.Response
}

// EventMsg forwards a progress event into the program.
type EventMsg struct {
	Event engine.Event
}

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	subtitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true)
	eventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// App is the bubbletea model for the chat interface.
type App struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	input      *InputField
	spinner    spinner.Model
	viewport   viewport.Model
	transcript *RingBuffer

	busy     bool
	status   string
	width    int
	height   int
	quitting bool
}

// NewApp creates an App.
func NewApp(cfg Config) *App {
	if cfg.Registry == nil {
		cfg.Registry = func() *capability.Registry { return nil }
	}
	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	a := &App{
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		input:      NewInputField(),
		spinner:    sp,
		viewport:   viewport.New(80, 20),
		transcript: NewRingBuffer(DefaultTranscriptLines),
	}
	a.note("Type a request, or tools, memory:status, memory:clear, quit.")
	return a
}

// NewProgram creates a bubbletea program running a new App.
func NewProgram(cfg Config) (*tea.Program, *App) {
	app := NewApp(cfg)
	return tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion()), app
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.input.Focus()
}

// Busy reports whether a request is in flight.
func (a *App) Busy() bool { return a.busy }

// Status returns the latest progress line.
func (a *App) Status() string { return a.status }

// Transcript returns the transcript entries, oldest first.
func (a *App) Transcript() []string { return a.transcript.Lines() }

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, a.quit()
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.SetWidth(msg.Width)
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-inputHeight-1, 3)
		a.refresh()
		return a, nil

	case SubmittedMsg:
		return a, a.submit(msg.Text)

	case EventMsg:
		status, line := DescribeEvent(msg.Event)
		if status != "" {
			a.status = status
		}
		if line != "" {
			a.append(eventStyle.Render(line))
		}
		return a, nil

	case ResponseMsg:
		a.busy = false
		a.status = ""
		if msg.Response != nil {
			a.append(assistantStyle.Render("jit: ") + msg.Response.Text)
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// submit runs a command or starts a request.
func (a *App) submit(text string) tea.Cmd {
	switch strings.ToLower(text) {
	case CommandQuit, "exit":
		return a.quit()
	case CommandTools:
		a.note(a.cfg.Registry().Describe())
		return nil
	case CommandMemoryStatus:
		a.memoryStatus()
		return nil
	case CommandMemoryClear:
		a.memoryClear()
		return nil
	}

	if a.busy {
		a.note("Still working on the previous request.")
		return nil
	}
	a.busy = true
	a.status = "Thinking..."
	a.append(userStyle.Render("You: ") + text)

	ctx, responder := a.ctx, a.cfg.Responder
	respond := func() tea.Msg {
		return ResponseMsg{Response: responder.Respond(ctx, text)}
	}
	return tea.Batch(a.spinner.Tick, respond)
}

func (a *App) memoryStatus() {
	if a.cfg.Memory == nil {
		a.note("Memory is not enabled.")
		return
	}
	ms, err := a.cfg.Memory.Status()
	if err != nil {
		a.note(fmt.Sprintf("Could not read memory: %v", err))
		return
	}
	a.note(fmt.Sprintf("Session %s: %d turns, ~%d tokens", ms.SessionID, ms.Turns, ms.Tokens))
}

func (a *App) memoryClear() {
	if a.cfg.Memory == nil {
		a.note("Memory is not enabled.")
		return
	}
	if err := a.cfg.Memory.Clear(); err != nil {
		a.note(fmt.Sprintf("Could not clear memory: %v", err))
		return
	}
	a.note("Conversation memory cleared.")
}

func (a *App) quit() tea.Cmd {
	a.quitting = true
	a.cancel()
	return tea.Quit
}

func (a *App) note(text string) {
	a.append(noticeStyle.Render(text))
}

func (a *App) append(line string) {
	a.transcript.Append(line)
	a.refresh()
}

// refresh re-renders the transcript into the viewport, pinned to the bottom.
func (a *App) refresh() {
	content := strings.Join(a.transcript.Lines(), "\n")
	if a.viewport.Width > 0 {
		content = lipgloss.NewStyle().Width(a.viewport.Width).Render(content)
	}
	a.viewport.SetContent(content)
	a.viewport.GotoBottom()
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}

	header := titleStyle.Render("jit")
	if a.cfg.Version != "" {
		header += subtitleStyle.Render(" " + a.cfg.Version)
	}

	status := ""
	if a.busy {
		status = a.spinner.View() + " " + statusStyle.Render(a.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		a.viewport.View(),
		status,
		a.input.View(),
	)
}
