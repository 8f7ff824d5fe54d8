package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"reflex/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat with the agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	memoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// answerMsg carries a finished request back into the UI loop.
type answerMsg struct {
	request string
	resp    *agent.Response
	err     error
}

type chatModel struct {
	stack    *stack
	viewport viewport.Model
	input    textinput.Model
	lines    []string
	busy     bool
	ready    bool
}

func newChatModel(s *stack) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask something..."
	ti.Focus()
	ti.CharLimit = 512

	return chatModel{
		stack: s,
		input: ti,
		lines: []string{helpStyle.Render("reflex ready. Enter a request, ctrl+c to quit.")},
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			request := strings.TrimSpace(m.input.Value())
			if request == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.appendLine(userStyle.Render("you: ") + request)
			m.appendLine(helpStyle.Render("thinking..."))
			return m, m.process(request)
		}

	case tea.WindowSizeMsg:
		inputHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight
		}
		m.refresh()

	case answerMsg:
		m.busy = false
		// Drop the "thinking..." line.
		if n := len(m.lines); n > 0 {
			m.lines = m.lines[:n-1]
		}
		m.appendLine(renderAnswer(msg))
		m.appendLine("")
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *chatModel) process(request string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.stack.agent.Process(context.Background(), request)
		return answerMsg{request: request, resp: resp, err: err}
	}
}

func renderAnswer(msg answerMsg) string {
	if msg.resp == nil {
		return errorStyle.Render(fmt.Sprintf("error: %v", msg.err))
	}
	switch msg.resp.Status {
	case agent.StatusFastPath:
		return memoryStyle.Render("memory: ") + msg.resp.Answer
	case agent.StatusSynthesized:
		return agentStyle.Render("agent: ") + msg.resp.Answer +
			helpStyle.Render(fmt.Sprintf("  (%d steps, %d calls)", msg.resp.Steps, msg.resp.ToolCalls))
	default:
		return errorStyle.Render("failed: " + msg.resp.LastError)
	}
}

func (m *chatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	if !m.ready {
		return "starting..."
	}
	return m.viewport.View() + "\n\n" + m.input.View()
}

func runChat() error {
	ctx := context.Background()
	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(newChatModel(s), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
