package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Step is one question shown by the task runner.
type Step struct {
	TaskTitle string
	Key       string
	Type      string
	Prompt    string
	Choices   []string
	Required  bool
	Progress  string
}

// Input is what the user entered for a step.
type Input struct {
	Key   string
	Value string
	Skip  bool
}

// SubmitFunc applies an input and returns the next step, or nil when the
// task has nothing left to ask.
type SubmitFunc func(ctx context.Context, in Input) (*Step, error)

type stepMsg struct {
	step *Step
	err  error
}

// RunnerModel asks a task's questions one at a time.
type RunnerModel struct {
	ctx     context.Context
	submit  SubmitFunc
	step    *Step
	input   textinput.Model
	spinner spinner.Model
	busy    bool
	pending Input
	err     error
	done    bool
	quit    bool
	asked   int
}

// NewRunner creates a runner starting at first.
func NewRunner(ctx context.Context, first *Step, submit SubmitFunc) RunnerModel {
	ti := textinput.New()
	ti.Placeholder = "type an answer"
	ti.CharLimit = 4096
	ti.Width = 60
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StylePrimary

	return RunnerModel{ctx: ctx, submit: submit, step: first, input: ti, spinner: sp, done: first == nil}
}

// RunTask runs the runner full-screen until the task is done or the user
// quits. It reports how many answers were submitted.
func RunTask(ctx context.Context, first *Step, submit SubmitFunc) (int, error) {
	final, err := tea.NewProgram(NewRunner(ctx, first, submit)).Run()
	if err != nil {
		return 0, fmt.Errorf("run task: %w", err)
	}
	m := final.(RunnerModel)
	return m.asked, nil
}

// Done reports whether the task has no more questions.
func (m RunnerModel) Done() bool { return m.done }

// Err is the last submission error.
func (m RunnerModel) Err() error { return m.err }

// Step is the question currently shown.
func (m RunnerModel) Step() *Step { return m.step }

func (m RunnerModel) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	return textinput.Blink
}

func (m RunnerModel) start(in Input) (tea.Model, tea.Cmd) {
	m.busy, m.err, m.pending = true, nil, in
	return m, tea.Batch(m.send(in), m.spinner.Tick)
}

func (m RunnerModel) send(in Input) tea.Cmd {
	submit, ctx := m.submit, m.ctx
	return func() tea.Msg {
		next, err := submit(ctx, in)
		return stepMsg{step: next, err: err}
	}
}

func (m RunnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
		if m.busy || m.done {
			return m, nil
		}
		switch msg.String() {
		case "enter":
			return m.start(Input{Key: m.step.Key, Value: strings.TrimSpace(m.input.Value())})
		case "ctrl+k":
			return m.start(Input{Key: m.step.Key, Skip: true})
		}

	case stepMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.asked++
		m.input.Reset()
		m.step = msg.step
		if m.step == nil {
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m RunnerModel) View() string {
	if m.done {
		return StyleSuccess.Render("✓ Nothing left to answer.") + "\n"
	}
	if m.quit {
		return ""
	}
	s := m.step
	var sb strings.Builder
	sb.WriteString(StyleHeader.Render(s.TaskTitle))
	if s.Progress != "" {
		sb.WriteString(StyleSubtle.Render(" " + s.Progress))
	}
	sb.WriteString("\n\n")

	title := s.Prompt
	if s.Required {
		title += StyleError.Render(" *")
	}
	sb.WriteString(StyleTitle.Render(title) + "\n")
	sb.WriteString(StyleSubtle.Render(s.Key+" · "+s.Type) + "\n")
	if len(s.Choices) > 0 {
		sb.WriteString(StyleSubtle.Render("choices: "+strings.Join(s.Choices, ", ")) + "\n")
	}
	sb.WriteString("\n" + StyleInputBox.Render(m.input.View()) + "\n")

	switch {
	case m.busy:
		sb.WriteString(m.spinner.View() + " saving\n")
	case m.err != nil:
		sb.WriteString(StyleError.Render("✗ "+m.err.Error()) + "\n")
	}
	help := "enter save · ctrl+k skip · esc quit"
	if s.Required {
		help = "enter save · esc quit"
	}
	sb.WriteString("\n" + StyleSubtle.Render(help) + "\n")
	return sb.String()
}
