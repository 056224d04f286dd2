package studio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned by RunLoader when the user pressed ctrl+c.
var ErrCancelled = errors.New("cancelled")

type loadDoneMsg struct {
	result string
	err    error
}

type loaderModel struct {
	label   string
	work    func(ctx context.Context) (string, error)
	ctx     context.Context
	spinner spinner.Model
	result  string
	err     error
	done    bool
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.run(), m.spinner.Tick)
}

func (m loaderModel) run() tea.Cmd {
	work, ctx := m.work, m.ctx
	return func() tea.Msg {
		result, err := work(ctx)
		return loadDoneMsg{result: result, err: err}
	}
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadDoneMsg:
		m.result = msg.result
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = ErrCancelled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.label)
}

// RunLoader shows a spinner on out while work runs. It renders inline (no
// alt screen), so out should be a terminal distinct from where the result
// is printed. The work function receives ctx unchanged; pressing ctrl+c
// returns ErrCancelled without waiting for it.
func RunLoader(ctx context.Context, out io.Writer, label string, work func(ctx context.Context) (string, error)) (string, error) {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))

	m := loaderModel{
		label:   label,
		work:    work,
		ctx:     ctx,
		spinner: s,
	}
	p := tea.NewProgram(m, tea.WithOutput(out))
	result, err := p.Run()
	if err != nil {
		return "", err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
