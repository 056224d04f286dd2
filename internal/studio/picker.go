package studio

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/resumetailor/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// Choice is the result of the session picker.
type Choice struct {
	Quit    bool
	New     bool          // start a new session
	Session model.Session // set when an existing session was chosen
}

type pickerModel struct {
	sessions []model.Session
	cursor   int // 0 is "new session", i+1 is sessions[i]
	choice   Choice
	done     bool
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.choice = Choice{Quit: true}
			m.done = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.sessions) {
				m.cursor++
			}
		case "n":
			m.choice = Choice{New: true}
			m.done = true
			return m, tea.Quit
		case "enter":
			if m.cursor == 0 {
				m.choice = Choice{New: true}
			} else {
				m.choice = Choice{Session: m.sessions[m.cursor-1]}
			}
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.done {
		return ""
	}
	s := pickerTitleStyle.Render("Resume Studio · Select a session")
	s += "\n"

	s += m.renderItem(0, "+ New session", "")
	for i, sess := range m.sessions {
		s += m.renderItem(i+1, sessionLabel(sess), RelativeAge(sess.UpdatedAt, time.Now()))
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  n new  q quit")
	return s
}

func (m pickerModel) renderItem(i int, label, meta string) string {
	if meta != "" {
		label += "  " + pickerMetaStyle.Render(meta)
	}
	if i == m.cursor {
		return pickerSelectedStyle.Render("> "+label) + "\n"
	}
	return pickerItemStyle.Render(label) + "\n"
}

func sessionLabel(s model.Session) string {
	name := s.Name
	if name == "" {
		name = "untitled"
	}
	if s.Role != "" {
		return fmt.Sprintf("%s (%s)", name, s.Role)
	}
	return name
}

// RunSessionPicker shows an interactive session selector. The first entry
// always starts a new session.
func RunSessionPicker(sessions []model.Session) (Choice, error) {
	m := pickerModel{sessions: sessions}

	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return Choice{}, err
	}

	final := result.(pickerModel)
	if !final.done {
		return Choice{Quit: true}, nil
	}
	return final.choice, nil
}

// RelativeAge formats how long ago t was, for compact listings.
func RelativeAge(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
