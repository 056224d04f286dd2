// Package studio is the interactive terminal front end: a session picker,
// an inline spinner for one-shot commands, and a split-pane editor where
// the user refines a resume by chatting with the model.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/pipeline"
)

// Runner applies one operation to a document state.
type Runner interface {
	Apply(ctx context.Context, st pipeline.State, op model.Operation) (pipeline.State, error)
}

// Opener hands a document to an external editor.
type Opener interface {
	Open(doc string) (string, error)
}

// Options wires the studio to its collaborators.
type Options struct {
	Runner  Runner
	Store   model.DocumentStore
	Editor  Opener // optional
	Session model.Session

	// Initial, when set, is dispatched as soon as the studio starts, e.g.
	// the tailor operation of a freshly created session.
	Initial *model.Operation
}

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

type chatRole int

const (
	roleUser chatRole = iota
	roleAssistant
	roleError
	roleNotice
)

type chatEntry struct {
	role chatRole
	text string
}

// operationDoneMsg is sent when an async operation and its revision write complete.
type operationDoneMsg struct {
	op    model.Operation
	state pipeline.State
	rev   model.Revision
	err   error
}

// revertDoneMsg is sent when an undo has been written to the store.
type revertDoneMsg struct {
	rev model.Revision
	err error
}

// handoffDoneMsg is sent when the document has been handed to the editor.
type handoffDoneMsg struct {
	path string
	err  error
}

type studioModel struct {
	opts Options
	// ctx scopes in-flight model calls; quitting cancels it.
	ctx     context.Context
	cancel  context.CancelFunc
	session model.Session
	state   pipeline.State
	// lineage is the stack of revision seqs the current document descends
	// from; undo pops it.
	lineage []int
	chat    []chatEntry

	busy      bool
	busyLabel string
	spinner   spinner.Model

	docView  viewport.Model
	chatView viewport.Model
	input    textarea.Model
	width    int
	height   int
	ready    bool
}

func newModel(ctx context.Context, opts Options, revs []model.Revision) studioModel {
	ta := textarea.New()
	ta.Placeholder = "Describe a change, e.g. \"emphasize Kubernetes experience\""
	ta.ShowLineNumbers = false
	ta.CharLimit = 2000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))

	ctx, cancel := context.WithCancel(ctx)
	m := studioModel{
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		session: opts.Session,
		state: pipeline.State{
			Role:           opts.Session.Role,
			JobDescription: opts.Session.JobDescription,
		},
		lineage: lineageOf(revs),
		spinner: sp,
		input:   ta,
	}
	if len(revs) > 0 {
		m.state.Document = revs[len(revs)-1].Content
	}
	if opts.Initial != nil {
		m.busy = true
		m.busyLabel = string(opts.Initial.Kind) + "…"
	}
	for _, rev := range revs {
		if rev.Kind == model.KindBase {
			continue
		}
		if rev.Kind == model.KindRefine {
			m.chat = append(m.chat, chatEntry{role: roleUser, text: rev.Instruction})
		}
		m.chat = append(m.chat, chatEntry{role: roleAssistant, text: describeRevision(rev)})
	}
	return m
}

// lineageOf replays a revision history into an undo stack. A revert
// replaces the revision it undid with itself.
func lineageOf(revs []model.Revision) []int {
	var lineage []int
	for _, rev := range revs {
		if rev.Kind == model.KindRevert && len(lineage) > 1 {
			lineage = lineage[:len(lineage)-1]
			lineage[len(lineage)-1] = rev.Seq
			continue
		}
		lineage = append(lineage, rev.Seq)
	}
	return lineage
}

func describeRevision(rev model.Revision) string {
	switch rev.Kind {
	case model.KindTailor:
		return fmt.Sprintf("Tailored the resume (revision %d).", rev.Seq)
	case model.KindRefine:
		return fmt.Sprintf("Applied your changes (revision %d).", rev.Seq)
	case model.KindShorten:
		return fmt.Sprintf("Removed one line (revision %d).", rev.Seq)
	case model.KindRevert:
		return fmt.Sprintf("Undid the last change (revision %d, %s).", rev.Seq, rev.Instruction)
	default:
		return fmt.Sprintf("Revision %d.", rev.Seq)
	}
}

func (m studioModel) Init() tea.Cmd {
	if m.opts.Initial != nil {
		return tea.Batch(textarea.Blink, m.operationCmd(*m.opts.Initial), m.spinner.Tick)
	}
	return textarea.Blink
}

func (m studioModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case operationDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.addChat(roleError, failureText(msg.err))
			return m, nil
		}
		m.state = msg.state
		m.lineage = append(m.lineage, msg.rev.Seq)
		if msg.op.Kind == model.KindTailor {
			m.session.Role = msg.state.Role
			m.session.JobDescription = msg.state.JobDescription
		}
		m.addChat(roleAssistant, describeRevision(msg.rev))
		m.refreshDocument()
		return m, nil

	case revertDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.addChat(roleError, "Undo failed: "+msg.err.Error())
			return m, nil
		}
		m.lineage = m.lineage[:len(m.lineage)-1]
		m.lineage[len(m.lineage)-1] = msg.rev.Seq
		m.state.Document = msg.rev.Content
		m.addChat(roleAssistant, describeRevision(msg.rev))
		m.refreshDocument()
		return m, nil

	case handoffDoneMsg:
		if msg.err != nil {
			m.addChat(roleError, "Could not open Overleaf: "+msg.err.Error())
		} else {
			m.addChat(roleNotice, "Opened in Overleaf via "+msg.path)
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m studioModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.cancel()
		return m, tea.Quit
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.docView, cmd = m.docView.Update(msg)
		return m, cmd
	}

	// One operation at a time: everything else waits for the reply.
	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.addChat(roleUser, text)
		return m.dispatch(model.Operation{Kind: model.KindRefine, Instruction: text})
	case "ctrl+s":
		m.addChat(roleNotice, "Shortening by one line…")
		return m.dispatch(model.Operation{Kind: model.KindShorten})
	case "ctrl+z":
		return m.undo()
	case "ctrl+o":
		return m, m.handoffCmd()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch marks the model busy and starts op.
func (m studioModel) dispatch(op model.Operation) (studioModel, tea.Cmd) {
	m.busy = true
	m.busyLabel = string(op.Kind) + "…"
	return m, tea.Batch(m.operationCmd(op), m.spinner.Tick)
}

// operationCmd runs op against the current state and records the result
// as a new revision.
func (m studioModel) operationCmd(op model.Operation) tea.Cmd {
	runner, store := m.opts.Runner, m.opts.Store
	st, session, ctx := m.state, m.session, m.ctx
	return func() tea.Msg {
		next, err := runner.Apply(ctx, st, op)
		if err != nil {
			return operationDoneMsg{op: op, err: err}
		}
		rev, err := store.AppendRevision(ctx, model.Revision{
			SessionID:   session.ID,
			Kind:        op.Kind,
			Instruction: op.Instruction,
			Content:     next.Document,
		})
		if err != nil {
			return operationDoneMsg{op: op, err: fmt.Errorf("save revision: %w", err)}
		}
		if op.Kind == model.KindTailor {
			session.Role, session.JobDescription = next.Role, next.JobDescription
			if err := store.UpdateSession(ctx, session); err != nil {
				return operationDoneMsg{op: op, err: fmt.Errorf("save session: %w", err)}
			}
		}
		return operationDoneMsg{op: op, state: next, rev: rev}
	}
}

func (m studioModel) undo() (tea.Model, tea.Cmd) {
	if len(m.lineage) < 2 {
		m.addChat(roleNotice, "Nothing to undo.")
		return m, nil
	}
	m.busy = true
	m.busyLabel = "undo…"

	store, sessionID, ctx := m.opts.Store, m.session.ID, m.ctx
	target := m.lineage[len(m.lineage)-2]
	return m, tea.Batch(func() tea.Msg {
		rev, err := store.Revert(ctx, sessionID, target)
		return revertDoneMsg{rev: rev, err: err}
	}, m.spinner.Tick)
}

func (m studioModel) handoffCmd() tea.Cmd {
	editor, doc := m.opts.Editor, m.state.Document
	if editor == nil {
		return nil
	}
	return func() tea.Msg {
		path, err := editor.Open(doc)
		return handoffDoneMsg{path: path, err: err}
	}
}

// failureText renders an operation error for the chat pane.
func failureText(err error) string {
	var rf *model.RequestFailedError
	switch {
	case errors.Is(err, model.ErrEmptyGeneration):
		return "No content received from the model. Your resume is unchanged."
	case errors.As(err, &rf):
		return "Gemini request failed: " + rf.Message + ". Your resume is unchanged."
	}
	if field, ok := model.MissingField(err); ok {
		return "Missing " + field + "."
	}
	return "Error: " + err.Error()
}

func (m *studioModel) addChat(role chatRole, text string) {
	m.chat = append(m.chat, chatEntry{role: role, text: text})
	if m.ready {
		m.chatView.SetContent(m.renderChat())
		m.chatView.GotoBottom()
	}
}

func (m *studioModel) refreshDocument() {
	if m.ready {
		m.docView.SetContent(m.state.Document)
	}
}

func (m *studioModel) recalcLayout() {
	// Border chars per pane + 1 gap between panes.
	docWidth := max(m.width*3/5-2, 20)
	chatWidth := max(m.width-docWidth-5, 20)

	// Header (1) + pane borders (2) + input with border (5) + status bar (1).
	paneHeight := max(m.height-9, 5)

	if !m.ready {
		m.docView = viewport.New(docWidth, paneHeight)
		m.chatView = viewport.New(chatWidth, paneHeight)
		m.ready = true
	} else {
		m.docView.Width, m.docView.Height = docWidth, paneHeight
		m.chatView.Width, m.chatView.Height = chatWidth, paneHeight
	}
	m.input.SetWidth(max(m.width-4, 20))

	m.docView.SetContent(m.state.Document)
	m.chatView.SetContent(m.renderChat())
	m.chatView.GotoBottom()
}

func (m studioModel) renderChat() string {
	if len(m.chat) == 0 {
		return noticeStyle.Render("Type a change below and press enter.")
	}

	width := max(m.chatView.Width-2, 10)
	var b strings.Builder
	for i, e := range m.chat {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case roleUser:
			b.WriteString(userStyle.Render("You: ") + wordWrap(e.text, width))
		case roleAssistant:
			b.WriteString(assistantStyle.Render(wordWrap(e.text, width)))
		case roleError:
			b.WriteString(errorStyle.Render("⚠ " + wordWrap(e.text, width)))
		default:
			b.WriteString(noticeStyle.Render(wordWrap(e.text, width)))
		}
	}
	return b.String()
}

func (m studioModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	name := sessionLabel(m.session)
	rev := 0
	if len(m.lineage) > 0 {
		rev = m.lineage[len(m.lineage)-1]
	}
	header := titleStyle.Render("Resume Studio") + metaStyle.Render(fmt.Sprintf("%s · revision %d", name, rev))

	docPane := inactiveBorderStyle.Width(m.docView.Width).Render(m.docView.View())
	chatPane := inactiveBorderStyle.Width(m.chatView.Width).Render(m.chatView.View())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, docPane, " ", chatPane)

	inputBorder := activeBorderStyle
	if m.busy {
		inputBorder = inactiveBorderStyle
	}
	input := inputBorder.Width(m.width - 2).Render(m.input.View())

	statusText := " enter refine  ctrl+s shorten  ctrl+z undo  ctrl+o overleaf  pgup/pgdn scroll  esc quit"
	if m.busy {
		statusText = " " + m.spinner.View() + " " + m.busyLabel + "  (esc quit)"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return header + "\n" + panes + "\n" + input + "\n" + statusBar
}

func wordWrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) <= width {
				line += " " + w
			} else {
				out = append(out, line)
				line = w
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Run loads the session's history and runs the studio in the alternate
// screen until the user quits.
func Run(ctx context.Context, opts Options) error {
	revs, err := opts.Store.Revisions(ctx, opts.Session.ID)
	if err != nil {
		return fmt.Errorf("load session history: %w", err)
	}

	m := newModel(ctx, opts, revs)
	defer m.cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
