package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/lgen/lang"
	"github.com/ardnew/lgen/log"
)

// editTemplatesMsg is sent when editing produced a valid source.
type editTemplatesMsg struct{ templates *lang.Templates }

// editCancelledMsg is sent when the user cleared the editor content.
type editCancelledMsg struct{}

// editDeclinedMsg is sent when the user declined to re-edit after a parse
// error.
type editDeclinedMsg struct{}

// editErrorMsg is sent when the edit process encounters a non-parse error.
type editErrorMsg struct{ err error }

const (
	evalPrompt = "➜ "
	ctrlPrompt = " :"
)

func helpMessage() string {
	return `
: Commands (press Esc to toggle mode):

  help              Print this cruft
  list              List templates with a body preview
  expand  TEMPLATE  Print every value TEMPLATE can produce
  analyze TEMPLATE  Print the variables and templates TEMPLATE uses
  check             Print the diagnostics of the source
  edit              Edit source in external $EDITOR
  clear             Clear screen
  quit              Exit REPL

Usage:
  Type a template name to evaluate it, or any LG body text such as
    "Hi ${user.name}" or "${Greeting()} there" to evaluate it inline
  Completions appear automatically as you type
  Press Tab / Shift-Tab to cycle through candidates
  Press Space to accept the current candidate
  Press Esc to toggle between eval and command modes
  Use Up/Down arrows for history navigation (mode switches automatically)
  Use Shift+Up/Shift+Down for history navigation within current mode only
  Use Alt+Up/Alt+Down to switch to command mode and navigate command history
    (restores original mode when reaching end of history)
  Press Ctrl+C on empty line or Ctrl+D to exit
`
}

// inputMode represents the current input mode.
type inputMode int

const (
	modeEval inputMode = iota
	modeCtrl
)

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	ctrlPromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
)

// formatCommand formats the command echo line with prompt and input styled.
func formatCommand(input string) string {
	return promptStyle.Render(evalPrompt) + inputStyle.Render(input)
}

// formatCtrlCommand formats the control command echo line with prompt and input
// styled.
func formatCtrlCommand(input string) string {
	return ctrlPromptStyle.Render(ctrlPrompt) + inputStyle.Render(input)
}

// Config holds the evaluation settings of a REPL session.
type Config struct {
	// Scope is the variable scope of every evaluation.
	Scope map[string]any
	// Options apply to every evaluation and expansion.
	Options []lang.EvalOption
	// HistoryDir is the directory of the history file. Empty keeps the
	// history in memory.
	HistoryDir string
	Logger     log.Logger
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ctxFunc          func() context.Context
	input            textinput.Model
	templates        *lang.Templates
	completer        completer
	scope            map[string]any
	opts             []lang.EvalOption
	logger           log.Logger
	history          *History
	historyIdx       int
	matches          fuzzy.Matches // current fuzzy match results
	candidates       []string      // backing candidate list
	wordStart        int           // byte offset of current word start
	wordEnd          int           // byte offset of current word end
	suggIdx          int           // selected candidate index
	tabActive        bool          // whether user is tab-cycling
	preTabText       string        // input text before tab-cycling began
	preTabCursor     int           // cursor position before tab-cycling began
	altNavActive     bool          // whether user is in Alt+Up/Down navigation
	altNavOrigMode   inputMode     // original mode before Alt navigation
	altNavOrigText   string        // original text before Alt navigation
	altNavOrigCursor int           // original cursor position before Alt navigation
	width            int           // terminal width for ellipsization
	quitting         bool
	mode             inputMode
	evalText         string
	evalCursor       int
	ctrlText         string
	ctrlCursor       int
}

// Run starts an interactive session over the templates of t.
func Run(ctx context.Context, t *lang.Templates, cfg Config) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	cfg.Logger.TraceContext(
		ctx,
		"repl start",
		slog.String("history_dir", cfg.HistoryDir),
		slog.Bool("has_source", t != nil),
	)

	if t == nil {
		return ErrNoSource
	}

	err = validate(t)
	if err != nil {
		return err
	}

	cfg.Logger.TraceContext(
		ctx,
		"repl source loaded",
		slog.String("id", t.ID),
		slog.Int("template_count", len(t.Templates)),
	)

	var path string
	if cfg.HistoryDir != "" {
		path = filepath.Join(cfg.HistoryDir, baseHistory)
	}

	history := NewHistory(path)

	err = history.Load()
	if err != nil {
		cfg.Logger.WarnContext(
			ctx,
			"could not load history",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}

	cfg.Logger.TraceContext(
		ctx,
		"repl history loaded",
		slog.Int("entry_count", history.Len()),
	)

	m := newModel(ctx, t, cfg, history)

	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err = p.Run()

	return err
}

// validate refuses sources whose closure has Error diagnostics.
func validate(t *lang.Templates) error {
	errs := lang.Errors(t.AllDiagnostics())
	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidSource, errs[0].String())
}

const defaultWidth = 80

func newModel(
	ctx context.Context,
	t *lang.Templates,
	cfg Config,
	history *History,
) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(evalPrompt)
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = defaultWidth

	return model{
		ctxFunc:    func() context.Context { return ctx },
		input:      ti,
		templates:  t,
		completer:  completer{templates: t, scope: cfg.Scope},
		scope:      cfg.Scope,
		opts:       cfg.Options,
		logger:     cfg.Logger,
		history:    history,
		historyIdx: history.Len(),
		width:      defaultWidth,
		mode:       modeEval,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(evalPrompt) - 2

		return m, nil

	case editTemplatesMsg:
		m.templates = msg.templates
		m.completer.templates = msg.templates
		m.logger.TraceContext(
			m.ctxFunc(),
			"repl edit complete",
			slog.Int("template_count", len(m.templates.Templates)),
		)

		return m, tea.Println(resultStyle.Render("✔ templates updated"))

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("edit cancelled"))

	case editDeclinedMsg:
		m.quitting = true

		return m, tea.Quit

	case editErrorMsg:
		return m, tea.Println(
			errorStyle.Render("error: " + msg.err.Error()),
		)
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n")

	input := m.input.Value()

	viewingHistory := m.historyIdx < m.history.Len()

	cursor := m.input.Position()
	funcCall := detectFunctionCall(input, cursor)

	switch {
	case viewingHistory:
		pos := m.historyIdx + 1
		total := m.history.Len()
		hint := fmt.Sprintf("%s/%d",
			lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(pos)),
			total)
		b.WriteString(hintStyle.Render(hint))
		b.WriteString("\n")

	case strings.TrimSpace(input) == "":
		var hint string
		if m.mode == modeEval {
			hint = "Type a template name or LG text, or press Esc for commands"
		} else {
			hint = "Type: " + strings.Join(ctrlCommands, ", ") + " (press Esc to return)"
		}

		b.WriteString(hintStyle.Render(hint))
		b.WriteString("\n")

	case funcCall.inCall && m.mode == modeEval:
		signature, params := getSignature(m.templates, funcCall.name)

		switch {
		case signature != "":
			b.WriteString(renderSignatureHint(signature, params, funcCall.argIndex))
		case len(m.matches) > 0:
			b.WriteString(m.candidateBar())
		}

		b.WriteString("\n")

	case len(m.matches) > 0:
		b.WriteString(m.candidateBar())
		b.WriteString("\n")

	default:
		b.WriteString("\n")
	}

	return b.String()
}

func (m model) candidateBar() string {
	return renderCandidateBar(
		m.matches, m.suggIdx, m.tabActive, m.width, m.completer.isFunction,
	)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(
		m.ctxFunc(),
		"repl keypress",
		slog.String("key", msg.String()),
		slog.Int("type", int(msg.Type)),
	)

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.tabActive = false
		m.altNavActive = false
		m.historyIdx = m.history.Len()
		refreshMatches(&m, false)

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if !m.tabActive || len(m.matches) == 0 {
			m.altNavActive = false

			return m.executeInput()
		}
		// Lock in the current tab candidate without executing.
		m.tabActive = false
		m.altNavActive = false
		refreshMatches(&m, true)

		return m, nil

	case tea.KeyTab:
		return m.cycle(1)

	case tea.KeyShiftTab:
		return m.cycle(-1)

	case tea.KeyUp:
		if msg.Alt {
			return m.historyStepCtrl(-1)
		}

		return m.historyPrev()

	case tea.KeyDown:
		if msg.Alt {
			return m.historyStepCtrl(1)
		}

		return m.historyNext()

	case tea.KeyShiftUp:
		return m.historyStepInMode(-1)

	case tea.KeyShiftDown:
		return m.historyStepInMode(1)

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.input.SetValue(m.preTabText)
			m.input.SetCursor(m.preTabCursor)
			refreshMatches(&m, false)

			return m, nil
		}

		m.altNavActive = false

		return m.toggleMode()

	case tea.KeyRunes, tea.KeySpace:
		// Space breaks out of tab-cycling, keeping the candidate.
		if m.tabActive && msg.String() == " " {
			m.tabActive = false
		}

		var cmd tea.Cmd

		m.historyIdx = m.history.Len()
		m.input, cmd = m.input.Update(msg)
		refreshMatches(&m, true)

		return m, cmd
	}

	// Other keys (backspace, delete, arrows) edit without auto-confirm.
	var cmd tea.Cmd

	m.tabActive = false
	m.altNavActive = false
	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	refreshMatches(&m, false)

	return m, cmd
}

// cycle moves the tab selection by step, wrapping at either end. A single
// candidate is completed immediately.
func (m model) cycle(step int) (model, tea.Cmd) {
	if len(m.matches) == 0 {
		return m, nil
	}

	if len(m.matches) == 1 {
		replaceCurrentWord(&m, m.matches[0].Str)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil

		return m, nil
	}

	n := len(m.matches)

	switch {
	case m.tabActive:
		m.suggIdx = (m.suggIdx + step + n) % n
	case step < 0:
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()
		m.suggIdx = n - 1
	default:
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()
		m.suggIdx = 0
	}

	replaceCurrentWord(&m, m.matches[m.suggIdx].Str)

	return m, nil
}

// replaceCurrentWord replaces the current word boundaries in the input with
// the given replacement text and repositions the cursor.
func replaceCurrentWord(m *model, replacement string) {
	input := m.input.Value()
	newInput := input[:m.wordStart] + replacement + input[m.wordEnd:]
	newCursor := m.wordStart + len(replacement)

	m.input.SetValue(newInput)
	m.input.SetCursor(newCursor)

	m.wordEnd = newCursor
}

// refreshMatches recomputes fuzzy matches for the current input state.
// With autoConfirm it also confirms the completion when exactly one
// candidate remains and the typed word already equals it. Deletions and
// cursor movement pass false so editing never completes unexpectedly.
func refreshMatches(m *model, autoConfirm bool) {
	m.matches, m.candidates, m.wordStart, m.wordEnd = m.computeMatches()

	if !m.tabActive {
		m.suggIdx = -1
	}

	if !autoConfirm || len(m.matches) != 1 {
		return
	}

	candidate := m.matches[0].Str
	word := m.input.Value()[m.wordStart:m.wordEnd]

	if word == candidate {
		replaceCurrentWord(m, candidate)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil
	}
}

func (m model) executeInput() (model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return m, nil
	}

	m.evalText = ""
	m.evalCursor = 0
	m.ctrlText = ""
	m.ctrlCursor = 0
	m.input.SetValue("")
	refreshMatches(&m, false)

	err := m.history.Add(input, m.mode)
	if err != nil {
		m.logger.WarnContext(
			m.ctxFunc(),
			"could not save history",
			slog.Any("error", err),
		)
	}

	m.historyIdx = m.history.Len()

	if m.mode == modeCtrl {
		m.logger.TraceContext(
			m.ctxFunc(),
			"repl command",
			slog.String("input", input),
		)

		return m.executeCommand(input)
	}

	m.logger.TraceContext(
		m.ctxFunc(),
		"repl eval",
		slog.String("input", input),
	)

	echoCmd := tea.Println(formatCommand(input))

	result, err := m.evaluate(input)
	if err != nil {
		m.logger.TraceContext(
			m.ctxFunc(),
			"repl eval result",
			slog.String("result_type", "error"),
			slog.String("error", err.Error()),
		)

		return m, tea.Sequence(
			echoCmd,
			tea.Println(errorStyle.Render("error: "+err.Error())),
		)
	}

	return m, tea.Sequence(echoCmd, tea.Println(resultStyle.Render(result)))
}

// evaluate evaluates input as a template name when it names one (with an
// optional trailing '!'), and as inline LG body text otherwise.
func (m model) evaluate(input string) (string, error) {
	ctx := m.ctxFunc()

	var (
		v   any
		err error
	)

	if _, ok := m.templates.Template(strings.TrimSuffix(input, "!")); ok {
		v, err = m.templates.Evaluate(ctx, input, m.scope, m.opts...)
	} else {
		v, err = m.templates.EvaluateText(ctx, input, m.scope, m.opts...)
	}

	if err != nil {
		return "", err
	}

	return lang.Stringify(v), nil
}

func (m model) executeCommand(input string) (model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	echoCmd := tea.Println(formatCtrlCommand(input))

	cmd, args := parts[0], parts[1:]

	m.logger.TraceContext(
		m.ctxFunc(),
		"repl exec command",
		slog.String("command", cmd),
		slog.Any("args", args),
	)

	switch cmd {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echoCmd, tea.Quit)

	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echoCmd, m.handleEdit())
	}

	out, err := m.commandOutput(cmd, args)
	if err != nil {
		return m, tea.Sequence(
			echoCmd,
			tea.Println(errorStyle.Render("error: "+err.Error())),
		)
	}

	return m, tea.Sequence(echoCmd, tea.Println(out))
}

// commandOutput returns the printed output of the control commands that
// only report on the loaded templates.
func (m model) commandOutput(cmd string, args []string) (string, error) {
	ctx := m.ctxFunc()

	var (
		v   any
		err error
	)

	switch cmd {
	case "h", "help":
		return helpMessage(), nil

	case "l", "list":
		return m.listTemplates(), nil

	case "x", "expand":
		if len(args) == 0 {
			return "", ErrNoTemplate
		}

		v, err = m.templates.Expand(ctx, args[0], m.scope, m.opts...)

	case "a", "analyze":
		if len(args) == 0 {
			return "", ErrNoTemplate
		}

		v, err = m.templates.Analyze(ctx, args[0])

	case "check":
		ds := m.templates.AllDiagnostics()
		if len(ds) == 0 {
			return resultStyle.Render("no diagnostics"), nil
		}

		v = ds

	default:
		return "", fmt.Errorf("%w: %s (try 'help')", ErrUnknownCmd, cmd)
	}

	if err != nil {
		return "", err
	}

	var buf bytes.Buffer

	err = lang.Encode(ctx, &buf, v, lang.EncodingText, 0)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(buf.String(), "\n"), nil
}

func (m model) handleEdit() tea.Cmd {
	cmd := &editTemplatesCommand{
		templates: m.templates,
		ctxFunc:   m.ctxFunc,
		logger:    m.logger,
	}

	return tea.Exec(cmd, func(err error) tea.Msg {
		if errors.Is(err, ErrEditDeclined) {
			return editDeclinedMsg{}
		}

		if err != nil {
			return editErrorMsg{err: err}
		}

		if cmd.edited == nil {
			return editCancelledMsg{}
		}

		return editTemplatesMsg{templates: cmd.edited}
	})
}

// showEntry loads history entry i into the input, switching to its mode
// when switchMode is set.
func (m model) showEntry(i int, switchMode bool) (model, bool) {
	entry, err := m.history.Entry(i)
	if err != nil {
		return m, false
	}

	if switchMode && m.mode != entry.Mode {
		m, _ = m.switchToMode(entry.Mode)
	}

	m.historyIdx = i
	m.input.SetValue(entry.Line)
	m.input.SetCursor(len(entry.Line))
	refreshMatches(&m, false)

	return m, true
}

// clearEntry leaves history navigation with an empty input.
func (m model) clearEntry() model {
	m.historyIdx = m.history.Len()
	m.input.SetValue("")
	refreshMatches(&m, false)

	return m
}

func (m model) historyPrev() (model, tea.Cmd) {
	if m.historyIdx > 0 {
		m, _ = m.showEntry(m.historyIdx-1, true)
	}

	return m, nil
}

func (m model) historyNext() (model, tea.Cmd) {
	if m.historyIdx < m.history.Len()-1 {
		m, _ = m.showEntry(m.historyIdx+1, true)

		return m, nil
	}

	return m.clearEntry(), nil
}

// findEntry returns the index of the next entry of the given mode from the
// history index in direction step, or -1.
func (m model) findEntry(mode inputMode, step int) int {
	for i := m.historyIdx + step; i >= 0 && i < m.history.Len(); i += step {
		entry, err := m.history.Entry(i)
		if err == nil && entry.Mode == mode {
			return i
		}
	}

	return -1
}

func (m model) historyStepInMode(step int) (model, tea.Cmd) {
	if i := m.findEntry(m.mode, step); i >= 0 {
		m, _ = m.showEntry(i, false)

		return m, nil
	}

	// Past the newest entry of this mode, clear the input.
	if step > 0 && m.historyIdx < m.history.Len() {
		return m.clearEntry(), nil
	}

	return m, nil
}

// historyStepCtrl navigates the command history, switching to command mode
// first. Running off either end restores the mode and input from before.
func (m model) historyStepCtrl(step int) (model, tea.Cmd) {
	if !m.altNavActive {
		m.altNavActive = true
		m.altNavOrigMode = m.mode
		m.altNavOrigText = m.input.Value()
		m.altNavOrigCursor = m.input.Position()

		if m.mode != modeCtrl {
			m, _ = m.switchToMode(modeCtrl)
		}
	}

	if i := m.findEntry(modeCtrl, step); i >= 0 {
		m, _ = m.showEntry(i, false)

		return m, nil
	}

	m.altNavActive = false
	if m.altNavOrigMode != m.mode {
		m, _ = m.switchToMode(m.altNavOrigMode)
	}

	m.input.SetValue(m.altNavOrigText)
	m.input.SetCursor(m.altNavOrigCursor)
	m.historyIdx = m.history.Len()
	refreshMatches(&m, false)

	return m, nil
}

func (m model) listTemplates() string {
	var b strings.Builder

	for tpl := range m.templates.All() {
		fmt.Fprintf(&b, "  %s %s\n", tpl.Name, hintStyle.Render(formatPreview(tpl)))
	}

	return strings.TrimRight(b.String(), "\n")
}

// toggleMode switches between eval and control modes, preserving input state.
func (m model) toggleMode() (model, tea.Cmd) {
	if m.mode == modeEval {
		return m.switchToMode(modeCtrl)
	}

	return m.switchToMode(modeEval)
}

// switchToMode switches to the specified mode, preserving input state.
func (m model) switchToMode(mode inputMode) (model, tea.Cmd) {
	if m.mode == modeEval {
		m.evalText = m.input.Value()
		m.evalCursor = m.input.Position()
	} else {
		m.ctrlText = m.input.Value()
		m.ctrlCursor = m.input.Position()
	}

	m.mode = mode
	if mode == modeEval {
		m.input.Prompt = promptStyle.Render(evalPrompt)
		m.input.SetValue(m.evalText)
		m.input.SetCursor(m.evalCursor)
	} else {
		m.input.Prompt = ctrlPromptStyle.Render(ctrlPrompt)
		m.input.SetValue(m.ctrlText)
		m.input.SetCursor(m.ctrlCursor)
	}

	refreshMatches(&m, false)

	return m, nil
}
