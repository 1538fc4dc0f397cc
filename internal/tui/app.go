// Package tui is the terminal front end: a start view that collects the
// journey and flow ids, and a step view that shows the current journey form.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jask/idojourney/internal/ido"
	"github.com/jask/idojourney/internal/journey"
	"github.com/jask/idojourney/internal/prefs"
)

type appState string

const (
	viewStart appState = "start"
	viewStep  appState = "step"
)

// App ties the start and step views together.
type App struct {
	ctx  context.Context
	svc  *journey.Service
	log  *zap.Logger
	// prompts is nil when the authenticator never asks for confirmation
	prompts *Prompts
	prompt  *promptMsg
	keys keyMap
	help help.Model

	state appState
	width int

	startInputs []textinput.Model
	startFocus  int

	sess   *journey.Session
	fields []textinput.Model
	focus  int

	busy    bool
	spinner spinner.Model
	// gen increments on restart; replies from an older generation are dropped
	gen int

	status    string
	statusErr bool
}

func New(ctx context.Context, svc *journey.Service, prompts *Prompts, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	journeyIn := textinput.New()
	journeyIn.Prompt = "Journey ID: "
	journeyIn.Placeholder = "e.g. register"
	journeyIn.Focus()
	flowIn := textinput.New()
	flowIn.Prompt = "Flow ID:    "
	flowIn.Placeholder = "optional"

	return &App{
		ctx:         ctx,
		svc:         svc,
		log:         log,
		prompts:     prompts,
		keys:        defaultKeys(),
		help:        help.New(),
		state:       viewStart,
		width:       80,
		startInputs: []textinput.Model{journeyIn, flowIn},
		spinner:     sp,
	}
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.loadPrefs(), textinput.Blink}
	if a.prompts != nil {
		cmds = append(cmds, a.prompts.wait())
	}
	return tea.Batch(cmds...)
}

func (a *App) loadPrefs() tea.Cmd {
	return func() tea.Msg {
		if a.svc == nil || a.svc.Prefs == nil {
			return prefsMsg{}
		}
		return prefsMsg{
			journeyID: a.svc.Prefs.Get(a.ctx, prefs.KeyJourneyID, ""),
			flowID:    a.svc.Prefs.Get(a.ctx, prefs.KeyFlowID, ""),
		}
	}
}

func (a *App) startCmd(journeyID, flowID string) tea.Cmd {
	gen := a.gen
	return func() tea.Msg {
		resp, err := a.svc.Start(a.ctx, journeyID, flowID)
		return responseMsg(gen, journey.Submission{}, resp, err)
	}
}

func (a *App) submitCmd(sub journey.Submission) tea.Cmd {
	gen := a.gen
	return func() tea.Msg {
		resp, err := a.svc.Submit(a.ctx, sub)
		return responseMsg(gen, sub, resp, err)
	}
}

func (a *App) authCmd(action *journey.Action, v journey.Values) tea.Cmd {
	gen := a.gen
	return func() tea.Msg {
		sub, err := a.svc.Authenticate(a.ctx, action, v)
		if err != nil {
			return authFailedMsg{gen: gen, err: err}
		}
		return authDoneMsg{gen: gen, sub: sub}
	}
}

func responseMsg(gen int, sub journey.Submission, resp ido.ServiceResponse, err error) tea.Msg {
	if err != nil && !errors.Is(err, ido.ErrUnsupportedStep) {
		return journeyErrMsg{gen: gen, err: err}
	}
	return stepMsg{gen: gen, sub: sub, resp: resp}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.help.Width = m.Width
		return a, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(m, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(m, a.keys.Restart):
			next := a.answerPrompt(false)
			a.restart()
			return a, tea.Batch(textinput.Blink, next)
		}
		if a.prompt != nil {
			switch {
			case key.Matches(m, a.keys.Confirm):
				return a, a.answerPrompt(true)
			case key.Matches(m, a.keys.Decline):
				return a, a.answerPrompt(false)
			}
			return a, nil
		}
		if a.busy {
			return a, nil
		}
		if a.state == viewStart {
			return a.handleStartKey(m)
		}
		return a.handleStepKey(m)
	case promptMsg:
		a.prompt = &m
		return a, nil
	case prefsMsg:
		if m.journeyID != "" {
			a.startInputs[0].SetValue(m.journeyID)
		}
		if m.flowID != "" {
			a.startInputs[1].SetValue(m.flowID)
		}
		return a, nil
	case stepMsg:
		if m.gen != a.gen {
			return a, nil
		}
		a.busy = false
		a.applyStep(m.sub, m.resp)
		return a, textinput.Blink
	case journeyErrMsg:
		if m.gen != a.gen {
			return a, nil
		}
		a.busy = false
		a.log.Error("journey error", zap.String("kind", string(ido.KindOf(m.err))), zap.Error(m.err))
		if a.sess != nil {
			a.sess.Fail(m.err)
		}
		a.setError(m.err)
		return a, nil
	case authDoneMsg:
		if m.gen != a.gen {
			return a, nil
		}
		return a, a.submitCmd(m.sub)
	case authFailedMsg:
		if m.gen != a.gen {
			return a, nil
		}
		a.busy = false
		a.sess.Fail(m.err)
		a.setError(m.err)
		return a, nil
	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(m)
		return a, cmd
	}
	return a, a.updateFocusedInput(msg)
}

func (a *App) handleStartKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Next), key.Matches(m, a.keys.Prev):
		dir := 1
		if key.Matches(m, a.keys.Prev) {
			dir = -1
		}
		a.startInputs[a.startFocus].Blur()
		a.startFocus = (a.startFocus + dir + len(a.startInputs)) % len(a.startInputs)
		a.startInputs[a.startFocus].Focus()
		return a, nil
	case key.Matches(m, a.keys.Press):
		journeyID := strings.TrimSpace(a.startInputs[0].Value())
		if journeyID == "" {
			a.setError(errors.New("journey id is required"))
			return a, nil
		}
		flowID := strings.TrimSpace(a.startInputs[1].Value())
		a.sess = journey.NewSession(journeyID, flowID)
		a.busy = true
		a.status, a.statusErr = "starting "+journeyID, false
		return a, tea.Batch(a.spinner.Tick, a.startCmd(journeyID, flowID))
	}
	return a, a.updateFocusedInput(m)
}

func (a *App) handleStepKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := a.focusables()
	switch {
	case key.Matches(m, a.keys.Next), key.Matches(m, a.keys.Prev):
		if n == 0 {
			return a, nil
		}
		dir := 1
		if key.Matches(m, a.keys.Prev) {
			dir = -1
		}
		a.setFocus((a.focus + dir + n) % n)
		return a, nil
	case key.Matches(m, a.keys.Press):
		if n == 0 {
			return a, nil
		}
		if a.focus < len(a.fields) {
			// enter in a field moves on, so the last field lands on the primary button
			a.setFocus((a.focus + 1) % n)
			return a, nil
		}
		return a, a.press(a.focus - len(a.fields))
	}
	return a, a.updateFocusedInput(m)
}

// press runs button i of the current form. Authenticate actions show the
// loading element first; submissions go straight to the service.
func (a *App) press(i int) tea.Cmd {
	btn, err := a.sess.Button(i)
	if err != nil {
		a.setError(err)
		return nil
	}
	if !btn.Escape {
		if bad, err := a.invalidField(); err != nil {
			a.setFocus(bad)
			a.setError(err)
			return nil
		}
	}
	values := a.values()
	a.busy = true
	a.status, a.statusErr = "", false
	if btn.Action.Kind == journey.ActionAuthenticate {
		a.sess.ShowLoading()
		return tea.Batch(a.spinner.Tick, a.authCmd(btn.Action, values))
	}
	return tea.Batch(a.spinner.Tick, a.submitCmd(btn.Action.Submission(values)))
}

func (a *App) applyStep(sub journey.Submission, resp ido.ServiceResponse) {
	if a.sess == nil {
		a.sess = journey.NewSession("", "")
	}
	a.state = viewStep
	err := a.sess.Accept(sub, resp)
	a.buildFields()
	if err != nil {
		a.log.Error("unsupported journey step", zap.String("step", resp.StepTag), zap.Error(err))
		a.setError(err)
		return
	}
	if a.sess.Done() {
		a.status, a.statusErr = "journey finished, ctrl+r to start again", false
		return
	}
	a.status, a.statusErr = "", false
}

func (a *App) buildFields() {
	inputs := a.sess.Form.Inputs()
	a.fields = make([]textinput.Model, 0, len(inputs))
	for _, in := range inputs {
		ti := textinput.New()
		ti.Placeholder = in.Hint
		ti.Prompt = "> "
		if in.Input == journey.InputPhone {
			ti.CharLimit = 20
			ti.Validate = validatePhone
		}
		a.fields = append(a.fields, ti)
	}
	a.setFocus(0)
}

func validatePhone(s string) error {
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ' ', r == '-':
		case r == '+' && i == 0:
		default:
			return fmt.Errorf("invalid character %q", r)
		}
	}
	return nil
}

// invalidField returns the first field whose input failed validation.
func (a *App) invalidField() (int, error) {
	for i, f := range a.fields {
		if f.Err != nil {
			return i, f.Err
		}
	}
	return 0, nil
}

func (a *App) focusables() int {
	if a.sess == nil {
		return 0
	}
	return len(a.fields) + len(a.sess.Form.Buttons())
}

func (a *App) setFocus(i int) {
	for j := range a.fields {
		a.fields[j].Blur()
	}
	a.focus = i
	if i < len(a.fields) {
		a.fields[i].Focus()
	}
}

func (a *App) values() journey.Values {
	v := journey.Values{}
	for i, in := range a.sess.Form.Inputs() {
		if i < len(a.fields) {
			v[in.ID] = strings.TrimSpace(a.fields[i].Value())
		}
	}
	return v
}

func (a *App) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.state {
	case viewStart:
		a.startInputs[a.startFocus], cmd = a.startInputs[a.startFocus].Update(msg)
	case viewStep:
		if a.focus < len(a.fields) {
			a.fields[a.focus], cmd = a.fields[a.focus].Update(msg)
		}
	}
	return cmd
}

// answerPrompt replies to a pending confirmation and listens for the next.
func (a *App) answerPrompt(ok bool) tea.Cmd {
	if a.prompt == nil {
		return nil
	}
	a.prompt.reply <- ok
	a.prompt = nil
	return a.prompts.wait()
}

func (a *App) restart() {
	a.gen++
	a.state = viewStart
	a.sess = nil
	a.fields = nil
	a.focus = 0
	a.busy = false
	a.status, a.statusErr = "", false
	for i := range a.startInputs {
		a.startInputs[i].Blur()
	}
	a.startFocus = 0
	a.startInputs[0].Focus()
}

func (a *App) setError(err error) {
	a.status, a.statusErr = err.Error(), true
}

func (a *App) View() string {
	var body string
	switch {
	case a.prompt != nil:
		body = a.promptView()
	case a.state == viewStep:
		body = a.stepView()
	default:
		body = a.startView()
	}
	status := mutedStyle.Render(a.status)
	if a.statusErr {
		status = errorStyle.Render(a.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("idojourney"),
		body,
		status,
		a.help.View(a.keys),
	)
}

func (a *App) promptView() string {
	t := a.prompt.texts
	lines := []string{
		titleStyle.Render(t.Subtitle),
		"",
		buttonFocused.Render("[y] Confirm") + " " + escapeStyle.Render("[n] "+t.Cancel),
	}
	return pane{title: t.Title, content: strings.Join(lines, "\n"), focused: true}.render(a.width, 0)
}

func (a *App) startView() string {
	lines := make([]string, 0, len(a.startInputs)+2)
	for _, in := range a.startInputs {
		lines = append(lines, in.View())
	}
	if a.busy {
		lines = append(lines, "", a.spinner.View()+" starting…")
	}
	return pane{title: "Start a journey", content: strings.Join(lines, "\n"), focused: true}.render(a.width, 0)
}

func (a *App) stepView() string {
	if a.sess == nil {
		return ""
	}
	form := a.sess.Form
	var lines, buttons []string
	field, button := 0, 0
	for _, e := range form.Elements {
		switch e.Kind {
		case journey.ElementTitle:
			lines = append(lines, titleStyle.Render(e.Text))
		case journey.ElementText:
			lines = append(lines, textStyle.Render(e.Text))
		case journey.ElementInput:
			if field < len(a.fields) {
				lines = append(lines, a.fields[field].View())
				if err := a.fields[field].Err; err != nil {
					lines = append(lines, errorStyle.Render("  "+err.Error()))
				}
			}
			field++
		case journey.ElementButton:
			focused := a.focus == len(a.fields)+button
			style := buttonStyle
			switch {
			case e.Escape && focused:
				style = escapeFocused
			case e.Escape:
				style = escapeStyle
			case focused:
				style = buttonFocused
			}
			buttons = append(buttons, style.Render("["+e.Text+"]"))
			button++
		case journey.ElementLoading:
			lines = append(lines, a.spinner.View()+" "+mutedStyle.Render(e.Text))
		case journey.ElementError:
			lines = append(lines, errorStyle.Render("✗ "+e.Text))
		}
	}
	if len(buttons) > 0 {
		lines = append(lines, "", strings.Join(buttons, " "))
	}
	if form.Step == ido.StepSuccess {
		lines = append(lines, successStyle.Render("✓ done"))
	}
	title := form.Step.Tag()
	if title == "" {
		title = "unsupported step"
	}
	return pane{
		title:   title,
		content: strings.Join(lines, "\n"),
		focused: !a.busy,
		success: form.Step == ido.StepSuccess,
	}.render(a.width, 0)
}
