package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/idojourney/internal/authn"
)

var errDeclined = errors.New("declined")

// Prompts carries biometric confirmation requests from the device
// authenticator, which runs inside a tea.Cmd, to the app's Update loop.
type Prompts struct {
	reqs chan promptMsg
}

func NewPrompts() *Prompts {
	return &Prompts{reqs: make(chan promptMsg)}
}

// Confirm is an authn.Prompter. It blocks until the user answers.
func (p *Prompts) Confirm(ctx context.Context, texts authn.PromptTexts) error {
	reply := make(chan bool, 1)
	select {
	case p.reqs <- promptMsg{texts: texts, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case ok := <-reply:
		if !ok {
			return errDeclined
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Prompts) wait() tea.Cmd {
	return func() tea.Msg { return <-p.reqs }
}
