package tui

import (
	"github.com/jask/idojourney/internal/authn"
	"github.com/jask/idojourney/internal/ido"
	"github.com/jask/idojourney/internal/journey"
)

// prefsMsg carries the remembered ids for the start view.
type prefsMsg struct {
	journeyID string
	flowID    string
}

// stepMsg is a response from the journey service. Unsupported steps arrive
// here too and are reported when applied.
type stepMsg struct {
	gen  int
	sub  journey.Submission
	resp ido.ServiceResponse
}

// journeyErrMsg is an error reported by the journey service.
type journeyErrMsg struct {
	gen int
	err error
}

// authDoneMsg carries the submission produced by a successful auxiliary action.
type authDoneMsg struct {
	gen int
	sub journey.Submission
}

type authFailedMsg struct {
	gen int
	err error
}

// promptMsg asks the user to approve a biometric signature. The answer goes
// back on reply.
type promptMsg struct {
	texts authn.PromptTexts
	reply chan<- bool
}
