package journey

import (
	"fmt"

	"github.com/jask/idojourney/internal/ido"
)

// Session is the state of one running journey: the current step, its form,
// and what earlier steps collected.
type Session struct {
	JourneyID string
	FlowID    string
	// Username is recorded once a collect-username submission is accepted and
	// read by later biometric steps.
	Username string
	Current  ido.ServiceResponse
	Form     Form
}

func NewSession(journeyID, flowID string) *Session {
	return &Session{JourneyID: journeyID, FlowID: flowID}
}

// Apply makes resp the current step. The previous form is always cleared; on
// error nothing is rendered.
func (s *Session) Apply(resp ido.ServiceResponse) error {
	s.Form = Form{}
	form, err := Render(s, resp)
	if err != nil {
		return err
	}
	s.Current = resp
	s.Form = form
	return nil
}

// Accept applies the response the journey gave to sub. Anything sub
// collected is recorded only once the journey has accepted it.
func (s *Session) Accept(sub Submission, resp ido.ServiceResponse) error {
	if p, ok := sub.Payload.(ido.UserIDResult); ok {
		s.Username = p.Username
	}
	return s.Apply(resp)
}

// Done reports whether the journey reached a terminal step.
func (s *Session) Done() bool { return s.Form.Step.Terminal() }

// Button returns the i-th button of the current form.
func (s *Session) Button(i int) (Element, error) {
	buttons := s.Form.Buttons()
	if i < 0 || i >= len(buttons) {
		return Element{}, fmt.Errorf("button %d out of range (%d buttons)", i, len(buttons))
	}
	return buttons[i], nil
}

// ShowLoading appends a loading indicator, dropping any earlier inline error.
func (s *Session) ShowLoading() {
	s.strip(ElementError)
	s.Form.Elements = append(s.Form.Elements, Element{Kind: ElementLoading, Text: "Working…"})
}

// Fail replaces the loading indicator with an inline error.
func (s *Session) Fail(err error) {
	s.strip(ElementLoading, ElementError)
	s.Form.Elements = append(s.Form.Elements, Element{Kind: ElementError, Text: err.Error()})
}

func (s *Session) strip(kinds ...ElementKind) {
	kept := s.Form.Elements[:0]
	for _, e := range s.Form.Elements {
		drop := false
		for _, k := range kinds {
			if e.Kind == k {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	s.Form.Elements = kept
}
