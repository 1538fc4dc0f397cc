package journey

import (
	"context"
	"fmt"

	"github.com/jask/idojourney/internal/authn"
	"github.com/jask/idojourney/internal/ido"
)

// ElementKind is what a form element renders as.
type ElementKind int

const (
	ElementTitle ElementKind = iota
	ElementText
	ElementInput
	ElementButton
	ElementLoading
	ElementError
)

func (k ElementKind) String() string {
	switch k {
	case ElementTitle:
		return "title"
	case ElementText:
		return "text"
	case ElementInput:
		return "input"
	case ElementButton:
		return "button"
	case ElementLoading:
		return "loading"
	case ElementError:
		return "error"
	}
	return fmt.Sprintf("ElementKind(%d)", int(k))
}

// InputKind hints how an input should be edited.
type InputKind int

const (
	InputText InputKind = iota
	InputPhone
)

// Values holds input contents keyed by element ID.
type Values map[string]string

// Element is one widget of a step form.
type Element struct {
	Kind   ElementKind
	ID     string
	Text   string
	Hint   string
	Input  InputKind
	Escape bool
	Action *Action
}

// Form is everything shown for the current step.
type Form struct {
	Step     ido.StepID
	Elements []Element
}

func (f Form) Inputs() []Element { return f.filter(ElementInput) }

func (f Form) Buttons() []Element { return f.filter(ElementButton) }

func (f Form) filter(kind ElementKind) []Element {
	var out []Element
	for _, e := range f.Elements {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// EscapeButton returns the form's escape button, if any.
func (f Form) EscapeButton() (Element, bool) {
	for _, e := range f.Elements {
		if e.Kind == ElementButton && e.Escape {
			return e, true
		}
	}
	return Element{}, false
}

// Loading reports whether the form is waiting on an auxiliary operation.
func (f Form) Loading() bool { return len(f.filter(ElementLoading)) > 0 }

// ErrorText returns the inline error message, or "".
func (f Form) ErrorText() string {
	if errs := f.filter(ElementError); len(errs) > 0 {
		return errs[0].Text
	}
	return ""
}

// ActionKind separates plain submissions from ones that first run an authenticator.
type ActionKind int

const (
	ActionSubmit ActionKind = iota
	ActionAuthenticate
)

// Submission is one call to the response submitter.
type Submission struct {
	OptionKey string
	Payload   ido.Payload
}

// AuthFunc runs an auxiliary operation and builds the payload to submit.
type AuthFunc func(ctx context.Context, auth authn.Authenticator, v Values) (ido.Payload, error)

// Action is what pressing a button does.
type Action struct {
	Kind      ActionKind
	OptionKey string
	Payload   func(v Values) ido.Payload
	Auth      AuthFunc
}

// Submission resolves a submit action against the current input values.
func (a *Action) Submission(v Values) Submission {
	var p ido.Payload
	if a.Payload != nil {
		p = a.Payload(v)
	}
	return Submission{OptionKey: a.OptionKey, Payload: p}
}
