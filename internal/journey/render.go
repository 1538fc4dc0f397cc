package journey

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jask/idojourney/internal/authn"
	"github.com/jask/idojourney/internal/ido"
)

// osName is reported with biometric registrations.
const osName = "Terminal"

// Render builds the form for resp. Unknown steps return ErrUnsupportedStep and
// an empty form; nothing from a previous step survives either way.
func Render(s *Session, resp ido.ServiceResponse) (Form, error) {
	if resp.Step == ido.StepUnknown {
		step, err := ido.ParseStepID(resp.StepTag)
		if err != nil {
			return Form{}, err
		}
		resp.Step = step
	}
	b := &builder{form: Form{Step: resp.Step}}
	switch resp.Step {
	case ido.StepInformation:
		renderInformation(b, resp)
	case ido.StepRejection:
		b.text("Journey rejected.")
	case ido.StepDebugBreak:
		b.info("Debug break", "The journey paused at a debug break.", "Continue")
	case ido.StepRegisterDevice:
		renderRegisterDevice(b, resp)
	case ido.StepValidateDeviceAction:
		b.info("Validate device", "Approve this action on this device.", "Accept")
	case ido.StepPhoneInput:
		renderPhoneInput(b, resp)
	case ido.StepKBAInput:
		renderKBAInput(b, resp)
	case ido.StepCollectUsername:
		renderCollectUsername(b)
	case ido.StepWaitForAnotherDevice:
		renderWaitForAnotherDevice(b, resp)
	case ido.StepDrsTriggerAction:
		renderDrsTrigger(b, resp)
	case ido.StepIdentityVerification:
		b.title("Identity verification")
		b.text("Identity verification is not available on this device.")
		b.escape(resp.Options, nil)
	case ido.StepWebAuthnRegistration:
		renderWebAuthnRegistration(b, resp)
	case ido.StepRegisterNativeBiometrics:
		renderRegisterBiometrics(b, s, resp)
	case ido.StepAuthenticateNativeBiometrics:
		renderAuthenticateBiometrics(b, resp)
	case ido.StepSuccess:
		b.text("Journey completed successfully.")
	default:
		return Form{}, fmt.Errorf("%w: %v", ido.ErrUnsupportedStep, resp.Step)
	}
	return b.form, nil
}

// builder appends elements the way a view container adds children.
type builder struct {
	form Form
}

func (b *builder) add(e Element) { b.form.Elements = append(b.form.Elements, e) }

func (b *builder) title(text string) {
	if text != "" {
		b.add(Element{Kind: ElementTitle, Text: text})
	}
}

func (b *builder) text(text string) {
	if text != "" {
		b.add(Element{Kind: ElementText, Text: text})
	}
}

func (b *builder) input(id, hint string, kind InputKind) {
	b.add(Element{Kind: ElementInput, ID: id, Hint: hint, Input: kind})
}

func (b *builder) button(label string, a *Action) {
	b.add(Element{Kind: ElementButton, Text: label, Action: a})
}

// submit adds a primary-path button.
func (b *builder) submit(label string, payload func(Values) ido.Payload) {
	b.button(label, &Action{Kind: ActionSubmit, OptionKey: ido.ClientInputKey, Payload: payload})
}

// authenticate adds a button that runs fn before submitting on the primary path.
func (b *builder) authenticate(label string, fn AuthFunc) {
	b.button(label, &Action{Kind: ActionAuthenticate, OptionKey: ido.ClientInputKey, Auth: fn})
}

// info shows a title, body and an accept button submitting no payload.
func (b *builder) info(title, body, button string) {
	b.title(title)
	b.text(body)
	if button != "" {
		b.submit(button, nil)
	}
}

// escape adds at most one escape button for the first Custom or Cancel
// option. params supplies the escape's parameters from the step's inputs.
func (b *builder) escape(opts ido.ResponseOptions, params func(Values) ido.Payload) {
	opt, ok := opts.Escape()
	if !ok {
		return
	}
	label := opt.Label
	if label == "" {
		label = opt.ID
	}
	b.add(Element{
		Kind:   ElementButton,
		Text:   label,
		Escape: true,
		Action: &Action{
			Kind:      ActionSubmit,
			OptionKey: opt.Key,
			Payload: func(v Values) ido.Payload {
				var p ido.Payload
				if params != nil {
					p = params(v)
				}
				return ido.Escape{EscapeID: opt.ID, Params: p}
			},
		},
	})
}

func renderInformation(b *builder, resp ido.ServiceResponse) {
	b.info(resp.Data.String("title"), resp.Data.String("text"), resp.Data.StringOr("button_text", "Continue"))
}

func renderRegisterDevice(b *builder, resp ido.ServiceResponse) {
	b.info("Bind device", "Approve binding this device to your account.", "Accept")
	b.escape(resp.Options, nil)
}

func renderPhoneInput(b *builder, resp ido.ServiceResponse) {
	b.title("Enter your phone number")
	b.input("phone", "+1 555 0100", InputPhone)
	phone := func(v Values) ido.Payload { return ido.PhoneResult{Phone: v["phone"]} }
	b.submit("Submit", phone)
	b.escape(resp.Options, phone)
}

func renderKBAInput(b *builder, resp ido.ServiceResponse) {
	b.title("Answer your security questions")
	questions := resp.Data.Object("app_data").Strings("questions")
	for i, q := range questions {
		b.text(q)
		b.input(kbaInputID(i), "Your answer", InputText)
	}
	b.submit("Submit answers", func(v Values) ido.Payload {
		answers := make([]ido.KBAAnswer, 0, len(questions))
		for i, q := range questions {
			answers = append(answers, ido.KBAAnswer{Question: q, Answer: v[kbaInputID(i)]})
		}
		return ido.KBAResult{KBA: answers}
	})
	b.escape(resp.Options, nil)
}

func kbaInputID(i int) string { return "kba." + strconv.Itoa(i) }

func renderCollectUsername(b *builder) {
	b.text("Enter your username to continue.")
	b.input("username", "Username", InputText)
	b.submit("Continue", func(v Values) ido.Payload {
		return ido.UserIDResult{Username: v["username"]}
	})
}

func renderWaitForAnotherDevice(b *builder, resp ido.ServiceResponse) {
	b.info(
		resp.Data.StringOr("title", "Waiting for another device"),
		resp.Data.StringOr("text", "Finish this step on your other device, then check the status here."),
		"Check status",
	)
	b.escape(resp.Options, nil)
}

func renderDrsTrigger(b *builder, resp ido.ServiceResponse) {
	action := resp.Data.String("action_type")
	b.title("Security check")
	b.text("A quick risk check is needed before continuing.")
	b.authenticate("Continue", func(ctx context.Context, auth authn.Authenticator, _ Values) (ido.Payload, error) {
		token, err := auth.TriggerAction(ctx, action)
		if err != nil {
			return nil, err
		}
		return ido.DrsActionToken{ActionToken: token}, nil
	})
	b.escape(resp.Options, nil)
}

func renderWebAuthnRegistration(b *builder, resp ido.ServiceResponse) {
	username := resp.Data.String("username")
	displayName := resp.Data.String("display_name")
	b.title("Register a passkey")
	b.text(fmt.Sprintf("Create a passkey for %s (%s).", displayName, username))
	b.authenticate("Register", func(ctx context.Context, auth authn.Authenticator, _ Values) (ido.Payload, error) {
		reg, err := auth.RegisterWebAuthn(ctx, username, displayName)
		if err != nil {
			return nil, err
		}
		return ido.WebAuthnRegisterResult{EncodedResult: reg.EncodedResult}, nil
	})
	b.escape(resp.Options, nil)
}

func renderRegisterBiometrics(b *builder, s *Session, resp ido.ServiceResponse) {
	userID := resp.Data.StringOr("user_identifier", s.Username)
	b.title("Register biometrics")
	b.text(fmt.Sprintf("Enable biometric sign-in for %s.", userID))
	b.authenticate("Register", func(ctx context.Context, auth authn.Authenticator, _ Values) (ido.Payload, error) {
		reg, err := auth.RegisterNativeBiometrics(ctx, userID)
		if err != nil {
			return nil, err
		}
		return ido.BiometricsRegistrationResult{PublicKeyID: reg.KeyID, PublicKey: reg.PublicKey, OS: osName}, nil
	})
	b.escape(resp.Options, nil)
}

func renderAuthenticateBiometrics(b *builder, resp ido.ServiceResponse) {
	userIdentifier := resp.Data.String("user_identifier")
	challenge := resp.Data.String("biometrics_challenge")
	b.title("Biometric sign-in")
	b.text(fmt.Sprintf("Sign in as %s with biometrics.", userIdentifier))
	b.authenticate("Authenticate", func(ctx context.Context, auth authn.Authenticator, _ Values) (ido.Payload, error) {
		res, err := auth.AuthenticateNativeBiometrics(ctx, userIdentifier, challenge, authn.DefaultPrompt)
		if err != nil {
			return nil, err
		}
		return ido.BiometricsAuthenticationResult{
			PublicKeyID:     res.KeyID,
			UserIdentifier:  userIdentifier,
			SignedChallenge: res.Signature,
		}, nil
	})
	b.escape(resp.Options, nil)
}
