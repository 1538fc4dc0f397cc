package journey

import (
	"context"

	"github.com/jask/idojourney/internal/authn"
	"github.com/jask/idojourney/internal/ido"
)

type submitCall struct {
	optionKey string
	payload   ido.Payload
}

type fakeClient struct {
	startResp ido.ServiceResponse
	startErr  error
	started   []string
	flows     []string
	next      []ido.ServiceResponse
	submitErr error
	submits   []submitCall
}

func (c *fakeClient) StartJourney(_ context.Context, journeyID string, opts ido.StartOptions) (ido.ServiceResponse, error) {
	c.started = append(c.started, journeyID)
	c.flows = append(c.flows, opts.FlowID)
	return c.startResp, c.startErr
}

func (c *fakeClient) SubmitClientResponse(_ context.Context, optionKey string, payload ido.Payload) (ido.ServiceResponse, error) {
	c.submits = append(c.submits, submitCall{optionKey: optionKey, payload: payload})
	if c.submitErr != nil {
		return ido.ServiceResponse{}, c.submitErr
	}
	if len(c.next) == 0 {
		return step(ido.StepSuccess, nil), nil
	}
	resp := c.next[0]
	c.next = c.next[1:]
	return resp, nil
}

type fakeAuth struct {
	err        error
	registered []string
	challenges []string
}

func (a *fakeAuth) RegisterWebAuthn(_ context.Context, username, _ string) (authn.WebAuthnRegistration, error) {
	if a.err != nil {
		return authn.WebAuthnRegistration{}, a.err
	}
	return authn.WebAuthnRegistration{EncodedResult: "enc:" + username}, nil
}

func (a *fakeAuth) AuthenticateWebAuthn(_ context.Context, username string) (authn.WebAuthnAssertion, error) {
	if a.err != nil {
		return authn.WebAuthnAssertion{}, a.err
	}
	return authn.WebAuthnAssertion{EncodedResult: "assert:" + username}, nil
}

func (a *fakeAuth) RegisterNativeBiometrics(_ context.Context, userID string) (authn.BiometricsRegistration, error) {
	if a.err != nil {
		return authn.BiometricsRegistration{}, a.err
	}
	a.registered = append(a.registered, userID)
	return authn.BiometricsRegistration{KeyID: "key-1", PublicKey: "pub"}, nil
}

func (a *fakeAuth) AuthenticateNativeBiometrics(_ context.Context, userIdentifier, challenge string, _ authn.PromptTexts) (authn.BiometricsAssertion, error) {
	if a.err != nil {
		return authn.BiometricsAssertion{}, a.err
	}
	a.challenges = append(a.challenges, challenge)
	return authn.BiometricsAssertion{KeyID: "key-1", Signature: "sig:" + challenge}, nil
}

func (a *fakeAuth) TriggerAction(_ context.Context, actionType string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "token:" + actionType, nil
}

func step(id ido.StepID, data ido.StepData, opts ...ido.ResponseOption) ido.ServiceResponse {
	return ido.ServiceResponse{StepTag: id.Tag(), Step: id, Data: data, Options: opts}
}
