package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jask/idojourney/internal/authn"
	"github.com/jask/idojourney/internal/ido"
)

// Error is a protocol error returned to clients as {error_code, message}.
type Error struct {
	Kind    ido.ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: ido.ErrClientResponseNotValid, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// errRejected ends the journey with a rejection step instead of an error.
type errRejected struct{ reason string }

func (e errRejected) Error() string { return "rejected: " + e.reason }

// Reply is the success envelope of start and submit.
type Reply struct {
	InteractionID string              `json:"interaction_id"`
	Token         string              `json:"token,omitempty"`
	StepTag       string              `json:"journey_step_id"`
	Data          ido.StepData        `json:"data,omitempty"`
	Options       ido.ResponseOptions `json:"client_response_options,omitempty"`
}

type StartRequest struct {
	FlowID   string `json:"flow_id"`
	ClientID string `json:"client_id"`
}

type SubmitRequest struct {
	OptionKey string          `json:"option_key"`
	Data      json.RawMessage `json:"data"`
}

// Engine runs scripted journeys.
type Engine struct {
	script *Script
	store  Store
	tokens *TokenIssuer
	ttl    time.Duration
	log    *zap.Logger
}

func NewEngine(script *Script, store Store, tokens *TokenIssuer, ttl time.Duration, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{script: script, store: store, tokens: tokens, ttl: ttl, log: log}
}

// Start begins journeyID at its start step.
func (e *Engine) Start(ctx context.Context, journeyID string, req StartRequest) (Reply, error) {
	j, ok := e.script.Journey(journeyID)
	if !ok {
		return Reply{}, &Error{Kind: ido.ErrClientResponseNotValid, Status: http.StatusNotFound,
			Message: fmt.Sprintf("unknown journey %q", journeyID)}
	}
	in := Interaction{
		ID:        uuid.NewString(),
		JourneyID: journeyID,
		FlowID:    req.FlowID,
		ClientID:  req.ClientID,
		CreatedAt: time.Now().UTC(),
	}
	e.log.Info("journey started", zap.String("journey_id", journeyID), zap.String("interaction_id", in.ID),
		zap.String("flow_id", req.FlowID))
	st, _ := j.Step(j.Start)
	return e.enter(ctx, &in, st)
}

// Submit applies one client response to the interaction and returns the next step.
func (e *Engine) Submit(ctx context.Context, interactionID, token string, req SubmitRequest) (Reply, error) {
	tokenStep, err := e.tokens.Verify(token, interactionID)
	if err != nil {
		return Reply{}, &Error{Kind: ido.ErrInvalidStateToken, Status: http.StatusUnauthorized, Message: err.Error()}
	}
	in, err := e.store.LoadInteraction(ctx, interactionID)
	if errors.Is(err, ErrInteractionNotFound) {
		return Reply{}, &Error{Kind: ido.ErrNoActiveJourney, Status: http.StatusNotFound, Message: "interaction expired or finished"}
	}
	if err != nil {
		return Reply{}, err
	}
	if tokenStep != in.Step {
		return Reply{}, &Error{Kind: ido.ErrInvalidStateToken, Status: http.StatusUnauthorized, Message: "token was issued for an earlier step"}
	}
	j, ok := e.script.Journey(in.JourneyID)
	if !ok {
		return Reply{}, fmt.Errorf("interaction %s: journey %q no longer scripted", in.ID, in.JourneyID)
	}
	st, ok := j.Step(in.Step)
	if !ok {
		return Reply{}, fmt.Errorf("interaction %s: step %q no longer scripted", in.ID, in.Step)
	}

	if req.OptionKey == "" || req.OptionKey == ido.ClientInputKey {
		if err := e.accept(ctx, &in, st, req.Data); err != nil {
			var rej errRejected
			if errors.As(err, &rej) {
				return e.reject(ctx, &in, rej.reason)
			}
			return Reply{}, err
		}
		next, _ := j.Step(st.Next)
		return e.enter(ctx, &in, next)
	}

	opt, ok := st.option(req.OptionKey)
	if !ok {
		return Reply{}, invalidInput("step %s has no option %q", st.Tag, req.OptionKey)
	}
	e.log.Info("escape taken", zap.String("interaction_id", in.ID), zap.String("option", opt.Key),
		zap.String("type", opt.Type))
	if ido.OptionType(opt.Type) == ido.OptionCancel {
		return e.reject(ctx, &in, "canceled by user")
	}
	next, _ := j.Step(opt.Goto)
	return e.enter(ctx, &in, next)
}

// enter moves in to st and builds the reply for it. Terminal steps end the
// interaction.
func (e *Engine) enter(ctx context.Context, in *Interaction, st *Step) (Reply, error) {
	in.Step = st.Name
	data := ido.StepData{}
	maps.Copy(data, st.Data)

	switch st.StepID() {
	case ido.StepRegisterNativeBiometrics:
		setDefault(data, "user_identifier", in.UserID)
	case ido.StepAuthenticateNativeBiometrics:
		in.Challenge = uuid.NewString()
		data["user_identifier"] = in.UserID
		data["biometrics_challenge"] = in.Challenge
	case ido.StepWebAuthnRegistration:
		setDefault(data, "username", in.UserID)
		setDefault(data, "display_name", in.UserID)
	}

	reply := Reply{InteractionID: in.ID, StepTag: st.Tag, Data: data}
	if st.StepID().Terminal() {
		e.log.Info("journey finished", zap.String("interaction_id", in.ID), zap.String("step", st.Tag))
		return reply, e.store.DeleteInteraction(ctx, in.ID)
	}
	if err := e.store.SaveInteraction(ctx, *in, e.ttl); err != nil {
		return Reply{}, err
	}
	token, err := e.tokens.Issue(in.ID, in.Step)
	if err != nil {
		return Reply{}, fmt.Errorf("issue token: %w", err)
	}
	reply.Token = token
	reply.Options = st.responseOptions()
	return reply, nil
}

func setDefault(data ido.StepData, key, value string) {
	if data.String(key) == "" && value != "" {
		data[key] = value
	}
}

func (e *Engine) reject(ctx context.Context, in *Interaction, reason string) (Reply, error) {
	e.log.Warn("journey rejected", zap.String("interaction_id", in.ID), zap.String("reason", reason))
	if err := e.store.DeleteInteraction(ctx, in.ID); err != nil {
		return Reply{}, err
	}
	return Reply{
		InteractionID: in.ID,
		StepTag:       ido.StepRejection.Tag(),
		Data:          ido.StepData{"reason": reason},
	}, nil
}

// accept checks the client_input payload for the current step and records
// what it collected.
func (e *Engine) accept(ctx context.Context, in *Interaction, st *Step, raw json.RawMessage) error {
	switch st.StepID() {
	case ido.StepCollectUsername:
		var p ido.UserIDResult
		if err := decodePayload(raw, &p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Username) == "" {
			return invalidInput("username is required")
		}
		in.UserID = strings.TrimSpace(p.Username)
	case ido.StepPhoneInput:
		var p ido.PhoneResult
		if err := decodePayload(raw, &p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Phone) == "" {
			return invalidInput("phone is required")
		}
	case ido.StepKBAInput:
		var p ido.KBAResult
		if err := decodePayload(raw, &p); err != nil {
			return err
		}
		questions := ido.StepData(st.Data).Object("app_data").Strings("questions")
		if len(p.KBA) != len(questions) {
			return invalidInput("expected %d answers, got %d", len(questions), len(p.KBA))
		}
		for i, a := range p.KBA {
			if a.Question != questions[i] || strings.TrimSpace(a.Answer) == "" {
				return invalidInput("answer %d missing or out of order", i+1)
			}
		}
	case ido.StepDrsTriggerAction:
		var p ido.DrsActionToken
		if err := decodePayload(raw, &p); err != nil {
			return err
		}
		if p.ActionToken == "" {
			return invalidInput("action_token is required")
		}
	case ido.StepRegisterNativeBiometrics:
		return e.acceptBiometricRegistration(ctx, in, raw)
	case ido.StepAuthenticateNativeBiometrics:
		return e.acceptBiometricAssertion(ctx, in, raw)
	case ido.StepWebAuthnRegistration:
		return e.acceptWebAuthnRegistration(ctx, in, raw)
	}
	return nil
}

func (e *Engine) acceptBiometricRegistration(ctx context.Context, in *Interaction, raw json.RawMessage) error {
	var p ido.BiometricsRegistrationResult
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if in.UserID == "" {
		return invalidInput("no user collected before biometric registration")
	}
	if p.PublicKeyID == "" {
		return invalidInput("publicKeyId is required")
	}
	if _, err := authn.ParsePublicKey(p.PublicKey); err != nil {
		return invalidInput("publicKey: %v", err)
	}
	e.log.Info("biometric key registered", zap.String("user_id", in.UserID), zap.String("key_id", p.PublicKeyID),
		zap.String("os", p.OS))
	return e.store.AddCredential(ctx, in.UserID, Credential{KeyID: p.PublicKeyID, PublicKey: p.PublicKey, Kind: "biometric"})
}

func (e *Engine) acceptBiometricAssertion(ctx context.Context, in *Interaction, raw json.RawMessage) error {
	var p ido.BiometricsAuthenticationResult
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if p.UserIdentifier != in.UserID {
		return errRejected{reason: "user mismatch"}
	}
	cred, err := e.store.Credential(ctx, in.UserID, p.PublicKeyID)
	if errors.Is(err, ErrCredentialNotFound) {
		return &Error{Kind: ido.ErrInvalidCredentials, Status: http.StatusUnauthorized,
			Message: fmt.Sprintf("no key %q registered for %q", p.PublicKeyID, in.UserID)}
	}
	if err != nil {
		return err
	}
	pub, err := authn.ParsePublicKey(cred.PublicKey)
	if err != nil {
		return err
	}
	if err := authn.VerifyChallenge(pub, in.Challenge, p.SignedChallenge); err != nil {
		e.log.Warn("biometric assertion failed", zap.String("user_id", in.UserID), zap.Error(err))
		return errRejected{reason: "signature verification failed"}
	}
	return nil
}

// webauthnCredential is the part of the encoded registration result the
// sandbox checks.
type webauthnCredential struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Response struct {
		ClientDataJSON string `json:"clientDataJSON"`
		PublicKey      string `json:"publicKey"`
	} `json:"response"`
}

func (e *Engine) acceptWebAuthnRegistration(ctx context.Context, in *Interaction, raw json.RawMessage) error {
	var p ido.WebAuthnRegisterResult
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	decoded, err := base64.StdEncoding.DecodeString(p.EncodedResult)
	if err != nil {
		return invalidInput("webauthn_encoded_result is not base64")
	}
	var cred webauthnCredential
	if err := json.Unmarshal(decoded, &cred); err != nil {
		return invalidInput("webauthn_encoded_result: %v", err)
	}
	if cred.ID == "" || cred.Type != "public-key" || cred.Response.PublicKey == "" {
		return invalidInput("webauthn credential incomplete")
	}
	clientData, err := base64.RawURLEncoding.DecodeString(cred.Response.ClientDataJSON)
	if err != nil {
		return invalidInput("clientDataJSON is not base64url")
	}
	var cd struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(clientData, &cd); err != nil || cd.Type != "webauthn.create" {
		return invalidInput("clientDataJSON is not a create ceremony")
	}
	return e.store.AddCredential(ctx, in.UserID, Credential{KeyID: cred.ID, PublicKey: cred.Response.PublicKey, Kind: "webauthn"})
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return invalidInput("data is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidInput("data: %v", err)
	}
	return nil
}
