// Package journey turns journey steps into forms and drives a journey forward
// from user input.
package journey

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/idojourney/internal/authn"
	"github.com/jask/idojourney/internal/ido"
	"github.com/jask/idojourney/internal/prefs"
)

var ErrNoAuthenticator = errors.New("no authenticator configured")

// Service wires the journey client, the device authenticator and the
// preference store together.
type Service struct {
	Client ido.Client
	Auth   authn.Authenticator
	Prefs  *prefs.Store
	Log    *zap.Logger
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Start remembers the ids for next time and starts the journey.
func (s *Service) Start(ctx context.Context, journeyID, flowID string) (ido.ServiceResponse, error) {
	journeyID = strings.TrimSpace(journeyID)
	flowID = strings.TrimSpace(flowID)
	if s.Prefs != nil {
		if err := s.Prefs.Set(ctx, prefs.KeyJourneyID, journeyID); err != nil {
			s.log().Warn("save journey id", zap.Error(err))
		}
		if err := s.Prefs.Set(ctx, prefs.KeyFlowID, flowID); err != nil {
			s.log().Warn("save flow id", zap.Error(err))
		}
	}
	s.log().Info("start journey", zap.String("journey_id", journeyID), zap.String("flow_id", flowID))
	resp, err := s.Client.StartJourney(ctx, journeyID, ido.StartOptions{FlowID: flowID})
	s.logResult("start", resp, err)
	return resp, err
}

// Submit sends one client response.
func (s *Service) Submit(ctx context.Context, sub Submission) (ido.ServiceResponse, error) {
	s.log().Debug("submit", zap.String("option_key", sub.OptionKey))
	resp, err := s.Client.SubmitClientResponse(ctx, sub.OptionKey, sub.Payload)
	s.logResult("submit", resp, err)
	return resp, err
}

// Authenticate runs an authenticate action and returns the submission it produces.
func (s *Service) Authenticate(ctx context.Context, a *Action, v Values) (Submission, error) {
	if s.Auth == nil {
		return Submission{}, ErrNoAuthenticator
	}
	payload, err := a.Auth(ctx, s.Auth, v)
	if err != nil {
		s.log().Warn("auxiliary auth failed", zap.Error(err))
		return Submission{}, err
	}
	return Submission{OptionKey: a.OptionKey, Payload: payload}, nil
}

// Press performs button i of the session's form synchronously: authenticate
// actions show loading and, on failure, an inline error without submitting.
// A successful submission's response becomes the session's current step.
func (s *Service) Press(ctx context.Context, sess *Session, i int, v Values) error {
	btn, err := sess.Button(i)
	if err != nil {
		return err
	}
	var sub Submission
	switch btn.Action.Kind {
	case ActionAuthenticate:
		sess.ShowLoading()
		sub, err = s.Authenticate(ctx, btn.Action, v)
		if err != nil {
			sess.Fail(err)
			return err
		}
	default:
		sub = btn.Action.Submission(v)
	}
	resp, err := s.Submit(ctx, sub)
	if err != nil && !errors.Is(err, ido.ErrUnsupportedStep) {
		return err
	}
	return sess.Accept(sub, resp)
}

func (s *Service) logResult(op string, resp ido.ServiceResponse, err error) {
	switch {
	case errors.Is(err, ido.ErrUnsupportedStep):
		s.log().Error("unsupported journey step", zap.String("op", op), zap.String("step", resp.StepTag), zap.Error(err))
	case err != nil:
		s.log().Error("journey error", zap.String("op", op),
			zap.String("kind", string(ido.KindOf(err))), zap.Error(err))
	default:
		s.log().Info("journey step", zap.String("op", op), zap.String("step", resp.StepTag),
			zap.Int("options", len(resp.Options)))
	}
}
