package ido

import (
	"encoding/json"
	"fmt"
)

// StepData is the step-specific payload of a service response.
type StepData map[string]any

// String returns data[key] when it is a string, "" otherwise.
func (d StepData) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// StringOr returns data[key], or def when the value is missing or empty.
func (d StepData) StringOr(key, def string) string {
	if s := d.String(key); s != "" {
		return s
	}
	return def
}

// Object returns a nested object.
func (d StepData) Object(key string) StepData {
	m, _ := d[key].(map[string]any)
	return StepData(m)
}

// Strings returns data[key] as a string slice, skipping non-string entries.
func (d StepData) Strings(key string) []string {
	raw, _ := d[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ServiceResponse is one journey step as delivered by the orchestration service.
type ServiceResponse struct {
	StepTag string          `json:"journey_step_id"`
	Step    StepID          `json:"-"`
	Data    StepData        `json:"data,omitempty"`
	Options ResponseOptions `json:"client_response_options,omitempty"`
}

// DecodeServiceResponse parses a response and resolves its step tag. Unknown
// tags are returned with Step == StepUnknown alongside ErrUnsupportedStep.
func DecodeServiceResponse(raw []byte) (ServiceResponse, error) {
	var resp ServiceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ServiceResponse{}, fmt.Errorf("decode service response: %w", err)
	}
	return resp, resp.resolve()
}

func (r *ServiceResponse) resolve() error {
	for _, opt := range r.Options {
		if !opt.Type.Valid() {
			return fmt.Errorf("client_response_options[%s]: unknown type %q", opt.Key, opt.Type)
		}
	}
	step, err := ParseStepID(r.StepTag)
	r.Step = step
	return err
}
