// Package ido holds the journey wire model: step identifiers, service
// responses, response options, submission payloads and the client that talks
// to the orchestration service.
package ido

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// StepID is the closed set of journey steps the client knows how to render.
type StepID int

const (
	StepUnknown StepID = iota
	StepInformation
	StepRejection
	StepDebugBreak
	StepRegisterDevice
	StepValidateDeviceAction
	StepPhoneInput
	StepKBAInput
	StepCollectUsername
	StepWaitForAnotherDevice
	StepDrsTriggerAction
	StepIdentityVerification
	StepWebAuthnRegistration
	StepRegisterNativeBiometrics
	StepAuthenticateNativeBiometrics
	StepSuccess
)

// ErrUnsupportedStep is returned for any step tag outside the known set.
var ErrUnsupportedStep = errors.New("unsupported journey step")

var stepTags = map[StepID]string{
	StepInformation:                  "action:information",
	StepRejection:                    "journey_rejection",
	StepDebugBreak:                   "action:debug_break",
	StepRegisterDevice:               "action:register_device",
	StepValidateDeviceAction:         "action:validate_device_action",
	StepPhoneInput:                   "phone_input",
	StepKBAInput:                     "kba_input",
	StepCollectUsername:              "collect_username",
	StepWaitForAnotherDevice:         "action:wait_for_another_device",
	StepDrsTriggerAction:             "action:drs_trigger_action",
	StepIdentityVerification:         "action:id_verification",
	StepWebAuthnRegistration:         "action:webauthn_registration",
	StepRegisterNativeBiometrics:     "action:register_native_biometrics",
	StepAuthenticateNativeBiometrics: "action:authenticate_native_biometrics",
	StepSuccess:                      "journey_success",
}

var tagSteps = func() map[string]StepID {
	out := make(map[string]StepID, len(stepTags))
	for id, tag := range stepTags {
		out[tag] = id
	}
	return out
}()

// Tag returns the wire identifier, or "" for StepUnknown.
func (s StepID) Tag() string { return stepTags[s] }

func (s StepID) String() string {
	if tag, ok := stepTags[s]; ok {
		return tag
	}
	return fmt.Sprintf("StepID(%d)", int(s))
}

// Terminal reports whether the journey ends at this step.
func (s StepID) Terminal() bool {
	return s == StepSuccess || s == StepRejection
}

// AllSteps lists every known step in declaration order.
func AllSteps() []StepID {
	out := make([]StepID, 0, len(stepTags))
	for id := StepInformation; id <= StepSuccess; id++ {
		out = append(out, id)
	}
	return out
}

// ParseStepID maps a wire tag to a StepID. Unknown tags yield StepUnknown and an
// error wrapping ErrUnsupportedStep that names the closest known tag.
func ParseStepID(tag string) (StepID, error) {
	if id, ok := tagSteps[tag]; ok {
		return id, nil
	}
	if hint := ClosestTag(tag); hint != "" {
		return StepUnknown, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnsupportedStep, tag, hint)
	}
	return StepUnknown, fmt.Errorf("%w: %q", ErrUnsupportedStep, tag)
}

// ClosestTag returns the known tag nearest to tag by edit distance, or "" when
// nothing is reasonably close.
func ClosestTag(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	if tag == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, id := range AllSteps() {
		candidate := id.Tag()
		d := levenshtein.ComputeDistance(tag, candidate)
		if bestDist < 0 || d < bestDist || (d == bestDist && candidate < best) {
			best, bestDist = candidate, d
		}
	}
	if bestDist > len(best)/3 {
		return ""
	}
	return best
}
