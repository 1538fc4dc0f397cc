package sandbox_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/idojourney/internal/authn"
	"github.com/jask/idojourney/internal/database"
	"github.com/jask/idojourney/internal/database/repository"
	"github.com/jask/idojourney/internal/ido"
	"github.com/jask/idojourney/internal/journey"
	"github.com/jask/idojourney/internal/sandbox"
	"github.com/jask/idojourney/internal/secrets"
)

type harness struct {
	srv    *httptest.Server
	device *authn.Device
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	script, err := sandbox.LoadScript("")
	require.NoError(t, err)
	tokens, err := sandbox.NewTokenIssuer("test-secret", time.Minute)
	require.NoError(t, err)
	engine := sandbox.NewEngine(script, sandbox.NewMemoryStore(), tokens, time.Minute, nil)
	srv := httptest.NewServer(sandbox.NewServer(engine, nil).Router())
	t.Cleanup(srv.Close)

	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sealer, err := secrets.NewSealerFromSeed(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	device := authn.NewDevice(repository.NewDeviceKeyRepo(db), sealer, srv.URL, "127.0.0.1")
	return &harness{srv: srv, device: device}
}

// run starts journeyID with a fresh client and session.
func (h *harness) run(t *testing.T, journeyID string) (*journey.Service, *journey.Session) {
	t.Helper()
	svc := &journey.Service{
		Client: ido.NewRemoteClient(h.srv.URL, "test-client", h.srv.Client()),
		Auth:   h.device,
	}
	sess := journey.NewSession(journeyID, "")
	resp, err := svc.Start(context.Background(), journeyID, "")
	require.NoError(t, err)
	require.NoError(t, sess.Apply(resp))
	return svc, sess
}

func pressPrimary(t *testing.T, svc *journey.Service, sess *journey.Session, v journey.Values) {
	t.Helper()
	require.NoError(t, svc.Press(context.Background(), sess, 0, v))
}

func pressEscape(t *testing.T, svc *journey.Service, sess *journey.Session) {
	t.Helper()
	buttons := sess.Form.Buttons()
	for i, b := range buttons {
		if b.Escape {
			require.NoError(t, svc.Press(context.Background(), sess, i, nil))
			return
		}
	}
	t.Fatalf("no escape button on %s", sess.Form.Step.Tag())
}

func TestRegisterThenLoginWithBiometrics(t *testing.T) {
	h := newHarness(t)

	svc, sess := h.run(t, "register")
	require.Equal(t, ido.StepCollectUsername, sess.Form.Step)
	pressPrimary(t, svc, sess, journey.Values{"username": "alice"})

	require.Equal(t, ido.StepRegisterNativeBiometrics, sess.Form.Step)
	require.Equal(t, "alice", sess.Current.Data.String("user_identifier"))
	pressPrimary(t, svc, sess, nil)

	require.Equal(t, ido.StepRegisterDevice, sess.Form.Step)
	pressPrimary(t, svc, sess, nil)

	require.Equal(t, ido.StepPhoneInput, sess.Form.Step)
	pressPrimary(t, svc, sess, journey.Values{"phone": "+1 555 0100"})
	require.Equal(t, ido.StepSuccess, sess.Form.Step)

	svc, sess = h.run(t, "login")
	pressPrimary(t, svc, sess, journey.Values{"username": "alice"})
	require.Equal(t, ido.StepDrsTriggerAction, sess.Form.Step)
	pressPrimary(t, svc, sess, nil)

	require.Equal(t, ido.StepAuthenticateNativeBiometrics, sess.Form.Step)
	require.NotEmpty(t, sess.Current.Data.String("biometrics_challenge"))
	pressPrimary(t, svc, sess, nil)
	require.Equal(t, ido.StepSuccess, sess.Form.Step)
	require.True(t, sess.Done())
}

func TestLoginWithoutRegisteredKey(t *testing.T) {
	h := newHarness(t)
	svc, sess := h.run(t, "login")
	pressPrimary(t, svc, sess, journey.Values{"username": "mallory"})
	pressPrimary(t, svc, sess, nil)

	// no local key: the device fails before anything is submitted
	err := svc.Press(context.Background(), sess, 0, nil)
	require.True(t, authn.IsKind(err, authn.KindKeyNotFound))
	require.Contains(t, sess.Form.ErrorText(), "mallory")
	require.Equal(t, ido.StepAuthenticateNativeBiometrics, sess.Form.Step)
}

func TestCancelEscapeRejects(t *testing.T) {
	h := newHarness(t)
	svc, sess := h.run(t, "register")
	pressPrimary(t, svc, sess, journey.Values{"username": "alice"})

	esc, ok := sess.Form.EscapeButton()
	require.True(t, ok)
	require.Equal(t, "Not now", esc.Text)
	pressEscape(t, svc, sess)
	require.Equal(t, ido.StepRejection, sess.Form.Step)
	require.True(t, sess.Done())

	// the finished interaction is gone from the client as well
	_, err := svc.Client.SubmitClientResponse(context.Background(), ido.ClientInputKey, nil)
	require.Equal(t, ido.ErrNoActiveJourney, ido.KindOf(err))
}

func TestCustomEscapeJumpsToKBA(t *testing.T) {
	h := newHarness(t)
	svc, sess := h.run(t, "register")
	pressPrimary(t, svc, sess, journey.Values{"username": "bob"})
	pressPrimary(t, svc, sess, nil)
	pressEscape(t, svc, sess) // skip binding
	require.Equal(t, ido.StepPhoneInput, sess.Form.Step)

	pressEscape(t, svc, sess) // use security questions
	require.Equal(t, ido.StepKBAInput, sess.Form.Step)
	inputs := sess.Form.Inputs()
	require.Len(t, inputs, 2)

	// an empty answer is refused by the service and the step stays
	err := svc.Press(context.Background(), sess, 0, journey.Values{inputs[0].ID: "Rex"})
	require.Equal(t, ido.ErrClientResponseNotValid, ido.KindOf(err))
	require.Equal(t, ido.StepKBAInput, sess.Form.Step)

	pressPrimary(t, svc, sess, journey.Values{inputs[0].ID: "Rex", inputs[1].ID: "Oslo"})
	require.Equal(t, ido.StepSuccess, sess.Form.Step)
}

func TestPasskeyRegistration(t *testing.T) {
	h := newHarness(t)
	svc, sess := h.run(t, "passkey")
	pressPrimary(t, svc, sess, journey.Values{"username": "carol"})
	require.Equal(t, ido.StepWebAuthnRegistration, sess.Form.Step)
	require.Equal(t, "carol", sess.Current.Data.String("username"))
	pressPrimary(t, svc, sess, nil)
	require.Equal(t, ido.StepSuccess, sess.Form.Step)
}

func TestTourVisitsInformationalSteps(t *testing.T) {
	h := newHarness(t)
	svc, sess := h.run(t, "tour")
	require.Equal(t, ido.StepInformation, sess.Form.Step)
	btn, err := sess.Button(0)
	require.NoError(t, err)
	require.Equal(t, "Start", btn.Text)

	want := []ido.StepID{ido.StepDebugBreak, ido.StepWaitForAnotherDevice, ido.StepValidateDeviceAction, ido.StepIdentityVerification}
	for _, step := range want {
		pressPrimary(t, svc, sess, nil)
		require.Equal(t, step, sess.Form.Step)
	}
	// identity verification only offers its escape
	require.Len(t, sess.Form.Buttons(), 1)
	pressEscape(t, svc, sess)
	require.Equal(t, ido.StepSuccess, sess.Form.Step)
}

func TestUnknownJourney(t *testing.T) {
	h := newHarness(t)
	client := ido.NewRemoteClient(h.srv.URL, "", h.srv.Client())
	_, err := client.StartJourney(context.Background(), "nope", ido.StartOptions{})
	require.Equal(t, ido.ErrClientResponseNotValid, ido.KindOf(err))
}

func postJSON(t *testing.T, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res, out
}

func TestSubmitTokenChecks(t *testing.T) {
	h := newHarness(t)
	res, start := postJSON(t, h.srv.URL+"/v1/journeys/register/start", "", map[string]string{"client_id": "raw"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	id := start["interaction_id"].(string)
	first := start["token"].(string)
	submitURL := h.srv.URL + "/v1/interactions/" + id + "/submit"

	res, body := postJSON(t, submitURL, "", map[string]any{"option_key": "client_input"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "invalid_state_token", body["error_code"])

	res, body = postJSON(t, submitURL, "garbage", map[string]any{"option_key": "client_input"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "invalid_state_token", body["error_code"])

	res, body = postJSON(t, submitURL, first, map[string]any{
		"option_key": "client_input",
		"data":       map[string]string{"username": "dave"},
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "action:register_native_biometrics", body["journey_step_id"])
	second := body["token"].(string)

	// the first token was issued for the username step and cannot be replayed
	res, body = postJSON(t, submitURL, first, map[string]any{
		"option_key": "client_input",
		"data":       map[string]string{"username": "eve"},
	})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "invalid_state_token", body["error_code"])

	res, body = postJSON(t, submitURL, second, map[string]any{"option_key": "teleport"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "client_response_not_valid", body["error_code"])
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	res, err := http.Get(h.srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}
