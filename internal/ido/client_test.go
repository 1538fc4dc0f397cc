package ido

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoteClientCarriesInteractionState(t *testing.T) {
	var gotAuth, gotOption string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/journeys/demo/start":
			var req startRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "flow-1", req.FlowID)
			require.Equal(t, "cli", req.ClientID)
			_, _ = w.Write([]byte(`{"interaction_id":"i-1","token":"tok-1","journey_step_id":"phone_input",
				"client_response_options":[{"key":"client_input","id":"client_input","type":"client_input"}]}`))
		case "/v1/interactions/i-1/submit":
			gotAuth = r.Header.Get("Authorization")
			var req struct {
				OptionKey string         `json:"option_key"`
				Data      map[string]any `json:"data"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gotOption, gotBody = req.OptionKey, req.Data
			_, _ = w.Write([]byte(`{"interaction_id":"i-1","token":"tok-2","journey_step_id":"journey_success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL+"/", "cli", srv.Client())
	ctx := context.Background()

	resp, err := c.StartJourney(ctx, "demo", StartOptions{FlowID: "flow-1"})
	require.NoError(t, err)
	require.Equal(t, StepPhoneInput, resp.Step)

	resp, err = c.SubmitClientResponse(ctx, "", PhoneResult{Phone: "+15550100"})
	require.NoError(t, err)
	require.Equal(t, StepSuccess, resp.Step)
	require.Equal(t, "Bearer tok-1", gotAuth)
	require.Equal(t, ClientInputKey, gotOption)
	require.Equal(t, "+15550100", gotBody["phone"])

	// Terminal step ends the interaction.
	_, err = c.SubmitClientResponse(ctx, ClientInputKey, nil)
	require.Equal(t, ErrNoActiveJourney, KindOf(err))
}

func TestRemoteClientMapsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"no_active_journey","message":"journey \"x\" not found"}`))
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, "", srv.Client())
	_, err := c.StartJourney(context.Background(), "x", StartOptions{})
	var je *JourneyError
	require.ErrorAs(t, err, &je)
	require.Equal(t, ErrNoActiveJourney, je.Kind)
	require.Contains(t, je.Error(), `journey "x" not found`)
}

func TestRemoteClientUnsupportedStepStillReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"interaction_id":"i","token":"t","journey_step_id":"action:teleport"}`))
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, "", srv.Client())
	resp, err := c.StartJourney(context.Background(), "x", StartOptions{})
	require.ErrorIs(t, err, ErrUnsupportedStep)
	require.Equal(t, StepUnknown, resp.Step)
	require.Equal(t, "action:teleport", resp.StepTag)
}

func TestRemoteClientPreconditions(t *testing.T) {
	ctx := context.Background()
	_, err := NewRemoteClient("", "", nil).StartJourney(ctx, "x", StartOptions{})
	require.Equal(t, ErrNotInitialized, KindOf(err))

	_, err = NewRemoteClient("http://127.0.0.1:1", "", nil).StartJourney(ctx, " ", StartOptions{})
	require.Equal(t, ErrClientResponseNotValid, KindOf(err))

	_, err = NewRemoteClient("http://127.0.0.1:1", "", nil).SubmitClientResponse(ctx, "", nil)
	require.Equal(t, ErrNoActiveJourney, KindOf(err))
}
