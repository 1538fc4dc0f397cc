package ido

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapePrefersFirstCancelOrCustom(t *testing.T) {
	tests := []struct {
		name    string
		opts    ResponseOptions
		wantKey string
		wantOK  bool
	}{
		{
			name: "cancel_first",
			opts: ResponseOptions{
				{Key: "A", ID: "a", Type: OptionCancel, Label: "Cancel"},
				{Key: "B", ID: "b", Type: OptionClientInput},
				{Key: "C", ID: "c", Type: OptionCustom, Label: "Other"},
			},
			wantKey: "A", wantOK: true,
		},
		{
			name: "skips_client_input",
			opts: ResponseOptions{
				{Key: "B", ID: "b", Type: OptionClientInput},
				{Key: "C", ID: "c", Type: OptionCustom},
			},
			wantKey: "C", wantOK: true,
		},
		{
			name: "only_client_input",
			opts: ResponseOptions{{Key: "B", Type: OptionClientInput}},
		},
		{name: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.opts.Escape()
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantKey, got.Key)
		})
	}
}

func TestResponseOptionsObjectKeepsDocumentOrder(t *testing.T) {
	raw := `{
		"z_cancel": {"id": "z", "type": "cancel", "label": "Stop"},
		"a_input": {"id": "a", "type": "client_input", "label": "Go"},
		"m_custom": {"id": "m", "type": "custom", "label": "Other"}
	}`
	var opts ResponseOptions
	require.NoError(t, json.Unmarshal([]byte(raw), &opts))
	require.Len(t, opts, 3)
	require.Equal(t, []string{"z_cancel", "a_input", "m_custom"}, []string{opts[0].Key, opts[1].Key, opts[2].Key})

	esc, ok := opts.Escape()
	require.True(t, ok)
	require.Equal(t, "z_cancel", esc.Key)
	require.Equal(t, "Stop", esc.Label)
}

func TestResponseOptionsArrayDefaultsKeyToID(t *testing.T) {
	var opts ResponseOptions
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"cancel","type":"cancel","label":"Cancel"}]`), &opts))
	require.Equal(t, "cancel", opts[0].Key)

	require.NoError(t, json.Unmarshal([]byte(`null`), &opts))
	require.Nil(t, opts)
	require.Error(t, json.Unmarshal([]byte(`"nope"`), &opts))
}

func TestDecodeServiceResponse(t *testing.T) {
	resp, err := DecodeServiceResponse([]byte(`{
		"journey_step_id": "kba_input",
		"data": {"app_data": {"questions": ["Pet?", "City?"]}},
		"client_response_options": {"cancel": {"id": "cancel", "type": "cancel", "label": "Cancel"}}
	}`))
	require.NoError(t, err)
	require.Equal(t, StepKBAInput, resp.Step)
	require.Equal(t, []string{"Pet?", "City?"}, resp.Data.Object("app_data").Strings("questions"))

	_, err = DecodeServiceResponse([]byte(`{"journey_step_id":"x","client_response_options":[{"id":"q","type":"bogus"}]}`))
	require.Error(t, err)

	resp, err = DecodeServiceResponse([]byte(`{"journey_step_id":"action:nope"}`))
	require.ErrorIs(t, err, ErrUnsupportedStep)
	require.Equal(t, StepUnknown, resp.Step)
}

func TestEscapePayloadEncoding(t *testing.T) {
	raw, err := json.Marshal(Escape{EscapeID: "other", Params: PhoneResult{Phone: "+15550100"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"escape_id":"other","escape_params":{"phone":"+15550100"}}`, string(raw))

	raw, err = json.Marshal(Escape{EscapeID: "cancel"})
	require.NoError(t, err)
	require.JSONEq(t, `{"escape_id":"cancel","escape_params":null}`, string(raw))
}
