package ido

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// StartOptions tune how a journey is started.
type StartOptions struct {
	FlowID         string
	AdditionalData map[string]any
}

// Client starts journeys and advances them one submission at a time.
type Client interface {
	StartJourney(ctx context.Context, journeyID string, opts StartOptions) (ServiceResponse, error)
	SubmitClientResponse(ctx context.Context, optionKey string, payload Payload) (ServiceResponse, error)
}

// RemoteClient speaks the orchestration service's JSON/HTTP protocol. It keeps
// the current interaction id and state token between calls.
type RemoteClient struct {
	baseURL  string
	clientID string
	http     *http.Client

	mu          sync.Mutex
	interaction string
	token       string
}

func NewRemoteClient(baseURL, clientID string, httpClient *http.Client) *RemoteClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		http:     httpClient,
	}
}

type startRequest struct {
	FlowID         string         `json:"flow_id,omitempty"`
	ClientID       string         `json:"client_id,omitempty"`
	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

type submitRequest struct {
	OptionKey string  `json:"option_key"`
	Data      Payload `json:"data"`
}

type envelope struct {
	ServiceResponse
	InteractionID string `json:"interaction_id"`
	Token         string `json:"token"`
}

type errorEnvelope struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func (c *RemoteClient) StartJourney(ctx context.Context, journeyID string, opts StartOptions) (ServiceResponse, error) {
	if c.baseURL == "" {
		return ServiceResponse{}, &JourneyError{Kind: ErrNotInitialized, Message: "no service URL configured"}
	}
	if strings.TrimSpace(journeyID) == "" {
		return ServiceResponse{}, &JourneyError{Kind: ErrClientResponseNotValid, Message: "journey id required"}
	}
	body := startRequest{FlowID: opts.FlowID, ClientID: c.clientID, AdditionalData: opts.AdditionalData}
	endpoint := fmt.Sprintf("%s/v1/journeys/%s/start", c.baseURL, url.PathEscape(journeyID))
	return c.do(ctx, endpoint, "", body)
}

func (c *RemoteClient) SubmitClientResponse(ctx context.Context, optionKey string, payload Payload) (ServiceResponse, error) {
	c.mu.Lock()
	interaction, token := c.interaction, c.token
	c.mu.Unlock()
	if interaction == "" {
		return ServiceResponse{}, &JourneyError{Kind: ErrNoActiveJourney, Message: "start a journey first"}
	}
	if optionKey == "" {
		optionKey = ClientInputKey
	}
	endpoint := fmt.Sprintf("%s/v1/interactions/%s/submit", c.baseURL, url.PathEscape(interaction))
	return c.do(ctx, endpoint, token, submitRequest{OptionKey: optionKey, Data: payload})
}

func (c *RemoteClient) do(ctx context.Context, endpoint, token string, body any) (ServiceResponse, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return ServiceResponse{}, &JourneyError{Kind: ErrClientResponseNotValid, Message: "encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return ServiceResponse{}, &JourneyError{Kind: ErrNetwork, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return ServiceResponse{}, &JourneyError{Kind: ErrNetwork, Message: err.Error(), Err: err}
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return ServiceResponse{}, &JourneyError{Kind: ErrNetwork, Message: "read response", Err: err}
	}

	if res.StatusCode/100 != 2 {
		return ServiceResponse{}, decodeError(res.StatusCode, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ServiceResponse{}, &JourneyError{Kind: ErrServer, Message: "malformed response", Err: err}
	}
	resolveErr := env.ServiceResponse.resolve()
	c.remember(env)
	if resolveErr != nil && !errors.Is(resolveErr, ErrUnsupportedStep) {
		return ServiceResponse{}, &JourneyError{Kind: ErrServer, Message: resolveErr.Error(), Err: resolveErr}
	}
	return env.ServiceResponse, resolveErr
}

func (c *RemoteClient) remember(env envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if env.Step.Terminal() {
		c.interaction, c.token = "", ""
		return
	}
	if env.InteractionID != "" {
		c.interaction = env.InteractionID
	}
	if env.Token != "" {
		c.token = env.Token
	}
}

func decodeError(status int, raw []byte) error {
	var e errorEnvelope
	if err := json.Unmarshal(raw, &e); err != nil || e.Code == "" {
		kind := ErrServer
		if status == http.StatusUnauthorized {
			kind = ErrInvalidStateToken
		}
		return &JourneyError{Kind: kind, Message: fmt.Sprintf("HTTP %d", status)}
	}
	return &JourneyError{Kind: ParseErrorKind(e.Code), Message: e.Message}
}
