package ido

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OptionType classifies a response option.
type OptionType string

const (
	OptionClientInput OptionType = "client_input"
	OptionCustom      OptionType = "custom"
	OptionCancel      OptionType = "cancel"
)

// ClientInputKey is the option key of the primary submission path.
const ClientInputKey = string(OptionClientInput)

func (t OptionType) Valid() bool {
	switch t {
	case OptionClientInput, OptionCustom, OptionCancel:
		return true
	}
	return false
}

// IsEscape reports whether options of this type are offered as escapes.
func (t OptionType) IsEscape() bool {
	return t == OptionCustom || t == OptionCancel
}

// ResponseOption is one submission path offered with a step.
type ResponseOption struct {
	Key   string     `json:"key"`
	ID    string     `json:"id"`
	Type  OptionType `json:"type"`
	Label string     `json:"label"`
}

// ResponseOptions keeps options in the order the service sent them.
type ResponseOptions []ResponseOption

// Escape returns the first Custom or Cancel option. ClientInput options are the
// primary path and never qualify.
func (o ResponseOptions) Escape() (ResponseOption, bool) {
	for _, opt := range o {
		if opt.Type.IsEscape() {
			return opt, true
		}
	}
	return ResponseOption{}, false
}

// UnmarshalJSON accepts either an array of options or an object keyed by
// option key. Object members keep their document order.
func (o *ResponseOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	switch data[0] {
	case '[':
		var list []ResponseOption
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		for i := range list {
			if list[i].Key == "" {
				list[i].Key = list[i].ID
			}
		}
		*o = list
		return nil
	case '{':
		return o.unmarshalObject(data)
	}
	return fmt.Errorf("client_response_options: unexpected JSON %q", data[:1])
}

func (o *ResponseOptions) unmarshalObject(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil { // {
		return err
	}
	var out ResponseOptions
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("client_response_options: non-string key %v", tok)
		}
		var opt ResponseOption
		if err := dec.Decode(&opt); err != nil {
			return fmt.Errorf("client_response_options[%s]: %w", key, err)
		}
		opt.Key = key
		out = append(out, opt)
	}
	if _, err := dec.Token(); err != nil { // }
		return err
	}
	*o = out
	return nil
}
