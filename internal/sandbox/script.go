package sandbox

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jask/idojourney/internal/ido"
)

//go:embed demo.toml
var demoScript []byte

var ErrInvalidScript = errors.New("invalid journey script")

// Script is a set of journeys, each a graph of named steps.
type Script struct {
	Journeys map[string]*Journey `toml:"journeys"`
}

type Journey struct {
	Start string `toml:"start"`
	Steps []Step `toml:"steps"`

	byName map[string]*Step
}

// Step is one node of a journey. Next is followed on a client_input
// submission; escape options may jump elsewhere with Goto.
type Step struct {
	Name    string         `toml:"name"`
	Tag     string         `toml:"tag"`
	Next    string         `toml:"next"`
	Data    map[string]any `toml:"data"`
	Options []Option       `toml:"options"`

	id ido.StepID
}

type Option struct {
	Key   string `toml:"key"`
	ID    string `toml:"id"`
	Type  string `toml:"type"`
	Label string `toml:"label"`
	Goto  string `toml:"goto"`
}

// LoadScript reads a script file, or the built-in demo script when path is empty.
func LoadScript(path string) (*Script, error) {
	if path == "" {
		return ParseScript(demoScript)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(raw)
}

// ParseScript decodes and validates a TOML script.
func ParseScript(raw []byte) (*Script, error) {
	var s Script
	md, err := toml.Decode(string(raw), &s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			if stepData(k) {
				continue
			}
			keys = append(keys, k.String())
		}
		if len(keys) > 0 {
			return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidScript, strings.Join(keys, ", "))
		}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// stepData reports whether k lies inside a step's free-form data table.
// The decoder leaves array values there marked as undecoded.
func stepData(k toml.Key) bool {
	return len(k) > 3 && k[0] == "journeys" && k[2] == "steps" && k[3] == "data"
}

func (s *Script) Journey(id string) (*Journey, bool) {
	j, ok := s.Journeys[id]
	return j, ok
}

func (s *Script) validate() error {
	if len(s.Journeys) == 0 {
		return fmt.Errorf("%w: no journeys", ErrInvalidScript)
	}
	for name, j := range s.Journeys {
		if j == nil {
			return fmt.Errorf("%w: journey %q is empty", ErrInvalidScript, name)
		}
		if err := j.index(); err != nil {
			return fmt.Errorf("%w: journey %q: %v", ErrInvalidScript, name, err)
		}
	}
	return nil
}

func (j *Journey) index() error {
	j.byName = make(map[string]*Step, len(j.Steps))
	for i := range j.Steps {
		st := &j.Steps[i]
		if st.Name == "" {
			return fmt.Errorf("step %d has no name", i)
		}
		if _, dup := j.byName[st.Name]; dup {
			return fmt.Errorf("duplicate step %q", st.Name)
		}
		id, err := ido.ParseStepID(st.Tag)
		if err != nil {
			return fmt.Errorf("step %q: %v", st.Name, err)
		}
		st.id = id
		j.byName[st.Name] = st
	}
	if _, ok := j.byName[j.Start]; !ok {
		return fmt.Errorf("start step %q not found", j.Start)
	}
	for _, st := range j.Steps {
		if err := j.checkStep(st); err != nil {
			return fmt.Errorf("step %q: %v", st.Name, err)
		}
	}
	return nil
}

func (j *Journey) checkStep(st Step) error {
	if st.id.Terminal() {
		if st.Next != "" || len(st.Options) > 0 {
			return fmt.Errorf("terminal step cannot continue")
		}
		return nil
	}
	if _, ok := j.byName[st.Next]; !ok {
		return fmt.Errorf("next step %q not found", st.Next)
	}
	seen := map[string]bool{ido.ClientInputKey: true}
	for _, opt := range st.Options {
		typ := ido.OptionType(opt.Type)
		if !typ.IsEscape() {
			return fmt.Errorf("option %q: type %q is not an escape", opt.Key, opt.Type)
		}
		if opt.Key == "" || seen[opt.Key] {
			return fmt.Errorf("option key %q missing or reused", opt.Key)
		}
		seen[opt.Key] = true
		switch typ {
		case ido.OptionCustom:
			if _, ok := j.byName[opt.Goto]; !ok {
				return fmt.Errorf("option %q: goto step %q not found", opt.Key, opt.Goto)
			}
		case ido.OptionCancel:
			if opt.Goto != "" {
				return fmt.Errorf("option %q: cancel options cannot goto", opt.Key)
			}
		}
	}
	return nil
}

// Step returns the named step.
func (j *Journey) Step(name string) (*Step, bool) {
	st, ok := j.byName[name]
	return st, ok
}

func (st *Step) StepID() ido.StepID { return st.id }

func (st *Step) option(key string) (Option, bool) {
	for _, opt := range st.Options {
		if opt.Key == key {
			return opt, true
		}
	}
	return Option{}, false
}

// responseOptions lists the primary path first, then the step's escapes in
// script order.
func (st *Step) responseOptions() ido.ResponseOptions {
	opts := ido.ResponseOptions{{Key: ido.ClientInputKey, ID: ido.ClientInputKey, Type: ido.OptionClientInput}}
	for _, o := range st.Options {
		opts = append(opts, ido.ResponseOption{Key: o.Key, ID: o.ID, Type: ido.OptionType(o.Type), Label: o.Label})
	}
	return opts
}
