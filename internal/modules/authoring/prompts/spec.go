// Package prompts holds the text/template prompts of the authoring stages.
package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

type PromptName string

const (
	// PromptStageFraming wraps the author's request with the post and record context.
	PromptStageFraming PromptName = "stage_framing"
	// PromptFactFinding is the fixed-structure request sent to a search backend.
	PromptFactFinding PromptName = "fact_finding"
)

type Validator func(in Input) error

// Spec is the declaration format; Text is a Go template over Input.
type Spec struct {
	Name       PromptName
	Version    int
	Text       string
	Validators []Validator
}

type Template struct {
	Name     PromptName
	Version  int
	Render   func(Input) (string, error)
	Validate Validator
}

var (
	mu       sync.RWMutex
	registry = map[PromptName]Template{}
)

// MakeTemplate compiles a Spec.
func MakeTemplate(s Spec) (Template, error) {
	if strings.TrimSpace(string(s.Name)) == "" {
		return Template{}, fmt.Errorf("missing prompt name")
	}
	if s.Version <= 0 {
		return Template{}, fmt.Errorf("invalid version for %s", s.Name)
	}
	t, err := template.New(string(s.Name)).Option("missingkey=zero").Parse(s.Text)
	if err != nil {
		return Template{}, fmt.Errorf("%s template parse: %w", s.Name, err)
	}
	tt := Template{
		Name:    s.Name,
		Version: s.Version,
		Render: func(in Input) (string, error) {
			var b bytes.Buffer
			if err := t.Execute(&b, in); err != nil {
				return "", fmt.Errorf("%s template execute: %w", s.Name, err)
			}
			return collapseBlankLines(b.String()), nil
		},
	}
	if len(s.Validators) > 0 {
		tt.Validate = func(in Input) error {
			for _, v := range s.Validators {
				if v == nil {
					continue
				}
				if err := v(in); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return tt, nil
}

func Register(t Template) {
	mu.Lock()
	registry[t.Name] = t
	mu.Unlock()
}

// RegisterSpec compiles and registers s, panicking on a bad template.
func RegisterSpec(s Spec) {
	t, err := MakeTemplate(s)
	if err != nil {
		panic(err)
	}
	Register(t)
}

// Build renders a registered prompt.
func Build(name PromptName, in Input) (string, error) {
	mu.RLock()
	t, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt: %s", string(name))
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			return "", fmt.Errorf("%s: %w", string(name), err)
		}
	}
	return t.Render(in)
}

func RequireNonEmpty(field string, get func(Input) string) Validator {
	return func(in Input) error {
		if strings.TrimSpace(get(in)) == "" {
			return fmt.Errorf("missing %s", field)
		}
		return nil
	}
}

// collapseBlankLines trims the result and squeezes runs of blank lines left
// behind by skipped template branches.
func collapseBlankLines(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
