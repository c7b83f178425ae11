package llm

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	key      string
	searches bool
}

func (s stubProvider) Key() string    { return s.key }
func (s stubProvider) Searches() bool { return s.searches }
func (s stubProvider) Generate(context.Context, string, Options) (GeneratedText, error) {
	return GeneratedText{Text: s.key}, nil
}

func TestRegistryCurrentFallsBackToFirst(t *testing.T) {
	reg := NewRegistry()
	if reg.Current() != nil || reg.CurrentKey() != "" {
		t.Fatalf("empty registry should have no current")
	}
	reg.Register(KeyAnthropic, stubProvider{key: KeyAnthropic})
	reg.Register(KeyOpenAI, stubProvider{key: KeyOpenAI})

	if got := reg.CurrentKey(); got != KeyAnthropic {
		t.Fatalf("current=%q want first registered", got)
	}
	if err := reg.SetCurrent(" OpenAI "); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}
	if got := reg.CurrentKey(); got != KeyOpenAI {
		t.Fatalf("current=%q", got)
	}
}

func TestRegistrySetCurrentUnknown(t *testing.T) {
	reg := NewRegistry()
	reg.Register(KeyGrok, stubProvider{key: KeyGrok})
	if err := reg.SetCurrent(KeyPerplexity); !errors.Is(err, ErrInvalidProviderKey) {
		t.Fatalf("err=%v", err)
	}
	if got := reg.CurrentKey(); got != KeyGrok {
		t.Fatalf("current changed after failed SetCurrent: %q", got)
	}
}

func TestRegistryFirstSearchAndOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(KeyOpenAI, stubProvider{key: KeyOpenAI})
	reg.Register(KeySerper, stubProvider{key: KeySerper, searches: true})
	reg.Register(KeyPerplexity, stubProvider{key: KeyPerplexity, searches: true})
	reg.Register(KeyOpenAI, stubProvider{key: KeyOpenAI})

	if got := reg.ListAvailable(); len(got) != 3 || got[0] != KeyOpenAI || got[1] != KeySerper {
		t.Fatalf("order=%v", got)
	}
	if p := reg.FirstSearch(); p == nil || p.Key() != KeySerper {
		t.Fatalf("first search=%v", p)
	}
	noSerper := NewRegistry()
	noSerper.Register(KeyOpenAI, stubProvider{key: KeyOpenAI})
	noSerper.Register(KeyPerplexity, stubProvider{key: KeyPerplexity, searches: true})
	if p := noSerper.FirstSearch(); p == nil || p.Key() != KeyPerplexity {
		t.Fatalf("first search without serper=%v", p)
	}
	if reg.Get("missing") != nil {
		t.Fatalf("Get(missing) should be nil")
	}
}
