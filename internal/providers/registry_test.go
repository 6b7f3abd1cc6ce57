package providers

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryReload(t *testing.T) {
	r := NewRegistryFromConfig(map[string]LLMProviderConfig{
		"openai":     {Type: OpenAIName, APIKey: "k1", Model: "m1", Enabled: true},
		"openrouter": {Type: OpenRouterName, APIKey: "", Enabled: true},
		"disabled":   {Type: OpenAIName, APIKey: "k", Enabled: false},
		"unknown":    {Type: "carrier-pigeon", APIKey: "k", Enabled: true},
	}, nil)

	if names := r.Names(); len(names) != 1 || names[0] != "openai" {
		t.Fatalf("Names() = %v, want [openai]", names)
	}
	first, err := r.Get("openai")
	if err != nil {
		t.Fatal(err)
	}

	// Same settings keep the existing client.
	r.Reload(map[string]LLMProviderConfig{
		"openai": {Type: OpenAIName, APIKey: "k1", Model: "m1", Enabled: true},
	})
	same, _ := r.Get("openai")
	if same != first {
		t.Error("unchanged config replaced the client")
	}

	// A model change rebuilds it.
	r.Reload(map[string]LLMProviderConfig{
		"openai": {Type: OpenAIName, APIKey: "k1", Model: "m2", Enabled: true},
	})
	updated, _ := r.Get("openai")
	if updated == first {
		t.Error("changed config kept the old client")
	}
	if updated.(*OpenAIClient).Model() != "m2" {
		t.Errorf("model = %s, want m2", updated.(*OpenAIClient).Model())
	}

	// Removing it unregisters.
	r.Reload(nil)
	if _, err := r.Get("openai"); err == nil {
		t.Error("client survived removal from config")
	}
}

func TestRegistryRegisterSurvivesReload(t *testing.T) {
	r := NewRegistry(nil)
	mock := NewMockClient()
	r.Register("mock", mock)
	r.Reload(nil)
	if got, err := r.Get("mock"); err != nil || got != mock {
		t.Errorf("Get(mock) = %v, %v", got, err)
	}
}

func TestRateLimiterWait(t *testing.T) {
	l := NewRateLimiter(2)
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	done, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Wait(done); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() on an empty bucket = %v, want context.Canceled", err)
	}
	if s := l.Status(); s.TotalConsumed != 2 || s.TokensLimit != 2 {
		t.Errorf("Status() = %+v", s)
	}
}
