package capability

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// stubProvider is a Provider with a fixed tool list.
type stubProvider struct {
	name  string
	tools []string
	calls []string
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) ToolNames() []string { return s.tools }
func (s *stubProvider) Tools() []ToolSpec {
	specs := make([]ToolSpec, len(s.tools))
	for i, t := range s.tools {
		specs[i] = ToolSpec{Name: t}
	}
	return specs
}
func (s *stubProvider) Invoke(_ context.Context, tool string, _ json.RawMessage) (Result, error) {
	s.calls = append(s.calls, tool)
	return Result{Content: s.name + ":" + tool}, nil
}

func providerNames(ps []Provider) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return names
}

func TestRegistryProvidersForKeepsDiscoveryOrder(t *testing.T) {
	search := &stubProvider{name: "search", tools: []string{"web_search"}}
	weather := &stubProvider{name: "weather", tools: []string{"get_weather", "forecast"}}
	mail := &stubProvider{name: "mail", tools: []string{"send_mail", "web_search"}}
	r := NewRegistry(search, weather, mail)

	got := providerNames(r.ProvidersFor([]string{"send_mail", "forecast", "get_weather"}))
	want := []string{"weather", "mail"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ProvidersFor = %v, want %v", got, want)
	}

	got = providerNames(r.ProvidersFor([]string{"web_search"}))
	if strings.Join(got, ",") != "search,mail" {
		t.Errorf("ProvidersFor(web_search) = %v", got)
	}

	if ps := r.ProvidersFor([]string{"nope"}); ps != nil {
		t.Errorf("expected nil for unmatched names, got %v", providerNames(ps))
	}
}

func TestRegistryToolNamesAndLookup(t *testing.T) {
	a := &stubProvider{name: "a", tools: []string{"x", "y"}}
	b := &stubProvider{name: "b", tools: []string{"y", "z"}}
	dup := &stubProvider{name: "a", tools: []string{"ignored"}}
	r := NewRegistry(a, b, dup, nil)

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	if got := strings.Join(r.ToolNames(), ","); got != "x,y,z" {
		t.Errorf("ToolNames = %s", got)
	}
	p, ok := r.Lookup("y")
	if !ok || p.Name() != "a" {
		t.Errorf("Lookup(y) = %v, %v", p, ok)
	}
	if _, ok := r.Lookup("ignored"); ok {
		t.Error("duplicate provider name should not be indexed")
	}
}

func TestRegistryInvoke(t *testing.T) {
	b := &stubProvider{name: "b", tools: []string{"z"}}
	r := NewRegistry(b)

	res, err := r.Invoke(context.Background(), "z", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Content != "b:z" {
		t.Errorf("content = %q", res.Content)
	}

	if _, err := r.Invoke(context.Background(), "missing", nil); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistryDescribe(t *testing.T) {
	var empty *Registry
	if got := empty.Describe(); got != "No tools available" {
		t.Errorf("nil Describe = %q", got)
	}
	r := NewRegistry(&stubProvider{name: "weather", tools: []string{"get_weather", "forecast"}})
	if got := r.Describe(); got != "weather: get_weather, forecast" {
		t.Errorf("Describe = %q", got)
	}
}

func TestRegistryContainsIsIdentity(t *testing.T) {
	a := &stubProvider{name: "weather", tools: []string{"forecast"}}
	twin := &stubProvider{name: "weather", tools: []string{"forecast"}}
	reg := NewRegistry(a)

	if !reg.Contains(a) {
		t.Error("registry should contain the provider it was built from")
	}
	if reg.Contains(twin) {
		t.Error("a different provider with the same name is not contained")
	}
	var empty *Registry
	if empty.Contains(a) {
		t.Error("nil registry contains nothing")
	}
	if !Same(a, a) || Same(a, twin) || Same(a, nil) {
		t.Error("Same should compare identity")
	}
}
