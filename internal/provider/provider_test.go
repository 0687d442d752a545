package provider

import (
	"context"
	"testing"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

type stubProvider struct {
	name      string
	priority  int
	available bool
}

func (s *stubProvider) Send(ctx context.Context, msg *model.EmailMessage) (*SendResult, error) {
	return &SendResult{ExternalID: "stub", Provider: s.name}, nil
}
func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) DisplayName() string { return s.name }
func (s *stubProvider) Priority() int       { return s.priority }
func (s *stubProvider) IsAvailable() bool   { return s.available }

func TestRegistryOrdersByPriority(t *testing.T) {
	r := NewRegistryFromProviders(
		&stubProvider{name: "C", priority: 3, available: true},
		&stubProvider{name: "A", priority: 1, available: true},
		&stubProvider{name: "B", priority: 2, available: true},
	)

	got := r.Available()
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("expected %d providers, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name() != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name())
		}
	}
}

func TestNewRegistryFiltersUnavailable(t *testing.T) {
	configs := []config.ProviderConfig{
		{Name: "SENDGRID", Priority: 1, Enabled: false, RequiresAuth: true, Password: "key"},
		{Name: "MAILHOG", Priority: 4, Enabled: true, Host: "localhost", Port: 1025},
	}

	r, err := NewRegistry(configs)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	got := r.Available()
	if len(got) != 1 {
		t.Fatalf("expected 1 available provider, got %d", len(got))
	}
	if got[0].Name() != "MAILHOG" {
		t.Errorf("expected MAILHOG, got %s", got[0].Name())
	}
}

func TestAuthenticatedProviderNeedsCredentials(t *testing.T) {
	p := NewSendGridProvider(config.ProviderConfig{
		Name: "SENDGRID", Priority: 1, Enabled: true, RequiresAuth: true, Password: "",
	})
	if p.IsAvailable() {
		t.Fatal("expected sendgrid without API key to be unavailable")
	}

	p = NewSendGridProvider(config.ProviderConfig{
		Name: "SENDGRID", Priority: 1, Enabled: true, RequiresAuth: true, Password: "sg-key",
	})
	if !p.IsAvailable() {
		t.Fatal("expected sendgrid with API key to be available")
	}
}
