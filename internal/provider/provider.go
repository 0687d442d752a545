package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// Provider is one outbound mail transport. Implementations are safe for
// concurrent use; availability is cheap and re-checked on every attempt.
type Provider interface {
	// Send delivers one message and returns the provider-assigned id.
	Send(ctx context.Context, msg *model.EmailMessage) (*SendResult, error)
	Name() string
	DisplayName() string
	// Priority orders providers; lower is tried first.
	Priority() int
	// IsAvailable reports enabled && (no auth required || credentials present).
	IsAvailable() bool
}

// SendResult is the outcome of a successful provider send.
type SendResult struct {
	ExternalID string
	Provider   string
	Timestamp  time.Time
}

// Registry holds the process-lifetime provider set, filtered to available
// providers and sorted ascending by priority at construction.
type Registry struct {
	providers []Provider
}

// NewRegistry builds the registry from startup configuration. Providers that
// are unavailable at startup are dropped; the per-attempt IsAvailable check
// covers the rest.
func NewRegistry(configs []config.ProviderConfig) (*Registry, error) {
	var providers []Provider
	for _, pc := range configs {
		p, err := newProvider(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if p.IsAvailable() {
			providers = append(providers, p)
		}
	}
	sort.SliceStable(providers, func(i, j int) bool {
		return providers[i].Priority() < providers[j].Priority()
	})
	return &Registry{providers: providers}, nil
}

// NewRegistryFromProviders wires explicit providers, for tests and
// non-standard deployments.
func NewRegistryFromProviders(providers ...Provider) *Registry {
	sorted := make([]Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Registry{providers: sorted}
}

// Available returns the ordered provider sequence.
func (r *Registry) Available() []Provider {
	return r.providers
}

func newProvider(pc config.ProviderConfig) (Provider, error) {
	switch pc.Name {
	case "SENDGRID":
		return NewSendGridProvider(pc), nil
	case "MAILGUN":
		return NewMailgunProvider(pc), nil
	case "SES":
		return NewSESProvider(pc)
	case "MAILHOG":
		return NewSMTPProvider(pc), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", pc.Name)
	}
}

// hasCredentials implements the availability predicate shared by the
// authenticated providers.
func hasCredentials(pc config.ProviderConfig) bool {
	if !pc.RequiresAuth {
		return true
	}
	return pc.Password != ""
}
