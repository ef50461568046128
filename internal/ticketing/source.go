package ticketing

import (
	"context"
	"fmt"

	"github.com/cosmix/deskbridge/internal/secrets"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"go.uber.org/zap"
)

// Source hands out ticketing clients authenticated from the secrets store.
// Handshake operations use a provider-scoped connection; ticket creation
// uses a connection scoped to the tenant's own account.
type Source struct {
	baseURL         string
	providerAccount string
	store           *secrets.Store
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

// NewSource creates a client source for the given API base URL.
// providerAccount is the account used when the provider secret does not
// name one.
func NewSource(baseURL, providerAccount string, store *secrets.Store, logger *zap.Logger) *Source {
	return &Source{
		baseURL:         baseURL,
		providerAccount: providerAccount,
		store:           store,
		logger:          logger,
	}
}

// SetMetrics sets the metrics instance propagated to issued clients
func (s *Source) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Provider returns a client authenticated with provider-level credentials.
func (s *Source) Provider(ctx context.Context) (*Client, error) {
	provider, err := s.store.ProviderSecrets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load provider secrets: %w", err)
	}
	account := provider.Account
	if account == "" {
		account = s.providerAccount
	}
	client := NewClient(s.baseURL, provider.Token, account, s.logger)
	client.SetMetrics(s.metrics)
	return client, nil
}

// Tenant returns a client scoped to one tenant account, authenticated with
// the provider credentials.
func (s *Source) Tenant(ctx context.Context, account string) (*Client, error) {
	if account == "" {
		return nil, fmt.Errorf("tenant account is required")
	}
	client, err := s.Provider(ctx)
	if err != nil {
		return nil, err
	}
	return client.WithAccount(account), nil
}
