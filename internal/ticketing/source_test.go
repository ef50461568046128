package ticketing

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/cosmix/deskbridge/internal/secrets"
	"go.uber.org/zap"
)

func newSourceStore(t *testing.T, providerDoc string) *secrets.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.Set("deskbridge:provider", providerDoc)
	store, err := secrets.NewStore("redis://"+mr.Addr(), "deskbridge", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSourceProviderAccountFromSecret(t *testing.T) {
	store := newSourceStore(t, `{"token":"tok","account":"ops"}`)
	s := NewSource("http://api.example", "fallback", store, zap.NewNop())

	client, err := s.Provider(context.Background())
	if err != nil {
		t.Fatalf("Provider() error = %v", err)
	}
	if client.account != "ops" {
		t.Errorf("client account = %q, want ops", client.account)
	}
}

func TestSourceProviderAccountFallback(t *testing.T) {
	store := newSourceStore(t, `{"token":"tok"}`)
	s := NewSource("http://api.example", "fallback", store, zap.NewNop())

	client, err := s.Provider(context.Background())
	if err != nil {
		t.Fatalf("Provider() error = %v", err)
	}
	if client.account != "fallback" {
		t.Errorf("client account = %q, want fallback", client.account)
	}
}

func TestSourceTenantScopesAccount(t *testing.T) {
	store := newSourceStore(t, `{"token":"tok"}`)
	s := NewSource("http://api.example", "fallback", store, zap.NewNop())

	client, err := s.Tenant(context.Background(), "acme")
	if err != nil {
		t.Fatalf("Tenant() error = %v", err)
	}
	if client.account != "acme" {
		t.Errorf("client account = %q, want acme", client.account)
	}

	if _, err := s.Tenant(context.Background(), ""); err == nil {
		t.Error("Tenant with empty account returned no error")
	}
}
