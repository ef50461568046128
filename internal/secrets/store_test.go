package secrets

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewStore("redis://"+mr.Addr(), "deskbridge", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestNewStoreBadURL(t *testing.T) {
	if _, err := NewStore("not a url", "deskbridge", zap.NewNop()); err == nil {
		t.Error("NewStore() expected error for malformed url")
	}
}

func TestProviderSecrets(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// Missing document is a hard error.
	if _, err := store.ProviderSecrets(ctx); err == nil {
		t.Error("ProviderSecrets() expected error for missing document")
	}

	mr.Set("deskbridge:provider", `{"token":"provider-token","account":"ops"}`)
	got, err := store.ProviderSecrets(ctx)
	if err != nil {
		t.Fatalf("ProviderSecrets() error = %v", err)
	}
	if got.Token != "provider-token" {
		t.Errorf("token = %q, want provider-token", got.Token)
	}
	if got.Account != "ops" {
		t.Errorf("account = %q, want ops", got.Account)
	}
}

func TestAppCredentials(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := store.AppCredentials(ctx); err == nil {
		t.Error("AppCredentials() expected error for missing document")
	}

	// A document without the signing secret is as unusable as no document.
	mr.Set("deskbridge:app", `{"client_id":"cid","client_secret":"cs"}`)
	if _, err := store.AppCredentials(ctx); err == nil {
		t.Error("AppCredentials() expected error for missing signing secret")
	}

	mr.Set("deskbridge:app", `{"client_id":"cid","client_secret":"cs","signing_secret":"ss"}`)
	got, err := store.AppCredentials(ctx)
	if err != nil {
		t.Fatalf("AppCredentials() error = %v", err)
	}
	if got.ClientID != "cid" || got.ClientSecret != "cs" || got.SigningSecret != "ss" {
		t.Errorf("credentials = %+v", got)
	}
}

func TestCustomerSecretsLazyBag(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// A tenant that has never been written yields an empty bag.
	bag, err := store.CustomerSecrets(ctx, "acme")
	if err != nil {
		t.Fatalf("CustomerSecrets() error = %v", err)
	}
	if bag.SlackAuthorizeSecret != "" || bag.SlackAuthorization != nil {
		t.Errorf("bag = %+v, want empty", bag)
	}

	if _, err := store.CustomerSecrets(ctx, ""); err == nil {
		t.Error("CustomerSecrets() expected error for empty account")
	}
}

func TestResetAuthorizeSecret(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.ResetAuthorizeSecret(ctx, "acme")
	if err != nil {
		t.Fatalf("ResetAuthorizeSecret() error = %v", err)
	}
	if len(first) != 64 {
		t.Errorf("secret length = %d, want 64 hex characters", len(first))
	}
	if _, err := hex.DecodeString(first); err != nil {
		t.Errorf("secret %q is not hex: %v", first, err)
	}

	// A second reset overwrites the first.
	second, err := store.ResetAuthorizeSecret(ctx, "acme")
	if err != nil {
		t.Fatalf("ResetAuthorizeSecret() error = %v", err)
	}
	if second == first {
		t.Error("reset did not issue a fresh secret")
	}

	bag, err := store.CustomerSecrets(ctx, "acme")
	if err != nil {
		t.Fatalf("CustomerSecrets() error = %v", err)
	}
	if bag.SlackAuthorizeSecret != second {
		t.Error("persisted secret is not the latest one")
	}
}

func TestSaveAuthorizationKeepsBag(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	secret, err := store.ResetAuthorizeSecret(ctx, "acme")
	if err != nil {
		t.Fatalf("ResetAuthorizeSecret() error = %v", err)
	}

	auth := &SlackAuthorization{
		AccessToken: "xoxb-1",
		Scope:       "commands",
		BotUserID:   "B1",
		Team:        SlackTeam{ID: "T1", Name: "Acme"},
	}
	if err := store.SaveAuthorization(ctx, "acme", auth); err != nil {
		t.Fatalf("SaveAuthorization() error = %v", err)
	}

	bag, err := store.CustomerSecrets(ctx, "acme")
	if err != nil {
		t.Fatalf("CustomerSecrets() error = %v", err)
	}
	if bag.SlackAuthorization == nil || bag.SlackAuthorization.AccessToken != "xoxb-1" {
		t.Error("authorization was not persisted")
	}
	// Saving the authorization must not clobber the authorize secret.
	if bag.SlackAuthorizeSecret != secret {
		t.Error("authorize secret was lost while saving the authorization")
	}
}

func TestStorePing(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	mr.Close()
	if err := store.Ping(ctx); err == nil {
		t.Error("Ping() expected error after redis shutdown")
	}
}
