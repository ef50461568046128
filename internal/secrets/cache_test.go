package secrets

import (
	"context"
	"testing"
)

func TestCacheMemoizes(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Set("deskbridge:instances:acme", `{"slack_authorize_secret":"s1"}`)

	cache := NewCache(store)
	first, err := cache.CustomerSecrets(ctx, "acme")
	if err != nil {
		t.Fatalf("CustomerSecrets() error = %v", err)
	}
	if first.SlackAuthorizeSecret != "s1" {
		t.Fatalf("secret = %q, want s1", first.SlackAuthorizeSecret)
	}

	// A store-level change is invisible for the rest of the invocation.
	mr.Set("deskbridge:instances:acme", `{"slack_authorize_secret":"s2"}`)
	cached, err := cache.CustomerSecrets(ctx, "acme")
	if err != nil {
		t.Fatalf("CustomerSecrets() error = %v", err)
	}
	if cached.SlackAuthorizeSecret != "s1" {
		t.Errorf("secret = %q, want memoized s1", cached.SlackAuthorizeSecret)
	}

	// A fresh cache sees the new document.
	fresh, err := NewCache(store).CustomerSecrets(ctx, "acme")
	if err != nil {
		t.Fatalf("CustomerSecrets() error = %v", err)
	}
	if fresh.SlackAuthorizeSecret != "s2" {
		t.Errorf("secret = %q, want re-read s2", fresh.SlackAuthorizeSecret)
	}
}

func TestCacheSeparatesAccounts(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Set("deskbridge:instances:acme", `{"slack_authorize_secret":"acme-secret"}`)
	mr.Set("deskbridge:instances:globex", `{"slack_authorize_secret":"globex-secret"}`)

	cache := NewCache(store)
	acme, err := cache.CustomerSecrets(ctx, "acme")
	if err != nil {
		t.Fatalf("CustomerSecrets(acme) error = %v", err)
	}
	globex, err := cache.CustomerSecrets(ctx, "globex")
	if err != nil {
		t.Fatalf("CustomerSecrets(globex) error = %v", err)
	}

	if acme.SlackAuthorizeSecret != "acme-secret" || globex.SlackAuthorizeSecret != "globex-secret" {
		t.Errorf("bags crossed accounts: %q / %q", acme.SlackAuthorizeSecret, globex.SlackAuthorizeSecret)
	}
}

func TestCacheErrorsAreNotMemoized(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Set("deskbridge:instances:acme", `not json`)

	cache := NewCache(store)
	if _, err := cache.CustomerSecrets(ctx, "acme"); err == nil {
		t.Fatal("expected decode error")
	}

	// Once the document is fixed the next read must succeed.
	mr.Set("deskbridge:instances:acme", `{"slack_authorize_secret":"s1"}`)
	bag, err := cache.CustomerSecrets(ctx, "acme")
	if err != nil {
		t.Fatalf("CustomerSecrets() error = %v", err)
	}
	if bag.SlackAuthorizeSecret != "s1" {
		t.Errorf("secret = %q, want s1", bag.SlackAuthorizeSecret)
	}
}
