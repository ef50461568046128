// Package secrets persists the bridge's credential material in Redis.
//
// Three kinds of secret bags live under a configurable namespace:
//   - provider: credentials the bridge uses against the ticketing system
//   - app: the chat-app OAuth client id/secret and signing secret
//   - instances/<account>: per-tenant bag holding the single-use authorize
//     secret and, once installed, the workspace authorization
//
// Every bag is a single JSON document per key. Consistency of
// read-modify-write sequences relies on Redis serving one command at a
// time; there is no optimistic locking, so concurrent handshake
// initiations for the same tenant race last-writer-wins.
package secrets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cosmix/deskbridge/pkg/constants"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProviderSecrets authenticates the bridge against the ticketing system.
type ProviderSecrets struct {
	Token   string `json:"token"`
	Account string `json:"account,omitempty"`
}

// AppCredentials identifies the deployment's chat app.
type AppCredentials struct {
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
	SigningSecret string `json:"signing_secret"`
}

// SlackTeam identifies the workspace an authorization was granted for.
type SlackTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SlackAuthorization is the result of the OAuth code exchange, persisted
// per tenant once the installation handshake completes.
type SlackAuthorization struct {
	AccessToken string    `json:"access_token"`
	Scope       string    `json:"scope,omitempty"`
	BotUserID   string    `json:"bot_user_id,omitempty"`
	Team        SlackTeam `json:"team"`
}

// CustomerSecrets is one tenant's secret bag. A bag is created lazily on
// first write and never deleted by this service.
type CustomerSecrets struct {
	SlackAuthorizeSecret string              `json:"slack_authorize_secret,omitempty"`
	SlackAuthorization   *SlackAuthorization `json:"slack_authorization,omitempty"`
	Application          *AppCredentials     `json:"application,omitempty"`
}

// Store is the Redis-backed secrets store.
type Store struct {
	client    redis.UniversalClient
	namespace string
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewStore connects to Redis at the given URL and verifies the connection.
func NewStore(url, namespace string, logger *zap.Logger) (*Store, error) {
	if url == "" {
		url = constants.DefaultRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Store{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}, nil
}

// SetMetrics sets the metrics instance used to record store operations
func (s *Store) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Ping verifies the Redis connection, used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) providerKey() string {
	return s.namespace + ":provider"
}

func (s *Store) appKey() string {
	return s.namespace + ":app"
}

func (s *Store) instanceKey(account string) string {
	return s.namespace + ":instances:" + account
}

// ProviderSecrets loads the provider-level ticketing credentials. A missing
// document is an error: the deployment cannot function without it.
func (s *Store) ProviderSecrets(ctx context.Context) (*ProviderSecrets, error) {
	var out ProviderSecrets
	if err := s.getJSON(ctx, "provider_secrets", s.providerKey(), &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("provider secrets missing at %s", s.providerKey())
	}
	return &out, nil
}

// AppCredentials loads the chat-app OAuth and signing credentials.
func (s *Store) AppCredentials(ctx context.Context) (*AppCredentials, error) {
	var out AppCredentials
	if err := s.getJSON(ctx, "app_credentials", s.appKey(), &out); err != nil {
		return nil, err
	}
	if out.SigningSecret == "" {
		return nil, fmt.Errorf("app credentials missing at %s", s.appKey())
	}
	return &out, nil
}

// CustomerSecrets loads one tenant's bag. A tenant that has never been
// written returns an empty bag, not an error: bags are created lazily.
func (s *Store) CustomerSecrets(ctx context.Context, account string) (*CustomerSecrets, error) {
	if account == "" {
		return nil, fmt.Errorf("account is required")
	}
	var out CustomerSecrets
	err := s.getJSON(ctx, "customer_secrets", s.instanceKey(account), &out)
	if errors.Is(err, redis.Nil) {
		return &CustomerSecrets{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PutCustomerSecrets overwrites one tenant's bag.
func (s *Store) PutCustomerSecrets(ctx context.Context, account string, bag *CustomerSecrets) error {
	if account == "" {
		return fmt.Errorf("account is required")
	}
	return s.putJSON(ctx, "put_customer_secrets", s.instanceKey(account), bag)
}

// ResetAuthorizeSecret issues a fresh single-use authorize secret for the
// tenant, overwriting any prior value, and returns the new secret. The old
// secret stops validating the moment this returns.
func (s *Store) ResetAuthorizeSecret(ctx context.Context, account string) (string, error) {
	secret, err := newAuthorizeSecret()
	if err != nil {
		return "", err
	}

	bag, err := s.CustomerSecrets(ctx, account)
	if err != nil {
		return "", err
	}
	bag.SlackAuthorizeSecret = secret
	if err := s.PutCustomerSecrets(ctx, account, bag); err != nil {
		return "", err
	}
	return secret, nil
}

// SaveAuthorization persists the OAuth exchange result for the tenant,
// keeping the rest of the bag intact.
func (s *Store) SaveAuthorization(ctx context.Context, account string, auth *SlackAuthorization) error {
	bag, err := s.CustomerSecrets(ctx, account)
	if err != nil {
		return err
	}
	bag.SlackAuthorization = auth
	return s.PutCustomerSecrets(ctx, account, bag)
}

func (s *Store) getJSON(ctx context.Context, operation, key string, out any) error {
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		s.recordOp(operation, err)
		if errors.Is(err, redis.Nil) {
			return err
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.recordOp(operation, err)
		return fmt.Errorf("decode %s: %w", key, err)
	}
	s.recordOp(operation, nil)
	return nil
}

func (s *Store) putJSON(ctx context.Context, operation, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		s.recordOp(operation, err)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	s.recordOp(operation, nil)
	return nil
}

func (s *Store) recordOp(operation string, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
	}
	s.metrics.SecretsOpsTotal.WithLabelValues(operation, status).Inc()
}

// newAuthorizeSecret draws a cryptographically random secret and hex
// encodes it.
func newAuthorizeSecret() (string, error) {
	buf := make([]byte, constants.AuthorizeSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate authorize secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
