package handshake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cosmix/deskbridge/internal/secrets"
	"github.com/cosmix/deskbridge/pkg/constants"
)

// TokenExchanger trades an OAuth authorization code for a workspace
// authorization.
type TokenExchanger interface {
	Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*secrets.SlackAuthorization, error)
}

// SlackExchanger calls the chat platform's oauth.v2.access endpoint.
type SlackExchanger struct {
	endpoint   string
	httpClient *http.Client
}

// NewSlackExchanger creates an exchanger against the given API base URL.
func NewSlackExchanger(apiURL string) *SlackExchanger {
	return &SlackExchanger{
		endpoint: strings.TrimSuffix(apiURL, "/") + "/oauth.v2.access",
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
	}
}

type oauthAccessResponse struct {
	OK          bool              `json:"ok"`
	Error       string            `json:"error,omitempty"`
	AccessToken string            `json:"access_token"`
	Scope       string            `json:"scope"`
	BotUserID   string            `json:"bot_user_id"`
	Team        secrets.SlackTeam `json:"team"`
}

// Exchange performs the code-for-token exchange. The redirect URI must
// exactly match the one used on the authorize redirect.
func (e *SlackExchanger) Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*secrets.SlackAuthorization, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var access oauthAccessResponse
	if err := json.NewDecoder(resp.Body).Decode(&access); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if !access.OK {
		return nil, fmt.Errorf("token exchange rejected: %s", access.Error)
	}
	if access.AccessToken == "" || access.Team.ID == "" {
		return nil, fmt.Errorf("token response missing access token or team")
	}

	return &secrets.SlackAuthorization{
		AccessToken: access.AccessToken,
		Scope:       access.Scope,
		BotUserID:   access.BotUserID,
		Team:        access.Team,
	}, nil
}
