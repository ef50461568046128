package handshake

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cosmix/deskbridge/pkg/constants"
)

// BuildStateToken packs the node id, authorize secret and confirmation URL
// into the opaque state string carried through the OAuth redirect. Each
// component is percent-encoded first, so a separator character inside a
// caller-supplied confirmation URL cannot corrupt the token.
func BuildStateToken(nodeID, secret, confirmationURL string) string {
	return strings.Join([]string{
		url.QueryEscape(nodeID),
		url.QueryEscape(secret),
		url.QueryEscape(confirmationURL),
	}, constants.StateSeparator)
}

// ParseStateToken unpacks a state token built by BuildStateToken.
func ParseStateToken(token string) (nodeID, secret, confirmationURL string, err error) {
	parts := strings.Split(token, constants.StateSeparator)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("state token has %d components, want 3", len(parts))
	}
	if nodeID, err = url.QueryUnescape(parts[0]); err != nil {
		return "", "", "", fmt.Errorf("decode node id: %w", err)
	}
	if secret, err = url.QueryUnescape(parts[1]); err != nil {
		return "", "", "", fmt.Errorf("decode secret: %w", err)
	}
	if confirmationURL, err = url.QueryUnescape(parts[2]); err != nil {
		return "", "", "", fmt.Errorf("decode confirmation url: %w", err)
	}
	if nodeID == "" || secret == "" || confirmationURL == "" {
		return "", "", "", fmt.Errorf("state token has empty components")
	}
	return nodeID, secret, confirmationURL, nil
}
