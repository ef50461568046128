package slackbridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cosmix/deskbridge/pkg/apperr"
	"github.com/cosmix/deskbridge/pkg/constants"
)

// Signature computes the expected request signature for a given signing
// secret, timestamp and raw body.
func Signature(signingSecret, timestamp string, body []byte) string {
	base := fmt.Sprintf("%s:%s:%s", SignatureVersion, timestamp, string(body))
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte(base))
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyRequest checks that the request carries a valid signature and a
// timestamp within the allowed replay window. Every failure mode —
// missing headers, stale timestamp, signature mismatch — is an
// authorization error.
func VerifyRequest(signingSecret string, headers http.Header, body []byte, now time.Time) error {
	timestamp := headers.Get(HeaderSlackRequestTimestamp)
	signature := headers.Get(HeaderSlackSignature)

	if timestamp == "" || signature == "" {
		return apperr.Authorization("missing signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return apperr.Authorization("malformed request timestamp")
	}

	age := now.Unix() - ts
	if age < 0 {
		age = -age
	}
	if age > constants.MaxSlackRequestAge {
		return apperr.Authorization("stale request timestamp")
	}

	expected := Signature(signingSecret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperr.Authorization("invalid request signature")
	}

	return nil
}
