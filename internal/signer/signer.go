package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// Sign returns the lowercase hex HMAC-SHA256 of message keyed by secret.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Signer holds an API secret. The secret never leaves this value.
type Signer struct {
	secret string
}

func New(secret string) Signer {
	return Signer{secret: secret}
}

func (s Signer) Sign(message string) string {
	return Sign(s.secret, message)
}

// SignValues encodes params once and returns the exact string to transmit:
// the encoded query followed by "&signature=<hex>" over that query.
func (s Signer) SignValues(params url.Values) string {
	query := params.Encode()
	signature := s.Sign(query)
	if query == "" {
		return "signature=" + signature
	}
	return query + "&signature=" + signature
}
