// Package payment provides the client for the external payment gateway.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"sync"
	"time"
)

// Signer produces the HMAC-SHA256 request signatures the gateway verifies.
// The canonical string is path + serialized body + nonce; the digest is
// base64-encoded and sent alongside the nonce in request headers.
type Signer struct {
	secret string

	mu        sync.Mutex
	lastNonce int64
}

// NewSigner creates a Signer keyed with the channel secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: secret}
}

// Sign computes the signature over path, body and nonce.
func (s *Signer) Sign(path string, body []byte, nonce string) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(path))
	mac.Write(body)
	mac.Write([]byte(nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Nonce returns a wall-clock nonce in milliseconds, guaranteed to strictly
// increase per Signer even when two requests land on the same tick.
func (s *Signer) Nonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := time.Now().UnixMilli()
	if n <= s.lastNonce {
		n = s.lastNonce + 1
	}
	s.lastNonce = n
	return strconv.FormatInt(n, 10)
}
