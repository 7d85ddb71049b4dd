package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"hash"
	"net/http"
	"strings"
)

const (
	HeaderSignatureSHA256 = "X-Square-Hmacsha256-Signature"
	HeaderSignatureSHA1   = "X-Square-Signature"
)

type Algorithm string

const (
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA1   Algorithm = "sha1"
)

// Signature is one candidate signature presented with a delivery.
type Signature struct {
	Algorithm Algorithm
	Value     string
}

func SignaturesFromHeader(h http.Header) []Signature {
	out := make([]Signature, 0, 2)
	if v := strings.TrimSpace(h.Get(HeaderSignatureSHA256)); v != "" {
		out = append(out, Signature{Algorithm: AlgorithmSHA256, Value: v})
	}
	if v := strings.TrimSpace(h.Get(HeaderSignatureSHA1)); v != "" {
		out = append(out, Signature{Algorithm: AlgorithmSHA1, Value: v})
	}
	return out
}

// Sign returns base64(HMAC(secret, notificationURL + body)).
func Sign(alg Algorithm, secret string, notificationURL string, body []byte) string {
	newHash := hashFor(alg)
	if newHash == nil {
		return ""
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether any candidate matches the digest of body. The raw
// bytes must be the exact bytes received.
func Verify(body []byte, candidates []Signature, secret string, notificationURL string) bool {
	if secret == "" || len(candidates) == 0 {
		return false
	}
	for _, c := range candidates {
		if c.Value == "" || hashFor(c.Algorithm) == nil {
			continue
		}
		expected := Sign(c.Algorithm, secret, notificationURL, body)
		if hmac.Equal([]byte(expected), []byte(c.Value)) {
			return true
		}
	}
	return false
}

func hashFor(alg Algorithm) func() hash.Hash {
	switch alg {
	case AlgorithmSHA256:
		return sha256.New
	case AlgorithmSHA1:
		return sha1.New
	default:
		return nil
	}
}

type Verifier struct {
	secret          string
	notificationURL string
	allowUnsigned   bool
}

// NewVerifier fails closed without a secret. allowUnsigned is honored only
// outside production.
func NewVerifier(secret string, notificationURL string, env string, allowUnsigned bool) *Verifier {
	if strings.EqualFold(strings.TrimSpace(env), "production") {
		allowUnsigned = false
	}
	return &Verifier{
		secret:          secret,
		notificationURL: notificationURL,
		allowUnsigned:   allowUnsigned,
	}
}

func (v *Verifier) Verify(body []byte, candidates []Signature) bool {
	if v.secret == "" {
		return v.allowUnsigned
	}
	return Verify(body, candidates, v.secret, v.notificationURL)
}
