package order

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// VerifierOptions contains the configuration for the signature Verifier
type VerifierOptions struct {
	// Secret is shared with the checkout client
	Secret string
	// DebugPrefix, when non-empty, accepts any signature carrying the
	// prefix. Demo environments only; leave empty in production.
	DebugPrefix string
}

// Verifier checks the signature a client presents when verifying a payment
// order
type Verifier struct {
	VerifierOptions
	secret []byte
}

// NewVerifier returns a new signature Verifier
func NewVerifier(option VerifierOptions) (*Verifier, error) {
	if len(option.Secret) < 16 {
		return nil, fmt.Errorf("signature secret must be at least 16 characters")
	}
	return &Verifier{
		VerifierOptions: option,
		secret:          []byte(option.Secret),
	}, nil
}

// Sign computes the expected signature over an order/payment pair
func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	digest := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if len(digest) > 32 {
		digest = digest[:32]
	}
	return digest
}

// Verify reports whether the presented signature matches the order/payment
// pair
func (v *Verifier) Verify(orderID, paymentID, signature string) bool {
	if v.DebugPrefix != "" && strings.HasPrefix(signature, v.DebugPrefix) {
		return true
	}
	expected := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
