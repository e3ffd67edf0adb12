// Package webhook receives payment-provider callbacks and turns them into
// durable lifecycle transitions. Verification is strict: a payload that does
// not authenticate never reaches the state machine.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"studyhall-platform/internal/logging"
)

// SignatureError rejects a payload before any processing happens
type SignatureError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e SignatureError) Error() string {
	return e.Message
}

var (
	ErrBadSignature     = SignatureError{Code: "BAD_SIGNATURE", Message: "payload signature verification failed"}
	ErrMissingSignature = SignatureError{Code: "MISSING_SIGNATURE", Message: "payload signature is missing"}
	ErrSecretUnset      = SignatureError{Code: "SECRET_UNSET", Message: "webhook secret is not configured"}
)

// Verifier authenticates provider payloads and internal confirmation
// headers. The two flows use distinct secrets so a leaked internal secret
// cannot forge provider callbacks.
type Verifier struct {
	providerSecret []byte
	internalSecret []byte
	production     bool
	logger         *logging.Logger
}

// NewVerifier creates a webhook verifier. production controls the missing
// secret policy: fail closed in production, warn and allow in development so
// local runs work without provider credentials.
func NewVerifier(providerSecret, internalSecret string, production bool, logger *logging.Logger) *Verifier {
	return &Verifier{
		providerSecret: []byte(providerSecret),
		internalSecret: []byte(internalSecret),
		production:     production,
		logger:         logger.WithComponent("webhook-verifier"),
	}
}

// VerifyProvider checks the provider-native payload signature: hex HMAC-SHA256
// over the pipe-joined canonical field list, in fixed order.
func (v *Verifier) VerifyProvider(payload *Payload) error {
	if len(v.providerSecret) == 0 {
		if v.production {
			return ErrSecretUnset
		}
		v.logger.Warn("Provider secret unset, accepting unsigned payload (development only)",
			"order_id", payload.OrderID)
		return nil
	}

	if payload.Signature == "" {
		return ErrMissingSignature
	}

	expected := computeSignature(v.providerSecret, canonicalString(payload))
	if !hmac.Equal([]byte(strings.ToLower(payload.Signature)), []byte(expected)) {
		return ErrBadSignature
	}

	return nil
}

// VerifyInternal checks the internal confirmation header: hex HMAC-SHA256 of
// the payment id under the internal secret.
func (v *Verifier) VerifyInternal(paymentID, header string) error {
	if len(v.internalSecret) == 0 {
		if v.production {
			return ErrSecretUnset
		}
		v.logger.Warn("Internal secret unset, accepting unsigned confirmation (development only)",
			"payment_id", paymentID)
		return nil
	}

	if header == "" {
		return ErrMissingSignature
	}

	expected := computeSignature(v.internalSecret, paymentID)
	if !hmac.Equal([]byte(strings.ToLower(header)), []byte(expected)) {
		return ErrBadSignature
	}

	return nil
}

// SignInternal produces the internal confirmation header for a payment id.
// Exposed for the mock checkout flow and for tests.
func (v *Verifier) SignInternal(paymentID string) string {
	return computeSignature(v.internalSecret, paymentID)
}

// canonicalString is the fixed field order the provider signs. Changing this
// order breaks every deployed integration.
func canonicalString(p *Payload) string {
	return strings.Join([]string{
		p.OrderID,
		p.PaymentID,
		p.Status,
		p.Amount,
		strconv.FormatInt(p.Sequence, 10),
	}, "|")
}

func computeSignature(secret []byte, message string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
