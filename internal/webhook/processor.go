package webhook

import (
	"context"

	"studyhall-platform/internal/logging"
	"studyhall-platform/internal/subscription"
)

// Payment statuses the provider reports
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Payload is the provider callback body. Amount stays a string so the signed
// canonical form is byte-identical to what the provider sent.
type Payload struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Status    string `json:"status" binding:"required"`
	Amount    string `json:"amount"`
	Sequence  int64  `json:"sequence"`
	Signature string `json:"signature"`
}

// Invalidator marks a user's client-held checkpoint stale after a durable
// transition the user's own browser did not witness
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Result is the processing outcome returned to the provider. Success reports
// whether the payment granted access; a processed failure notification is
// acknowledged with Success false.
type Result struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	Success        bool   `json:"success"`
	Replayed       bool   `json:"replayed"`
}

// Processor applies verified payment callbacks to the lifecycle service.
// Processing is idempotent: the provider retries until it sees success, so a
// replay of an applied event must answer success without touching state.
type Processor struct {
	svc         *subscription.Service
	verifier    *Verifier
	invalidator Invalidator
	logger      *logging.Logger
}

// NewProcessor creates a webhook processor
func NewProcessor(svc *subscription.Service, verifier *Verifier, invalidator Invalidator, logger *logging.Logger) *Processor {
	return &Processor{
		svc:         svc,
		verifier:    verifier,
		invalidator: invalidator,
		logger:      logger.WithComponent("webhook-processor"),
	}
}

// Process verifies and applies one provider callback
func (p *Processor) Process(ctx context.Context, payload *Payload) (*Result, error) {
	if err := p.verifier.VerifyProvider(payload); err != nil {
		p.logger.Warn("Rejected webhook payload",
			"order_id", payload.OrderID, "error", err)
		return nil, err
	}

	switch payload.Status {
	case StatusSuccess:
		return p.applySuccess(ctx, payload)
	case StatusFailed:
		return p.applyFailure(ctx, payload)
	default:
		p.logger.Warn("Unknown payment status", "order_id", payload.OrderID, "status", payload.Status)
		return nil, subscription.LifecycleError{
			Code:    "UNKNOWN_STATUS",
			Message: "unknown payment status: " + payload.Status,
		}
	}
}

func (p *Processor) applySuccess(ctx context.Context, payload *Payload) (*Result, error) {
	sub, replayed, err := p.svc.ActivateFromPayment(ctx, payload.OrderID, payload.PaymentID, payload.Sequence)
	if err != nil {
		return nil, err
	}

	if !replayed && p.invalidator != nil {
		p.invalidator.Invalidate(ctx, sub.UserID)
	}

	return &Result{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Status:         string(sub.Status),
		Success:        true,
		Replayed:       replayed,
	}, nil
}

func (p *Processor) applyFailure(ctx context.Context, payload *Payload) (*Result, error) {
	sub, replayed, err := p.svc.FailPayment(ctx, payload.OrderID, payload.Sequence)
	if err != nil {
		return nil, err
	}

	if !replayed && p.invalidator != nil {
		p.invalidator.Invalidate(ctx, sub.UserID)
	}

	return &Result{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Status:         string(sub.Status),
		Success:        false,
		Replayed:       replayed,
	}, nil
}

// ConfirmInternal applies the internal confirmation flow: a trusted
// first-party caller vouches for a payment with a header signature over the
// payment id instead of a full provider payload.
func (p *Processor) ConfirmInternal(ctx context.Context, orderID, paymentID, signature string) (*Result, error) {
	if err := p.verifier.VerifyInternal(paymentID, signature); err != nil {
		p.logger.Warn("Rejected internal confirmation",
			"order_id", orderID, "error", err)
		return nil, err
	}

	sub, replayed, err := p.svc.ActivateFromPayment(ctx, orderID, paymentID, 0)
	if err != nil {
		return nil, err
	}

	if !replayed && p.invalidator != nil {
		p.invalidator.Invalidate(ctx, sub.UserID)
	}

	return &Result{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Status:         string(sub.Status),
		Success:        true,
		Replayed:       replayed,
	}, nil
}
