package webhook

import (
	"context"
	"testing"
	"time"

	"studyhall-platform/internal/database"
	"studyhall-platform/internal/subscription"
)

// ============================================================================
// TEST FIXTURES
// ============================================================================

// stubRepo backs a real lifecycle service with one in-memory checkout row
type stubRepo struct {
	sub  *database.Subscription
	plan *database.SubscriptionPlan
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		sub: &database.Subscription{
			ID:      "sub_1",
			UserID:  "user-1",
			PlanID:  "plan_monthly",
			Status:  database.StatusPaused,
			OrderID: "ord_5f3a9c",
		},
		plan: &database.SubscriptionPlan{
			ID:           "plan_monthly",
			Name:         "monthly",
			DurationDays: 30,
			IsActive:     true,
		},
	}
}

func (s *stubRepo) GetUserByID(ctx context.Context, userID string) (*database.User, error) {
	return nil, nil
}

func (s *stubRepo) GetUserSubscriptions(ctx context.Context, userID string) ([]*database.Subscription, error) {
	return []*database.Subscription{s.sub}, nil
}

func (s *stubRepo) CreateSubscription(ctx context.Context, sub *database.Subscription) error {
	return nil
}

func (s *stubRepo) GetSubscriptionByID(ctx context.Context, id string) (*database.Subscription, error) {
	copied := *s.sub
	return &copied, nil
}

func (s *stubRepo) GetSubscriptionByOrderID(ctx context.Context, orderID string) (*database.Subscription, error) {
	if orderID != s.sub.OrderID {
		return nil, nil
	}
	copied := *s.sub
	return &copied, nil
}

func (s *stubRepo) UpdateSubscriptionStatus(ctx context.Context, id string, status database.SubscriptionStatus) error {
	s.sub.Status = status
	return nil
}

func (s *stubRepo) ActivateSubscription(ctx context.Context, sub *database.Subscription, sequence int64) ([]string, error) {
	s.sub.Status = database.StatusActive
	s.sub.PaymentID = sub.PaymentID
	s.sub.EventSequence = sequence
	return nil, nil
}

func (s *stubRepo) MarkSubscriptionFailed(ctx context.Context, id string, sequence int64) error {
	s.sub.Status = database.StatusExpired
	s.sub.EventSequence = sequence
	return nil
}

func (s *stubRepo) ExpireOverdueSubscriptions(ctx context.Context, now time.Time) ([]*database.Subscription, error) {
	return nil, nil
}

func (s *stubRepo) ListPlans(ctx context.Context, activeOnly bool) ([]*database.SubscriptionPlan, error) {
	return []*database.SubscriptionPlan{s.plan}, nil
}

func (s *stubRepo) GetPlanByID(ctx context.Context, id string) (*database.SubscriptionPlan, error) {
	if id != s.plan.ID {
		return nil, nil
	}
	return s.plan, nil
}

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, userID string) {
	r.calls = append(r.calls, userID)
}

func newTestProcessor(repo *stubRepo, invalidator Invalidator) *Processor {
	svc := subscription.NewService(repo, nil, nil, subscription.Rules{GracePeriodDays: 3}, 14, testLogger())
	verifier := NewVerifier("provider-secret", "internal-secret", true, testLogger())
	return NewProcessor(svc, verifier, invalidator, testLogger())
}

func signedPayload(status string) *Payload {
	p := testPayload()
	p.Status = status
	p.Signature = signPayload("provider-secret", p)
	return p
}

// ============================================================================
// TEST: Callback processing
// ============================================================================

func TestProcess_SuccessActivatesAndInvalidates(t *testing.T) {
	repo := newStubRepo()
	invalidator := &recordingInvalidator{}
	p := newTestProcessor(repo, invalidator)

	result, err := p.Process(context.Background(), signedPayload(StatusSuccess))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("Expected success bit set on an applied payment")
	}
	if result.Status != string(database.StatusActive) {
		t.Errorf("Expected status %s, got %s", database.StatusActive, result.Status)
	}
	if len(invalidator.calls) != 1 || invalidator.calls[0] != "user-1" {
		t.Errorf("Expected one checkpoint invalidation for user-1, got %v", invalidator.calls)
	}
}

func TestProcess_ReplaySkipsInvalidation(t *testing.T) {
	repo := newStubRepo()
	invalidator := &recordingInvalidator{}
	p := newTestProcessor(repo, invalidator)

	if _, err := p.Process(context.Background(), signedPayload(StatusSuccess)); err != nil {
		t.Fatalf("Unexpected error on first delivery: %v", err)
	}

	result, err := p.Process(context.Background(), signedPayload(StatusSuccess))
	if err != nil {
		t.Fatalf("Replay must succeed, got %v", err)
	}
	if !result.Replayed {
		t.Error("Expected the replay bit on the second delivery")
	}
	if len(invalidator.calls) != 1 {
		t.Errorf("Replay must not invalidate again, got %d calls", len(invalidator.calls))
	}
}

func TestProcess_FailureAcknowledgedWithoutSuccess(t *testing.T) {
	repo := newStubRepo()
	invalidator := &recordingInvalidator{}
	p := newTestProcessor(repo, invalidator)

	result, err := p.Process(context.Background(), signedPayload(StatusFailed))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Success {
		t.Error("A failed payment must be acknowledged with the success bit unset")
	}
	if result.Status != string(database.StatusExpired) {
		t.Errorf("Expected status %s, got %s", database.StatusExpired, result.Status)
	}
	if len(invalidator.calls) != 1 {
		t.Errorf("Expected one checkpoint invalidation, got %d", len(invalidator.calls))
	}
}
