package subscription

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"studyhall-platform/internal/database"
	"studyhall-platform/internal/logging"
)

// ============================================================================
// TEST FIXTURES
// ============================================================================

// fakeRepo is an in-memory Repository with the same transition semantics as
// the postgres implementation, including sibling demotion on activation.
type fakeRepo struct {
	users map[string]*database.User
	subs  map[string]*database.Subscription
	plans map[string]*database.SubscriptionPlan

	nextID        int
	activateCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: make(map[string]*database.User),
		subs:  make(map[string]*database.Subscription),
		plans: make(map[string]*database.SubscriptionPlan),
	}
}

func (f *fakeRepo) GetUserByID(ctx context.Context, userID string) (*database.User, error) {
	return f.users[userID], nil
}

func (f *fakeRepo) GetUserSubscriptions(ctx context.Context, userID string) ([]*database.Subscription, error) {
	var subs []*database.Subscription
	for _, sub := range f.subs {
		if sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (f *fakeRepo) CreateSubscription(ctx context.Context, sub *database.Subscription) error {
	f.nextID++
	sub.ID = "sub_" + strconv.Itoa(f.nextID)
	stored := *sub
	f.subs[sub.ID] = &stored
	return nil
}

func (f *fakeRepo) GetSubscriptionByID(ctx context.Context, id string) (*database.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeRepo) GetSubscriptionByOrderID(ctx context.Context, orderID string) (*database.Subscription, error) {
	for _, sub := range f.subs {
		if sub.OrderID == orderID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpdateSubscriptionStatus(ctx context.Context, id string, status database.SubscriptionStatus) error {
	f.subs[id].Status = status
	return nil
}

func (f *fakeRepo) ActivateSubscription(ctx context.Context, sub *database.Subscription, sequence int64) ([]string, error) {
	f.activateCalls++

	var demoted []string
	for _, row := range f.subs {
		if row.UserID == sub.UserID && row.ID != sub.ID && !row.Status.Terminal() {
			row.Status = database.StatusCancelled
			demoted = append(demoted, row.ID)
		}
	}

	stored := f.subs[sub.ID]
	stored.Status = database.StatusActive
	stored.StartDate = sub.StartDate
	stored.EndDate = sub.EndDate
	stored.PaymentID = sub.PaymentID
	stored.EventSequence = sequence

	return demoted, nil
}

func (f *fakeRepo) MarkSubscriptionFailed(ctx context.Context, id string, sequence int64) error {
	f.subs[id].Status = database.StatusExpired
	f.subs[id].EventSequence = sequence
	return nil
}

func (f *fakeRepo) ExpireOverdueSubscriptions(ctx context.Context, now time.Time) ([]*database.Subscription, error) {
	var expired []*database.Subscription
	for _, sub := range f.subs {
		overdueTrial := sub.Status == database.StatusTrial && sub.TrialEnd != nil && sub.TrialEnd.Before(now)
		overdueActive := sub.Status == database.StatusActive && sub.EndDate != nil && sub.EndDate.Before(now)
		if overdueTrial || overdueActive {
			sub.Status = database.StatusExpired
			copied := *sub
			expired = append(expired, &copied)
		}
	}
	return expired, nil
}

func (f *fakeRepo) ListPlans(ctx context.Context, activeOnly bool) ([]*database.SubscriptionPlan, error) {
	var plans []*database.SubscriptionPlan
	for _, plan := range f.plans {
		if activeOnly && !plan.IsActive {
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (f *fakeRepo) GetPlanByID(ctx context.Context, id string) (*database.SubscriptionPlan, error) {
	return f.plans[id], nil
}

func newTestService(repo *fakeRepo) *Service {
	logger := logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
	return NewService(repo, nil, nil, Rules{GracePeriodDays: 3}, 14, logger)
}

func seedPlan(repo *fakeRepo) *database.SubscriptionPlan {
	plan := &database.SubscriptionPlan{
		ID:           "plan_monthly",
		Name:         "monthly",
		DurationDays: 30,
		IsActive:     true,
	}
	repo.plans[plan.ID] = plan
	return plan
}

func seedPendingCheckout(repo *fakeRepo, userID, orderID string) *database.Subscription {
	sub := &database.Subscription{
		UserID:  userID,
		PlanID:  "plan_monthly",
		Status:  database.StatusPaused,
		OrderID: orderID,
	}
	_ = repo.CreateSubscription(context.Background(), sub)
	return sub
}

// ============================================================================
// TEST: Payment activation
// ============================================================================

func TestActivateFromPayment_ActivatesAndDemotesSiblings(t *testing.T) {
	repo := newFakeRepo()
	seedPlan(repo)
	svc := newTestService(repo)

	// A live trial that activation must retire
	trialEnd := time.Now().AddDate(0, 0, 7)
	trial := &database.Subscription{
		UserID:   "user-1",
		Status:   database.StatusTrial,
		TrialEnd: &trialEnd,
	}
	_ = repo.CreateSubscription(context.Background(), trial)

	pending := seedPendingCheckout(repo, "user-1", "ord_1")

	sub, replayed, err := svc.ActivateFromPayment(context.Background(), "ord_1", "pay_1", 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if replayed {
		t.Error("First activation must not report a replay")
	}
	if sub.Status != database.StatusActive {
		t.Errorf("Expected status %s, got %s", database.StatusActive, sub.Status)
	}
	if sub.PaymentID != "pay_1" {
		t.Errorf("Expected payment id pay_1, got %s", sub.PaymentID)
	}
	if sub.EndDate == nil || sub.StartDate == nil {
		t.Fatal("Activation must set the subscription dates")
	}
	if !sub.EndDate.Equal(sub.StartDate.AddDate(0, 0, 30)) {
		t.Errorf("Expected a 30 day term, got %v to %v", sub.StartDate, sub.EndDate)
	}

	stored := repo.subs[trial.ID]
	if stored.Status != database.StatusCancelled {
		t.Errorf("Expected trial sibling demoted to %s, got %s", database.StatusCancelled, stored.Status)
	}
	if repo.subs[pending.ID].Status != database.StatusActive {
		t.Error("Expected the pending row to be the active one")
	}
}

func TestActivateFromPayment_ReplayIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	seedPlan(repo)
	svc := newTestService(repo)
	seedPendingCheckout(repo, "user-1", "ord_1")

	if _, _, err := svc.ActivateFromPayment(context.Background(), "ord_1", "pay_1", 1); err != nil {
		t.Fatalf("Unexpected error on first delivery: %v", err)
	}
	callsAfterFirst := repo.activateCalls

	sub, replayed, err := svc.ActivateFromPayment(context.Background(), "ord_1", "pay_1", 1)
	if err != nil {
		t.Fatalf("Replay must succeed, got %v", err)
	}
	if !replayed {
		t.Error("Second delivery of the same payment must report a replay")
	}
	if sub.Status != database.StatusActive {
		t.Errorf("Replay must return the active row, got status %s", sub.Status)
	}
	if repo.activateCalls != callsAfterFirst {
		t.Errorf("Replay must not touch the store, got %d activation calls", repo.activateCalls)
	}
}

func TestActivateFromPayment_StaleSequenceRefused(t *testing.T) {
	repo := newFakeRepo()
	seedPlan(repo)
	svc := newTestService(repo)
	seedPendingCheckout(repo, "user-1", "ord_1")

	if _, _, err := svc.ActivateFromPayment(context.Background(), "ord_1", "pay_1", 5); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// A different payment with an older sequence must be refused
	_, _, err := svc.ActivateFromPayment(context.Background(), "ord_1", "pay_2", 3)
	var lcErr LifecycleError
	if !errors.As(err, &lcErr) || lcErr.Code != ErrStaleEvent.Code {
		t.Fatalf("Expected %s, got %v", ErrStaleEvent.Code, err)
	}
}

func TestActivateFromPayment_UnknownOrder(t *testing.T) {
	repo := newFakeRepo()
	seedPlan(repo)
	svc := newTestService(repo)

	_, _, err := svc.ActivateFromPayment(context.Background(), "ord_missing", "pay_1", 1)
	var lcErr LifecycleError
	if !errors.As(err, &lcErr) || lcErr.Code != ErrOrderNotFound.Code {
		t.Fatalf("Expected %s, got %v", ErrOrderNotFound.Code, err)
	}
}

func TestActivateFromPayment_TerminalRowRefused(t *testing.T) {
	repo := newFakeRepo()
	seedPlan(repo)
	svc := newTestService(repo)

	sub := seedPendingCheckout(repo, "user-1", "ord_1")
	repo.subs[sub.ID].Status = database.StatusCancelled

	_, _, err := svc.ActivateFromPayment(context.Background(), "ord_1", "pay_1", 1)
	var lcErr LifecycleError
	if !errors.As(err, &lcErr) || lcErr.Code != ErrSubscriptionClosed.Code {
		t.Fatalf("Expected %s, got %v", ErrSubscriptionClosed.Code, err)
	}
}

// ============================================================================
// TEST: Payment failure
// ============================================================================

func TestFailPayment_ExpiresPendingRow(t *testing.T) {
	repo := newFakeRepo()
	seedPlan(repo)
	svc := newTestService(repo)
	pending := seedPendingCheckout(repo, "user-1", "ord_1")

	sub, replayed, err := svc.FailPayment(context.Background(), "ord_1", 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if replayed {
		t.Error("First failure must not report a replay")
	}
	if sub.Status != database.StatusExpired {
		t.Errorf("Expected status %s, got %s", database.StatusExpired, sub.Status)
	}
	if repo.subs[pending.ID].EventSequence != 2 {
		t.Errorf("Expected sequence 2 recorded, got %d", repo.subs[pending.ID].EventSequence)
	}
}

func TestFailPayment_ReplayIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	seedPlan(repo)
	svc := newTestService(repo)
	seedPendingCheckout(repo, "user-1", "ord_1")

	if _, _, err := svc.FailPayment(context.Background(), "ord_1", 2); err != nil {
		t.Fatalf("Unexpected error on first delivery: %v", err)
	}

	sub, replayed, err := svc.FailPayment(context.Background(), "ord_1", 2)
	if err != nil {
		t.Fatalf("Replay must succeed, got %v", err)
	}
	if !replayed {
		t.Error("Second delivery of the same failure must report a replay")
	}
	if sub.Status != database.StatusExpired {
		t.Errorf("Replay must return the expired row, got status %s", sub.Status)
	}
}

// ============================================================================
// TEST: Trial stacking
// ============================================================================

func TestStartTrial_RefusedWithLiveRow(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	if _, err := svc.StartTrial(context.Background(), "user-1"); err != nil {
		t.Fatalf("Unexpected error on first trial: %v", err)
	}

	_, err := svc.StartTrial(context.Background(), "user-1")
	var lcErr LifecycleError
	if !errors.As(err, &lcErr) || lcErr.Code != ErrAlreadySubscribed.Code {
		t.Fatalf("Expected %s, got %v", ErrAlreadySubscribed.Code, err)
	}
}
