package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhall-platform/internal/audit"
	"studyhall-platform/internal/database"
	"studyhall-platform/internal/events"
	"studyhall-platform/internal/logging"
)

// Errors returned by the lifecycle service
type LifecycleError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e LifecycleError) Error() string {
	return e.Message
}

var (
	ErrOrderNotFound      = LifecycleError{Code: "ORDER_NOT_FOUND", Message: "no subscription matches this order id"}
	ErrPlanNotFound       = LifecycleError{Code: "PLAN_NOT_FOUND", Message: "plan not found or inactive"}
	ErrAlreadySubscribed  = LifecycleError{Code: "ALREADY_SUBSCRIBED", Message: "user already has a live subscription"}
	ErrSubscriptionClosed = LifecycleError{Code: "SUBSCRIPTION_CLOSED", Message: "subscription is in a terminal state"}
	ErrStaleEvent         = LifecycleError{Code: "STALE_EVENT", Message: "event sequence is older than the last processed one"}
)

// PlanCache caches the plan catalog. The service degrades to the database
// when the cache is absent or misses.
type PlanCache interface {
	GetPlan(ctx context.Context, planID string) (*database.SubscriptionPlan, bool)
	SetPlan(ctx context.Context, plan *database.SubscriptionPlan)
	InvalidatePlans(ctx context.Context)
}

// Repository is the slice of the storage layer the lifecycle service needs.
// Satisfied by database.Repository.
type Repository interface {
	GetUserByID(ctx context.Context, userID string) (*database.User, error)
	GetUserSubscriptions(ctx context.Context, userID string) ([]*database.Subscription, error)
	CreateSubscription(ctx context.Context, sub *database.Subscription) error
	GetSubscriptionByID(ctx context.Context, id string) (*database.Subscription, error)
	GetSubscriptionByOrderID(ctx context.Context, orderID string) (*database.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status database.SubscriptionStatus) error
	ActivateSubscription(ctx context.Context, sub *database.Subscription, sequence int64) ([]string, error)
	MarkSubscriptionFailed(ctx context.Context, id string, sequence int64) error
	ExpireOverdueSubscriptions(ctx context.Context, now time.Time) ([]*database.Subscription, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]*database.SubscriptionPlan, error)
	GetPlanByID(ctx context.Context, id string) (*database.SubscriptionPlan, error)
}

// Service owns every durable lifecycle transition. The pure state machine in
// state.go answers "what tier is this user right now"; the service is the
// only place rows actually change.
type Service struct {
	repo      Repository
	trail     *audit.Trail
	bus       *events.EventBus
	planCache PlanCache
	rules     Rules
	trialDays int
	logger    *logging.Logger
}

// NewService creates the lifecycle service
func NewService(repo Repository, trail *audit.Trail, bus *events.EventBus, rules Rules, trialDays int, logger *logging.Logger) *Service {
	if trialDays <= 0 {
		trialDays = 14
	}
	return &Service{
		repo:      repo,
		trail:     trail,
		bus:       bus,
		rules:     rules,
		trialDays: trialDays,
		logger:    logger.WithComponent("subscription-service"),
	}
}

// SetPlanCache attaches an optional plan catalog cache
func (s *Service) SetPlanCache(cache PlanCache) {
	s.planCache = cache
}

// Rules exposes the evaluation rules the service was configured with
func (s *Service) Rules() Rules {
	return s.rules
}

// EvaluateUser loads the user's rows and runs the state machine on them
func (s *Service) EvaluateUser(ctx context.Context, userID string, now time.Time) (Evaluation, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return Evaluation{State: StateAccessDenied, Tier: TierDenied}, nil
	}

	subs, err := s.repo.GetUserSubscriptions(ctx, userID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	return Evaluate(subs, user.Banned, now, s.rules), nil
}

// StartTrial grants the registration trial. A user who already holds a live
// row keeps it; the trial is refused rather than stacked.
func (s *Service) StartTrial(ctx context.Context, userID string) (*database.Subscription, error) {
	subs, err := s.repo.GetUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	for _, sub := range subs {
		if !sub.Status.Terminal() {
			return nil, ErrAlreadySubscribed
		}
	}

	now := time.Now()
	trialEnd := now.AddDate(0, 0, s.trialDays)
	sub := &database.Subscription{
		UserID:     userID,
		Status:     database.StatusTrial,
		TrialStart: &now,
		TrialEnd:   &trialEnd,
	}

	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Trial started",
		"user_id", userID, "subscription_id", sub.ID, "trial_end", trialEnd)

	if s.bus != nil {
		s.bus.PublishLifecycle(events.EventTrialStarted, userID, sub.ID, string(sub.Status))
	}

	return sub, nil
}

// StartCheckout opens a payment-pending row for a plan and returns it with a
// fresh order id. The row grants no access until the provider confirms the
// payment; an abandoned checkout just stays paused until activation demotes
// it or an admin cleans it up.
func (s *Service) StartCheckout(ctx context.Context, userID, planID string) (*database.Subscription, error) {
	plan, err := s.lookupPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	orderID := newOrderID()
	sub := &database.Subscription{
		UserID:  userID,
		PlanID:  plan.ID,
		Status:  database.StatusPaused,
		OrderID: orderID,
	}

	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Checkout started",
		"user_id", userID, "plan_id", plan.ID, "order_id", orderID)

	if s.bus != nil {
		s.bus.PublishLifecycle(events.EventCheckoutStarted, userID, sub.ID, string(sub.Status))
	}

	return sub, nil
}

// ActivateFromPayment performs the success transition for a confirmed
// payment. Replays with the payment id already recorded succeed without
// touching the database; stale sequences are refused. The second return
// value reports a replay.
func (s *Service) ActivateFromPayment(ctx context.Context, orderID, paymentID string, sequence int64) (*database.Subscription, bool, error) {
	sub, err := s.repo.GetSubscriptionByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if sub == nil {
		return nil, false, ErrOrderNotFound
	}

	// Replay of the event already applied
	if sub.Status == database.StatusActive && sub.PaymentID == paymentID {
		return sub, true, nil
	}

	if sequence != 0 && sequence <= sub.EventSequence {
		s.logger.Warn("Ignoring stale payment event",
			"order_id", orderID, "sequence", sequence, "last_sequence", sub.EventSequence)
		return nil, false, ErrStaleEvent
	}

	if sub.Status.Terminal() {
		return nil, false, ErrSubscriptionClosed
	}

	plan, err := s.lookupPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, false, err
	}

	before := *sub

	now := time.Now()
	endDate := now.AddDate(0, 0, plan.DurationDays)
	sub.StartDate = &now
	sub.EndDate = &endDate
	sub.PaymentID = paymentID
	sub.Status = database.StatusActive

	demoted, err := s.repo.ActivateSubscription(ctx, sub, sequence)
	if err != nil {
		return nil, false, err
	}
	sub.EventSequence = sequence

	s.logger.Info("Subscription activated",
		"user_id", sub.UserID, "subscription_id", sub.ID,
		"order_id", orderID, "payment_id", paymentID, "demoted", len(demoted))

	if s.trail != nil {
		if err := s.trail.SubscriptionTransition(ctx, database.AuditSubscriptionActivated, "", &before, sub); err != nil {
			s.logger.Warn("Audit write failed after activation", "error", err)
		}
	}

	if s.bus != nil {
		s.bus.PublishLifecycle(events.EventSubscriptionActivated, sub.UserID, sub.ID, string(sub.Status))
	}

	return sub, false, nil
}

// FailPayment performs the failure transition for a declined payment. The
// second return value reports a replay.
func (s *Service) FailPayment(ctx context.Context, orderID string, sequence int64) (*database.Subscription, bool, error) {
	sub, err := s.repo.GetSubscriptionByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if sub == nil {
		return nil, false, ErrOrderNotFound
	}

	// Already failed: replay
	if sub.Status == database.StatusExpired {
		return sub, true, nil
	}

	if sequence != 0 && sequence <= sub.EventSequence {
		return nil, false, ErrStaleEvent
	}

	before := *sub

	if err := s.repo.MarkSubscriptionFailed(ctx, sub.ID, sequence); err != nil {
		return nil, false, err
	}
	sub.Status = database.StatusExpired
	sub.EventSequence = sequence

	s.logger.Info("Payment failed",
		"user_id", sub.UserID, "subscription_id", sub.ID, "order_id", orderID)

	if s.trail != nil {
		if err := s.trail.SubscriptionTransition(ctx, database.AuditSubscriptionFailed, "", &before, sub); err != nil {
			s.logger.Warn("Audit write failed after payment failure", "error", err)
		}
	}

	if s.bus != nil {
		s.bus.PublishLifecycle(events.EventSubscriptionFailed, sub.UserID, sub.ID, string(sub.Status))
	}

	return sub, false, nil
}

// Cancel moves a subscription to the terminal cancelled state. The end date
// is left alone, so access runs out on its own schedule.
func (s *Service) Cancel(ctx context.Context, subscriptionID, actorID string) (*database.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrOrderNotFound
	}
	if sub.Status.Terminal() {
		return nil, ErrSubscriptionClosed
	}

	before := *sub

	if err := s.repo.UpdateSubscriptionStatus(ctx, sub.ID, database.StatusCancelled); err != nil {
		return nil, err
	}
	sub.Status = database.StatusCancelled

	s.logger.Info("Subscription cancelled",
		"user_id", sub.UserID, "subscription_id", sub.ID, "actor_id", actorID)

	if s.trail != nil {
		if err := s.trail.SubscriptionTransition(ctx, database.AuditSubscriptionCancelled, actorID, &before, sub); err != nil {
			s.logger.Warn("Audit write failed after cancellation", "error", err)
		}
	}

	if s.bus != nil {
		s.bus.PublishLifecycle(events.EventSubscriptionCancelled, sub.UserID, sub.ID, string(sub.Status))
	}

	return sub, nil
}

// AdminGrant creates and immediately activates a subscription without a
// payment. Used by support to comp access; always audited with the actor.
func (s *Service) AdminGrant(ctx context.Context, userID, planID, actorID string, days int) (*database.Subscription, error) {
	plan, err := s.lookupPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = plan.DurationDays
	}

	sub := &database.Subscription{
		UserID: userID,
		PlanID: plan.ID,
		Status: database.StatusPaused,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	now := time.Now()
	endDate := now.AddDate(0, 0, days)
	sub.StartDate = &now
	sub.EndDate = &endDate
	sub.Status = database.StatusActive

	if _, err := s.repo.ActivateSubscription(ctx, sub, 0); err != nil {
		return nil, err
	}

	s.logger.Info("Admin grant",
		"user_id", userID, "subscription_id", sub.ID, "actor_id", actorID, "days", days)

	if s.trail != nil {
		if err := s.trail.Record(ctx, userID, "subscription", sub.ID, database.AuditAdminOverride, actorID, nil, sub); err != nil {
			s.logger.Warn("Audit write failed after admin grant", "error", err)
		}
	}

	if s.bus != nil {
		s.bus.PublishLifecycle(events.EventSubscriptionActivated, userID, sub.ID, string(sub.Status))
	}

	return sub, nil
}

// Sweep expires every overdue trial and active row. Returns the transitioned
// rows so the caller can refresh checkpoints for the affected users.
func (s *Service) Sweep(ctx context.Context, now time.Time) ([]*database.Subscription, error) {
	expired, err := s.repo.ExpireOverdueSubscriptions(ctx, now)
	if err != nil {
		return nil, err
	}

	for _, sub := range expired {
		if s.trail != nil {
			before := *sub
			before.Status = previousStatus(sub)
			if err := s.trail.SubscriptionTransition(ctx, database.AuditSubscriptionExpired, "", &before, sub); err != nil {
				s.logger.Warn("Audit write failed during sweep", "error", err, "subscription_id", sub.ID)
			}
		}
		if s.bus != nil {
			s.bus.PublishLifecycle(events.EventSubscriptionExpired, sub.UserID, sub.ID, string(sub.Status))
		}
	}

	if len(expired) > 0 {
		s.logger.Info("Expiry sweep complete", "expired", len(expired))
	}

	return expired, nil
}

// GetUserSubscriptions returns all rows for a user, newest first
func (s *Service) GetUserSubscriptions(ctx context.Context, userID string) ([]*database.Subscription, error) {
	return s.repo.GetUserSubscriptions(ctx, userID)
}

// ListPlans returns the purchasable catalog
func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]*database.SubscriptionPlan, error) {
	return s.repo.ListPlans(ctx, activeOnly)
}

// GetPlan resolves a plan through the cache when one is attached
func (s *Service) GetPlan(ctx context.Context, planID string) (*database.SubscriptionPlan, error) {
	return s.lookupPlan(ctx, planID)
}

func (s *Service) lookupPlan(ctx context.Context, planID string) (*database.SubscriptionPlan, error) {
	if planID == "" {
		return nil, ErrPlanNotFound
	}

	if s.planCache != nil {
		if plan, ok := s.planCache.GetPlan(ctx, planID); ok {
			return plan, nil
		}
	}

	plan, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, ErrPlanNotFound
	}

	if s.planCache != nil {
		s.planCache.SetPlan(ctx, plan)
	}

	return plan, nil
}

// previousStatus reconstructs the status a swept row held before the sweep
// flipped it, for the audit snapshot
func previousStatus(sub *database.Subscription) database.SubscriptionStatus {
	if sub.EndDate == nil && sub.TrialEnd != nil {
		return database.StatusTrial
	}
	return database.StatusActive
}

func newOrderID() string {
	return "ord_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
