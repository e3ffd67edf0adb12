package checkpoint

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"studyhall-platform/internal/database"
	"studyhall-platform/internal/events"
	"studyhall-platform/internal/logging"
	"studyhall-platform/internal/subscription"
)

// EpochStore tracks a per-user invalidation counter. Bumping the epoch makes
// every previously issued checkpoint stale at the routing edge. Implemented
// by the cache service; when the store is unavailable the epoch check is
// skipped and flag TTLs alone bound staleness.
type EpochStore interface {
	GetEpoch(ctx context.Context, userID string) (int64, bool)
	BumpEpoch(ctx context.Context, userID string) int64
}

// Refresher recomputes the checkpoint from durable state and reissues it.
// It runs after login, onboarding and every durable lifecycle transition.
type Refresher struct {
	svc    *subscription.Service
	repo   *database.Repository
	codec  *Codec
	epochs EpochStore
	bus    *events.EventBus
	logger *logging.Logger
}

// NewRefresher creates a checkpoint refresher
func NewRefresher(svc *subscription.Service, repo *database.Repository, codec *Codec, epochs EpochStore, bus *events.EventBus, logger *logging.Logger) *Refresher {
	return &Refresher{
		svc:    svc,
		repo:   repo,
		codec:  codec,
		epochs: epochs,
		bus:    bus,
		logger: logger.WithComponent("checkpoint-refresher"),
	}
}

// Codec exposes the codec for the gateway's decode path
func (r *Refresher) Codec() *Codec {
	return r.codec
}

// Epochs exposes the epoch store for the gateway's staleness check
func (r *Refresher) Epochs() EpochStore {
	return r.epochs
}

// Compute derives the current flag set for a user from the durable store
func (r *Refresher) Compute(ctx context.Context, userID string, now time.Time) (Set, error) {
	eval, err := r.svc.EvaluateUser(ctx, userID, now)
	if err != nil {
		return Set{}, err
	}

	onboarded := false
	if user, err := r.repo.GetUserByID(ctx, userID); err == nil && user != nil {
		onboarded = user.OnboardingCompleted
	}

	var epoch int64
	if r.epochs != nil {
		if e, ok := r.epochs.GetEpoch(ctx, userID); ok {
			epoch = e
		}
	}

	return Set{
		State:              eval.State,
		Tier:               eval.Tier,
		RemainingTrialDays: eval.RemainingTrialDays,
		Onboarded:          onboarded,
		Epoch:              epoch,
	}, nil
}

// IssueCookies recomputes the checkpoint and writes the signed flags onto the
// response as cookies
func (r *Refresher) IssueCookies(c *gin.Context, userID string) error {
	now := time.Now()
	set, err := r.Compute(c.Request.Context(), userID, now)
	if err != nil {
		r.logger.Error("Checkpoint compute failed", "user_id", userID, "error", err)
		return err
	}

	for _, flag := range r.codec.Encode(set, now) {
		c.SetCookie(flag.Name, flag.Value, flag.MaxAge, "/", "", false, true)
	}

	if r.bus != nil {
		r.bus.PublishCheckpointRefreshed(userID, string(set.State), string(set.Tier))
	}

	return nil
}

// ClearCookies removes every checkpoint flag, used on logout
func (r *Refresher) ClearCookies(c *gin.Context) {
	for _, name := range []string{FlagAccess, FlagTrialDays, FlagOnboarded, FlagEpoch} {
		c.SetCookie(name, "", -1, "/", "", false, true)
	}
}

// Invalidate bumps the user's epoch so checkpoints issued before this moment
// stop being trusted. Called after durable transitions that happen outside
// the user's own request, like webhooks and the expiry sweep.
func (r *Refresher) Invalidate(ctx context.Context, userID string) {
	if r.epochs == nil {
		return
	}
	epoch := r.epochs.BumpEpoch(ctx, userID)
	r.logger.Debug("Checkpoint epoch bumped", "user_id", userID, "epoch", epoch)
}
