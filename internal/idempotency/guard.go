package idempotency

import (
	"context"
	"log/slog"
	"time"

	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/intent"
)

const (
	// defaultWindow is how long an intent fingerprint stays guarded.
	defaultWindow = 5 * time.Minute
	// failedGrace lets a user retry a failed intent after a short pause
	// without tripping the duplicate check.
	failedGrace = 10 * time.Second
)

// Receipt identifies the guarded submission.
type Receipt struct {
	Key      string
	PromptID string
}

// Guard rejects duplicate intent submissions inside a time window. A
// duplicate is not a guess: the fingerprint covers user, kind, chain,
// recipient, amount and asset, so only a genuinely identical request
// collides.
type Guard struct {
	store  Store
	window time.Duration
	grace  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewGuard(store Store, window time.Duration, logger *slog.Logger) *Guard {
	if window <= 0 {
		window = defaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:  store,
		window: window,
		grace:  failedGrace,
		now:    time.Now,
		logger: logger,
	}
}

// Check registers the intent as pending, or rejects it with a typed
// duplicate error. Evaluation order is fixed: pending beats completed
// beats failed-recent; a failed entry past the grace period is replaced
// by a fresh pending one.
func (g *Guard) Check(ctx context.Context, userID string, n intent.Normalized) (Receipt, error) {
	now := g.now()
	fp := NewFingerprint(userID, n, g.window, now)

	existing, found, err := g.store.Get(ctx, fp.Key)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeInternal, "read idempotency store", err)
	}
	if found && existing.ExpiresAt.Before(now) {
		found = false
		if err := g.store.Delete(ctx, fp.Key); err != nil {
			return Receipt{}, clierr.Wrap(clierr.CodeInternal, "drop expired idempotency entry", err)
		}
	}

	if found {
		switch existing.Status {
		case StatusPending:
			return Receipt{}, clierr.Newf(clierr.CodeDuplicatePending,
				"an identical request (%s) is already in flight", existing.PromptID)
		case StatusCompleted:
			return Receipt{}, clierr.Newf(clierr.CodeDuplicateCompleted,
				"an identical request already completed with transaction %s", existing.TxHash)
		case StatusFailed:
			if now.Sub(existing.UpdatedAt) < g.grace {
				return Receipt{}, clierr.Newf(clierr.CodeDuplicateFailedRecent,
					"an identical request failed %s ago; wait before retrying", now.Sub(existing.UpdatedAt).Round(time.Second))
			}
			fresh := g.newEntry(fp, userID, n, now)
			if err := g.store.Update(ctx, fresh); err != nil {
				return Receipt{}, clierr.Wrap(clierr.CodeInternal, "re-register failed intent", err)
			}
			return Receipt{Key: fp.Key, PromptID: fp.PromptID}, nil
		}
	}

	ok, err := g.store.PutIfAbsent(ctx, g.newEntry(fp, userID, n, now))
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeInternal, "register intent", err)
	}
	if !ok {
		// Lost the race to a concurrent identical request.
		return Receipt{}, clierr.Newf(clierr.CodeDuplicatePending,
			"an identical request (%s) is already in flight", fp.PromptID)
	}
	return Receipt{Key: fp.Key, PromptID: fp.PromptID}, nil
}

// Complete marks a pending entry as completed with its transaction
// hash. Completed and failed entries never move backward.
func (g *Guard) Complete(ctx context.Context, key, txHash string) error {
	return g.transition(ctx, key, StatusCompleted, txHash)
}

// Fail marks a pending entry as failed, starting the retry grace clock.
func (g *Guard) Fail(ctx context.Context, key string) error {
	return g.transition(ctx, key, StatusFailed, "")
}

// Release drops a pending entry without recording an outcome. Used
// when an intent is handed back to the user (for confirmation or token
// selection) and the re-submission must not collide with itself.
func (g *Guard) Release(ctx context.Context, key string) error {
	e, found, err := g.store.Get(ctx, key)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "read idempotency store", err)
	}
	if !found || e.Status != StatusPending {
		return nil
	}
	if err := g.store.Delete(ctx, key); err != nil {
		return clierr.Wrap(clierr.CodeInternal, "release idempotency entry", err)
	}
	return nil
}

func (g *Guard) transition(ctx context.Context, key string, to Status, txHash string) error {
	e, found, err := g.store.Get(ctx, key)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "read idempotency store", err)
	}
	if !found {
		return clierr.Newf(clierr.CodeInternal, "no tracked intent for key %s", key)
	}
	if e.Status != StatusPending {
		return clierr.Newf(clierr.CodeInternal, "intent %s is %s, cannot move to %s", e.PromptID, e.Status, to)
	}
	e.Status = to
	e.TxHash = txHash
	e.UpdatedAt = g.now()
	if err := g.store.Update(ctx, e); err != nil {
		return clierr.Wrap(clierr.CodeInternal, "update idempotency entry", err)
	}
	return nil
}

func (g *Guard) newEntry(fp Fingerprint, userID string, n intent.Normalized, now time.Time) Entry {
	return Entry{
		Key:       fp.Key,
		PromptID:  fp.PromptID,
		UserID:    userID,
		Kind:      string(n.Kind()),
		ChainID:   n.SourceChain(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(g.window),
	}
}
