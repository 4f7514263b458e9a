package conversation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler repairs unread counters that no longer match the message log.
type Reconciler interface {
	Reconcile(ctx context.Context, batch int) (int, error)
}

type reconciler struct {
	locker Locker
	repo   Repository
	now    func() time.Time
	log    zerolog.Logger
}

// NewReconciler creates a reconciler that recounts under the regular conversation lock.
func NewReconciler(locker Locker, repo Repository, log zerolog.Logger) Reconciler {
	return &reconciler{
		locker: locker,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.With().Str("component", "unread-reconciler").Logger(),
	}
}

func (r *reconciler) Reconcile(ctx context.Context, batch int) (int, error) {
	ids, err := r.repo.ListDrifted(ctx, batch)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}

		changed := false
		err := r.locker.WithConversationLock(ctx, id, func(ctx context.Context, conv *Conversation, tx LockedTx) error {
			jobSeeker, err := tx.CountUnseen(ctx, conv.ID, SenderTypeEmployer)
			if err != nil {
				return err
			}
			employer, err := tx.CountUnseen(ctx, conv.ID, SenderTypeUser)
			if err != nil {
				return err
			}
			before := conv.Counters()
			if !conv.SetCounters(jobSeeker, employer, r.now()) {
				return nil
			}
			changed = true
			r.log.Info().
				Int64("conversation_id", conv.ID).
				Int("job_seeker_before", before.UnreadCountJobSeeker).
				Int("employer_before", before.UnreadCountEmployer).
				Int64("job_seeker_after", jobSeeker).
				Int64("employer_after", employer).
				Msg("unread counters corrected")
			return tx.SaveConversation(ctx, conv)
		})
		if err != nil {
			// A busy or vanished conversation is picked up again next cycle.
			r.log.Warn().Err(err).Int64("conversation_id", id).Msg("reconcile skipped conversation")
			continue
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}
