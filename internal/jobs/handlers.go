package jobs

import (
	"context"
	"log/slog"
)

// InvitationPurger deletes expired invitation codes.
type InvitationPurger interface {
	PurgeExpiredInvitations(ctx context.Context) (int64, error)
}

// PurgeInvitations returns a handler that purges every expired invitation,
// not only the code named in the payload.
func PurgeInvitations(purger InvitationPurger, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, j *Job) error {
		n, err := purger.PurgeExpiredInvitations(ctx)
		if err != nil {
			return err
		}
		logger.Info("invitation purge ran", slog.Int64("job_id", j.ID), slog.Int64("deleted", n))
		return nil
	}
}
