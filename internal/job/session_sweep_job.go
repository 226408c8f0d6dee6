package job

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// sweepTimeout bounds one sweep.
const sweepTimeout = 30 * time.Second

// SessionCleaner deactivates expired sessions. *service.AuthService implements it.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweepJob deactivates sessions past their expiry.
type SessionSweepJob struct {
	cleaner SessionCleaner
	log     logrus.FieldLogger
}

// NewSessionSweepJob creates a SessionSweepJob.
func NewSessionSweepJob(cleaner SessionCleaner, log logrus.FieldLogger) *SessionSweepJob {
	return &SessionSweepJob{cleaner: cleaner, log: log}
}

// Run performs one sweep. It satisfies cron.Job.
func (j *SessionSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := j.Sweep(ctx); err != nil {
		j.log.WithError(err).Warn("session sweep failed")
	}
}

// Sweep deactivates expired sessions and returns how many were changed.
func (j *SessionSweepJob) Sweep(ctx context.Context) (int64, error) {
	n, err := j.cleaner.CleanupExpiredSessions(ctx)
	if err != nil {
		return 0, err
	}
	j.log.WithField("deactivated", n).Info("expired sessions swept")
	return n, nil
}

// Schedule registers the job on a new cron scheduler. An empty spec returns a
// nil scheduler.
func Schedule(spec string, j cron.Job, log logrus.FieldLogger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddJob(spec, j); err != nil {
		return nil, err
	}
	log.WithField("schedule", spec).Info("session sweep scheduled")
	return c, nil
}
