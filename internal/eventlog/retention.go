package eventlog

import (
	"context"
	"fmt"

	"algo-dashboard/internal/logger"

	"github.com/robfig/cron/v3"
)

// Retention compresses old journal files on a cron schedule.
type Retention struct {
	cron          *cron.Cron
	journal       *Journal
	retentionDays int
}

// NewRetention builds a scheduler that runs in IST. spec is a standard
// five-field cron expression or a descriptor such as "@daily".
func NewRetention(j *Journal, spec string, retentionDays int) (*Retention, error) {
	r := &Retention{
		cron:          cron.New(cron.WithLocation(ist)),
		journal:       j,
		retentionDays: retentionDays,
	}
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("invalid journal.compress_schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start runs one pass immediately, then follows the schedule.
func (r *Retention) Start() {
	r.run()
	r.cron.Start()
	logger.Info(context.Background(), "Journal retention scheduled",
		"dir", r.journal.Dir(), "retention_days", r.retentionDays)
}

// Stop waits for a running pass to finish.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Retention) run() {
	ctx := context.Background()
	n, err := r.journal.CompressOlder(r.retentionDays)
	if err != nil {
		logger.ErrorWithErr(ctx, "Journal compression failed", err, "dir", r.journal.Dir())
		return
	}
	if n > 0 {
		logger.Info(ctx, "Compressed old journal files", "count", n, "dir", r.journal.Dir())
	}
}
