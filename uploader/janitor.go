package uploader

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor periodically reclaims abandoned upload sessions from the journal.
// Nothing in the transfer flow deletes an orphaned session, so without the
// janitor a cancelled wizard leaves journal rows behind forever.
type Janitor struct {
	cron    *cron.Cron
	journal *Journal
	log     *zap.Logger
}

// StartJanitor schedules PurgeExpired on the given cron spec (e.g. "@hourly")
// and starts the scheduler.
func StartJanitor(journal *Journal, spec string, log *zap.Logger) (*Janitor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	janitor := &Janitor{
		cron:    cron.New(),
		journal: journal,
		log:     log,
	}
	if _, err := janitor.cron.AddFunc(spec, janitor.purge); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	janitor.cron.Start()
	return janitor, nil
}

func (jn *Janitor) purge() {
	removed, err := jn.journal.PurgeExpired(time.Now())
	if err != nil {
		jn.log.Error("upload journal purge failed", zap.Error(err))
		return
	}
	if removed > 0 {
		jn.log.Info("purged stale upload sessions", zap.Int64("removed", removed))
	}
}

// Stop halts the scheduler, waiting for a running purge to finish.
func (jn *Janitor) Stop() {
	ctx := jn.cron.Stop()
	<-ctx.Done()
}
