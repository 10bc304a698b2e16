package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ScheduledTask runs a job on a cron spec. A tick that fires while the
// previous run is still going is skipped.
type ScheduledTask struct {
	Name   string
	Spec   string
	cronID cron.EntryID
	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewScheduledTask(name, cronSpec string, logger *logrus.Logger, taskFunc func(ctx context.Context)) (*ScheduledTask, error) {
	cronLogger := cron.PrintfLogger(logger.WithField("task", name))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))
	ctx, cancel := context.WithCancel(context.Background())
	task := &ScheduledTask{
		Name:   name,
		Spec:   cronSpec,
		cron:   c,
		cancel: cancel,
	}

	id, err := c.AddFunc(cronSpec, func() {
		if ctx.Err() != nil {
			return
		}
		taskFunc(ctx)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron spec %q for %s: %w", cronSpec, name, err)
	}

	task.cronID = id
	c.Start()
	return task, nil
}

// Cancel stops future ticks and cancels the context of a run in progress.
func (s *ScheduledTask) Cancel() {
	s.cron.Remove(s.cronID)
	s.cancel()
	s.cron.Stop()
}
