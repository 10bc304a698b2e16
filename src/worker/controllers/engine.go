package controllers

import (
	"context"

	"autoinvest/src/models"
	"autoinvest/src/scheduler"
	"autoinvest/src/utils"
)

const (
	ScheduledTaskName = "scheduled"
	MarketDipTaskName = "market_dip"
)

// StartSchedules registers the engine ticks, replacing any task already
// registered under the same name.
func (c *Controller) StartSchedules() error {
	if err := c.Schedule(ScheduledTaskName, c.Config.ScheduleCron, func(ctx context.Context) error {
		_, err := c.RunScheduled(ctx)
		return err
	}); err != nil {
		return err
	}
	return c.Schedule(MarketDipTaskName, c.Config.MarketDipCron, func(ctx context.Context) error {
		_, err := c.CheckMarketDips(ctx)
		return err
	})
}

func (c *Controller) RunScheduled(ctx context.Context) ([]models.ExecutionResult, error) {
	return c.Engine.RunScheduled(utils.WithLogger(ctx, c.Logger))
}

func (c *Controller) CheckMarketDips(ctx context.Context) ([]models.ExecutionResult, error) {
	return c.Engine.CheckMarketDips(utils.WithLogger(ctx, c.Logger))
}

// Schedule handles the scheduling and re-scheduling of engine tasks
func (c *Controller) Schedule(name, spec string, taskFunc func(ctx context.Context) error) error {
	c.SchedulerMutex.Lock()
	if existingTask, exists := c.Schedulers[name]; exists {
		existingTask.Cancel()
		delete(c.Schedulers, name)
	}
	c.SchedulerMutex.Unlock()

	newTask, err := scheduler.NewScheduledTask(name, spec, c.Logger, func(ctx context.Context) {
		if err := taskFunc(ctx); err != nil {
			c.Logger.WithError(err).WithField("task", name).Error("engine tick failed")
		}
	})
	if err != nil {
		return err
	}

	c.SchedulerMutex.Lock()
	c.Schedulers[name] = newTask
	c.SchedulerMutex.Unlock()

	c.Logger.WithField("task", name).WithField("spec", spec).Info("engine task scheduled")
	return nil
}

func (c *Controller) StopSchedules() {
	c.SchedulerMutex.Lock()
	defer c.SchedulerMutex.Unlock()

	for name, task := range c.Schedulers {
		task.Cancel()
		delete(c.Schedulers, name)
	}
}
