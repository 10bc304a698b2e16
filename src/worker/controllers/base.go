package controllers

import (
	"sync"

	"autoinvest/src/config"
	"autoinvest/src/scheduler"
	"autoinvest/src/services"

	"github.com/sirupsen/logrus"
)

type Controller struct {
	Engine         services.ExecutionEngineI
	Config         config.EngineConfig
	Logger         *logrus.Logger
	SchedulerMutex sync.Mutex
	Schedulers     map[string]*scheduler.ScheduledTask
}

func NewController(engine services.ExecutionEngineI, cfg config.EngineConfig, logger *logrus.Logger) *Controller {
	return &Controller{
		Engine:     engine,
		Config:     cfg,
		Logger:     logger,
		Schedulers: map[string]*scheduler.ScheduledTask{},
	}
}

func (c *Controller) GetSchedulers() map[string]*scheduler.ScheduledTask {
	c.SchedulerMutex.Lock()
	defer c.SchedulerMutex.Unlock()

	schedulers := make(map[string]*scheduler.ScheduledTask, len(c.Schedulers))
	for name, task := range c.Schedulers {
		schedulers[name] = task
	}
	return schedulers
}
