package services

import (
	"time"

	"autoinvest/src/models"
	"autoinvest/src/utils"
)

// ScheduleCalculator computes when a rule is due next.
type ScheduleCalculator struct {
	now func() time.Time
}

func NewScheduleCalculator(now func() time.Time) *ScheduleCalculator {
	if now == nil {
		now = time.Now
	}
	return &ScheduleCalculator{now: now}
}

// Next returns the next execution instant after reference. Rules that are not
// time gated get the current instant, meaning "evaluate on every tick".
// Frequencies are validated when the rule is created, an unknown one is
// treated as daily.
func (c *ScheduleCalculator) Next(frequency models.Frequency, trigger models.TriggerType, reference time.Time) time.Time {
	if trigger != models.TriggerSchedule {
		return c.now()
	}

	switch frequency {
	case models.FrequencyWeekly:
		return reference.AddDate(0, 0, 7)
	case models.FrequencyBiweekly:
		return reference.AddDate(0, 0, 14)
	case models.FrequencyMonthly:
		return utils.AddMonthsClamped(reference, 1)
	default:
		return reference.AddDate(0, 0, 1)
	}
}
