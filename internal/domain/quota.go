package domain

import "time"

// QuotaUsage tracks how many external calls a single run has spent on
// a given quota day.
type QuotaUsage struct {
	Day   string `json:"day"`
	RunID string `json:"runId"`
	Count int    `json:"count"`
}

// ResetPolicy configures when the quota day rolls over.
type ResetPolicy struct {
	TimeZone  string `yaml:"timeZone" validate:"required"`
	ResetHour int    `yaml:"resetHour" validate:"gte=0,lte=23"`
}

type DispatchOutcome string

const (
	DispatchCompleted    DispatchOutcome = "completed"
	DispatchPartialQuota DispatchOutcome = "partial"
)

type DispatchResult struct {
	Outcome   DispatchOutcome
	Dispatched int
	Reason    string
}

// QuotaDayFor localizes moment into zone and subtracts one day if the
// local hour is before resetHour, matching the original's
// quota_day_for semantics.
func QuotaDayFor(moment time.Time, zone *time.Location, resetHour int) string {
	local := moment.In(zone)
	if local.Hour() < resetHour {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format("2006-01-02")
}
