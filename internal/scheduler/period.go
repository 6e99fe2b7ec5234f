package scheduler

import (
	"time"

	orgdomain "github.com/omniboxhq/omnibox/internal/organization/domain"
)

// BillingPeriod is the half-open window [Start, End) a billing run covers.
type BillingPeriod struct {
	Start time.Time
	End   time.Time
}

// periodForCycle derives the most recently completed billing period as of
// now: the previous calendar month for monthly organizations, the previous
// calendar year for annual ones. All boundaries are UTC midnights so two
// schedulers derive the same window from the same clock.
func periodForCycle(cycle orgdomain.BillingCycle, now time.Time) BillingPeriod {
	now = now.UTC()
	if cycle == orgdomain.BillingCycleAnnual {
		start := time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return BillingPeriod{Start: start, End: end}
	}

	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -1, 0)
	return BillingPeriod{Start: start, End: end}
}
