package engine

import "time"

// EvaluateLifecycle derives the account phase at the given instant from the
// account timestamps and global settings.
//
// Trial covers the window after account creation. After a payment failure the
// account bills through a grace window; once the window elapses, the account
// is suspended only when auto-suspend is enabled — otherwise billing continues
// and enforcement stays a manual decision. Cancellation is terminal.
func EvaluateLifecycle(account AccountState, settings BillingSettings, asOf time.Time) Phase {
	if account.Cancelled {
		return PhaseCancelled
	}

	trial := time.Duration(settings.TrialPeriodDays) * 24 * time.Hour
	if trial > 0 && asOf.Sub(account.CreatedAt) < trial {
		return PhaseTrial
	}

	if account.LastPaymentFailedAt != nil {
		grace := time.Duration(settings.GracePeriodDays) * 24 * time.Hour
		if asOf.Sub(*account.LastPaymentFailedAt) < grace {
			return PhaseGrace
		}
		if settings.AutoSuspendOnFailure {
			return PhaseSuspended
		}
	}
	return PhaseActive
}
