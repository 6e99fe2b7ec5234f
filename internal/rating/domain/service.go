package domain

import (
	"context"
	"errors"
	"time"
)

// Service runs billing for one organization and period: it snapshots the
// pricing configuration, aggregates enriched usage, computes the invoice and
// persists it. Re-running the same (org, period) replaces the prior invoice.
type Service interface {
	RunBilling(ctx context.Context, orgID string, periodStart, periodEnd time.Time) error
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrPlanNotFound         = errors.New("plan_not_found")
	ErrInvalidPeriod        = errors.New("invalid_period")
)
