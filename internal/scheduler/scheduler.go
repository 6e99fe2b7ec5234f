package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/omniboxhq/omnibox/internal/clock"
	invoicedomain "github.com/omniboxhq/omnibox/internal/invoice/domain"
	"github.com/omniboxhq/omnibox/internal/observability/logger"
	"github.com/omniboxhq/omnibox/internal/observability/metrics"
	orgdomain "github.com/omniboxhq/omnibox/internal/organization/domain"
	ratingdomain "github.com/omniboxhq/omnibox/internal/rating/domain"
	"github.com/omniboxhq/omnibox/internal/rating/engine"
	"github.com/omniboxhq/omnibox/pkg/db/option"
	"github.com/omniboxhq/omnibox/pkg/repository"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	RatingSvc ratingdomain.Service
	Clock     clock.Clock
	Metrics   *metrics.Metrics `optional:"true"`
	Config    Config           `optional:"true"`
}

// Scheduler walks organizations on a fixed cadence and rates each one for
// its most recently completed billing period. Organizations fail
// independently: a configuration error in one never blocks the rest of the
// batch.
type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	ratingSvc ratingdomain.Service
	metrics   *metrics.Metrics

	orgs repository.Repository[orgdomain.Organization]
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.RatingSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		ratingSvc: p.RatingSvc,
		metrics:   p.Metrics,
		orgs:      repository.ProvideStore[orgdomain.Organization](p.DB),
	}, nil
}

// RunOnce rates every organization due for billing as of the scheduler's
// clock. It returns the joined infrastructure errors; configuration errors
// are logged and counted but do not fail the run.
func (s *Scheduler) RunOnce(parent context.Context) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.BillingTimeout)
	defer cancel()

	var runErr error
	offset := 0
	for {
		batch, err := s.orgs.Find(ctx, &orgdomain.Organization{},
			option.WithOrderBy("id"),
			option.WithLimit(s.cfg.MaxBillingBatchSize),
			option.WithOffset(offset),
		)
		if err != nil {
			runErr = errors.Join(runErr, err)
			break
		}
		if len(batch) == 0 {
			break
		}
		offset += len(batch)

		for _, org := range batch {
			if err := s.billOrganization(ctx, org, start); err != nil {
				runErr = errors.Join(runErr, err)
			}
		}

		if len(batch) < s.cfg.MaxBillingBatchSize {
			break
		}
	}

	if s.metrics != nil {
		s.metrics.RecordBillingRun(ctx)
		s.metrics.ObserveRunDuration(ctx, s.clock.Now().Sub(start))
	}
	return runErr
}

func (s *Scheduler) billOrganization(ctx context.Context, org *orgdomain.Organization, now time.Time) error {
	period := periodForCycle(org.BillingCycle, now)
	log := logger.WithPeriod(logger.WithOrg(s.log, org.ID.String()), period.Start, period.End)

	billed, err := s.hasInvoice(ctx, org, period)
	if err != nil {
		return err
	}
	if billed {
		return nil
	}

	err = s.ratingSvc.RunBilling(ctx, org.ID.String(), period.Start, period.End)
	if err == nil {
		return nil
	}

	// Configuration errors are operator-fixable and already counted by the
	// rating service. The org is retried on the next tick since no invoice
	// was written.
	var cfgErr *engine.ConfigError
	if errors.As(err, &cfgErr) {
		log.Warn("organization skipped: configuration error", zap.Error(err))
		return nil
	}

	log.Error("billing run failed", zap.Error(err))
	return err
}

func (s *Scheduler) hasInvoice(ctx context.Context, org *orgdomain.Organization, period BillingPeriod) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("org_id = ? AND period_start = ? AND period_end = ?", org.ID, period.Start, period.End).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RunForever runs billing on every tick until the context is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
