package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/omniboxhq/omnibox/internal/clock"
	"github.com/omniboxhq/omnibox/internal/config"
	invoicedomain "github.com/omniboxhq/omnibox/internal/invoice/domain"
	"github.com/omniboxhq/omnibox/internal/observability/logger"
	"github.com/omniboxhq/omnibox/internal/observability/metrics"
	orgdomain "github.com/omniboxhq/omnibox/internal/organization/domain"
	ratingdomain "github.com/omniboxhq/omnibox/internal/rating/domain"
	"github.com/omniboxhq/omnibox/internal/rating/engine"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	defaults *config.BillingDefaultsHolder
	metrics  *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Defaults *config.BillingDefaultsHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) ratingdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("rating.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		defaults: p.Defaults,
		metrics:  p.Metrics,
	}
}

func (s *Service) RunBilling(ctx context.Context, orgID string, periodStart, periodEnd time.Time) error {
	id, err := parseID(orgID)
	if err != nil {
		return ratingdomain.ErrInvalidOrganization
	}
	if !periodEnd.After(periodStart) {
		return ratingdomain.ErrInvalidPeriod
	}

	org, err := s.loadOrganization(ctx, id)
	if err != nil {
		return err
	}
	if org == nil {
		return ratingdomain.ErrOrganizationNotFound
	}

	log := logger.WithPeriod(logger.WithOrg(s.log, orgID), periodStart, periodEnd)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.loadPricingConfig(ctx, tx, org)
		if err != nil {
			return err
		}

		consumed, err := s.aggregateUsage(tx, org.ID, periodStart, periodEnd)
		if err != nil {
			return err
		}

		usage := engine.UsageFact{
			OrganizationID: org.ID.String(),
			PeriodStart:    periodStart.UTC(),
			PeriodEnd:      periodEnd.UTC(),
			SeatCount:      org.SeatCount,
			Cycle:          engine.BillingCycle(org.BillingCycle),
			Consumed:       consumed,
		}

		invoice, err := engine.ComputeInvoice(cfg, usage)
		if err != nil {
			return err
		}

		if err := s.persistInvoice(tx, org.ID, invoice); err != nil {
			return err
		}

		log.Info("billing run complete",
			zap.String("phase", string(invoice.Phase)),
			zap.String("total_charge", invoice.TotalCharge.StringFixed(2)),
			zap.Int("line_items", len(invoice.LineItems)),
		)
		if s.metrics != nil {
			s.metrics.RecordInvoiceComputed(ctx, string(invoice.Phase))
		}
		return nil
	})
	if err != nil {
		var cfgErr *engine.ConfigError
		if errors.As(err, &cfgErr) {
			log.Warn("billing configuration error", zap.String("kind", string(cfgErr.Kind)), zap.Error(err))
			if s.metrics != nil {
				s.metrics.RecordConfigError(ctx, string(cfgErr.Kind))
			}
		}
		return err
	}
	return nil
}

func (s *Service) loadOrganization(ctx context.Context, id snowflake.ID) (*orgdomain.Organization, error) {
	var org orgdomain.Organization
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&org).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

// persistInvoice replaces any prior invoice for the same (org, period). The
// checksum keys the replacement, so a re-run after a configuration fix leaves
// exactly one invoice per period.
func (s *Service) persistInvoice(tx *gorm.DB, orgID snowflake.ID, invoice engine.Invoice) error {
	checksum := buildChecksum(orgID, invoice.PeriodStart, invoice.PeriodEnd)
	now := s.clock.Now().UTC()

	var stale []invoicedomain.Invoice
	if err := tx.Where("checksum = ?", checksum).Find(&stale).Error; err != nil {
		return err
	}
	for _, prior := range stale {
		if err := tx.Where("invoice_id = ?", prior.ID).Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("checksum = ?", checksum).Delete(&invoicedomain.Invoice{}).Error; err != nil {
		return err
	}

	row := invoicedomain.Invoice{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		PeriodStart:        invoice.PeriodStart,
		PeriodEnd:          invoice.PeriodEnd,
		Phase:              string(invoice.Phase),
		InGracePeriod:      invoice.InGracePeriod,
		Suspended:          invoice.Suspended,
		SubscriptionCharge: invoice.SubscriptionCharge,
		TotalCharge:        invoice.TotalCharge,
		Currency:           defaultCurrency,
		Checksum:           checksum,
		CreatedAt:          now,
	}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}

	items := make([]invoicedomain.InvoiceItem, 0, len(invoice.LineItems))
	for _, li := range invoice.LineItems {
		var service *string
		if li.Service != "" {
			v := string(li.Service)
			service = &v
		}
		items = append(items, invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			InvoiceID:   row.ID,
			Kind:        string(li.Kind),
			ServiceType: service,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitRate:    li.UnitRate,
			Amount:      li.Amount,
			CreatedAt:   now,
		})
	}
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

const defaultCurrency = "USD"

func buildChecksum(orgID snowflake.ID, periodStart, periodEnd time.Time) string {
	payload := fmt.Sprintf(
		"%s|%s|%s",
		orgID.String(),
		periodStart.UTC().Format(time.RFC3339Nano),
		periodEnd.UTC().Format(time.RFC3339Nano),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
