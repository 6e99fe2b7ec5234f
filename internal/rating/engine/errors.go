package engine

import "fmt"

// ConfigErrorKind classifies configuration invariant violations.
type ConfigErrorKind string

const (
	ErrKindMissingRate         ConfigErrorKind = "missing_rate"
	ErrKindInvalidTierLadder   ConfigErrorKind = "invalid_tier_ladder"
	ErrKindUnboundedQuantity   ConfigErrorKind = "unbounded_quantity"
	ErrKindSeatCountOutOfRange ConfigErrorKind = "seat_count_out_of_range"
	ErrKindInvalidQuantity     ConfigErrorKind = "invalid_quantity"
	ErrKindInvalidPeriod       ConfigErrorKind = "invalid_period"
)

// ConfigError reports bad configuration or input data. It is never retryable:
// the operator must fix the configuration, the caller must not re-run the job.
type ConfigError struct {
	Kind     ConfigErrorKind
	Category RateCategory
	Service  ServiceType
	Reason   string
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case ErrKindMissingRate:
		return fmt.Sprintf("%s: no rate configured for %s", e.Kind, e.Category)
	case ErrKindInvalidTierLadder, ErrKindUnboundedQuantity, ErrKindInvalidQuantity:
		if e.Service != "" {
			return fmt.Sprintf("%s: %s: %s", e.Kind, e.Service, e.Reason)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
}

// IsConfigError reports whether err is a configuration error of the given kind.
func IsConfigError(err error, kind ConfigErrorKind) bool {
	cfgErr, ok := err.(*ConfigError)
	return ok && cfgErr.Kind == kind
}

func missingRate(category RateCategory) error {
	return &ConfigError{Kind: ErrKindMissingRate, Category: category}
}

func invalidTierLadder(service ServiceType, reason string) error {
	return &ConfigError{Kind: ErrKindInvalidTierLadder, Service: service, Reason: reason}
}

func unboundedQuantity(service ServiceType) error {
	return &ConfigError{Kind: ErrKindUnboundedQuantity, Service: service, Reason: "quantity exceeds all finite tier boundaries"}
}

func seatCountOutOfRange(actual, min uint32, max *uint32) error {
	reason := fmt.Sprintf("seat count %d below plan minimum %d", actual, min)
	if max != nil && actual > *max {
		reason = fmt.Sprintf("seat count %d above plan maximum %d", actual, *max)
	}
	return &ConfigError{Kind: ErrKindSeatCountOutOfRange, Reason: reason}
}

func invalidQuantity(service ServiceType, reason string) error {
	return &ConfigError{Kind: ErrKindInvalidQuantity, Service: service, Reason: reason}
}

func invalidPeriod(reason string) error {
	return &ConfigError{Kind: ErrKindInvalidPeriod, Reason: reason}
}
