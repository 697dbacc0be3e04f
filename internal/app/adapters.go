package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/charlesng35/campusalert/internal/app/maintenance"
	"github.com/charlesng35/campusalert/internal/classifier"
	"github.com/charlesng35/campusalert/internal/database"
	"github.com/charlesng35/campusalert/internal/delivery"
	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/internal/warnings"
)

// Options converts the database section into a database.Config.
func (c DatabaseConfig) Options() database.Config {
	options := make(map[string]string, len(c.ConnOptions))
	for k, v := range c.ConnOptions {
		options[k] = v
	}
	return database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		Host:            c.Host,
		Port:            c.Port,
		Name:            c.Name,
		User:            c.User,
		Password:        c.Password,
		Options:         options,
		MaxOpenConns:    c.MaxOpenConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// EngineConfig converts the dispatch section into a dispatch.Config. Clock
// and logger are supplied by the caller.
func (c DispatchConfig) EngineConfig(clock clockwork.Clock, log *zap.Logger) (dispatch.Config, error) {
	flush, err := dispatch.ParseFlushFailurePolicy(c.FlushFailure)
	if err != nil {
		return dispatch.Config{}, fmt.Errorf("dispatch.flush_failure: %w", err)
	}
	if c.DailyQuota < 0 {
		return dispatch.Config{}, fmt.Errorf("dispatch.daily_quota must not be negative, got %d", c.DailyQuota)
	}

	var priorities map[warnings.Category]dispatch.Priority
	if len(c.Priorities) > 0 {
		priorities = make(map[warnings.Category]dispatch.Priority, len(c.Priorities))
		for rawCategory, rawPriority := range c.Priorities {
			category, err := configCategory(rawCategory)
			if err != nil {
				return dispatch.Config{}, fmt.Errorf("dispatch.priorities: %w", err)
			}
			priority, err := dispatch.ParsePriority(rawPriority)
			if err != nil {
				return dispatch.Config{}, fmt.Errorf("dispatch.priorities.%s: %w", rawCategory, err)
			}
			priorities[category] = priority
		}
	}

	return dispatch.Config{
		Policy: dispatch.Policy{
			InstantWindow: c.InstantWindow,
			MaxResidency:  c.MaxResidency,
		},
		DailyQuota:   c.DailyQuota,
		SendTimeout:  c.SendTimeout,
		FlushFailure: flush,
		Priorities:   priorities,
		Clock:        clock,
		Logger:       log,
	}, nil
}

// ClassifierOptions converts the classifier section into a classifier.Config.
func (c ClassifierConfig) ClassifierOptions(clock clockwork.Clock) (classifier.Config, error) {
	cfg := classifier.Config{
		TightRadius: c.TightRadius,
		LooseRadius: c.LooseRadius,
		Clock:       clock,
	}

	if len(c.Categories) > 0 {
		cfg.Overrides = make(map[warnings.Category]classifier.ProfileOverride, len(c.Categories))
		for rawCategory, settings := range c.Categories {
			category, err := configCategory(rawCategory)
			if err != nil {
				return classifier.Config{}, fmt.Errorf("classifier.categories: %w", err)
			}
			scope, err := candidateScope(settings.Candidates)
			if err != nil {
				return classifier.Config{}, fmt.Errorf("classifier.categories.%s: %w", rawCategory, err)
			}
			cfg.Overrides[category] = classifier.ProfileOverride{
				InitialRelevance: settings.InitialRelevance,
				TightRadius:      settings.TightRadius,
				LooseRadius:      settings.LooseRadius,
				Candidates:       scope,
			}
		}
	}

	keywords := classifier.DefaultKeywords()
	if len(c.Keywords.Vehicle) > 0 {
		keywords.Vehicle = c.Keywords.Vehicle
	}
	if len(c.Keywords.Bicycle) > 0 {
		keywords.Bicycle = c.Keywords.Bicycle
	}
	if len(c.Keywords.Laptop) > 0 {
		keywords.Laptop = c.Keywords.Laptop
	}
	cfg.Keywords = &keywords

	return cfg, nil
}

// Options converts the scheduler section into maintenance options.
func (c SchedulerConfig) Options(log *zap.Logger) ([]maintenance.Option, error) {
	opts := []maintenance.Option{maintenance.WithLogger(log)}

	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler.timezone: %w", err)
		}
		opts = append(opts, maintenance.WithLocation(loc))
	}
	if c.MaintenanceSchedule != "" {
		opts = append(opts, maintenance.WithMaintenanceSchedule(c.MaintenanceSchedule))
	}
	if c.QuotaResetSchedule != "" {
		opts = append(opts, maintenance.WithQuotaResetSchedule(c.QuotaResetSchedule))
	}
	if c.JobTimeout > 0 {
		opts = append(opts, maintenance.WithJobTimeout(c.JobTimeout))
	}
	return opts, nil
}

// Options converts the delivery section into a delivery.Config.
func (c DeliveryConfig) Options() delivery.Config {
	return delivery.Config{
		Driver: c.Driver,
		Stream: c.Stream,
		Kafka: delivery.KafkaConfig{
			Brokers:      append([]string(nil), c.Kafka.Brokers...),
			Topic:        c.Kafka.Topic,
			ClientID:     c.Kafka.ClientID,
			BatchTimeout: c.Kafka.BatchTimeout,
			RequiredAcks: c.Kafka.RequiredAcks,
		},
	}
}

// configCategory resolves a configuration key to a known category. Unlike
// warnings.ParseCategory it rejects unknown names instead of mapping them to general.
func configCategory(raw string) (warnings.Category, error) {
	category := warnings.ParseCategory(raw)
	if category == warnings.CategoryGeneral && !strings.EqualFold(strings.TrimSpace(raw), string(warnings.CategoryGeneral)) {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return category, nil
}

func candidateScope(raw string) (classifier.CandidateScope, error) {
	switch classifier.CandidateScope(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case classifier.ScopeAll:
		return classifier.ScopeAll, nil
	case classifier.ScopeHomeOnly:
		return classifier.ScopeHomeOnly, nil
	default:
		return "", fmt.Errorf("unknown candidate scope %q", raw)
	}
}
