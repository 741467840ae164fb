package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/longevity/pkg/logger"
)

const (
	defaultNotificationRetentionDays = 30
	defaultCacheSpec                 = "@hourly"
	defaultNotificationSpec          = "@daily"
)

// ExpiredEntryPurger removes key/value entries whose TTL elapsed before cutoff.
type ExpiredEntryPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationPurger removes notifications created before cutoff.
type NotificationPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner coordinates background maintenance tasks such as purging expired cache
// entries and pruning old notifications. Recommendation rows are never touched.
type Cleaner struct {
	entries       ExpiredEntryPurger
	notifications NotificationPurger
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	retention     int

	cacheSchedule        string
	notificationSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithNotificationRetentionDays adjusts how long notifications are kept.
func WithNotificationRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithCacheSchedule overrides the cron schedule for expired entry cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithNotificationSchedule overrides the cron schedule for notification retention.
func WithNotificationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.notificationSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(entries ExpiredEntryPurger, notifications NotificationPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		entries:              entries,
		notifications:        notifications,
		now:                  time.Now,
		retention:            defaultNotificationRetentionDays,
		cacheSchedule:        defaultCacheSpec,
		notificationSchedule: defaultNotificationSpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Enabled reports whether at least one cleanup job is configured.
func (c *Cleaner) Enabled() bool {
	return c.entries != nil || c.notifications != nil
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.Enabled() {
		return nil
	}

	if c.entries != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.purgeEntries(context.Background()); err != nil {
				c.log.Warn("cache cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule cache cleanup: %w", err)
		}
	}

	if c.notifications != nil {
		if _, err := c.cron.AddFunc(c.notificationSchedule, func() {
			if _, err := c.purgeNotifications(context.Background()); err != nil {
				c.log.Warn("notification cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule notification cleanup: %w", err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// Stats captures the number of records removed by a RunOnce pass.
type Stats struct {
	ExpiredEntries int64
	Notifications  int64
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		stats Stats
		errs  error
		err   error
	)

	if c.entries != nil {
		stats.ExpiredEntries, err = c.purgeEntries(ctx)
		errs = multierr.Append(errs, err)
	}

	if c.notifications != nil {
		stats.Notifications, err = c.purgeNotifications(ctx)
		errs = multierr.Append(errs, err)
	}

	return stats, errs
}

func (c *Cleaner) purgeEntries(ctx context.Context) (int64, error) {
	removed, err := c.entries.PurgeExpired(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("maintenance: purge expired entries: %w", err)
	}
	if removed > 0 {
		c.log.Info("expired cache entries purged", zap.Int64("count", removed))
	}
	return removed, nil
}

func (c *Cleaner) purgeNotifications(ctx context.Context) (int64, error) {
	if c.retention <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-time.Duration(c.retention) * 24 * time.Hour)
	removed, err := c.notifications.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("maintenance: purge notifications: %w", err)
	}
	if removed > 0 {
		c.log.Info("old notifications purged", zap.Int64("count", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
