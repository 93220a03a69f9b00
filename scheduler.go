package pagecms

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// startScheduler runs the publishing schedule check and, with analytics
// enabled, the daily retention cleanup.
func (a *App) startScheduler() error {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("pagecms: create scheduler: %w", err)
	}

	if _, err := s.NewJob(
		gocron.DurationJob(a.Config.SchedulerInterval),
		gocron.NewTask(func() {
			if _, _, err := a.RunSchedule(time.Now()); err != nil {
				a.Log.WithError(err).Error("publishing schedule failed")
			}
		}),
		gocron.WithName("publishing_schedule"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("pagecms: schedule publishing: %w", err)
	}

	if a.analyticsStore != nil {
		retention := a.Config.AnalyticsRetentionDays
		if _, err := s.NewJob(
			gocron.DurationJob(24*time.Hour),
			gocron.NewTask(func() {
				if err := a.analyticsStore.CleanupOldVisits(retention); err != nil {
					a.Log.WithError(err).Error("analytics cleanup failed")
				}
			}),
			gocron.WithName("analytics_cleanup"),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		); err != nil {
			return fmt.Errorf("pagecms: schedule analytics cleanup: %w", err)
		}
	}

	s.Start()
	a.scheduler = s
	return nil
}

// RunSchedule publishes pages whose go-live time has passed and unpublishes
// live pages that have expired. It returns how many pages changed state.
func (a *App) RunSchedule(now time.Time) (published, expired int, err error) {
	due, err := a.Store.ScheduledPages(now)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range due {
		if err := a.Store.PublishPage(p.ID, now); err != nil {
			return published, expired, fmt.Errorf("pagecms: publish page %d: %w", p.ID, err)
		}
		a.Log.WithField("page_id", p.ID).WithField("url_path", p.URLPath).Info("scheduled page published")
		published++
	}

	gone, err := a.Store.ExpiredPages(now)
	if err != nil {
		return published, expired, err
	}
	for _, p := range gone {
		if err := a.Store.UnpublishPage(p.ID); err != nil {
			return published, expired, fmt.Errorf("pagecms: unpublish page %d: %w", p.ID, err)
		}
		a.Log.WithField("page_id", p.ID).WithField("url_path", p.URLPath).Info("expired page unpublished")
		expired++
	}

	if published+expired > 0 {
		a.metrics.published.Add(float64(published))
		a.metrics.unpublished.Add(float64(expired))
		a.Cache.Invalidate()
	}
	return published, expired, nil
}
