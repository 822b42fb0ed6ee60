// Package scheduler implements scheduled fetchers (C11): each plugin that
// declares fetch_events is registered once, on a schedule derived from its
// fetch_interval, and every invocation is guarded by a timeout equal to the
// interval, or for a cron expression the gap between its next two firings.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pdaltagent/pdgateway/internal/application/ingress"
	"github.com/pdaltagent/pdgateway/internal/application/plugin"
	"github.com/pdaltagent/pdgateway/internal/config"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// EventSender is the subset of the dispatcher the scheduler needs.
type EventSender interface {
	SendEvent(ctx context.Context, routingKey string, payload record.Map, baseURL, destinationType string) error
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler runs every registered plugin fetcher on its own schedule.
type Scheduler struct {
	cron         *cron.Cron
	cfg          config.PluginHostConfig
	dispatchBase string
	sender       EventSender
	log          *logger.Logger
}

// New builds an empty Scheduler; fetchers are added with Register.
func New(cfg config.PluginHostConfig, dispatchBaseURL string, sender EventSender) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(time.UTC)),
		cfg:          cfg,
		dispatchBase: dispatchBaseURL,
		sender:       sender,
		log:          logger.Default(),
	}
}

// Register adds one fetcher to the schedule. It is safe to call before or
// after Start.
func (s *Scheduler) Register(reg plugin.FetcherRegistration) error {
	schedule, fixedTimeout, err := s.parseSchedule(reg.Interval)
	if err != nil {
		return fmt.Errorf("scheduler: plugin %s: %w", reg.Name, err)
	}

	s.cron.Schedule(schedule, s.job(reg, schedule, fixedTimeout))
	return nil
}

// parseSchedule interprets fetch_interval: a cron expression if it parses
// as one, otherwise a number of seconds (default DefaultInterval). Returns
// a non-zero fixedTimeout only for the interval case, where the timeout
// equals the interval itself; cron timeouts are computed per-firing from
// consecutive schedule.Next calls.
func (s *Scheduler) parseSchedule(interval string) (cron.Schedule, time.Duration, error) {
	if interval != "" {
		if schedule, err := cronParser.Parse(interval); err == nil {
			return schedule, 0, nil
		}
	}

	seconds := int(s.cfg.DefaultInterval / time.Second)
	if interval != "" {
		if n, err := strconv.Atoi(interval); err == nil && n > 0 {
			seconds = n
		}
	}
	if seconds <= 0 {
		seconds = 10
	}
	d := time.Duration(seconds) * time.Second
	return cron.ConstantDelaySchedule{Delay: d}, d, nil
}

func (s *Scheduler) job(reg plugin.FetcherRegistration, schedule cron.Schedule, fixedTimeout time.Duration) cron.FuncJob {
	return func() {
		timeout := fixedTimeout
		if timeout <= 0 {
			timeout = nextFiringGap(schedule)
		}
		s.invoke(reg, timeout)
	}
}

// nextFiringGap is the distance between the next two firings of a cron
// schedule, used as the per-invocation timeout for cron-based fetchers.
func nextFiringGap(schedule cron.Schedule) time.Duration {
	now := time.Now()
	next1 := schedule.Next(now)
	next2 := schedule.Next(next1)
	return next2.Sub(next1)
}

func (s *Scheduler) invoke(reg plugin.FetcherRegistration, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		raw interface{}
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := reg.Fetch(ctx)
		done <- result{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		s.log.Warn("scheduler: fetch timed out, abandoning invocation", "plugin", reg.Name, "timeout", timeout)
		return
	case r := <-done:
		if r.err != nil {
			s.log.Error("scheduler: fetch failed", "plugin", reg.Name, "error", r.err)
			return
		}
		s.dispatchFetched(reg.Name, r.raw)
	}
}

func (s *Scheduler) dispatchFetched(pluginName string, raw interface{}) {
	events, skipped, err := plugin.ParseFetchedEvents(raw)
	if err != nil {
		s.log.Warn("scheduler: fetch returned malformed events", "plugin", pluginName, "error", err)
		return
	}
	if skipped > 0 {
		s.log.Warn("scheduler: skipped malformed fetched events", "plugin", pluginName, "skipped", skipped)
	}

	for _, event := range events {
		routingKey, err := ingress.ValidateV2(event)
		if err != nil {
			s.log.Warn("scheduler: skipped invalid fetched event", "plugin", pluginName, "error", err)
			continue
		}
		if err := s.sender.SendEvent(context.Background(), routingKey, event, s.dispatchBase, "v2"); err != nil {
			s.log.Error("scheduler: enqueue failed", "plugin", pluginName, "error", err)
		}
	}
}

// Start begins running all registered fetchers.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler, waiting for in-flight jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
