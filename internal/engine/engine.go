// Package engine drives the periodic loop (C7): one tick per minute,
// sequencing C1-C6 and the hourly downtime summary. The outer ticker +
// quit-channel + sync.WaitGroup shape and the Start/Stop lifecycle are
// grounded on the donor's internal/health.Scheduler; the parallel poll
// fan-out replaces the donor's fixed worker-pool-plus-channel with
// golang.org/x/sync/errgroup (carried into the retrieved corpus by
// ausocean-cloud's go.mod), since spec.md only calls for "poll every
// enabled NVR in parallel, wait for all" with no bound on fleet size that
// would justify a pool.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/technosupport/nvrmonitor/internal/alerts"
	"github.com/technosupport/nvrmonitor/internal/logging"
	"github.com/technosupport/nvrmonitor/internal/metrics"
	"github.com/technosupport/nvrmonitor/internal/names"
	"github.com/technosupport/nvrmonitor/internal/notify"
	"github.com/technosupport/nvrmonitor/internal/nvrclient"
	"github.com/technosupport/nvrmonitor/internal/reconcile"
	"github.com/technosupport/nvrmonitor/internal/settings"
	"github.com/technosupport/nvrmonitor/internal/store"
)

const tickInterval = 60 * time.Second

// emptyFleetSleep and errorBackoff are vars, not consts, so tests can
// shrink them rather than waiting out the real spec.md §4.6/§7 durations.
var (
	emptyFleetSleep = 10 * time.Second
	errorBackoff    = 5 * time.Second
)

// Engine owns the single long-lived worker the source relies on (spec.md
// §9): no process-wide mutable state beyond the Store handle, so the
// (out-of-scope) admin "restart monitor" operation can Stop and construct
// a fresh Engine freely.
type Engine struct {
	store      *store.Store
	client     *nvrclient.Client
	dispatcher *notify.Dispatcher
	namesPath  string
	quit       chan struct{}
	wg         sync.WaitGroup

	lastSummaryHour int
	haveSummary     bool
}

func New(s *store.Store, namesPath string) *Engine {
	return &Engine{
		store:      s,
		client:     nvrclient.New(),
		dispatcher: notify.New(s),
		namesPath:  namesPath,
		quit:       make(chan struct{}),
	}
}

func (e *Engine) Start(ctx context.Context) {
	if err := e.store.AppendLog(ctx, &store.Log{Type: store.LogService, State: "Started"}); err != nil {
		logging.Error("writing Service/Started log: %v", err)
	}
	e.wg.Add(1)
	go e.run(ctx)
}

func (e *Engine) Stop(ctx context.Context) {
	close(e.quit)
	e.wg.Wait()
	if err := e.store.AppendLog(ctx, &store.Log{Type: store.LogService, State: "Stopped"}); err != nil {
		logging.Error("writing Service/Stopped log: %v", err)
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	e.tick(ctx)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick(ctx)
		case <-e.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs exactly one pass of C1-C6 plus the hourly summary. A panic
// anywhere in the tick is recovered so a single bad tick cannot take down
// the process (spec.md §7 taxonomy 4); the loop itself sleeps 5s and
// resumes on the next ticker fire.
func (e *Engine) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			metrics.TickErrorsTotal.Inc()
			logging.Error("tick panic: %v", r)
			_ = e.store.AppendLog(ctx, &store.Log{Type: store.LogService, State: "Error", Details: fmt.Sprintf("%v", r)})
			time.Sleep(errorBackoff)
		}
	}()

	if err := e.runTick(ctx, start); err != nil {
		metrics.TickErrorsTotal.Inc()
		logging.Error("tick failed: %v", err)
		_ = e.store.AppendLog(ctx, &store.Log{Type: store.LogService, State: "Error", Details: err.Error()})
		time.Sleep(errorBackoff)
	}
}

func (e *Engine) runTick(ctx context.Context, now time.Time) error {
	nameMap, err := names.Load(e.namesPath)
	if err != nil {
		return fmt.Errorf("load names: %w", err)
	}

	nvrs, err := e.store.ListEnabledNVRs(ctx)
	if err != nil {
		return fmt.Errorf("list nvrs: %w", err)
	}
	metrics.NVRsEnabled.Set(float64(len(nvrs)))
	if len(nvrs) == 0 {
		time.Sleep(emptyFleetSleep)
		return nil
	}

	polls := e.pollAll(ctx, nvrs)

	cfg, err := settings.Load(ctx, e.store)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	var results []reconcile.Result
	for i, nvr := range nvrs {
		poll := polls[i]
		if !poll.OK {
			metrics.PollsTotal.WithLabelValues("fail").Inc()
			if logErr := e.store.AppendLog(ctx, &store.Log{
				Type: store.LogCamera, State: "Error",
				Details: fmt.Sprintf("%s: %s", nvr.IP, poll.Reason),
			}); logErr != nil {
				logging.Error("logging poll failure: %v", logErr)
			}
			continue
		}
		metrics.PollsTotal.WithLabelValues("ok").Inc()

		r, err := reconcile.Reconcile(ctx, e.store, tx, nvr.IP, poll.Channels, nameMap, now)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("reconcile %s: %w", nvr.IP, err)
		}
		results = append(results, r...)
	}

	batches, err := alerts.Schedule(ctx, tx, results, cfg, now)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("schedule alerts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	e.dispatch(ctx, cfg, batches)
	e.maybeSummary(ctx, cfg, now)

	return nil
}

// pollAll fans out one poll per NVR in parallel and waits for all to
// complete, pre-sizing the result slice so each worker only ever touches
// its own slot (spec.md §5: no shared mutable state across workers).
func (e *Engine) pollAll(ctx context.Context, nvrs []store.NVR) []nvrclient.PollResult {
	results := make([]nvrclient.PollResult, len(nvrs))
	g, gctx := errgroup.WithContext(ctx)
	for i, nvr := range nvrs {
		i, nvr := i, nvr
		g.Go(func() error {
			results[i] = e.client.Poll(gctx, nvr)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) dispatch(ctx context.Context, cfg settings.View, b alerts.Batches) {
	if len(b.ChatAlerts) > 0 {
		if sent, err := e.dispatcher.DeliverChat(ctx, cfg, "Camera Offline", b.ChatAlerts, true); err != nil {
			logging.Error("chat outage dispatch: %v", err)
		} else if sent {
			metrics.AlertsSentTotal.WithLabelValues("chat", "outage").Add(float64(len(b.ChatAlerts)))
		}
	}
	if len(b.ChatRecoveries) > 0 {
		if sent, err := e.dispatcher.DeliverChat(ctx, cfg, "Camera Recovered", b.ChatRecoveries, true); err != nil {
			logging.Error("chat recovery dispatch: %v", err)
		} else if sent {
			metrics.AlertsSentTotal.WithLabelValues("chat", "recovery").Add(float64(len(b.ChatRecoveries)))
		}
	}
	if len(b.MailAlerts) > 0 {
		if sent, err := e.dispatcher.DeliverMail(ctx, cfg, "Camera Offline", b.MailAlerts, true); err != nil {
			logging.Error("mail outage dispatch: %v", err)
		} else if sent {
			metrics.AlertsSentTotal.WithLabelValues("mail", "outage").Add(float64(len(b.MailAlerts)))
		}
	}
	if len(b.MailRecoveries) > 0 {
		if sent, err := e.dispatcher.DeliverMail(ctx, cfg, "Camera Recovered", b.MailRecoveries, true); err != nil {
			logging.Error("mail recovery dispatch: %v", err)
		} else if sent {
			metrics.AlertsSentTotal.WithLabelValues("mail", "recovery").Add(float64(len(b.MailRecoveries)))
		}
	}
}

// maybeSummary implements spec.md §4.6 step 5: fires at most once per
// wall-clock hour, at the first tick observed with minute=0.
func (e *Engine) maybeSummary(ctx context.Context, cfg settings.View, now time.Time) {
	if now.Minute() != 0 {
		return
	}
	hour := now.Hour()
	if e.haveSummary && e.lastSummaryHour == hour {
		return
	}
	e.lastSummaryHour = hour
	e.haveSummary = true

	tx, err := e.store.Begin(ctx)
	if err != nil {
		logging.Error("hourly summary begin: %v", err)
		return
	}
	defer tx.Rollback()

	offline, err := tx.ListOfflineCameras(ctx)
	if err != nil {
		logging.Error("hourly summary list offline: %v", err)
		return
	}
	metrics.CamerasOffline.Set(float64(len(offline)))

	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	var lines []string
	for _, cam := range offline {
		since := hourStart
		if cam.LastOnline != nil && cam.LastOnline.After(hourStart) {
			since = *cam.LastOnline
		}
		minutes := int(now.Sub(since) / time.Minute)
		if minutes > 60 {
			minutes = 60
		}
		lines = append(lines, fmt.Sprintf("%s: %dm", cam.Name, minutes))
	}

	if len(lines) == 0 {
		return
	}

	header := fmt.Sprintf("📊 Hourly Downtime Summary (%02d:00)", hour)
	if sent, err := e.dispatcher.DeliverChat(ctx, cfg, header, lines, true); err != nil {
		logging.Error("hourly summary dispatch: %v", err)
	} else if sent {
		if logErr := e.store.AppendLog(ctx, &store.Log{Type: store.LogTelegram, State: "Sent", Details: "Hourly Summary"}); logErr != nil {
			logging.Error("logging hourly summary: %v", logErr)
		}
	}
}
