// Package alerts implements the alert scheduler (C5): per-sink
// delay/frequency/mute-cap/importance gating over the cameras reconciled
// this tick. The tiered-threshold idea is grounded on the donor's
// internal/health.Scheduler backoff tiers (there: fixed 60s/120s/300s by
// consecutive-failure count) and internal/health.AlertManager's
// open/close-alert shape, generalized into spec.md §4.4's exact formula.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/technosupport/nvrmonitor/internal/reconcile"
	"github.com/technosupport/nvrmonitor/internal/settings"
	"github.com/technosupport/nvrmonitor/internal/store"
)

// Batches holds the four message lists produced by one tick (spec.md
// §4.4). Ordering between outage and recovery batches for the same sink is
// unspecified per spec.md §5 and callers must not depend on it.
type Batches struct {
	ChatAlerts     []string
	MailAlerts     []string
	ChatRecoveries []string
	MailRecoveries []string
}

const (
	chatMutedMarker = " \U0001F515(Muted)"
	mailMutedMarker = " (Alerts Muted)"
)

// Schedule evaluates the gate for every reconciled camera and persists
// updated per-sink counters through tx (the scheduler exclusively owns
// these fields, spec.md §3). An outage line is produced, and that sink's
// counter advanced, only when cfg.Mail.Enabled/cfg.Chat.Enabled is set, so
// a globally disabled sink gets no outage batch and its counters do not
// move. Recovery resets a sink's counter whether or not the sink is
// enabled; C6 drops the recovery batch of a disabled sink.
func Schedule(ctx context.Context, tx *store.Tx, results []reconcile.Result, cfg settings.View, now time.Time) (Batches, error) {
	var b Batches

	for _, r := range results {
		cam := r.Camera
		changed := false

		if cam.Status == store.StatusOnline {
			if cam.ChatAlertCount > 0 {
				b.ChatRecoveries = append(b.ChatRecoveries, fmt.Sprintf("✅ %s is back Online", cam.Name))
				cam.ChatAlertCount = 0
				changed = true
			}
			if cam.MailAlertCount > 0 {
				b.MailRecoveries = append(b.MailRecoveries, fmt.Sprintf("%s is back Online", cam.Name))
				cam.MailAlertCount = 0
				changed = true
			}
			if changed {
				if err := tx.UpdateCamera(ctx, cam); err != nil {
					return Batches{}, err
				}
			}
			continue
		}

		// A camera offline since its first sighting has LastOnline = nil
		// (the reconciler only sets it on an Online observation). Its
		// CreatedAt coincides with the DowntimeEvent's start_time, so it
		// is the correct zero-reference for downtime elapsed — treating
		// the null as "now" would freeze downtime at 0 forever, which
		// contradicts the escalating-alert scenarios in spec.md §8.
		reference := cam.CreatedAt
		if cam.LastOnline != nil {
			reference = *cam.LastOnline
		}
		downtimeMin := int(now.Sub(reference) / time.Minute)

		if cfg.Chat.Enabled && shouldSend(cfg.Chat, cam.ChatAlertCount, cam.ChatLastAlert, cam.Importance, downtimeMin, now) {
			line := fmt.Sprintf("🚨 %s (%dm)", cam.Name, downtimeMin)
			if cam.ChatAlertCount+1 >= cfg.Chat.MuteAfter {
				line += chatMutedMarker
			}
			b.ChatAlerts = append(b.ChatAlerts, line)
			cam.ChatAlertCount++
			cam.ChatLastAlert = timePtr(now)
			changed = true
		}

		if cfg.Mail.Enabled && shouldSend(cfg.Mail, cam.MailAlertCount, cam.MailLastAlert, cam.Importance, downtimeMin, now) {
			line := fmt.Sprintf("%s is offline for %d mins", cam.Name, downtimeMin)
			if cam.MailAlertCount+1 >= cfg.Mail.MuteAfter {
				line += mailMutedMarker
			}
			b.MailAlerts = append(b.MailAlerts, line)
			cam.MailAlertCount++
			cam.MailLastAlert = timePtr(now)
			changed = true
		}

		if changed {
			if err := tx.UpdateCamera(ctx, cam); err != nil {
				return Batches{}, err
			}
		}
	}

	return b, nil
}

// shouldSend implements the per-sink gate from spec.md §4.4. It does not
// consult the sink-enabled flag; Schedule checks that before calling it.
func shouldSend(sink settings.SinkConfig, count int, lastAlert *time.Time, importance int, downtimeMin int, now time.Time) bool {
	if count >= sink.MuteAfter {
		return false
	}
	if count == 0 {
		threshold := sink.FirstDelay
		if importance == store.ImportanceLow {
			threshold = sink.Frequency
		}
		return time.Duration(downtimeMin)*time.Minute >= threshold
	}
	if lastAlert == nil {
		return true
	}
	return now.Sub(*lastAlert) >= sink.Frequency
}

func timePtr(t time.Time) *time.Time { return &t }
