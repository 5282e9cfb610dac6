// Package reconcile implements the state reconciler (C4): it folds one
// tick's NVR poll results into Camera rows and DowntimeEvent intervals.
// Grounded on the donor's internal/health.Service.PerformCheck
// (fetch-current -> compute-new -> upsert -> log-on-transition ->
// open/close interval), serialized here into a single pass per tick rather
// than the donor's per-item independent worker goroutines, since spec.md
// requires all writes for a tick to come from one transaction.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/technosupport/nvrmonitor/internal/names"
	"github.com/technosupport/nvrmonitor/internal/nvrclient"
	"github.com/technosupport/nvrmonitor/internal/store"
)

// Result is a per-channel outcome, returned so the alert scheduler can
// operate over exactly the set of cameras touched this tick.
type Result struct {
	Camera     *store.Camera
	Transition bool
}

// Reconcile folds poll results for one NVR's channels into cameras. Poll
// failures never reach here: the caller logs a Camera/Error row per failed
// NVR and simply omits it from the channel list (spec.md §4.3 "Failed NVR
// polls ... do not touch that NVR's cameras").
//
// db is the autocommit Store handle used for transition Log rows; tx is the
// tick's single reconciliation transaction. Writing logs through db rather
// than tx means they survive even if a later step in the same tick rolls
// tx back (spec.md §4.1, §9), while still being durable before C5 runs
// since Reconcile runs to completion before the scheduler is invoked.
func Reconcile(ctx context.Context, db *store.Store, tx *store.Tx, nvrIP string, channels []nvrclient.ChannelResult, nameMap names.Map, now time.Time) ([]Result, error) {
	results := make([]Result, 0, len(channels))

	for _, ch := range channels {
		newStatus := store.StatusOffline
		if ch.Online {
			newStatus = store.StatusOnline
		}

		finalName, ok := nameMap[ch.CameraIP]
		if !ok {
			finalName = fmt.Sprintf("Ch %s", ch.ChannelID)
		}

		cam, err := tx.GetCameraByChannel(ctx, nvrIP, ch.ChannelID)
		switch {
		case err == store.ErrNotFound:
			cam, err = createCamera(ctx, tx, nvrIP, ch.ChannelID, finalName, ch.CameraIP, newStatus, now)
			if err != nil {
				return nil, err
			}
			// First sighting is not a status transition (spec.md §4.3.3
			// names no log for this branch, unlike §4.3.4's "if status
			// changed").
			results = append(results, Result{Camera: cam, Transition: false})
		case err != nil:
			return nil, err
		default:
			transitioned, err := updateCamera(ctx, db, tx, cam, finalName, ok, ch.CameraIP, newStatus, now)
			if err != nil {
				return nil, err
			}
			results = append(results, Result{Camera: cam, Transition: transitioned})
		}
	}

	return results, nil
}

func createCamera(ctx context.Context, tx *store.Tx, nvrIP, channelID, name, ip string, status store.CameraStatus, now time.Time) (*store.Camera, error) {
	cam := &store.Camera{
		NVRIP:      nvrIP,
		ChannelID:  channelID,
		Name:       name,
		IP:         ip,
		Status:     status,
		Importance: store.ImportanceNormal,
	}
	if status == store.StatusOnline {
		cam.LastOnline = &now
	}
	if err := tx.InsertCamera(ctx, cam); err != nil {
		return nil, err
	}
	if status == store.StatusOffline {
		if err := tx.OpenDowntimeEvent(ctx, cam.ID, now); err != nil {
			return nil, err
		}
	}
	return cam, nil
}

// updateCamera mutates cam in place and reports whether a status
// transition occurred this tick (spec.md §4.3.4). nameFromCSV is true only
// when the caller's nameMap actually had an entry for this camera's IP: the
// overwrite is conditioned on the CSV having provided a name, not on the
// synthetic "Ch <id>" fallback differing from what's stored, so a camera
// keeps its CSV-given name across a tick where the mapping goes missing
// (spec.md §4.3 bullet 2, §6's "tolerating absence").
func updateCamera(ctx context.Context, db *store.Store, tx *store.Tx, cam *store.Camera, name string, nameFromCSV bool, ip string, newStatus store.CameraStatus, now time.Time) (bool, error) {
	if nameFromCSV && name != cam.Name {
		cam.Name = name
	}
	if ip != "" && ip != cam.IP {
		cam.IP = ip
	}

	transitioned := cam.Status != newStatus
	if transitioned {
		cam.Status = newStatus
		if err := logTransition(ctx, db, cam, newStatus, now); err != nil {
			return false, err
		}
		if newStatus == store.StatusOffline {
			if err := tx.OpenDowntimeEvent(ctx, cam.ID, now); err != nil {
				return false, err
			}
		} else {
			if err := tx.CloseOpenDowntimeEvent(ctx, cam.ID, now); err != nil {
				return false, err
			}
		}
	}

	if newStatus == store.StatusOnline {
		cam.LastOnline = &now
	}

	if err := tx.UpdateCamera(ctx, cam); err != nil {
		return false, err
	}
	return transitioned, nil
}

func logTransition(ctx context.Context, db *store.Store, cam *store.Camera, newStatus store.CameraStatus, now time.Time) error {
	return db.AppendLog(ctx, &store.Log{
		Timestamp: now,
		Type:      store.LogCamera,
		State:     string(newStatus),
		Details:   fmt.Sprintf("%s (%s/%s)", cam.Name, cam.NVRIP, cam.ChannelID),
	})
}
