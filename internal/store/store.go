// Package store implements the repository contract spec.md §4.1 against a
// file-backed SQLite database, following the DBTX-over-*sql.DB-or-*sql.Tx
// pattern the donor uses throughout internal/data.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("store: record not found")

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting Store and Tx share
// every read/write helper below.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store is the top-level handle. Operations that must survive a later
// failure in the same tick (NVR listing, settings, logs) run directly
// against the pool with autocommit; reconciliation and alert bookkeeping
// run inside a single Tx per tick (spec.md §4.1, §9).
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB { return s.db }

// Tx is a transaction-scoped view of the same repository surface used for
// reconciliation and alerting.
type Tx struct {
	tx *sql.Tx
}

func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// --- NVRs (admin-owned, read-only to the core) ---

func (s *Store) ListEnabledNVRs(ctx context.Context) ([]NVR, error) {
	return listEnabledNVRs(ctx, s.db)
}

func listEnabledNVRs(ctx context.Context, q dbtx) ([]NVR, error) {
	rows, err := q.QueryContext(ctx, `SELECT ip, user, password, enabled FROM nvrs WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NVR
	for rows.Next() {
		var n NVR
		if err := rows.Scan(&n.IP, &n.User, &n.Password, &n.Enabled); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- Cameras (reconciler-owned identity/status, scheduler-owned counters) ---

func (t *Tx) GetCameraByChannel(ctx context.Context, nvrIP, channelID string) (*Camera, error) {
	return getCameraByChannel(ctx, t.tx, nvrIP, channelID)
}

func getCameraByChannel(ctx context.Context, q dbtx, nvrIP, channelID string) (*Camera, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, nvr_ip, channel_id, name, ip, status, last_online, importance, is_muted,
		       mail_alert_count, mail_last_alert, chat_alert_count, chat_last_alert, created_at, updated_at
		FROM cameras WHERE nvr_ip = ? AND channel_id = ?`, nvrIP, channelID)
	c, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func scanCamera(row *sql.Row) (*Camera, error) {
	var c Camera
	var id string
	var lastOnline, mailLast, chatLast sql.NullTime
	var isMuted int
	err := row.Scan(&id, &c.NVRIP, &c.ChannelID, &c.Name, &c.IP, &c.Status, &lastOnline,
		&c.Importance, &isMuted, &c.MailAlertCount, &mailLast, &c.ChatAlertCount, &chatLast,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	c.IsMuted = isMuted != 0
	if lastOnline.Valid {
		c.LastOnline = &lastOnline.Time
	}
	if mailLast.Valid {
		c.MailLastAlert = &mailLast.Time
	}
	if chatLast.Valid {
		c.ChatLastAlert = &chatLast.Time
	}
	return &c, nil
}

// InsertCamera assigns c.ID and persists identity/status fields, obtaining
// the new id before any DowntimeEvent child row is created (spec.md §4.3.3).
func (t *Tx) InsertCamera(ctx context.Context, c *Camera) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	isMuted := 0
	if c.IsMuted {
		isMuted = 1
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cameras (id, nvr_ip, channel_id, name, ip, status, last_online, importance,
		                      is_muted, mail_alert_count, mail_last_alert, chat_alert_count, chat_last_alert,
		                      created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, 0, NULL, ?, ?)`,
		c.ID.String(), c.NVRIP, c.ChannelID, c.Name, c.IP, c.Status, c.LastOnline, c.Importance,
		isMuted, c.CreatedAt, c.UpdatedAt)
	return err
}

// UpdateCamera writes every mutable field back; callers (reconciler,
// scheduler) only ever have one of identity/status or counters changed at a
// time, but a full write keeps this helper single-purpose and matches the
// donor's Update pattern in internal/data.
func (t *Tx) UpdateCamera(ctx context.Context, c *Camera) error {
	c.UpdatedAt = time.Now()
	isMuted := 0
	if c.IsMuted {
		isMuted = 1
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE cameras SET name = ?, ip = ?, status = ?, last_online = ?, importance = ?, is_muted = ?,
		       mail_alert_count = ?, mail_last_alert = ?, chat_alert_count = ?, chat_last_alert = ?,
		       updated_at = ?
		WHERE id = ?`,
		c.Name, c.IP, c.Status, c.LastOnline, c.Importance, isMuted,
		c.MailAlertCount, c.MailLastAlert, c.ChatAlertCount, c.ChatLastAlert,
		c.UpdatedAt, c.ID.String())
	return err
}

// ListOfflineCameras supports the hourly summary (spec.md §4.6 step 5),
// which must see every camera still Offline even if its NVR poll failed
// this tick.
func (t *Tx) ListOfflineCameras(ctx context.Context) ([]*Camera, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, nvr_ip, channel_id, name, ip, status, last_online, importance, is_muted,
		       mail_alert_count, mail_last_alert, chat_alert_count, chat_last_alert, created_at, updated_at
		FROM cameras WHERE status = ?`, StatusOffline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Camera
	for rows.Next() {
		var c Camera
		var id string
		var lastOnline, mailLast, chatLast sql.NullTime
		var isMuted int
		if err := rows.Scan(&id, &c.NVRIP, &c.ChannelID, &c.Name, &c.IP, &c.Status, &lastOnline,
			&c.Importance, &isMuted, &c.MailAlertCount, &mailLast, &c.ChatAlertCount, &chatLast,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		c.IsMuted = isMuted != 0
		if lastOnline.Valid {
			c.LastOnline = &lastOnline.Time
		}
		if mailLast.Valid {
			c.MailLastAlert = &mailLast.Time
		}
		if chatLast.Valid {
			c.ChatLastAlert = &chatLast.Time
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// --- Downtime events ---

func (t *Tx) OpenDowntimeEvent(ctx context.Context, cameraID uuid.UUID, start time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO downtime_events (id, camera_id, start_time, end_time) VALUES (?, ?, ?, NULL)`,
		uuid.New().String(), cameraID.String(), start)
	return err
}

// CloseOpenDowntimeEvent closes the currently-open interval, if any. Absence
// of an open interval is treated as a non-fatal no-op (spec.md §7, taxonomy
// 3: data inconsistency).
func (t *Tx) CloseOpenDowntimeEvent(ctx context.Context, cameraID uuid.UUID, end time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE downtime_events SET end_time = ?
		WHERE camera_id = ? AND end_time IS NULL`, end, cameraID.String())
	return err
}

// DowntimeOverlap sums the overlap between every DowntimeEvent for a camera
// and the half-open window [start, end), per spec.md §4.1 and the test
// scenario in §8.6.
func (t *Tx) DowntimeOverlap(ctx context.Context, cameraID uuid.UUID, start, end time.Time) (time.Duration, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT start_time, end_time FROM downtime_events
		WHERE camera_id = ? AND start_time < ? AND (end_time IS NULL OR end_time > ?)`,
		cameraID.String(), end, start)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total time.Duration
	for rows.Next() {
		var s time.Time
		var e sql.NullTime
		if err := rows.Scan(&s, &e); err != nil {
			return 0, err
		}
		evEnd := end
		if e.Valid && e.Time.Before(end) {
			evEnd = e.Time
		}
		evStart := start
		if s.After(start) {
			evStart = s
		}
		if evEnd.After(evStart) {
			total += evEnd.Sub(evStart)
		}
	}
	return total, rows.Err()
}

// --- Logs (always autocommit: must survive a later failure this tick) ---

func (s *Store) AppendLog(ctx context.Context, l *Log) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (id, timestamp, log_type, state, details) VALUES (?, ?, ?, ?, ?)`,
		l.ID.String(), l.Timestamp, l.Type, l.State, l.Details)
	return err
}

// --- Settings ---

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	var v string
	err := row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) PutSetting(ctx context.Context, key, value, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, description) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value, description)
	return err
}

// SeedDefaults writes any missing key from defaults without overwriting an
// existing operator-set value (spec.md §6: "Defaults are seeded on first
// start for any missing key").
func (s *Store) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	for k, v := range defaults {
		_, ok, err := s.GetSetting(ctx, k)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := s.PutSetting(ctx, k, v, ""); err != nil {
			return err
		}
	}
	return nil
}
