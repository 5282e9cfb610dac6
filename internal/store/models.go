package store

import (
	"time"

	"github.com/google/uuid"
)

// CameraStatus mirrors the three reported states a channel can be in.
type CameraStatus string

const (
	StatusOnline  CameraStatus = "Online"
	StatusOffline CameraStatus = "Offline"
	StatusUnknown CameraStatus = "Unknown"
)

// LogType enumerates the append-only log categories.
type LogType string

const (
	LogCamera   LogType = "Camera"
	LogMail     LogType = "Mail"
	LogTelegram LogType = "Telegram"
	LogService  LogType = "Service"
)

// Importance classes drive the initial alert threshold (spec.md §4.4).
const (
	ImportanceLow    = 1
	ImportanceNormal = 2
	ImportanceHigh   = 3
)

// NVR is owned by the (external) admin surface; the engine only reads it.
type NVR struct {
	IP       string
	User     string
	Password string
	Enabled  bool
}

// Camera is upserted by the reconciler and mutated by the alert scheduler.
type Camera struct {
	ID             uuid.UUID
	NVRIP          string
	ChannelID      string
	Name           string
	IP             string
	Status         CameraStatus
	LastOnline     *time.Time
	Importance     int
	IsMuted        bool
	MailAlertCount int
	MailLastAlert  *time.Time
	ChatAlertCount int
	ChatLastAlert  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DowntimeEvent tracks one contiguous Offline interval for a camera.
// EndTime is nil while the interval is still open; at most one row per
// camera may have a nil EndTime at any time (spec.md §3 invariant 2).
type DowntimeEvent struct {
	ID        uuid.UUID
	CameraID  uuid.UUID
	StartTime time.Time
	EndTime   *time.Time
}

// Log is an append-only audit/trace row.
type Log struct {
	ID        uuid.UUID
	Timestamp time.Time
	Type      LogType
	State     string
	Details   string
}
