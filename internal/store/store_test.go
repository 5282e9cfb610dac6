package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestListEnabledNVRs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"ip", "user", "password", "enabled"}).
		AddRow("10.0.0.1", "admin", "secret", 1)
	mock.ExpectQuery("SELECT ip, user, password, enabled FROM nvrs WHERE enabled = 1").WillReturnRows(rows)

	s := New(db)
	nvrs, err := s.ListEnabledNVRs(context.Background())
	require.NoError(t, err)
	require.Len(t, nvrs, 1)
	require.Equal(t, "10.0.0.1", nvrs[0].IP)
	require.True(t, nvrs[0].Enabled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCameraByChannel_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, nvr_ip, channel_id").WillReturnRows(sqlmock.NewRows(nil))

	s := New(db)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	_, err = tx.GetCameraByChannel(context.Background(), "10.0.0.1", "1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertCamera(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cameras").WillReturnResult(sqlmock.NewResult(1, 1))

	s := New(db)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	c := &Camera{
		NVRIP:     "10.0.0.1",
		ChannelID: "1",
		Name:      "Front Door",
		IP:        "10.0.0.50",
		Status:    StatusOnline,
	}
	require.NoError(t, tx.InsertCamera(context.Background(), c))
	require.NotEqual(t, uuid.Nil, c.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseOpenDowntimeEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE downtime_events SET end_time").WillReturnResult(sqlmock.NewResult(0, 1))

	s := New(db)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, tx.CloseOpenDowntimeEvent(context.Background(), uuid.New(), time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDowntimeOverlap_SumsMultipleEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	closedStart, closedEnd := base, base.Add(20*time.Minute)
	openStart := base.Add(40 * time.Minute)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"start_time", "end_time"}).
		AddRow(closedStart, closedEnd).
		AddRow(openStart, nil)
	mock.ExpectQuery("SELECT start_time, end_time FROM downtime_events").WillReturnRows(rows)

	s := New(db)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	// Query [10:00, 11:00): closed event contributes its full 20m, open
	// event contributes from 10:40 to the window end at 11:00 (20m).
	overlap, err := tx.DowntimeOverlap(context.Background(), uuid.New(), base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 40*time.Minute, overlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDowntimeOverlap_NarrowerWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	closedStart, closedEnd := base, base.Add(20*time.Minute)
	openStart := base.Add(40 * time.Minute)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"start_time", "end_time"}).
		AddRow(closedStart, closedEnd).
		AddRow(openStart, nil)
	mock.ExpectQuery("SELECT start_time, end_time FROM downtime_events").WillReturnRows(rows)

	s := New(db)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	// Query [10:15, 10:50): closed event contributes 10:15-10:20 (5m), open
	// event contributes 10:40-10:50 (10m); spec.md §8 scenario 6.
	overlap, err := tx.DowntimeOverlap(context.Background(), uuid.New(), base.Add(15*time.Minute), base.Add(50*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, overlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDefaultsSkipsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM settings WHERE key = ?").
		WithArgs("MAIL_ENABLED").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("true"))

	s := New(db)
	err = s.SeedDefaults(context.Background(), map[string]string{"MAIL_ENABLED": "false"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
