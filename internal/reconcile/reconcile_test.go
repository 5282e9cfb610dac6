package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/nvrmonitor/internal/names"
	"github.com/technosupport/nvrmonitor/internal/nvrclient"
	"github.com/technosupport/nvrmonitor/internal/store"
)

func TestReconcile_NewOfflineCameraOpensDowntimeEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, nvr_ip, channel_id").WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectExec("INSERT INTO cameras").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO downtime_events").WillReturnResult(sqlmock.NewResult(1, 1))

	s := store.New(db)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	now := time.Now()
	results, err := Reconcile(context.Background(), s, tx, "10.0.0.1",
		[]nvrclient.ChannelResult{{ChannelID: "7", CameraIP: "10.0.0.50", Online: false}},
		names.Map{}, now)

	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Ch 7", results[0].Camera.Name)
	require.Equal(t, store.StatusOffline, results[0].Camera.Status)
	require.Nil(t, results[0].Camera.LastOnline)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_TransitionOpensDowntimeAndLogs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	camID := "11111111-1111-1111-1111-111111111111"
	now := time.Now()

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{
		"id", "nvr_ip", "channel_id", "name", "ip", "status", "last_online", "importance", "is_muted",
		"mail_alert_count", "mail_last_alert", "chat_alert_count", "chat_last_alert", "created_at", "updated_at",
	}).AddRow(camID, "10.0.0.1", "7", "Front Door", "10.0.0.50", "Online", now, 2, 0, 0, nil, 0, nil, now, now)
	mock.ExpectQuery("SELECT id, nvr_ip, channel_id").WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO downtime_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE cameras").WillReturnResult(sqlmock.NewResult(0, 1))

	s := store.New(db)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	results, err := Reconcile(context.Background(), s, tx, "10.0.0.1",
		[]nvrclient.ChannelResult{{ChannelID: "7", CameraIP: "10.0.0.50", Online: false}},
		names.Map{}, now)

	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Transition)
	require.Equal(t, store.StatusOffline, results[0].Camera.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_CSVRenameWithoutTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	camID := "11111111-1111-1111-1111-111111111111"
	now := time.Now()

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{
		"id", "nvr_ip", "channel_id", "name", "ip", "status", "last_online", "importance", "is_muted",
		"mail_alert_count", "mail_last_alert", "chat_alert_count", "chat_last_alert", "created_at", "updated_at",
	}).AddRow(camID, "10.0.0.1", "7", "Ch 7", "10.0.0.50", "Online", now, 2, 0, 0, nil, 0, nil, now, now)
	mock.ExpectQuery("SELECT id, nvr_ip, channel_id").WillReturnRows(rows)
	mock.ExpectExec("UPDATE cameras").WillReturnResult(sqlmock.NewResult(0, 1))

	s := store.New(db)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	nameMap := names.Map{"10.0.0.50": "Lobby"}
	results, err := Reconcile(context.Background(), s, tx, "10.0.0.1",
		[]nvrclient.ChannelResult{{ChannelID: "7", CameraIP: "10.0.0.50", Online: true}},
		nameMap, now)

	require.NoError(t, err)
	require.False(t, results[0].Transition)
	require.Equal(t, "Lobby", results[0].Camera.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
