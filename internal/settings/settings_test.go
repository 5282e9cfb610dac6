package settings

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/nvrmonitor/internal/store"
)

func TestLoad_FallsBackToDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT key, value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("MAIL_ENABLED", "true").
			AddRow("MAIL_RECIPIENTS", "ops@example.com, oncall@example.com"))

	s := store.New(db)
	v, err := Load(context.Background(), s)
	require.NoError(t, err)

	require.True(t, v.Mail.Enabled)
	require.Equal(t, []string{"ops@example.com", "oncall@example.com"}, v.MailSMTP.Recipients)
	require.Equal(t, 5, v.Mail.MuteAfter)
	require.False(t, v.Chat.Enabled)
	require.Equal(t, 10, v.Chat.MuteAfter)
}
