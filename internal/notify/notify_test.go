package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/technosupport/nvrmonitor/internal/settings"
)

func TestDeliverMail_NoOpWhenDisabled(t *testing.T) {
	d := New(nil)
	cfg := settings.View{Mail: settings.SinkConfig{Enabled: false}}

	sent, err := d.DeliverMail(context.Background(), cfg, "Alert", []string{"cam offline"}, true)
	require.NoError(t, err)
	require.False(t, sent)
}

func TestDeliverMail_NoOpWhenEmpty(t *testing.T) {
	d := New(nil)
	cfg := settings.View{Mail: settings.SinkConfig{Enabled: true}}

	sent, err := d.DeliverMail(context.Background(), cfg, "Alert", nil, true)
	require.NoError(t, err)
	require.False(t, sent)
}

func TestDeliverChat_NoOpWhenDisabled(t *testing.T) {
	d := New(nil)
	cfg := settings.View{Chat: settings.SinkConfig{Enabled: false}}

	sent, err := d.DeliverChat(context.Background(), cfg, "Summary", []string{"cam: 5m"}, true)
	require.NoError(t, err)
	require.False(t, sent)
}

func TestDeliverChat_MissingTokenOrChatIDsErrors(t *testing.T) {
	d := New(nil)
	cfg := settings.View{
		Chat:    settings.SinkConfig{Enabled: true},
		ChatBot: settings.ChatBot{Token: "", ChatIDs: nil},
	}

	sent, err := d.DeliverChat(context.Background(), cfg, "Summary", []string{"cam: 5m"}, true)
	require.Error(t, err)
	require.False(t, sent)
}

func TestDeliverChat_TestPathBypassesGate(t *testing.T) {
	d := New(nil)
	cfg := settings.View{
		Chat:    settings.SinkConfig{Enabled: false},
		ChatBot: settings.ChatBot{Token: "bad-token", ChatIDs: []string{"not-a-number"}},
	}

	// gate=false bypasses the enable flag (spec.md §9 "ungate test"), so the
	// call goes past the disabled no-op and the failing bot client setup
	// (bad token) surfaces as an error rather than a panic.
	_, err := d.DeliverChat(context.Background(), cfg, "Test", []string{"hello"}, false)
	require.Error(t, err)
}
