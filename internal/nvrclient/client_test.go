package nvrclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/technosupport/nvrmonitor/internal/store"
)

func TestPoll_ParsesChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="nvr", nonce="abc", qop="auth"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<InputProxyChannelStatusList xmlns="http://www.hikvision.com/ver20/XMLSchema">
  <InputProxyChannelStatus>
    <id>1</id>
    <online>true</online>
    <sourceInputPortDescriptor><ipAddress>10.0.0.50</ipAddress></sourceInputPortDescriptor>
  </InputProxyChannelStatus>
  <InputProxyChannelStatus>
    <id>2</id>
    <online>false</online>
  </InputProxyChannelStatus>
</InputProxyChannelStatusList>`))
	}))
	defer srv.Close()

	c := New()
	nvr := store.NVR{IP: srv.Listener.Addr().String(), User: "admin", Password: "pw", Enabled: true}
	result := c.Poll(context.Background(), nvr)

	require.True(t, result.OK)
	require.Len(t, result.Channels, 2)
	require.Equal(t, ChannelResult{ChannelID: "1", CameraIP: "10.0.0.50", Online: true}, result.Channels[0])
	require.Equal(t, ChannelResult{ChannelID: "2", CameraIP: "0.0.0.0", Online: false}, result.Channels[1])
}

func TestPoll_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New()
	nvr := store.NVR{IP: srv.Listener.Addr().String(), User: "admin", Password: "pw"}
	result := c.Poll(context.Background(), nvr)

	require.False(t, result.OK)
	require.Contains(t, result.Reason, "500")
}

func TestPoll_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml"))
	}))
	defer srv.Close()

	c := New()
	nvr := store.NVR{IP: srv.Listener.Addr().String(), User: "admin", Password: "pw"}
	result := c.Poll(context.Background(), nvr)

	require.False(t, result.OK)
	require.Contains(t, result.Reason, "decode xml")
}
