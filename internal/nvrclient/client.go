// Package nvrclient polls a single NVR's channel-status endpoint, grounded
// on the donor's hikvision adapter (internal/nvr/adapters/hikvision) but
// generalized from Basic to real HTTP Digest auth via icholy/digest, which
// the donor adapter explicitly stubbed out.
package nvrclient

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/icholy/digest"

	"github.com/technosupport/nvrmonitor/internal/store"
)

const (
	pollTimeout = 6 * time.Second
	statusPath  = "/ISAPI/ContentMgmt/InputProxy/channels/status"
)

// ChannelResult is one reported channel from a single NVR poll.
type ChannelResult struct {
	ChannelID string
	CameraIP  string
	Online    bool
}

// PollResult is the outcome of polling one NVR. OK distinguishes a
// successful poll (possibly with zero channels) from a failure; Reason
// carries a short, loggable explanation on failure. Poll itself never
// returns a Go error — every failure mode the contract describes (network,
// timeout, non-200, malformed body) collapses into Reason, mirroring the
// donor's status+reason tuple in internal/health/prober.go.
type PollResult struct {
	OK       bool
	Reason   string
	Channels []ChannelResult
}

type channelStatusList struct {
	XMLName  xml.Name        `xml:"http://www.hikvision.com/ver20/XMLSchema InputProxyChannelStatusList"`
	Channels []channelStatus `xml:"InputProxyChannelStatus"`
}

type channelStatus struct {
	ID     string `xml:"id"`
	Online string `xml:"online"`
	Source struct {
		IPAddress string `xml:"ipAddress"`
	} `xml:"sourceInputPortDescriptor"`
}

// Client polls one NVR per call. It is safe for concurrent use: each Poll
// builds its own digest-authenticated http.Client so concurrent polls never
// share a nonce cache across different NVR credentials.
type Client struct{}

func New() *Client { return &Client{} }

// Poll issues one digest-authenticated GET against nvr and parses the
// channel-status document (spec.md §4.2). It does not honour
// $HTTP_PROXY/$HTTPS_PROXY: NVRs live on the local network and routing
// polls through an ambient proxy would be wrong, so Transport.Proxy is
// explicitly nil rather than http.ProxyFromEnvironment.
func (c *Client) Poll(ctx context.Context, nvr store.NVR) PollResult {
	httpClient := &http.Client{
		Timeout: pollTimeout,
		Transport: &digest.Transport{
			Username: nvr.User,
			Password: nvr.Password,
			Transport: &http.Transport{
				Proxy: nil,
			},
		},
	}

	url := fmt.Sprintf("http://%s%s", nvr.IP, statusPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PollResult{OK: false, Reason: fmt.Sprintf("build request: %v", err)}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return PollResult{OK: false, Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PollResult{OK: false, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return PollResult{OK: false, Reason: fmt.Sprintf("read body: %v", err)}
	}

	var doc channelStatusList
	if err := xml.Unmarshal(body, &doc); err != nil {
		return PollResult{OK: false, Reason: fmt.Sprintf("decode xml: %v", err)}
	}

	out := make([]ChannelResult, 0, len(doc.Channels))
	for _, ch := range doc.Channels {
		ip := ch.Source.IPAddress
		if ip == "" {
			ip = "0.0.0.0"
		}
		out = append(out, ChannelResult{
			ChannelID: ch.ID,
			CameraIP:  ip,
			Online:    ch.Online == "true",
		})
	}

	return PollResult{OK: true, Channels: out}
}
