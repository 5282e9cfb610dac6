// Package settings parses the store's raw string->string Settings table
// into a typed view once per tick (spec.md §9: "treat it as a typed
// configuration view parsed per tick, with documented defaults on parse
// failure").
package settings

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/technosupport/nvrmonitor/internal/store"
)

// Defaults is the seed catalogue written on first start for any missing
// key (spec.md §6).
var Defaults = map[string]string{
	"MAIL_ENABLED":                       "false",
	"MAIL_SERVER":                        "",
	"MAIL_PORT":                          "587",
	"MAIL_USER":                          "",
	"MAIL_PASS":                          "",
	"MAIL_RECIPIENTS":                    "",
	"MAIL_FIRST_ALERT_DELAY_MINUTES":     "5",
	"MAIL_LOW_IMPORTANCE_DELAY_MINUTES":  "15",
	"MAIL_ALERT_FREQUENCY_MINUTES":       "15",
	"MAIL_MUTE_AFTER_N_ALERTS":           "5",
	"TELEGRAM_ENABLED":                   "false",
	"TELEGRAM_BOT_TOKEN":                 "",
	"TELEGRAM_CHAT_IDS":                  "",
	"TELEGRAM_PROXY":                     "",
	"TELEGRAM_FIRST_ALERT_DELAY_MINUTES": "1",
	"TELEGRAM_ALERT_FREQUENCY_MINUTES":   "5",
	"TELEGRAM_MUTE_AFTER_N_ALERTS":       "10",
}

// SinkConfig is the per-sink tuple the alert scheduler gates on.
type SinkConfig struct {
	Enabled    bool
	FirstDelay time.Duration
	Frequency  time.Duration
	MuteAfter  int
}

// View is the typed snapshot consumed by one tick.
type View struct {
	Mail     SinkConfig
	MailSMTP MailSMTP
	Chat     SinkConfig
	ChatBot  ChatBot
}

type MailSMTP struct {
	Server     string
	Port       int
	User       string
	Pass       string
	Recipients []string
}

type ChatBot struct {
	Token   string
	ChatIDs []string
	Proxy   string
}

// Load reads every Setting row and builds a View. A missing or malformed
// value falls back to Defaults rather than failing the tick.
func Load(ctx context.Context, s *store.Store) (View, error) {
	raw, err := s.ListSettings(ctx)
	if err != nil {
		return View{}, err
	}
	get := func(key string) string {
		v, ok := raw[key]
		def := Defaults[key]
		if !ok || v == "" {
			return def
		}
		// A value that does not parse as the same kind as its default
		// (integer or boolean) is treated as malformed.
		if _, err := strconv.Atoi(def); err == nil {
			if _, err := strconv.Atoi(v); err != nil {
				return def
			}
		} else if _, err := strconv.ParseBool(def); err == nil {
			if _, err := strconv.ParseBool(v); err != nil {
				return def
			}
		}
		return v
	}

	return View{
		Mail: SinkConfig{
			Enabled:    parseBool(get("MAIL_ENABLED")),
			FirstDelay: parseMinutes(get("MAIL_FIRST_ALERT_DELAY_MINUTES")),
			Frequency:  parseMinutes(get("MAIL_ALERT_FREQUENCY_MINUTES")),
			MuteAfter:  parseInt(get("MAIL_MUTE_AFTER_N_ALERTS")),
		},
		MailSMTP: MailSMTP{
			Server:     get("MAIL_SERVER"),
			Port:       parseInt(get("MAIL_PORT")),
			User:       get("MAIL_USER"),
			Pass:       get("MAIL_PASS"),
			Recipients: splitCSV(get("MAIL_RECIPIENTS")),
		},
		Chat: SinkConfig{
			Enabled:    parseBool(get("TELEGRAM_ENABLED")),
			FirstDelay: parseMinutes(get("TELEGRAM_FIRST_ALERT_DELAY_MINUTES")),
			Frequency:  parseMinutes(get("TELEGRAM_ALERT_FREQUENCY_MINUTES")),
			MuteAfter:  parseInt(get("TELEGRAM_MUTE_AFTER_N_ALERTS")),
		},
		ChatBot: ChatBot{
			Token:   get("TELEGRAM_BOT_TOKEN"),
			ChatIDs: splitCSV(get("TELEGRAM_CHAT_IDS")),
			Proxy:   get("TELEGRAM_PROXY"),
		},
	}, nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func parseInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func parseMinutes(v string) time.Duration {
	return time.Duration(parseInt(v)) * time.Minute
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
