// Package notify implements the notification dispatcher (C6): two
// independent sinks (email, chat) with an identical deliver(header, lines)
// shape. Structurally grounded on ausocean-cloud's notify.Notifier
// (mutex-guarded lazy init, a Send that reports sent/not-sent rather than
// forcing the caller to distinguish "disabled" from "error") but swapped
// from its single MailJet-backed channel onto the two ecosystem transports
// the retrieved corpus shows for this domain: gopkg.in/mail.v2 for SMTP
// and go-telegram-bot-api/v5 for Telegram.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gopkg.in/mail.v2"

	"github.com/technosupport/nvrmonitor/internal/settings"
	"github.com/technosupport/nvrmonitor/internal/store"
)

// Dispatcher delivers batches produced by the alert scheduler and records
// the outcome as a Log row (spec.md §4.5). A nil *store.Store is never
// passed in production; it exists only to let tests construct a
// Dispatcher without a DB when only the sink's return value matters.
type Dispatcher struct {
	db *store.Store
}

func New(db *store.Store) *Dispatcher {
	return &Dispatcher{db: db}
}

// DeliverMail sends header+lines over SMTP with STARTTLS when enabled and
// lines is non-empty (spec.md §4.5). gate controls whether the enable flag
// applies: the batch path passes true, the admin test-email operation
// (outside this repo's scope, but honoured here for a future caller) would
// pass false to bypass it, preserving spec.md §9's "ungate test" note.
func (d *Dispatcher) DeliverMail(ctx context.Context, cfg settings.View, header string, lines []string, gate bool) (bool, error) {
	if gate && !cfg.Mail.Enabled {
		return false, nil
	}
	if len(lines) == 0 {
		return false, nil
	}

	m := mail.NewMessage()
	m.SetHeader("From", cfg.MailSMTP.User)
	m.SetHeader("To", cfg.MailSMTP.Recipients...)
	m.SetHeader("Subject", header)
	m.SetBody("text/html", htmlBody(header, lines))

	dialer := mail.NewDialer(cfg.MailSMTP.Server, cfg.MailSMTP.Port, cfg.MailSMTP.User, cfg.MailSMTP.Pass)
	dialer.StartTLSPolicy = mail.MandatoryStartTLS

	err := dialer.DialAndSend(m)
	d.logDelivery(ctx, store.LogMail, len(lines), err)
	if err != nil {
		return false, fmt.Errorf("notify: smtp send: %w", err)
	}
	return true, nil
}

func htmlBody(header string, lines []string) string {
	var b strings.Builder
	b.WriteString("<h3>System Alert</h3><ul>")
	for _, l := range lines {
		b.WriteString("<li>")
		b.WriteString(l)
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	_ = header // subject carries the header; body matches spec.md §4.5 verbatim.
	return b.String()
}

// DeliverChat posts header+lines to every configured Telegram chat id
// (spec.md §4.5). On a per-recipient failure it keeps going (other chat
// ids may still succeed) and returns the first error encountered.
func (d *Dispatcher) DeliverChat(ctx context.Context, cfg settings.View, header string, lines []string, gate bool) (bool, error) {
	if gate && !cfg.Chat.Enabled {
		return false, nil
	}
	if len(lines) == 0 {
		return false, nil
	}
	if cfg.ChatBot.Token == "" || len(cfg.ChatBot.ChatIDs) == 0 {
		err := fmt.Errorf("notify: telegram token or chat ids not configured")
		d.logDelivery(ctx, store.LogTelegram, len(lines), err)
		return false, err
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	if cfg.ChatBot.Proxy != "" {
		proxyURL, err := url.Parse(cfg.ChatBot.Proxy)
		if err == nil {
			httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.ChatBot.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		d.logDelivery(ctx, store.LogTelegram, len(lines), err)
		return false, fmt.Errorf("notify: telegram client: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", header, strings.Join(lines, "\n"))

	var firstErr error
	for _, raw := range cfg.ChatBot.ChatIDs {
		chatID, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("notify: invalid chat id %q: %w", raw, convErr)
			}
			continue
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, sendErr := bot.Send(msg); sendErr != nil && firstErr == nil {
			firstErr = sendErr
		}
	}

	d.logDelivery(ctx, store.LogTelegram, len(lines), firstErr)
	if firstErr != nil {
		return false, firstErr
	}
	return true, nil
}

func (d *Dispatcher) logDelivery(ctx context.Context, logType store.LogType, count int, err error) {
	if d.db == nil {
		return
	}
	l := &store.Log{Timestamp: time.Now(), Type: logType}
	if err != nil {
		l.State = "Failed"
		l.Details = err.Error()
	} else {
		l.State = "Sent"
		l.Details = fmt.Sprintf("%d line(s)", count)
	}
	// Delivery logging must not abort the tick if the DB write itself
	// fails; the dispatcher already returned the transport outcome to
	// the caller, so a logging failure here is swallowed the way the
	// donor's audit.Service treats a failed write as a warning, not a
	// fatal error.
	_ = d.db.AppendLog(ctx, l)
}
