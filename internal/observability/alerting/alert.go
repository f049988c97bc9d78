package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	xerrors "TreasurySweep/internal/errors"
)

// Channel identifies a notification channel.
type Channel string

const (
	ChannelWebhook  Channel = "webhook"
	ChannelTelegram Channel = "telegram"
)

// Event describes one condition worth paging about: a per-wallet sweep
// failure or a run-level setup failure. Expected skips never raise events.
type Event struct {
	Code       xerrors.Code
	Message    string
	Severity   xerrors.Severity
	Network    string
	RealmID    string
	Wallet     string
	TxHash     string
	Metadata   map[string]string
	OccurredAt time.Time
}

// Notifier delivers an event to one channel.
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher broadcasts events to every configured notifier.
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher delivers each event to all registered notifiers and joins
// their failures.
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout builds a dispatcher over the given notifiers; nil entries are
// ignored.
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Notify broadcasts the event to all registered channels.
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Render formats an event as a human readable alert body shared by the
// text-oriented channels.
func Render(event Event) string {
	body := fmt.Sprintf("[%s] %s\ntime: %s\nnetwork: %s",
		event.Severity, event.Code,
		event.OccurredAt.Format(time.RFC3339), event.Network)
	if event.RealmID != "" {
		body += "\nrealm: " + event.RealmID
	}
	if event.Wallet != "" {
		body += "\nwallet: " + event.Wallet
	}
	if event.TxHash != "" {
		body += "\ntx: " + event.TxHash
	}
	if event.Message != "" {
		body += "\n" + event.Message
	}
	for k, v := range event.Metadata {
		body += fmt.Sprintf("\n- %s: %s", k, v)
	}
	return body
}
