package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jandubois/probecheck/internal/config"
)

// Dispatcher fans a message out to every configured channel.
type Dispatcher struct {
	channels []Channel
}

// NewDispatcher creates a dispatcher. Nil channels are ignored.
func NewDispatcher(channels ...Channel) *Dispatcher {
	d := &Dispatcher{}
	for _, ch := range channels {
		if ch != nil {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// FromConfig builds a dispatcher with a channel for each configured
// destination. With nothing configured it has no channels.
func FromConfig(cfg config.NotifyConfig) *Dispatcher {
	var channels []Channel
	if cfg.WebhookURL != "" {
		channels = append(channels, NewWebhookChannel(cfg.WebhookURL, cfg.Token))
	}
	if cfg.NtfyTopic != "" {
		channels = append(channels, NewNtfyChannel(NtfyConfig{
			ServerURL: cfg.NtfyServer,
			Topic:     cfg.NtfyTopic,
			Token:     cfg.Token,
		}))
	}
	return NewDispatcher(channels...)
}

// Len returns the number of channels.
func (d *Dispatcher) Len() int {
	return len(d.channels)
}

// Send delivers msg to all channels in parallel and waits for them. Channel
// failures are logged; the number of failed deliveries is returned.
func (d *Dispatcher) Send(ctx context.Context, msg *Message) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("notification send failed",
					"channel_type", ch.Type(),
					"probe", msg.Probe,
					"error", err,
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			slog.Debug("notification sent",
				"channel_type", ch.Type(),
				"probe", msg.Probe,
				"pass", msg.Pass,
			)
		}(ch)
	}

	wg.Wait()
	return failed
}

// NotifyVerdictChange formats and sends a verdict change.
func (d *Dispatcher) NotifyVerdictChange(ctx context.Context, change *VerdictChange) int {
	if len(d.channels) == 0 {
		return 0
	}
	return d.Send(ctx, FormatVerdictChange(change))
}
