package shell

import (
	"context"
	"log/slog"
	"time"

	"github.com/llehouerou/rpcbridge/internal/bridge"
	"github.com/llehouerou/rpcbridge/internal/errmsg"
)

// RunHeadless writes bridge events to log and drives the periodic reconnect
// until ctx is done or the event stream closes.
func RunHeadless(ctx context.Context, b Bridge, opts Options, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}

	var tick <-chan time.Time
	if opts.reconnectInterval() > 0 {
		ticker := time.NewTicker(opts.reconnectInterval())
		defer ticker.Stop()
		tick = ticker.C
	}

	events := b.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			b.ReconnectPresence()
		case e, ok := <-events:
			if !ok {
				return
			}
			logEvent(ctx, log, e, opts)
		}
	}
}

func logEvent(ctx context.Context, log *slog.Logger, e bridge.Event, opts Options) {
	switch e := e.(type) {
	case bridge.LogEvent:
		log.Log(ctx, slogLevel(e.Level), e.Message, "category", e.Level.String())
	case bridge.TrackEvent:
		if e.Track == nil || opts.Notifier == nil {
			return
		}
		if err := opts.Notifier.TrackChanged(e.Track); err != nil {
			log.Warn(errmsg.Format(errmsg.OpNotify, err))
		}
	case bridge.StatusEvent:
		log.Debug("status", "text", e.Text)
	case bridge.PresenceEvent:
		log.Debug("presence", "host", e.Host, "state", e.Status.State.String(), "retries", e.Status.RetryCount)
	}
}

func slogLevel(l bridge.Level) slog.Level {
	switch l {
	case bridge.LevelError:
		return slog.LevelError
	case bridge.LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
