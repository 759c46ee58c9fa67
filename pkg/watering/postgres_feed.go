package watering

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

const (
	listenerMinReconnect = time.Second
	listenerMaxReconnect = 30 * time.Second
	listenerPingInterval = 90 * time.Second
)

// PostgresNotifier bridges the database's change notifications into the
// in-process broker. Watering inserts NOTIFY a channel from inside the
// inserting statement; the notifier LISTENs on that channel and wakes the
// broker for the affected couple, so feeds react to writes made by any
// replica, not just this process.
type PostgresNotifier struct {
	listener *pq.Listener
	broker   *Broker
	channel  string
	logger   *slog.Logger
}

// NewPostgresNotifier creates a notifier listening on the given channel.
// The underlying listener reconnects on its own; connection state changes
// are logged.
func NewPostgresNotifier(dsn, channel string, broker *Broker, logger *slog.Logger) *PostgresNotifier {
	listener := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("postgres listener event", slog.Int("event", int(ev)), slog.String("error", err.Error()))
		}
	})
	return &PostgresNotifier{
		listener: listener,
		broker:   broker,
		channel:  channel,
		logger:   logger,
	}
}

// Run subscribes to the channel and pumps notifications into the broker
// until ctx is cancelled. The initial subscribe is retried with
// exponential backoff; after that the listener's own reconnect logic takes
// over, helped by a periodic ping that forces a dead connection to notice.
func (n *PostgresNotifier) Run(ctx context.Context) error {
	defer n.listener.Close()

	backoff := retry.WithMaxDuration(5*time.Minute, retry.NewExponential(listenerMinReconnect))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := n.listener.Listen(n.channel); err != nil {
			n.logger.Warn("listen failed, retrying", slog.String("channel", n.channel), slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.logger.Info("listening for watering notifications", slog.String("channel", n.channel))

	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case notification := <-n.listener.Notify:
			// A nil notification signals a reconnect; changes may have
			// been missed, so wake nobody and let the ping confirm
			// liveness. Feeds re-query on their next signal anyway.
			if notification == nil {
				continue
			}
			n.dispatch(notification.Extra)
		case <-ping.C:
			if err := n.listener.Ping(); err != nil {
				n.logger.Warn("listener ping failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (n *PostgresNotifier) dispatch(payload string) {
	var change struct {
		ID       string `json:"id"`
		CoupleID string `json:"couple_id"`
	}
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		n.logger.Warn("bad notification payload", slog.String("error", err.Error()))
		return
	}
	n.broker.Publish(change.CoupleID)
}
