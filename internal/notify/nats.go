package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
)

// NATSDispatcher publishes alert events as JSON to pulse.alerts.<severity>
// so downstream consumers can subscribe by severity wildcard.
type NATSDispatcher struct {
	nc  *nats.Conn
	log *zap.Logger
}

// NewNATSDispatcher connects to the given NATS URL. Reconnects are handled
// by the client; a dispatch while disconnected fails and is logged by the
// notifier.
func NewNATSDispatcher(url string, log *zap.Logger) (*NATSDispatcher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pulsed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSDispatcher{nc: nc, log: log}, nil
}

func (d *NATSDispatcher) Name() string { return "nats" }

func (d *NATSDispatcher) Dispatch(_ context.Context, ev model.AlertEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	subject := fmt.Sprintf("pulse.alerts.%s", ev.Alert.Severity)
	if err := d.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (d *NATSDispatcher) Close() {
	if err := d.nc.Drain(); err != nil {
		d.nc.Close()
	}
}
