package event

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Message headers set on every published event
const (
	HeaderEventType = "Event-Type"
	HeaderAccountID = "Account-Id"
)

// Connect dials the configured NATS server
func Connect(cfg config.NATSConfig, name string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NATSPublisher mirrors domain events onto a NATS subject as JSON
type NATSPublisher struct {
	conn       *nats.Conn
	subject    string
	serializer *Serializer
	logger     *zap.Logger
}

// NewNATSPublisher creates a publisher for subject
func NewNATSPublisher(conn *nats.Conn, subject string, serializer *Serializer, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:       conn,
		subject:    subject,
		serializer: serializer,
		logger:     logger,
	}
}

// Publish implements shared.EventPublisher. The message ID header lets a
// JetStream stream on the subject drop duplicates.
func (p *NATSPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	for _, ev := range events {
		data, err := p.serializer.Encode(ev)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", ev.EventType(), err)
		}

		msg := nats.NewMsg(p.subject)
		msg.Data = data
		msg.Header.Set(HeaderEventType, ev.EventType())
		msg.Header.Set(HeaderAccountID, ev.AccountID().String())
		msg.Header.Set(nats.MsgIdHdr, ev.EventID().String())

		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("failed to publish %s: %w", ev.EventType(), err)
		}
		p.logger.Debug("Event published to NATS",
			zap.String("subject", p.subject),
			zap.String("event_type", ev.EventType()),
			zap.String("event_id", ev.EventID().String()))
	}
	return nil
}

// Flush waits until the server has processed all published messages
func (p *NATSPublisher) Flush(ctx context.Context) error {
	return p.conn.FlushWithContext(ctx)
}

var _ shared.EventPublisher = (*NATSPublisher)(nil)
