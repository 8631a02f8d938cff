package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"lumina/login-gate/internal/domain"
)

// ConnectTimeout bounds the initial NATS connection.
const ConnectTimeout = 10 * time.Second

// msgConn is the part of *nats.Conn the publisher uses.
type msgConn interface {
	PublishMsg(m *nats.Msg) error
	IsConnected() bool
	Close()
}

// NATS publishes decision records as JSON on one subject.
type NATS struct {
	conn    msgConn
	subject string
}

// NewNATS connects to natsURL. The client reconnects on its own after the
// initial connection succeeds.
func NewNATS(natsURL, subject string, logger *slog.Logger) (*NATS, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("login-gate"),
		nats.Timeout(ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", natsURL, err)
	}
	logger.Info("nats publisher initialized", "url", natsURL, "subject", subject)
	return newNATS(conn, subject), nil
}

func newNATS(conn msgConn, subject string) *NATS {
	return &NATS{conn: conn, subject: subject}
}

// Name implements Sink.
func (n *NATS) Name() string { return "nats" }

// Publish sends rec with identifying headers.
func (n *NATS) Publish(ctx context.Context, rec *domain.DecisionRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats: not connected")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("nats: marshal decision: %w", err)
	}

	msg := nats.NewMsg(n.subject)
	msg.Data = data
	msg.Header.Set("x-decision-id", rec.ID)
	msg.Header.Set("x-account-id", rec.AccountID)
	msg.Header.Set("x-outcome", string(rec.Outcome))
	msg.Header.Set("x-timestamp", strconv.FormatInt(rec.DecidedAt.UnixMilli(), 10))

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats: publish decision %s: %w", rec.ID, err)
	}
	return nil
}

// Close closes the connection.
func (n *NATS) Close() {
	n.conn.Close()
}
