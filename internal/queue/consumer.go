package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditLogFile is the file name the consumer appends to inside its directory.
const AuditLogFile = "seat-events.log"

const maxBackoff = 30 * time.Second

// Consumer reads seat events from SeatEventsQueue and appends one
// human-readable line per event to Dir/seat-events.log.
type Consumer struct {
	URL string
	Dir string
	Log *zap.Logger

	mu sync.Mutex // serialises writes to the audit file
}

// NewConsumer returns a consumer for the broker at url writing into dir.
func NewConsumer(url, dir string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{URL: url, Dir: dir, Log: log}
}

// Run dials the broker and consumes until ctx is cancelled.  Dial failures
// are retried with exponential backoff capped at 30s; a dropped connection
// is re-dialed.  Run returns ctx.Err() once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("seat-events consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("seat-events consumer: consume loop ended, reconnecting", zap.Error(err))
		if err := sleep(ctx, 2*time.Second); err != nil {
			return err
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("seat-events consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(SeatEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(SeatEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.HandleMessage(d.Body); err != nil {
				c.Log.Error("seat-events consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue poison messages
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one SeatEvent and appends it to the audit log.
func (c *Consumer) HandleMessage(body []byte) error {
	var ev SeatEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.SeatNumber <= 0 {
		return fmt.Errorf("incomplete seat event %q", ev.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.Dir, AuditLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single newline-terminated audit line.
func FormatLine(ev SeatEvent) string {
	action := ev.Type
	switch ev.Type {
	case EventSeatReserved:
		action = "Seat reserved"
	case EventSeatCancelled:
		action = "Reservation cancelled"
	}
	return fmt.Sprintf("[%s] %s | event_id=%s | seat=%d | holder=%q\n",
		ev.OccurredAt, action, ev.ID, ev.SeatNumber, ev.Holder)
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
