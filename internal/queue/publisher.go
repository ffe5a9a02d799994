package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher delivers seat events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event SeatEvent) error
}

// NopPublisher discards every event.  It is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SeatEvent) error { return nil }

const (
	// DefaultDialTimeout bounds the TCP connect and AMQP handshake when the
	// caller's context carries no deadline.
	DefaultDialTimeout = 2 * time.Second
	// DefaultRedialDelay is how long Publish fails fast after a dial error.
	DefaultRedialDelay = 5 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher waits out the redial
// delay after a failed connection attempt.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// AMQPPublisher publishes seat events as persistent JSON messages on the
// default exchange, routed to SeatEventsQueue.  The connection is opened on
// first use and re-opened after the broker drops it.  Connecting never takes
// longer than the caller's context allows.
type AMQPPublisher struct {
	url         string
	dialTimeout time.Duration
	redialDelay time.Duration

	lock    chan struct{} // one-slot semaphore guarding the fields below
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

// NewAMQPPublisher returns a publisher for the broker at url.  No connection
// is made until the first Publish.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{
		url:         url,
		dialTimeout: DefaultDialTimeout,
		redialDelay: DefaultRedialDelay,
		lock:        make(chan struct{}, 1),
	}
}

// acquire takes the publisher lock or gives up when ctx is done.
func (p *AMQPPublisher) acquire(ctx context.Context) error {
	select {
	case p.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AMQPPublisher) release() { <-p.lock }

// dialTimeoutFor returns the dial budget left in ctx, capped at p.dialTimeout.
func (p *AMQPPublisher) dialTimeoutFor(ctx context.Context) time.Duration {
	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	return timeout
}

// channel returns an open channel, dialing and declaring the queue if needed.
// Callers must hold the lock.
func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	if time.Now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}
	timeout := p.dialTimeoutFor(ctx)
	if timeout <= 0 {
		return nil, ctx.Err()
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		p.retryAt = time.Now().Add(p.redialDelay)
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// idempotent; durable so events survive broker restarts
	if _, err := ch.QueueDeclare(SeatEventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends event to SeatEventsQueue.  A failed publish drops the
// cached connection so the next call re-dials.  Callers waiting behind a
// slow dial return when their context is done.
func (p *AMQPPublisher) Publish(ctx context.Context, event SeatEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.acquire(ctx); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	defer p.release()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", SeatEventsQueue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.lock <- struct{}{}
	defer p.release()
	p.reset()
	return nil
}
