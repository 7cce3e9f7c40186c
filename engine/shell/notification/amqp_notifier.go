package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const (
	breakerName               = "amqp-notifier"
	defaultBreakerMaxFailures = 5
	defaultBreakerOpenTimeout = 30 * time.Second
	defaultMessagesPerSecond  = 50
	defaultBurst              = 10
	logMsgBreakerStateChanged = "notification circuit breaker changed state"
	logMsgNotificationSent    = "reservation ready notification published"
	logAttrFrom               = "from"
	logAttrTo                 = "to"
	logAttrRoutingKey         = "routing_key"
)

// Errors of the AMQP notifier.
var (
	ErrEmptyExchange    = errors.New("exchange name must not be empty")
	ErrNilPublisher     = errors.New("publisher must not be nil")
	ErrPublishingFailed = errors.New("publishing notification failed")
	ErrThrottled        = errors.New("notification throttled")
)

// Publisher is the part of an AMQP channel the notifier uses. *amqp.Channel implements it.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes notices as JSON to a topic exchange.
type AMQPNotifier struct {
	publisher  Publisher
	exchange   string
	routingKey string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	clock      func() time.Time
	logger     circulation.Logger

	breakerMaxFailures uint32
	breakerOpenTimeout time.Duration
}

// Option defines a functional option for configuring the AMQPNotifier.
type Option func(*AMQPNotifier) error

// WithRoutingKey overrides the routing key. The default is EventTypeReservationReady.
func WithRoutingKey(routingKey string) Option {
	return func(n *AMQPNotifier) error {
		n.routingKey = routingKey
		return nil
	}
}

// WithRateLimit caps the publish rate. Notices over the limit wait until the context gives up.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(n *AMQPNotifier) error {
		n.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithCircuitBreaker opens the breaker after maxFailures consecutive failures and probes
// the broker again after openTimeout.
func WithCircuitBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(n *AMQPNotifier) error {
		n.breakerMaxFailures = maxFailures
		n.breakerOpenTimeout = openTimeout

		return nil
	}
}

// WithClock replaces time.Now for message timestamps.
func WithClock(clock func() time.Time) Option {
	return func(n *AMQPNotifier) error {
		n.clock = clock
		return nil
	}
}

// WithLogger sets the logger for publish and breaker events.
func WithLogger(logger circulation.Logger) Option {
	return func(n *AMQPNotifier) error {
		n.logger = logger
		return nil
	}
}

// NewAMQPNotifier creates an AMQPNotifier publishing to exchange.
func NewAMQPNotifier(publisher Publisher, exchange string, options ...Option) (*AMQPNotifier, error) {
	if publisher == nil {
		return nil, ErrNilPublisher
	}

	if exchange == "" {
		return nil, ErrEmptyExchange
	}

	n := &AMQPNotifier{
		publisher:          publisher,
		exchange:           exchange,
		routingKey:         EventTypeReservationReady,
		limiter:            rate.NewLimiter(defaultMessagesPerSecond, defaultBurst),
		clock:              time.Now,
		breakerMaxFailures: defaultBreakerMaxFailures,
		breakerOpenTimeout: defaultBreakerOpenTimeout,
	}

	for _, option := range options {
		if err := option(n); err != nil {
			return nil, err
		}
	}

	maxFailures := n.breakerMaxFailures
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    breakerName,
		Timeout: n.breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if n.logger != nil {
				n.logger.Warn(logMsgBreakerStateChanged, logAttrFrom, from.String(), logAttrTo, to.String())
			}
		},
	})

	return n, nil
}

// NotifyReservationReady publishes one notice. It fails fast with gobreaker.ErrOpenState
// while the breaker is open.
func (n *AMQPNotifier) NotifyReservationReady(ctx context.Context, notice shell.ReservationReady) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return errors.Join(ErrThrottled, err)
	}

	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(Compose(notice, n.clock()))
	if err != nil {
		return err
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		return nil, n.publisher.PublishWithContext(ctx, n.exchange, n.routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    notice.ReservationID.String(),
			Timestamp:    n.clock().UTC(),
			Type:         EventTypeReservationReady,
			Body:         body,
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}

		return fmt.Errorf("%w: %w", ErrPublishingFailed, err)
	}

	if n.logger != nil {
		n.logger.Debug(logMsgNotificationSent, logAttrReservationID, notice.ReservationID.String(), logAttrRoutingKey, n.routingKey)
	}

	return nil
}

// BreakerState returns the circuit breaker state.
func (n *AMQPNotifier) BreakerState() gobreaker.State {
	return n.breaker.State()
}

// Connection is a dialed broker connection with one channel and a declared topic exchange.
type Connection struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// Dial connects to the broker and declares exchange as a durable topic exchange.
func Dial(url, exchange string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, err
	}

	return &Connection{conn: conn, Channel: ch}, nil
}

// Close closes the channel and the connection.
func (c *Connection) Close() error {
	return errors.Join(c.Channel.Close(), c.conn.Close())
}
