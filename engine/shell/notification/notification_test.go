package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/engine/shell"
	"github.com/AntonStoeckl/library-circulation/engine/shell/notification"
	"github.com/AntonStoeckl/library-circulation/testutil/spies"
)

var fakeClock = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type publisherSpy struct {
	mu        sync.Mutex
	err       error
	published []publishedMessage
	calls     int
}

func (p *publisherSpy) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return p.err
	}

	p.published = append(p.published, publishedMessage{exchange: exchange, key: key, msg: msg})

	return nil
}

func givenNotice() shell.ReservationReady {
	return shell.ReservationReady{
		ReservationID: uuid.New(),
		MemberID:      uuid.New(),
		MemberEmail:   "ada@example.com",
		MemberName:    "Ada",
		BookID:        uuid.New(),
		BookTitle:     "Dune",
		CopyID:        uuid.New(),
		PickupBy:      fakeClock.Add(72 * time.Hour),
	}
}

func Test_Compose_BuildsReadableText(t *testing.T) {
	// arrange
	notice := givenNotice()

	// act
	message := notification.Compose(notice, fakeClock)

	// assert
	assert.Equal(t, notification.EventTypeReservationReady, message.EventType)
	assert.Equal(t, notice.ReservationID, message.ReservationID)
	assert.Equal(t, "ada@example.com", message.Email)
	assert.Contains(t, message.Text, "your reservation for 'Dune' is ready for pickup")
	assert.Contains(t, message.Text, "3 days from now")
	assert.Equal(t, fakeClock, message.SentAt)
}

func Test_Compose_RendersDeadlineRelativeToNow(t *testing.T) {
	// arrange
	notice := givenNotice()

	// act
	upcoming := notification.Compose(notice, fakeClock)
	lapsed := notification.Compose(notice, fakeClock.Add(96*time.Hour))

	// assert
	assert.Contains(t, upcoming.Text, "Please collect it by Tue, 04 Mar 2025 10:00 UTC (3 days from now).")
	assert.NotContains(t, upcoming.Text, "ago")
	assert.Contains(t, lapsed.Text, "(1 day ago).")
}

func Test_NewAMQPNotifier_RejectsInvalidArguments(t *testing.T) {
	_, err := notification.NewAMQPNotifier(nil, "circulation")
	assert.ErrorIs(t, err, notification.ErrNilPublisher)

	_, err = notification.NewAMQPNotifier(&publisherSpy{}, "")
	assert.ErrorIs(t, err, notification.ErrEmptyExchange)
}

func Test_AMQPNotifier_PublishesJSONMessage(t *testing.T) {
	// arrange
	publisher := &publisherSpy{}
	notifier, err := notification.NewAMQPNotifier(
		publisher,
		"circulation",
		notification.WithRoutingKey("member.notice"),
		notification.WithClock(func() time.Time { return fakeClock }),
	)
	require.NoError(t, err)
	notice := givenNotice()

	// act
	err = notifier.NotifyReservationReady(context.Background(), notice)

	// assert
	require.NoError(t, err)
	require.Len(t, publisher.published, 1)

	published := publisher.published[0]
	assert.Equal(t, "circulation", published.exchange)
	assert.Equal(t, "member.notice", published.key)
	assert.Equal(t, "application/json", published.msg.ContentType)
	assert.Equal(t, notice.ReservationID.String(), published.msg.MessageId)

	var message notification.Message
	require.NoError(t, jsoniter.Unmarshal(published.msg.Body, &message))
	assert.Equal(t, notice.ReservationID, message.ReservationID)
	assert.Equal(t, notice.CopyID, message.CopyID)
	assert.Equal(t, "Dune", message.BookTitle)
	assert.True(t, notice.PickupBy.Equal(message.PickupBy))
}

func Test_AMQPNotifier_WrapsPublishErrors(t *testing.T) {
	// arrange
	brokerErr := errors.New("channel closed")
	notifier, err := notification.NewAMQPNotifier(&publisherSpy{err: brokerErr}, "circulation")
	require.NoError(t, err)

	// act
	err = notifier.NotifyReservationReady(context.Background(), givenNotice())

	// assert
	assert.ErrorIs(t, err, notification.ErrPublishingFailed)
	assert.ErrorIs(t, err, brokerErr)
}

func Test_AMQPNotifier_FailsFast_WhenBreakerIsOpen(t *testing.T) {
	// arrange
	publisher := &publisherSpy{err: errors.New("connection refused")}
	logger := spies.NewLoggerSpy()
	notifier, err := notification.NewAMQPNotifier(
		publisher,
		"circulation",
		notification.WithCircuitBreaker(2, time.Hour),
		notification.WithLogger(logger),
	)
	require.NoError(t, err)

	for range 2 {
		_ = notifier.NotifyReservationReady(context.Background(), givenNotice())
	}

	// act
	err = notifier.NotifyReservationReady(context.Background(), givenNotice())

	// assert
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, publisher.calls)
	assert.Equal(t, gobreaker.StateOpen, notifier.BreakerState())
	assert.True(t, logger.HasWarnLog("notification circuit breaker changed state"))
}

func Test_AMQPNotifier_IsThrottled_WhenRateIsExceeded(t *testing.T) {
	// arrange
	publisher := &publisherSpy{}
	notifier, err := notification.NewAMQPNotifier(publisher, "circulation", notification.WithRateLimit(0.001, 1))
	require.NoError(t, err)
	require.NoError(t, notifier.NotifyReservationReady(context.Background(), givenNotice()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// act
	err = notifier.NotifyReservationReady(ctx, givenNotice())

	// assert
	assert.ErrorIs(t, err, notification.ErrThrottled)
	assert.Equal(t, 1, publisher.calls)
}

func Test_LogNotifier_LogsMessage(t *testing.T) {
	// arrange
	logger := spies.NewLoggerSpy()
	notifier := notification.NewLogNotifier(logger)
	notice := givenNotice()

	// act
	err := notifier.NotifyReservationReady(context.Background(), notice)

	// assert
	require.NoError(t, err)
	record, found := logger.FindLog(spies.LevelInfo, "reservation ready notification")
	require.True(t, found)
	email, _ := record.Attr("email")
	assert.Equal(t, "ada@example.com", email)
}
