package notification

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const (
	logMsgReservationReady = "reservation ready notification"
	logAttrReservationID   = "reservation_id"
	logAttrEmail           = "email"
	logAttrText            = "text"
)

// LogNotifier writes notices to a logger instead of sending them.
type LogNotifier struct {
	logger circulation.Logger
	clock  func() time.Time
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger circulation.Logger) *LogNotifier {
	return &LogNotifier{logger: logger, clock: time.Now}
}

// NotifyReservationReady logs the composed message at info level.
func (n *LogNotifier) NotifyReservationReady(_ context.Context, notice shell.ReservationReady) error {
	message := Compose(notice, n.clock())

	n.logger.Info(logMsgReservationReady,
		logAttrReservationID, message.ReservationID.String(),
		logAttrEmail, message.Email,
		logAttrText, message.Text,
	)

	return nil
}
