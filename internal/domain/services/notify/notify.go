// Package notify defines the settlement notification port. Delivery is
// advisory: the persisted settlement row is authoritative and a failed
// or slow notifier never rolls back a committed mutation.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
)

// Notifier delivers settlement events to an external channel
type Notifier interface {
	NotifySettlement(ctx context.Context, event *entities.SettlementEvent) error
}

// LogNotifier writes settlement events to the structured log. It is the
// default when no external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifySettlement logs the event
func (n *LogNotifier) NotifySettlement(ctx context.Context, event *entities.SettlementEvent) error {
	n.logger.Info("settlement event",
		zap.String("user_id", event.UserID.String()),
		zap.String("kind", string(event.Kind)),
		zap.String("amount", event.Amount.StringFixed(2)),
		zap.String("description", event.Description))
	return nil
}

// Emit persists the event via fn's repositories and schedules delivery.
// Helper used by services: persistence happens in the caller's
// transaction, delivery after commit via Dispatch.
type Emitter struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewEmitter creates an emitter over the given notifier
func NewEmitter(notifier Notifier, logger *zap.Logger) *Emitter {
	return &Emitter{notifier: notifier, logger: logger}
}

// Dispatch delivers events fire-and-forget. Callers invoke it only after
// their transaction has committed.
func (e *Emitter) Dispatch(events ...*entities.SettlementEvent) {
	for _, ev := range events {
		ev := ev
		go func() {
			if err := e.notifier.NotifySettlement(context.Background(), ev); err != nil {
				e.logger.Warn("settlement notification failed",
					zap.String("event_id", ev.ID.String()),
					zap.String("kind", string(ev.Kind)),
					zap.Error(err))
			}
		}()
	}
}
