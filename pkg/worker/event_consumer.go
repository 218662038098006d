package worker

import (
	"context"
	"encoding/json"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/messaging"
)

// Notifier materializes broker events into per-user notifications.
type Notifier interface {
	NotifyAppointmentEvent(ctx context.Context, eventType string, evt *model.AppointmentEvent) error
	NotifyUserRegistered(ctx context.Context, evt *model.UserEvent) error
}

// EventConsumer subscribes to the broker event channels and feeds every
// message to the notifier. A message that fails to decode or deliver is
// logged and dropped; the outbox already guarantees the producer side.
type EventConsumer struct {
	broker   messaging.Broker
	notifier Notifier
	logger   *logger.Logger
}

func NewEventConsumer(broker messaging.Broker, notifier Notifier, logger *logger.Logger) *EventConsumer {
	return &EventConsumer{
		broker:   broker,
		notifier: notifier,
		logger:   logger,
	}
}

// Start subscribes to every event channel and blocks until ctx is
// cancelled.
func (c *EventConsumer) Start(ctx context.Context) error {
	channels := []string{
		model.EventAppointmentCreated,
		model.EventAppointmentStatusChanged,
		model.EventUserRegistered,
	}

	for _, channel := range channels {
		msgs, err := c.broker.Subscribe(ctx, channel)
		if err != nil {
			return err
		}
		go c.consume(ctx, channel, msgs)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (c *EventConsumer) consume(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			if err := c.dispatch(ctx, channel, payload); err != nil {
				c.logger.Error(err, "failed to deliver notifications", "channel", channel)
			}
		}
	}
}

func (c *EventConsumer) dispatch(ctx context.Context, channel string, payload []byte) error {
	if channel == model.EventUserRegistered {
		var evt model.UserEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		return c.notifier.NotifyUserRegistered(ctx, &evt)
	}

	var evt model.AppointmentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}
	return c.notifier.NotifyAppointmentEvent(ctx, channel, &evt)
}
