package notify

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/rs/zerolog/log"
)

const NotifyQueue = "notify-queue"

// QueuePublisher hands ticket confirmations to the notify consumers instead of calling Firebase inline
type QueuePublisher struct {
	Queue rmq.Queue
}

func (p *QueuePublisher) ConfirmTicket(_ context.Context, ticket ctdf.Ticket) error {
	payload, err := json.Marshal(TicketNotification(ticket))
	if err != nil {
		return err
	}

	return p.Queue.PublishBytes(payload)
}

type NotifyBatchConsumer struct {
	Push *PushManager
}

func NewNotifyBatchConsumer(push *PushManager) *NotifyBatchConsumer {
	return &NotifyBatchConsumer{Push: push}
}

func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		c.handlePayload(context.Background(), payload)
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to consume from queue")
		}
	}
}

func (c *NotifyBatchConsumer) handlePayload(ctx context.Context, payload string) {
	var notification ctdf.Notification
	if err := json.Unmarshal([]byte(payload), &notification); err != nil {
		log.Error().Err(err).Msg("Failed to decode notification")
		return
	}

	if notification.Type != ctdf.NotificationTypePush {
		log.Debug().Str("type", string(notification.Type)).Msg("Skipping unsupported notification type")
		return
	}

	if err := c.Push.SendPush(ctx, notification); err != nil {
		log.Error().Err(err).Str("target", notification.TargetUser).Msg("Failed to send push notification")
	}
}
