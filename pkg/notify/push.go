package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/database"
	"github.com/rs/zerolog/log"
)

type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type PushManager struct {
	Messaging Sender
	Targets   database.PushTargetStore
}

func (m *PushManager) SendPush(ctx context.Context, notification ctdf.Notification) error {
	targets, err := m.Targets.GetPushTargets(ctx, notification.TargetUser)
	if err != nil {
		return ctdf.NewDependencyError("push targets", err)
	}

	if len(targets) == 0 {
		log.Debug().Str("target", notification.TargetUser).Msg("No push targets registered")
		return nil
	}

	for _, target := range targets {
		_, err = m.Messaging.Send(ctx, &messaging.Message{
			Notification: &messaging.Notification{
				Title: notification.Title,
				Body:  notification.Message,
			},
			Token: target.PushNotificationToken,
		})

		if err != nil {
			return ctdf.NewDependencyError("firebase messaging", err)
		}
	}

	log.Info().Str("target", notification.TargetUser).Int("devices", len(targets)).Msg("Sent Push Notification")

	return nil
}

func (m *PushManager) ConfirmTicket(ctx context.Context, ticket ctdf.Ticket) error {
	return m.SendPush(ctx, TicketNotification(ticket))
}

func TicketNotification(ticket ctdf.Ticket) ctdf.Notification {
	return ctdf.Notification{
		TargetUser: ticket.PassengerID,
		Type:       ctdf.NotificationTypePush,
		Title:      "Booking confirmed",
		Message:    fmt.Sprintf("Ticket %s on bus %s from %s to %s", ticket.Code, ticket.VehicleID, ticket.PickupStop, ticket.DropStop),
	}
}
