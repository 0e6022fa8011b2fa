package realtime

import (
	"context"

	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog/log"
)

// StompClient subscribes to a topic of JSON position samples
type StompClient struct {
	Address   string
	Username  string
	Password  string
	QueueName string

	Publisher Publisher
}

func (s *StompClient) Run(ctx context.Context) error {
	var stompOptions []func(*stomp.Conn) error = []func(*stomp.Conn) error{
		stomp.ConnOpt.Login(s.Username, s.Password),
	}
	conn, err := stomp.Dial("tcp", s.Address, stompOptions...)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	sub, err := conn.Subscribe(s.QueueName, stomp.AckAuto)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	log.Info().Str("address", s.Address).Str("queue", s.QueueName).Msg("Subscribed to STOMP position feed")

	consumer := NewLocationBatchConsumer(s.Publisher)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}
			if msg.Err != nil {
				log.Error().Err(msg.Err).Msg("STOMP subscription error")
				return msg.Err
			}

			consumer.handlePayload(msg.Body)
		}
	}
}
