package routes

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type serverEvent struct {
	Name string
	Data any
}

func writeServerEvent(w *bufio.Writer, event serverEvent) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data); err != nil {
		return err
	}

	return w.Flush()
}

// pumpServerEvents writes events until the source closes, ctx ends or the client goes away.
// Heartbeat comments are what notice a client that disconnected while nothing was changing.
func pumpServerEvents(ctx context.Context, w *bufio.Writer, source <-chan serverEvent, heartbeat time.Duration) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-source:
			if !ok {
				return nil
			}
			if err := writeServerEvent(w, event); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := w.WriteString(": keepalive\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

// streamServerEvents hands the response over to produce, which runs until its context is cancelled
func streamServerEvents(c *fiber.Ctx, deps *Dependencies, produce func(ctx context.Context, out chan<- serverEvent)) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	path := strings.Clone(c.Path()) // fasthttp reuses the request buffer once the handler returns
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		if err := runServerEvents(deps.Context, w, deps.Heartbeat, produce); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Event stream closed")
		}
	}))

	return nil
}

// runServerEvents returns nil once parent is cancelled, so shutdown is not reported as a failed stream
func runServerEvents(parent context.Context, w *bufio.Writer, heartbeat time.Duration, produce func(ctx context.Context, out chan<- serverEvent)) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	source := make(chan serverEvent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(source)
		produce(ctx, source)
	}()

	err := pumpServerEvents(ctx, w, source, heartbeat)
	cancel()
	<-done

	if errors.Is(err, context.Canceled) && parent.Err() != nil {
		return nil
	}

	return err
}

func sendEvent(ctx context.Context, out chan<- serverEvent, event serverEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
