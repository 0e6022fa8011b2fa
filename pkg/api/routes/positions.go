package routes

import (
	"context"

	"github.com/busify/busify/pkg/identity"
	"github.com/busify/busify/pkg/realtime"
	"github.com/busify/busify/pkg/registry"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func PositionsRouter(router fiber.Router, deps *Dependencies) {
	router.Get("/", func(c *fiber.Ctx) error { return listPositions(c, deps) })
	router.Get("/stream", func(c *fiber.Ctx) error { return streamPositions(c, deps) })
	router.Get("/:identifier", func(c *fiber.Ctx) error { return getPosition(c, deps) })
	router.Post("/", Authenticated(deps.Identity, identity.RoleDriver), func(c *fiber.Ctx) error { return publishPosition(c, deps) })
}

func listPositions(c *fiber.Ctx, deps *Dependencies) error {
	return sendView(c, basicView, deps.Registry.Snapshot())
}

func getPosition(c *fiber.Ctx, deps *Dependencies) error {
	position, err := deps.Registry.Get(c.Params("identifier"))
	if err != nil {
		return sendError(c, err)
	}

	return sendView(c, basicView, position)
}

func publishPosition(c *fiber.Ctx, deps *Dependencies) error {
	sample, err := realtime.DecodeSample(c.Body())
	if err != nil {
		return sendError(c, err)
	}

	if err := sample.PublishTo(deps.Registry); err != nil {
		return sendError(c, err)
	}

	c.Status(fiber.StatusAccepted)
	return c.JSON(fiber.Map{
		"success": true,
	})
}

func deltaEvent(delta registry.Delta) serverEvent {
	data, err := marshalView(basicView, delta)
	if err != nil {
		log.Error().Err(err).Str("vehicle", delta.VehicleID).Msg("Failed to render delta")
		data = delta
	}

	return serverEvent{Name: delta.Kind.String(), Data: data}
}

// streamPositions sends the current snapshot as create events followed by every change
func streamPositions(c *fiber.Ctx, deps *Dependencies) error {
	return streamServerEvents(c, deps, func(ctx context.Context, out chan<- serverEvent) {
		subscription := deps.Registry.Subscribe()
		defer subscription.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case delta, ok := <-subscription.C():
				if !ok {
					return
				}
				if !sendEvent(ctx, out, deltaEvent(delta)) {
					return
				}
			}
		}
	})
}
