package routes

import (
	"context"

	"github.com/busify/busify/pkg/mapsync"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func MapRouter(router fiber.Router, deps *Dependencies) {
	router.Get("/markers", func(c *fiber.Ctx) error { return getMarkers(c, deps) })
	router.Get("/stream", func(c *fiber.Ctx) error { return streamMarkers(c, deps) })
}

func getMarkers(c *fiber.Ctx, deps *Dependencies) error {
	vehicles, err := deps.Stores.Vehicles.ListVehicles(c.UserContext())
	if err != nil {
		return sendError(c, storeError("vehicles", err))
	}

	controller := mapsync.NewController()
	controller.Reconcile(deps.Registry.Snapshot(), vehicles)

	response := fiber.Map{
		"markers": controller.Markers(),
	}
	if bounds, ok := controller.Bounds(); ok {
		response["bounds"] = bounds
	}

	return c.JSON(response)
}

// streamMarkers emits marker diffs for one viewer, starting with every marker as created
func streamMarkers(c *fiber.Ctx, deps *Dependencies) error {
	vehicles, err := deps.Stores.Vehicles.ListVehicles(c.UserContext())
	if err != nil {
		return sendError(c, storeError("vehicles", err))
	}

	return streamServerEvents(c, deps, func(ctx context.Context, out chan<- serverEvent) {
		subscription := deps.Registry.Subscribe()
		defer subscription.Close()

		controller := mapsync.NewController()
		err := controller.Follow(ctx, subscription.C(), vehicles, func(diff mapsync.Diff) error {
			if !sendEvent(ctx, out, serverEvent{Name: "diff", Data: diff}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Marker stream stopped")
		}
	})
}
