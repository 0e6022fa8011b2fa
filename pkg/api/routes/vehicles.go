package routes

import (
	"github.com/gofiber/fiber/v2"
)

func VehiclesRouter(router fiber.Router, deps *Dependencies) {
	router.Get("/", func(c *fiber.Ctx) error { return listVehicles(c, deps) })
	router.Get("/search", func(c *fiber.Ctx) error { return searchVehicles(c, deps) })
	router.Get("/:identifier", func(c *fiber.Ctx) error { return getVehicle(c, deps) })
}

func listVehicles(c *fiber.Ctx, deps *Dependencies) error {
	vehicles, err := deps.Stores.Vehicles.ListVehicles(c.UserContext())
	if err != nil {
		return sendError(c, storeError("vehicles", err))
	}

	return sendView(c, basicView, vehicles)
}

func searchVehicles(c *fiber.Ctx, deps *Dependencies) error {
	pickup := c.Query("pickup")
	destination := c.Query("destination")

	if pickup == "" || destination == "" {
		return sendErrorMessage(c, fiber.StatusBadRequest, "Both pickup and destination must be provided")
	}

	vehicles, err := deps.Stores.Vehicles.SearchVehicles(c.UserContext(), pickup, destination)
	if err != nil {
		return sendError(c, storeError("vehicles", err))
	}

	return sendView(c, basicView, vehicles)
}

func getVehicle(c *fiber.Ctx, deps *Dependencies) error {
	vehicle, err := deps.Directory.GetVehicle(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return sendError(c, storeError("vehicles", err))
	}

	return sendView(c, basicView, vehicle)
}
