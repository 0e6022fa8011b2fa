package routes

import (
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/identity"
	"github.com/busify/busify/pkg/stats"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const maxTimeSeriesDays = 366

func StatsRouter(router fiber.Router, deps *Dependencies) {
	router.Get("/overview", func(c *fiber.Ctx) error { return getOverview(c, deps) })
	router.Get("/counts/:type", func(c *fiber.Ctx) error { return getCounts(c, deps) })
	router.Get("/timeseries/:type", func(c *fiber.Ctx) error { return getTimeSeries(c, deps) })
	router.Get("/distribution/:type/:field", func(c *fiber.Ctx) error { return getDistribution(c, deps) })
	router.Get("/filter/:type", func(c *fiber.Ctx) error { return filterEvents(c, deps) })
}

func getOverview(c *fiber.Ctx, deps *Dependencies) error {
	vehicles, err := deps.Stores.Vehicles.ListVehicles(c.UserContext())
	if err != nil {
		return sendError(c, storeError("vehicles", err))
	}

	overview := stats.BuildOverview(deps.Aggregator, vehicles, deps.WindowDays)

	if counter, ok := deps.Identity.(identity.RoleCounter); ok {
		roles, err := counter.CountRoles(c.UserContext())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count accounts by role")
		} else {
			overview.Roles = map[string]int{}
			for role, count := range roles {
				overview.Roles[string(role)] = count
			}
		}
	}

	return c.JSON(overview)
}

func getCounts(c *fiber.Ctx, deps *Dependencies) error {
	eventType, err := ctdf.ParseEventType(c.Params("type"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"total":   deps.Aggregator.Total(eventType),
		"buckets": deps.Aggregator.Buckets(eventType),
	})
}

func getTimeSeries(c *fiber.Ctx, deps *Dependencies) error {
	eventType, err := ctdf.ParseEventType(c.Params("type"))
	if err != nil {
		return sendError(c, err)
	}

	days := c.QueryInt("days", deps.WindowDays)
	if days <= 0 || days > maxTimeSeriesDays {
		return sendErrorMessage(c, fiber.StatusBadRequest, "days must be between 1 and 366")
	}

	return c.JSON(deps.Aggregator.TimeSeries(eventType, days))
}

func getDistribution(c *fiber.Ctx, deps *Dependencies) error {
	eventType, err := ctdf.ParseEventType(c.Params("type"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(deps.Aggregator.Distribution(eventType, c.Params("field")))
}

func filterEvents(c *fiber.Ctx, deps *Dependencies) error {
	eventType, err := ctdf.ParseEventType(c.Params("type"))
	if err != nil {
		return sendError(c, err)
	}

	where := c.Query("where")
	if where == "" {
		return sendErrorMessage(c, fiber.StatusBadRequest, "A where expression must be applied to the request")
	}

	filter, err := stats.CompileFilter(where, deps.Aggregator.Location())
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(filter.Apply(deps.Aggregator.Events(eventType)))
}
