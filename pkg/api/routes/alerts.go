package routes

import (
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func AlertsRouter(router fiber.Router, deps *Dependencies) {
	operators := RequireRole(identity.RoleDriver, identity.RoleConductor)

	router.Post("/", func(c *fiber.Ctx) error { return triggerAlert(c, deps) })
	router.Get("/", operators, func(c *fiber.Ctx) error { return listAlerts(c, deps) })
	router.Post("/:identifier/resolve", operators, func(c *fiber.Ctx) error { return resolveAlert(c, deps) })
}

func triggerAlert(c *fiber.Ctx, deps *Dependencies) error {
	var requestBody struct {
		Vehicle  string         `json:"vehicle"`
		Message  string         `json:"message"`
		Location *ctdf.Location `json:"location"`
	}
	if err := c.BodyParser(&requestBody); err != nil {
		return sendErrorMessage(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if requestBody.Location != nil {
		if err := requestBody.Location.Validate(); err != nil {
			return sendError(c, err)
		}
	}

	user, _ := currentIdentity(c)

	alert := &ctdf.Alert{
		VehicleID:        requestBody.Vehicle,
		Message:          requestBody.Message,
		CreatedBy:        user.DisplayName(),
		Location:         requestBody.Location,
		CreationDateTime: deps.Now(),
	}
	if alert.VehicleID == "" {
		alert.VehicleID = ctdf.UnknownDimension
	}

	if err := deps.Stores.Alerts.CreateAlert(c.UserContext(), alert); err != nil {
		return sendError(c, storeError("alerts", err))
	}

	if err := deps.Events.Publish(c.UserContext(), alert.Event()); err != nil {
		log.Error().Err(err).Str("alert", alert.PrimaryIdentifier).Msg("Failed to publish alert event")
	}

	c.Status(fiber.StatusCreated)
	return sendView(c, detailedView, alert)
}

func listAlerts(c *fiber.Ctx, deps *Dependencies) error {
	alerts, err := deps.Stores.Alerts.ListAlerts(c.UserContext(), c.Query("vehicle"))
	if err != nil {
		return sendError(c, storeError("alerts", err))
	}

	return sendView(c, detailedView, alerts)
}

func resolveAlert(c *fiber.Ctx, deps *Dependencies) error {
	alert, err := deps.Stores.Alerts.ResolveAlert(c.UserContext(), c.Params("identifier"), deps.Now())
	if err != nil {
		return sendError(c, storeError("alerts", err))
	}

	if err := deps.Events.Publish(c.UserContext(), alert.Event()); err != nil {
		log.Error().Err(err).Str("alert", alert.PrimaryIdentifier).Msg("Failed to publish resolved alert event")
	}

	return sendView(c, detailedView, alert)
}
