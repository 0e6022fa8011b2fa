package routes

import (
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/identity"
	"github.com/gofiber/fiber/v2"
)

func TicketsRouter(router fiber.Router, deps *Dependencies) {
	router.Post("/", func(c *fiber.Ctx) error { return issueTicket(c, deps) })
	router.Get("/:vehicle", func(c *fiber.Ctx) error { return getTicket(c, deps) })
	router.Get("/:vehicle/verify/:code", RequireRole(identity.RoleConductor, identity.RoleDriver), func(c *fiber.Ctx) error { return verifyTicket(c, deps) })
}

type ticketResponse struct {
	Ticket    any    `json:"ticket"`
	QRPayload string `json:"qrPayload"`
}

func sendTicket(c *fiber.Ctx, ticket ctdf.Ticket) error {
	user, _ := currentIdentity(c)

	view, err := marshalView(viewFor(c, ticket.PassengerID), ticket)
	if err != nil {
		return sendError(c, err)
	}

	response := ticketResponse{Ticket: view}
	if user.UserID == ticket.PassengerID {
		response.QRPayload = ticket.QRPayload(user.DisplayName())
	}

	return c.JSON(response)
}

func issueTicket(c *fiber.Ctx, deps *Dependencies) error {
	var requestBody struct {
		Vehicle string `json:"vehicle"`
		Pickup  string `json:"pickup"`
		Drop    string `json:"drop"`
	}
	if err := c.BodyParser(&requestBody); err != nil {
		return sendErrorMessage(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if requestBody.Vehicle == "" {
		return sendErrorMessage(c, fiber.StatusBadRequest, "No vehicle set")
	}

	user, _ := currentIdentity(c)

	ticket, err := deps.Tickets.IssueTicket(c.UserContext(), user.UserID, requestBody.Vehicle, requestBody.Pickup, requestBody.Drop)
	if err != nil {
		return sendError(c, err)
	}

	c.Status(fiber.StatusCreated)
	return sendTicket(c, ticket)
}

func getTicket(c *fiber.Ctx, deps *Dependencies) error {
	user, _ := currentIdentity(c)

	ticket, err := deps.Tickets.GetTicketFor(c.UserContext(), user.UserID, c.Params("vehicle"))
	if err != nil {
		return sendError(c, err)
	}

	return sendTicket(c, ticket)
}

func verifyTicket(c *fiber.Ctx, deps *Dependencies) error {
	ticket, err := deps.Tickets.VerifyTicket(c.UserContext(), c.Params("vehicle"), c.Params("code"))
	if err != nil {
		return sendError(c, err)
	}

	return sendView(c, viewFor(c, ticket.PassengerID), ticket)
}
