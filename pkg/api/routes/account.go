package routes

import (
	"github.com/busify/busify/pkg/ctdf"
	"github.com/gofiber/fiber/v2"
)

func AccountRouter(router fiber.Router, deps *Dependencies) {
	router.Get("/", getAccount)
	router.Post("/notificationtoken", func(c *fiber.Ctx) error { return postNotificationToken(c, deps) })
}

func getAccount(c *fiber.Ctx) error {
	user, _ := currentIdentity(c)

	return c.JSON(fiber.Map{
		"userId":      user.UserID,
		"email":       user.Email,
		"role":        user.Role,
		"displayName": user.DisplayName(),
	})
}

func postNotificationToken(c *fiber.Ctx, deps *Dependencies) error {
	var requestBody struct {
		Token string
	}
	c.BodyParser(&requestBody)

	if requestBody.Token == "" {
		return sendErrorMessage(c, fiber.StatusBadRequest, "No token set")
	}

	user, _ := currentIdentity(c)

	userPushNotificationTarget := ctdf.UserPushNotificationTarget{
		UserID:                user.UserID,
		PushNotificationToken: requestBody.Token,
		ModificationDateTime:  deps.Now(),
	}

	if err := deps.Stores.PushTargets.SavePushTarget(c.UserContext(), &userPushNotificationTarget); err != nil {
		return sendError(c, storeError("push targets", err))
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
