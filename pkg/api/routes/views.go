package routes

import (
	"github.com/busify/busify/pkg/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
)

var (
	basicView    = []string{"basic"}
	detailedView = []string{"basic", "detailed"}
)

func marshalView(groups []string, value any) (any, error) {
	return sheriff.Marshal(&sheriff.Options{Groups: groups}, value)
}

func sendView(c *fiber.Ctx, groups []string, value any) error {
	data, err := marshalView(groups, value)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(data)
}

// viewFor shows the detailed fields to admins and to the user the record belongs to
func viewFor(c *fiber.Ctx, ownerID string) []string {
	user, ok := currentIdentity(c)
	if ok && (user.Role == identity.RoleAdmin || (ownerID != "" && user.UserID == ownerID)) {
		return detailedView
	}

	return basicView
}
