package routes

import (
	"errors"
	"strings"

	"github.com/busify/busify/pkg/blobstore"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

func LostItemsRouter(router fiber.Router, deps *Dependencies) {
	router.Post("/", func(c *fiber.Ctx) error { return reportLostItem(c, deps) })
	router.Get("/", func(c *fiber.Ctx) error { return listLostItems(c, deps) })
	router.Delete("/:identifier", RequireRole(), func(c *fiber.Ctx) error { return deleteLostItem(c, deps) })
}

// reportLostItem takes a multipart form, the photo part is optional
func reportLostItem(c *fiber.Ctx, deps *Dependencies) error {
	user, _ := currentIdentity(c)

	item := &ctdf.LostItem{
		Name:             strings.TrimSpace(c.FormValue("name")),
		Description:      strings.TrimSpace(c.FormValue("description")),
		VehicleID:        strings.TrimSpace(c.FormValue("vehicle")),
		Importance:       strings.TrimSpace(c.FormValue("importance")),
		ReportedBy:       user.DisplayName(),
		CreationDateTime: deps.Now(),
	}
	if item.Name == "" {
		return sendErrorMessage(c, fiber.StatusBadRequest, "No name set")
	}
	if item.Importance == "" {
		item.Importance = ctdf.DefaultLostItemImportance
	}

	photo, err := c.FormFile("photo")
	switch {
	case errors.Is(err, fasthttp.ErrMissingFile), errors.Is(err, fasthttp.ErrNoMultipartForm):
	case err != nil:
		return sendErrorMessage(c, fiber.StatusBadRequest, "Invalid photo upload")
	default:
		if deps.Blobs == nil {
			return sendError(c, ctdf.NewDependencyError("blob store", errors.New("not configured")))
		}

		file, err := photo.Open()
		if err != nil {
			return sendErrorMessage(c, fiber.StatusBadRequest, "Invalid photo upload")
		}
		defer file.Close()

		objectName := blobstore.ObjectName(blobstore.LostItemsPrefix, item.CreationDateTime, photo.Filename)
		url, err := deps.Blobs.Upload(c.UserContext(), objectName, photo.Header.Get(fiber.HeaderContentType), file)
		if err != nil {
			return sendError(c, ctdf.NewDependencyError("blob store", err))
		}
		item.PhotoURL = url
	}

	if err := deps.Stores.LostItems.CreateLostItem(c.UserContext(), item); err != nil {
		return sendError(c, storeError("lost items", err))
	}

	if err := deps.Events.Publish(c.UserContext(), item.Event()); err != nil {
		log.Error().Err(err).Str("item", item.PrimaryIdentifier).Msg("Failed to publish lost item event")
	}

	c.Status(fiber.StatusCreated)
	return sendView(c, detailedView, item)
}

func listLostItems(c *fiber.Ctx, deps *Dependencies) error {
	items, err := deps.Stores.LostItems.ListLostItems(c.UserContext(), c.Query("vehicle"))
	if err != nil {
		return sendError(c, storeError("lost items", err))
	}

	user, _ := currentIdentity(c)
	if user.HasRole(identity.RoleDriver, identity.RoleConductor, identity.RoleAdmin) {
		return sendView(c, detailedView, items)
	}

	return sendView(c, basicView, items)
}

func deleteLostItem(c *fiber.Ctx, deps *Dependencies) error {
	itemID := c.Params("identifier")
	if err := deps.Stores.LostItems.DeleteLostItem(c.UserContext(), itemID); err != nil {
		return sendError(c, storeError("lost items", err))
	}

	if err := deps.Events.Publish(c.UserContext(), ctdf.NewRemovalEvent(ctdf.EventTypeLostItemReport, itemID)); err != nil {
		log.Error().Err(err).Str("item", itemID).Msg("Failed to publish lost item removal")
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
