package routes

import (
	"errors"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, ctdf.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ctdf.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ctdf.ErrResourceExhausted):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, ctdf.ErrDependency):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}

	c.Status(status)
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}

func sendErrorMessage(c *fiber.Ctx, status int, message string) error {
	c.Status(status)
	return c.JSON(fiber.Map{
		"error": message,
	})
}

// storeError keeps expected misses as they are and marks anything else as a failed dependency
func storeError(store string, err error) error {
	if errors.Is(err, ctdf.ErrNotFound) || errors.Is(err, ctdf.ErrDependency) {
		return err
	}

	return ctdf.NewDependencyError(store, err)
}
