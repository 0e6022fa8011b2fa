package api

import (
	"context"
	"errors"

	"github.com/busify/busify/pkg/api/routes"
	"github.com/busify/busify/pkg/consumer"
	"github.com/busify/busify/pkg/redis_client"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// NewApp builds the web application, core routes live under /core and operational endpoints at the root
func NewApp(deps *routes.Dependencies, metrics *prometheus.Registry) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	webApp.Use(NewLogger())

	if metrics != nil {
		webApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	}
	webApp.Get("/health", adaptor.HTTPHandler(consumer.NewHealthHandler()))
	if redis_client.Enabled() {
		webApp.Get("/queues/stats", adaptor.HTTPHandler(consumer.NewStatsHandler(redis_client.QueueConnection)))
	}

	routes.Register(webApp.Group("/core"), deps)

	return webApp
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberError *fiber.Error
	if errors.As(err, &fiberError) {
		code = fiberError.Code
	}

	c.Status(code)
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}

// Serve listens until the context is cancelled and then shuts the app down
func Serve(ctx context.Context, webApp *fiber.App, listen string) error {
	errs := make(chan error, 1)
	go func() {
		log.Info().Str("listen", listen).Msg("Starting web API")
		errs <- webApp.Listen(listen)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down web API")
		return webApp.Shutdown()
	}
}
