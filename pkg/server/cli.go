package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/busify/busify/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Provides the busify core: location registry, tickets, aggregates and the web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the core server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the web server, overrides the configuration",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if c.String("listen") != "" {
						cfg.Server.ListenAddress = c.String("listen")
					}

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					server, err := New(ctx, cfg)
					if err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					go func() {
						<-signals // wait for signal
						log.Info().Msg("Shutting down")
						cancel()

						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					return server.Run(ctx)
				},
			},
		},
	}
}
