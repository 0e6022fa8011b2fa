package main

import (
	"os"
	"time"

	"github.com/busify/busify/pkg/dataimporter"
	"github.com/busify/busify/pkg/dbwatch"
	"github.com/busify/busify/pkg/events"
	"github.com/busify/busify/pkg/notify"
	"github.com/busify/busify/pkg/realtime"
	"github.com/busify/busify/pkg/server"
	"github.com/busify/busify/pkg/stats"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("BUSIFY_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("BUSIFY_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "busify",
		Description: "Single binary for Busify - runs all the services",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				EnvVars: []string{"BUSIFY_CONFIG"},
			},
		},

		Commands: []*cli.Command{
			server.RegisterCLI(),
			dbwatch.RegisterCLI(),
			realtime.RegisterCLI(),
			dataimporter.RegisterCLI(),
			stats.RegisterCLI(),
			events.RegisterCLI(),
			notify.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
