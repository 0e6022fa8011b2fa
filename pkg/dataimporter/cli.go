package dataimporter

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/database"
	"github.com/busify/busify/pkg/redis_client"
	"github.com/busify/busify/pkg/vehiclecache"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Import reference data into the document store",
		Subcommands: []*cli.Command{
			{
				Name:      "vehicles",
				Usage:     "Import a vehicles CSV",
				ArgsUsage: "<csv>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the parsed vehicles instead of writing them",
					},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return errors.New("filename must be provided")
					}

					file, err := os.Open(c.Args().First())
					if err != nil {
						return err
					}
					defer file.Close()

					startTime := time.Now()

					vehicles, rowErrors, err := ParseVehicles(file)
					if err != nil {
						return err
					}
					for _, rowError := range rowErrors {
						log.Error().Err(rowError).Msg("Skipping vehicle row")
					}

					if c.Bool("dry-run") {
						pretty.Println(vehicles)
						return nil
					}

					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if err := database.Connect(cfg.Store); err != nil {
						return err
					}
					defer database.Disconnect()

					stores := database.NewMongoStores(database.MongoGlobalInstance)
					if err := stores.Vehicles.UpsertVehicles(context.Background(), vehicles); err != nil {
						return err
					}

					if cfg.Redis.Enabled {
						if err := redis_client.Connect(cfg.Redis); err != nil {
							log.Error().Err(err).Msg("Failed to connect to Redis, cached vehicles will expire on their own")
						} else {
							cache := vehiclecache.New(redis_client.Client, stores.Vehicles, cfg.Store.VehicleCacheTTL.Duration)
							for _, vehicle := range vehicles {
								if err := cache.InvalidateVehicle(context.Background(), vehicle); err != nil {
									log.Error().Err(err).Str("vehicle", vehicle.PrimaryIdentifier).Msg("Failed to invalidate cached vehicle")
								}
							}
						}
					}

					log.Info().
						Int("vehicles", len(vehicles)).
						Int("skipped", len(rowErrors)).
						Str("duration", time.Since(startTime).String()).
						Msg("Imported vehicles")

					return nil
				},
			},
		},
	}
}
