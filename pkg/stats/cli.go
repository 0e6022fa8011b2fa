package stats

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/busify/busify/pkg/aggregator"
	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/database"
	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Operational statistics over the stored events",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "backfill the aggregates from the database and export them as CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "report",
						Value: "counts",
						Usage: "counts or series",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "file to write, defaults to stdout",
					},
				},
				Action: func(c *cli.Context) error {
					overview, err := loadOverview(c)
					if err != nil {
						return err
					}

					var w io.Writer = os.Stdout
					if c.String("output") != "" {
						file, err := os.Create(c.String("output"))
						if err != nil {
							return err
						}
						defer file.Close()
						w = file
					}

					switch c.String("report") {
					case "counts":
						return WriteCountsCSV(w, overview)
					case "series":
						return WriteSeriesCSV(w, overview)
					default:
						return errors.New("report must be counts or series")
					}
				},
			},
			{
				Name:  "overview",
				Usage: "print the admin overview",
				Action: func(c *cli.Context) error {
					overview, err := loadOverview(c)
					if err != nil {
						return err
					}

					pretty.Println(overview)

					return nil
				},
			},
		},
	}
}

func loadOverview(c *cli.Context) (*Overview, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if err := database.Connect(cfg.Store); err != nil {
		return nil, err
	}
	defer database.Disconnect()

	stores := database.NewMongoStores(database.MongoGlobalInstance)
	agg := aggregator.New(aggregator.Options{Location: cfg.Location()})

	ctx := context.Background()
	if _, err := Backfill(ctx, agg, SourcesFrom(stores)); err != nil {
		return nil, err
	}

	vehicles, err := stores.Vehicles.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}

	return BuildOverview(agg, vehicles, cfg.Aggregator.WindowDays), nil
}
