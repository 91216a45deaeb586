package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ogn-network/ogn-gateway/pkg/ddb"
	"github.com/ogn-network/ogn-gateway/pkg/store"
)

// DDBCommand creates the "ddb" command group: a one-shot refresh of the
// device database and derived ignore list, useful for warming a fresh
// Redis instance without waiting for the daemon's first tick.
func DDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "ddb",
		Usage: "Manage the device database cached in the store",
		Commands: []*cli.Command{
			{
				Name:  "refresh",
				Usage: "Fetch the device database once and write it to the store",
				Action: func(ctx context.Context, c *cli.Command) error {
					return ddbRefresh(ctx, c)
				},
			},
		},
	}
}

func ddbRefresh(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer st.Close()

	updater := ddb.New(st, cfg.DDBURL, cfg.DDBInterval.Duration)
	if err := updater.Update(ctx); err != nil {
		return fmt.Errorf("refreshing device database: %w", err)
	}

	fmt.Println("device database refreshed")
	return nil
}
