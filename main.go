package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ogn-network/ogn-gateway/cmd"
	"github.com/ogn-network/ogn-gateway/pkg/log"
)

func main() {
	app := &cli.Command{
		Name:  "ogn-gateway",
		Usage: "Real-time gateway for the Open Glider Network tracking feed",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Optional TOML config file path",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "HTTP listen host",
			},
			&cli.StringFlag{
				Name:  "port",
				Usage: "HTTP listen port",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.DDBCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.ForService("main").Errorf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
