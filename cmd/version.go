package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// version is set via -ldflags "-X github.com/ogn-network/ogn-gateway/cmd.version=..."
// at build time; it stays "dev" otherwise.
var version = "dev"

// VersionCommand creates the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(ctx context.Context, c *cli.Command) error {
			fmt.Printf("ogn-gateway version %s\n", version)
			return nil
		},
	}
}
