// Package command provides CLI command definitions for minikv-cli.
//
// It uses urfave/cli/v2 for command parsing.
package command

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/stefankamdem/minikv/internal/client"
	"github.com/stefankamdem/minikv/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "minikv-cli",
		Usage:   "minikv command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			DeleteCommand(),
			FlushCommand(),
			MGetCommand(),
			MSetCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "minikv server address",
			EnvVars: []string{"MINIKV_SERVER"},
			Value:   "127.0.0.1:31337",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "per-command timeout",
			Value:   5 * time.Second,
		},
	}
}

// withClient dials the configured server, runs fn, and closes the
// connection afterwards.
func withClient(c *cli.Context, fn func(ctx context.Context, cl *client.Client) error) error {
	cl, err := client.Dial(c.String("server"), &client.Options{
		DialTimeout: c.Duration("timeout"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	if err := fn(ctx, cl); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
