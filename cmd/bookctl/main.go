package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bookshelf/internal/cli"
	"github.com/dmitrijs2005/bookshelf/internal/flagx"
	"github.com/dmitrijs2005/bookshelf/internal/logging"
	"github.com/dmitrijs2005/bookshelf/internal/server"
	"github.com/dmitrijs2005/bookshelf/internal/server/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer app.Close()

	// -wait needs the index to catch up while the command runs.
	wait := app.StartPropagator(ctx)
	defer wait()
	defer cancel()

	args := flagx.StripArgs(os.Args[1:], append(config.ConfigFlags(), "-c", "-config"))

	c := cli.NewApp(app.Books(), cfg.SecretKey, cfg.TokenValidityDuration, os.Stdout, os.Stderr)
	if err := c.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
