package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/whistledrop/whistledrop/internal/flagx"
	"github.com/whistledrop/whistledrop/internal/journalist/cli"
	"github.com/whistledrop/whistledrop/internal/journalist/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	cmd, args := flagx.Subcommand(os.Args[1:], config.GlobalValueFlags)

	if err := cli.NewApp(cfg).Run(ctx, cmd, args); err != nil {
		stop()
		os.Exit(1)
	}
}
