package main

import (
	"context"
	"log"

	"github.com/whistledrop/whistledrop/internal/server"
	"github.com/whistledrop/whistledrop/internal/server/config"
)

func main() {
	ctx := context.Background()

	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		log.Fatalf("whistledrop server: %v", err)
	}

	app.Run(ctx)
}
