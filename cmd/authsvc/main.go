// Package main is the entrypoint for the authentication service.
// authsvc issues and verifies phone OTPs and mints role-bearing session tokens.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/technotrac/authcore/internal/config"
	"github.com/technotrac/authcore/internal/server"
)

func main() {
	// A .env file is optional and only used in local development.
	_ = godotenv.Load()

	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:           "authsvc",
		PortFromConfig: func(cfg *config.Config) int { return cfg.HTTP.Port },
		Setup:          setup,
	}, nil)
}
