// @title                      Hospital Records Auth API
// @version                    1.0
// @description                Two-step sign-in (password, then one-time code), sessions and account lockout.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hospitalrecords/internal/app"
	"hospitalrecords/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
