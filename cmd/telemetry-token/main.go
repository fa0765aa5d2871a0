package main

import (
	"context"
	"fmt"
	"log"

	"fleettrack-service/internal/infrastructure/config"
	"fleettrack-service/internal/infrastructure/oauth"
	"fleettrack-service/internal/interface/telemetry"
	"fleettrack-service/pkg/logger"

	"golang.org/x/oauth2"
)

// telemetry-token checks the telemetry credentials from the environment,
// prints the issued token and lists the organisations it can read.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.TelemetryTokenURL == "" {
		log.Fatal("TELEMETRY_TOKEN_URL is not set")
	}

	ctx := context.Background()
	zl := logger.NewLoggerWithLevel("warn")

	telemetryOAuth := oauth.NewTelemetryOAuth(
		cfg.TelemetryClientID,
		cfg.TelemetryClientSecret,
		cfg.TelemetryTokenURL,
		cfg.TelemetryScopes,
		cfg.TelemetryUsername,
		cfg.TelemetryPassword,
		zl,
	)

	token, err := telemetryOAuth.Authenticate(ctx)
	if err != nil {
		log.Fatalf("authenticate: %v", err)
	}
	tokenJSON, err := telemetryOAuth.TokenToJSON(token)
	if err != nil {
		log.Fatalf("encode token: %v", err)
	}
	fmt.Printf("Token:\n%s\n\n", tokenJSON)

	client := telemetry.NewClient(cfg.TelemetryBaseURL, oauth2.StaticTokenSource(token), cfg.TelemetryTimeout, zl)
	orgs, err := client.ListOrganisations(ctx)
	if err != nil {
		log.Fatalf("list organisations: %v", err)
	}
	fmt.Println("Organisations:")
	for _, id := range orgs {
		fmt.Printf("  %s\n", id)
	}
}
