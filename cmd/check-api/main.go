package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/infrastructure/external/requisicoes"
)

func main() {
	// Parse command line flags
	baseURL := flag.String("url", "", "requisitions API base URL (or set REQUISICOES_API_URL env var)")
	login := flag.String("login", "", "optional login to test authentication")
	password := flag.String("password", "", "password for --login")
	code := flag.String("code", "", "optional public code or voucher id to resolve")
	timeout := flag.Duration("timeout", 15*time.Second, "API call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	// Initialize logger
	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *baseURL == "" {
		*baseURL = os.Getenv("REQUISICOES_API_URL")
	}
	if *baseURL == "" {
		fmt.Fprintf(os.Stderr, "ERROR: REQUISICOES_API_URL not set and no --url flag provided\n")
		fmt.Fprintf(os.Stderr, "Usage: check-api --url https://... [--login <name> --password <pw>] [--code <code>]\n")
		os.Exit(1)
	}

	fmt.Println("=== Requisitions API Check ===")
	fmt.Printf("  Base URL: %s\n", *baseURL)
	fmt.Printf("  Timeout: %v\n", *timeout)
	fmt.Println()

	client, err := requisicoes.NewClient(requisicoes.Config{BaseURL: *baseURL, Timeout: *timeout}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	actor := entity.Actor{Role: entity.RoleAdmin, Name: "check-api"}

	if *login != "" {
		fmt.Printf("Authenticating %q...\n", *login)
		user, err := client.Authenticate(ctx, *login, *password)
		if err != nil {
			fail("authentication", err)
		}
		fmt.Printf("✓ Authenticated as %s (%s)\n\n", user.Name, user.Role)
	}

	fmt.Println("Listing requisitions...")
	start := time.Now()
	list, err := client.List(ctx, actor, entity.ListFilter{})
	if err != nil {
		fail("list", err)
	}
	fmt.Printf("✓ %d requisitions in %v\n\n", len(list), time.Since(start).Round(time.Millisecond))

	if *code != "" {
		fmt.Printf("Resolving %q...\n", *code)
		v, err := client.GetByPublicCode(ctx, actor, *code)
		if err != nil {
			fail("resolve", err)
		}
		fmt.Printf("✓ %s %s -> %s [%s]\n", v.Number, v.PassengerName, v.Destination, v.Status)
	}

	fmt.Println("\n=== API reachable ===")
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "\n✗ %s failed: %v\n", step, err)
	fmt.Fprintf(os.Stderr, "  retryable: %v\n", entity.IsRetryable(err))
	fmt.Fprintf(os.Stderr, "  message:   %s\n", entity.UserMessage(err))
	os.Exit(1)
}
