// Command boarding runs a carrier's boarding station. Each line read from
// stdin is treated as one decoded QR payload (a public code, a voucher id or
// a /canhoto/ URL), which is how handheld USB scanners present themselves.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/config"
	"github.com/garyjia/river-voucher/internal/container"
	"github.com/garyjia/river-voucher/internal/scanner"
	"github.com/garyjia/river-voucher/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	login := flag.String("login", "", "carrier login (or set BOARDING_LOGIN)")
	password := flag.String("password", "", "carrier password (or set BOARDING_PASSWORD)")
	vessel := flag.String("vessel", "", "vessel to validate for, when the carrier operates several")
	flag.Parse()

	if *login == "" {
		*login = os.Getenv("BOARDING_LOGIN")
	}
	if *password == "" {
		*password = os.Getenv("BOARDING_PASSWORD")
	}
	if *login == "" {
		fmt.Fprintln(os.Stderr, "Usage: boarding --login <carrier> --password <password> [--vessel <name>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.ToLoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *login, *password, *vessel, logger); err != nil {
		logger.Error("Boarding station failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "ERRO: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, login, password, vessel string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	sessions := c.Services().Sessions
	sess, err := sessions.Login(ctx, login, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if vessel != "" {
		if sess, err = sessions.SelectVessel(sess.Actor, vessel); err != nil {
			return fmt.Errorf("select vessel: %w", err)
		}
	}

	camera := scanner.NewLineCamera(os.Stdin)
	defer camera.Close()

	station := scanner.NewStation(
		c.Services().Vouchers,
		scanner.NewSession(camera, logger),
		sess.Actor,
		os.Stdout,
		cfg.ToStationConfig(),
		logger,
	)

	return station.Run(ctx)
}
