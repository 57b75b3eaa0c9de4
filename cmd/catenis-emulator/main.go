// Catenis API Emulator - programmable test double for the Catenis
// blockchain-notarization REST+WebSocket API.
//
// This is the process entry point: it parses flags, loads configuration,
// wires the Signer-backed ApiServer, WSNotificationServer and CommandServer
// together, and runs until an OS signal or a control-plane POST /close asks
// it to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/catenis-emulator/internal/apiserver"
	"github.com/nerrad567/catenis-emulator/internal/cmdserver"
	"github.com/nerrad567/catenis-emulator/internal/infrastructure/config"
	"github.com/nerrad567/catenis-emulator/internal/infrastructure/logging"
	"github.com/nerrad567/catenis-emulator/internal/state"
	"github.com/nerrad567/catenis-emulator/internal/wsnotify"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	apiPort := flag.Int("api-port", 0, "API server port (overrides config default 3500)")
	cmdPort := flag.Int("cmd-port", 0, "Command server port (overrides config default 3501)")
	apiVersion := flag.String("api-version", "", `Emulated API version (overrides config default "0.13")`)
	configPath := flag.String("config", "", "Path to an optional YAML config file")
	doShutdown := flag.Bool("shutdown", false, "Probe a running emulator's cmd-port and request a graceful shutdown, then exit")
	flag.Parse()

	if *doShutdown {
		port := *cmdPort
		if port == 0 {
			port = config.DefaultConfig().Cmd.Port
		}
		if err := requestShutdown(port); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, *configPath, *apiPort, *cmdPort, *apiVersion); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context, cancel context.CancelFunc, configPath string, apiPortFlag, cmdPortFlag int, apiVersionFlag string) error {
	log := logging.Default()
	log.Info("starting Catenis API emulator", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if apiPortFlag != 0 {
		cfg.API.Port = apiPortFlag
	}
	if cmdPortFlag != 0 {
		cfg.Cmd.Port = cmdPortFlag
	}
	if apiVersionFlag != "" {
		cfg.API.APIVersion = apiVersionFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	log.Info("configuration loaded", "api_port", cfg.API.Port, "cmd_port", cfg.Cmd.Port, "api_version", cfg.API.APIVersion)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	credentials := state.NewCredentials()
	httpCtx := state.NewHTTPContextCell()
	notifyCtx := state.NewNotifyContextCell()

	apiSrv, err := apiserver.New(apiserver.Deps{
		Config:      cfg.API,
		Logger:      log,
		Credentials: credentials,
		HTTPContext: httpCtx,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	basePath := "/api/" + cfg.API.APIVersion + "/"
	notifyWS := wsnotify.NewServer(basePath, apiSrv, notifyCtx, log)
	apiSrv.SetNotifyWS(notifyWS)

	cmdSrv, err := cmdserver.New(cmdserver.Deps{
		Config:             cfg.Cmd,
		Logger:             log,
		Credentials:        credentials,
		HTTPContext:        httpCtx,
		NotifyContext:      notifyCtx,
		APIServer:          apiSrv,
		NotifyWS:           notifyWS,
		AppVersion:         version,
		OnShutdownComplete: cancel,
	})
	if err != nil {
		return fmt.Errorf("creating cmd server: %w", err)
	}

	if err := apiSrv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		log.Info("closing api server")
		if closeErr := apiSrv.Close(); closeErr != nil {
			log.Error("error closing api server", "error", closeErr)
		}
	}()
	log.Info("api server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := cmdSrv.Start(ctx); err != nil {
		return fmt.Errorf("starting cmd server: %w", err)
	}
	defer func() {
		log.Info("closing cmd server")
		if closeErr := cmdSrv.Close(); closeErr != nil {
			log.Error("error closing cmd server", "error", closeErr)
		}
	}()
	log.Info("cmd server started", "address", fmt.Sprintf("%s:%d", cfg.Cmd.Host, cfg.Cmd.Port))

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: cmd server, then api
	// server. Both are idempotent no-ops if POST /close already closed them.

	return nil
}

// requestShutdown implements the one piece of option-parsing behaviour
// spec.md assigns to the external collaborator: probe a running emulator's
// command port with GET /info, then ask it to close with POST /close.
func requestShutdown(cmdPort int) error {
	base := fmt.Sprintf("http://127.0.0.1:%d", cmdPort)
	client := &http.Client{Timeout: 5 * time.Second}

	infoResp, err := client.Get(base + "/info")
	if err != nil {
		return fmt.Errorf("probing running emulator: %w", err)
	}
	infoResp.Body.Close() //nolint:errcheck

	closeResp, err := client.Post(base+"/close", "application/json", nil)
	if err != nil {
		return fmt.Errorf("requesting shutdown: %w", err)
	}
	defer closeResp.Body.Close() //nolint:errcheck

	return nil
}
