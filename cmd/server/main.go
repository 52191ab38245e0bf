// Command server runs the relais gateway.
//
// It exposes an OpenAI-compatible Chat Completions API on the configured
// port and relays requests to the Code Assist backend using the stored
// OAuth credential. Run "relais-login" first to acquire one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mbertram/relais/pkg/auth"
	"github.com/mbertram/relais/pkg/codeassist"
	"github.com/mbertram/relais/pkg/config"
	"github.com/mbertram/relais/pkg/debug"
	"github.com/mbertram/relais/pkg/engine"
	"github.com/mbertram/relais/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: discover)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	store := auth.NewFileStore(cfg.Auth.CredentialsFile)
	manager := auth.NewManager(store)
	if err := manager.Load(); err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}
	if manager.Credential() == nil {
		logger.Warn("no stored credential, requests will fail until login",
			"credentials_file", cfg.Auth.CredentialsFile)
	}

	if cfg.Auth.ProjectID != "" {
		if err := manager.SetProjectID(cfg.Auth.ProjectID); err != nil {
			return fmt.Errorf("setting project: %w", err)
		}
	}

	client := codeassist.NewClient(manager, codeassist.NewDispatcher(cfg.Backend.Hosts, nil))

	// Resolve the backend project at startup when the credential does not
	// carry one yet. Failures are tolerated here so the server can still
	// come up; requests then fall back to the default project until a
	// later login persists a resolved one.
	if manager.Credential() != nil && manager.ProjectID() == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		project, err := client.ResolveProject(ctx)
		cancel()
		if err != nil {
			if errors.Is(err, auth.ErrAuthenticationRequired) {
				return err
			}
			logger.Warn("project resolution failed", "error", err.Error())
		} else if err := manager.SetProjectID(project); err != nil {
			return fmt.Errorf("persisting project: %w", err)
		} else {
			logger.Info("project resolved", "project", project)
		}
	}

	eng := engine.New(client, manager)

	srv := transport.NewServer(eng,
		transport.WithAddr(cfg.Server.Addr()),
		transport.WithAPIKey(cfg.Server.APIKey),
		transport.WithMaxBodySize(cfg.Server.MaxBodyBytes),
		transport.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transport.WithLogger(logger),
	)
	return srv.ListenAndServe()
}

func newLogger(cfg config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: debug.ParseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
