// Package server provides the public entry point for initializing the
// agent runtime server: it wires the Token Counter, Embedding Gateway,
// Action Executor, and HTTP router described in SPEC_FULL.md, and hands
// back a ready-to-serve http.Handler.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/agent-runtime/internal/actionexecutor"
	"github.com/agentoven/agent-runtime/internal/api"
	"github.com/agentoven/agent-runtime/internal/api/handlers"
	"github.com/agentoven/agent-runtime/internal/config"
	"github.com/agentoven/agent-runtime/internal/embeddinggateway"
	"github.com/agentoven/agent-runtime/internal/telemetry"
	"github.com/agentoven/agent-runtime/internal/tokencount"
)

// Config is the public configuration for the agent runtime server.
type Config struct {
	Port         int
	Version      string
	OTELEnabled  bool
	OTELEndpoint string
	ServiceName  string
}

// Server holds the initialized agent runtime.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Counter is the process-wide token usage registry. Exposed so a
	// caller embedding this server can inspect GlobalTotals directly.
	Counter *tokencount.Registry

	// Config is the server configuration.
	Config *Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := config.Load()
	return &Config{
		Port:         cfg.Port,
		Version:      cfg.Version,
		OTELEnabled:  cfg.Telemetry.Enabled,
		OTELEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	}
}

// New initializes all runtime components and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, LoadConfig())
}

// NewWithConfig initializes the runtime from the environment configuration,
// overriding the port with pubCfg.Port when it is positive. pubCfg's other
// fields are not applied; pubCfg itself is returned as Server.Config.
func NewWithConfig(ctx context.Context, pubCfg *Config) (*Server, error) {
	cfg := config.Load()
	if pubCfg.Port > 0 {
		cfg.Port = pubCfg.Port
	}

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	counter := tokencount.NewRegistry(cfg.TokenCounter.MaxSessions)
	log.Info().Int("max_sessions", cfg.TokenCounter.MaxSessions).Msg("token counter registry initialized")

	embedder := embeddinggateway.New()
	executor := actionexecutor.New()

	h := handlers.New(cfg, counter, embedder, executor)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Counter:      counter,
		Config:       pubCfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
