package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/handoff"
	"github.com/amishk599/resumetailor/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP API",
	Long:  "Serves the resume operations over HTTP for browser extensions and scripts; blocks until SIGINT/SIGTERM.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := setupPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up model client", "error", err)
		os.Exit(1)
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	compiler, err := setupCompiler(cfg, logger)
	if err != nil {
		logger.Error("failed to set up compiler", "error", err)
		os.Exit(1)
	}
	tmpl, err := loadTemplate(cfg)
	if err != nil {
		logger.Error("failed to load resume template", "error", err)
		os.Exit(1)
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(server.Deps{
		Runner:      p,
		Store:       st,
		Compiler:    compiler,
		Editor:      handoff.New(cfg.Handoff.URL, cfg.Handoff.Engine),
		Template:    tmpl,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, logger)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
