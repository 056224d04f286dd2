package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/handoff"
)

var (
	overleafTarget targetFlags
	overleafPrint  bool
)

var overleafCmd = &cobra.Command{
	Use:   "overleaf",
	Short: "Open the resume in Overleaf",
	Long: "Writes a small HTML page that posts the document to Overleaf and opens it in " +
		"your browser. With --print the page is written to stdout instead.",
	Args: cobra.NoArgs,
	RunE: runOverleaf,
}

func init() {
	overleafTarget.register(overleafCmd)
	overleafCmd.Flags().BoolVar(&overleafPrint, "print", false, "print the hand-off page instead of opening a browser")
	rootCmd.AddCommand(overleafCmd)
}

func runOverleaf(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	t, err := overleafTarget.resolve(ctx, st)
	if err != nil {
		logger.Error("failed to load document", "error", err)
		os.Exit(1)
	}

	editor := handoff.New(cfg.Handoff.URL, cfg.Handoff.Engine)
	if overleafPrint {
		page, err := editor.Page(t.state.Document)
		if err != nil {
			logger.Error("failed to render page", "error", err)
			os.Exit(1)
		}
		_, err = os.Stdout.Write(page)
		return err
	}

	path, err := editor.Open(t.state.Document)
	if err != nil {
		logger.Error("failed to open Overleaf", "page", path, "error", err)
		os.Exit(1)
	}
	logger.Info("opened Overleaf", "page", path)
	return nil
}
