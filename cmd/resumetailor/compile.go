package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/compile"
)

var (
	compileTarget targetFlags
	compileOut    string
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the resume to PDF and check it fits on one page",
	Long:  "Sends the document to the LaTeX compile service, writes the PDF, and warns when it runs past one page.",
	Args:  cobra.NoArgs,
	RunE:  runCompile,
}

func init() {
	compileTarget.register(compileCmd)
	compileCmd.Flags().StringVarP(&compileOut, "output", "o", "resume.pdf", "PDF output path")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	compiler, err := setupCompiler(cfg, logger)
	if err != nil {
		logger.Error("failed to set up compiler", "error", err)
		os.Exit(1)
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	t, err := compileTarget.resolve(ctx, st)
	if err != nil {
		logger.Error("failed to load document", "error", err)
		os.Exit(1)
	}

	var pdf []byte
	_, err = withSpinner(ctx, "Compiling PDF...", func(ctx context.Context) (string, error) {
		var err error
		pdf, err = compiler.Compile(ctx, t.state.Document)
		return "", err
	})
	if err != nil {
		var ce *compile.CompileError
		if errors.As(err, &ce) && ce.Log != "" {
			fmt.Fprintln(os.Stderr, ce.Log)
		}
		logger.Error("compile failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(compileOut, pdf, 0o644); err != nil {
		logger.Error("failed to write PDF", "path", compileOut, "error", err)
		os.Exit(1)
	}

	pages, err := compile.PageCount(pdf)
	switch {
	case err != nil:
		logger.Warn("could not count pages", "error", err)
	case pages > 1:
		logger.Warn("resume is longer than one page; try `resumetailor shorten`", "pages", pages)
	}
	logger.Info("PDF written", "path", compileOut, "pages", pages, "bytes", len(pdf))
	return nil
}
