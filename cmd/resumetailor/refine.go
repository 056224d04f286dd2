package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/model"
)

var (
	refineTarget targetFlags
	refineOut    string
)

var refineCmd = &cobra.Command{
	Use:   "refine <instruction>",
	Short: "Apply a plain-language change to the resume",
	Long: "Sends the current document and your instruction to the model and prints the " +
		"revised document. Works on the most recent session unless --session or --in is given.",
	Example: "  resumetailor refine \"emphasize Kubernetes and move Projects above Education\"",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runRefine,
}

func init() {
	refineTarget.register(refineCmd)
	refineCmd.Flags().StringVarP(&refineOut, "output", "o", "", "write the document to this file instead of stdout")
	rootCmd.AddCommand(refineCmd)
}

func runRefine(cmd *cobra.Command, args []string) error {
	op := model.Operation{Kind: model.KindRefine, Instruction: strings.Join(args, " ")}
	runSessionOperation(refineTarget, op, refineOut)
	return nil
}

// runSessionOperation applies op to the selected target and writes the
// result. Failures exit the process.
func runSessionOperation(tf targetFlags, op model.Operation, out string) {
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

	t, err := tf.resolve(ctx, st)
	if err != nil {
		logger.Error("failed to load document", "error", err)
		os.Exit(1)
	}

	next, rev, err := applyOperation(ctx, p, st, t, op)
	if err != nil {
		logger.Error(string(op.Kind)+" failed", "error", err)
		os.Exit(1)
	}

	if err := writeDocument(out, next.Document); err != nil {
		logger.Error("failed to write document", "error", err)
		os.Exit(1)
	}
	if t.session != nil {
		logger.Info("revision saved", "session", t.session.ID, "revision", rev.Seq, "kind", op.Kind)
	}
}
