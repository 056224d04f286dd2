package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/resume"
)

var techsTarget targetFlags

var techsCmd = &cobra.Command{
	Use:   "techs",
	Short: "List the technologies mentioned in the resume",
	Long:  "Scans the document for known languages, frameworks, databases, cloud tools and methodologies, grouped by category.",
	Args:  cobra.NoArgs,
	RunE:  runTechs,
}

func init() {
	techsTarget.register(techsCmd)
	rootCmd.AddCommand(techsCmd)
}

func runTechs(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)
	ctx := context.Background()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	t, err := techsTarget.resolve(ctx, st)
	if err != nil {
		logger.Error("failed to load document", "error", err)
		os.Exit(1)
	}

	lines := resume.SummarizeTechnologies(t.state.Document)
	if len(lines) == 0 {
		fmt.Println("No known technologies found.")
		return nil
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
