package main

import (
	"os"

	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print the resume template",
	Long:  "Prints the configured resume template (resume.template), or the built-in one. Redirect it to a file to start your own.",
	Args:  cobra.NoArgs,
	RunE:  runTemplate,
}

func init() {
	rootCmd.AddCommand(templateCmd)
}

func runTemplate(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)

	tmpl, err := loadTemplate(cfg)
	if err != nil {
		logger.Error("failed to load resume template", "error", err)
		os.Exit(1)
	}
	return writeDocument("", tmpl)
}
