package main

import (
	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/model"
)

var (
	shortenTarget targetFlags
	shortenRole   string
	shortenOut    string
)

var shortenCmd = &cobra.Command{
	Use:   "shorten",
	Short: "Remove about one line of content from the resume",
	Long: "Asks the model to drop the least relevant content for the target role, about one " +
		"line's worth, so the resume fits on one page. Run `resumetailor compile` to check the page count.",
	Args: cobra.NoArgs,
	RunE: runShorten,
}

func init() {
	shortenTarget.register(shortenCmd)
	shortenCmd.Flags().StringVarP(&shortenRole, "role", "r", "", "target role used to judge relevance (default: the session's role)")
	shortenCmd.Flags().StringVarP(&shortenOut, "output", "o", "", "write the document to this file instead of stdout")
	rootCmd.AddCommand(shortenCmd)
}

func runShorten(cmd *cobra.Command, args []string) error {
	runSessionOperation(shortenTarget, model.Operation{Kind: model.KindShorten, Role: shortenRole}, shortenOut)
	return nil
}
