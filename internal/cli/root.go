// Package cli implements the quizconv command line.
package cli

import (
	"fmt"
	"os"

	"github.com/dgallion1/quizgest/internal/version"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the quizconv command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizconv",
		Short: "Extract multiple-choice questions from quiz documents",
		Long: `quizconv reads a quiz document (PDF, DOCX, Markdown, HTML or plain text),
rebuilds its text lines, and writes the questions it finds as a JSON array.
The correct answer of each question is the option printed in bold.`,
		SilenceUsage: true,
	}
	root.Version = version.Version
	root.SetVersionTemplate(fmt.Sprintf("quizconv %s\n", version.String()))

	root.AddCommand(newConvertCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quizconv %s\n", version.String())
		},
	}
}
