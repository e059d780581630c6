package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matchd-io/matchd/internal/daemon"
)

func init() {
	explainCmd.Flags().StringVarP(&explainFile, "file", "f", "", `Path to a {candidate, jobs} request document ("-" for stdin)`)
	_ = explainCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(explainCmd)
}

var explainFile string

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain which algorithm the selector would pick",
	Long: `Show the selector's rationale for a request: the chosen variant, the
rule that fired, and what every other variant would have done.`,
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	req, err := loadRequest(explainFile)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	exp, err := d.Engine.Explain(req.Candidate, req.Jobs)
	if err != nil {
		return err
	}
	return printJSON(exp)
}
