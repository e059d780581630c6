package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matchd-io/matchd/internal/daemon"
)

func init() {
	matchCmd.Flags().StringVarP(&matchFile, "file", "f", "", `Path to a {candidate, jobs, options} request document ("-" for stdin)`)
	_ = matchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(matchCmd)
}

var matchFile string

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run a one-shot match locally",
	Long: `Match a candidate against job postings without going through the HTTP
server, printing the same envelope POST /match returns.

Example request.json:
  {
    "candidate": {"skills": ["python", "django"], "location": "Paris"},
    "jobs": [{"id": "job-1", "required_skills": ["python"], "location": "Paris"}],
    "options": {"algorithm": "auto", "min_score": 0.5}
  }`,
	RunE: runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	req, err := loadRequest(matchFile)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	// Request options overlay the configured defaults, as on the HTTP path.
	opts := d.Engine.DefaultOptions()
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			return fmt.Errorf("parse options: %w", err)
		}
	}

	resp, err := d.Engine.Match(cmd.Context(), req.Candidate, req.Jobs, opts)
	if err != nil {
		return err
	}
	return printJSON(resp)
}
