package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matchd-io/matchd/internal/daemon"
)

func init() {
	rootCmd.AddCommand(algorithmsCmd)
}

var algorithmsCmd = &cobra.Command{
	Use:     "algorithms",
	Aliases: []string{"algos"},
	Short:   "List the available matching algorithms",
	RunE:    runAlgorithms,
}

func runAlgorithms(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFALLBACK\tDIMENSIONS")
	for _, c := range d.Engine.Algorithms() {
		fallback := ""
		if c.Fallback {
			fallback = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, fallback, strings.Join(c.Dimensions, ", "))
	}
	return w.Flush()
}
