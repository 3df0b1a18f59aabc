package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/bibe/internal/providers"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List supported sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 4, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tHOSTS")

		for _, s := range providers.Sites() {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", s.Name, strings.Join(s.Hosts, ", "))
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}
