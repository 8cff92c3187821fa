package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/algfetch/property"
)

func initMatchCommand(rootCmd *cobra.Command) {
	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Report whether a property query matches a definition",
		Long: `Evaluate a property query against an implementation definition without
loading any provider. Prints "match" or "no match".`,
		Args: cobra.NoArgs,
		RunE: MatchCmd,
	}
	matchCmd.Flags().StringP("query", "q", "", "Property query, e.g. \"fips=yes,provider!=legacy\"")
	matchCmd.Flags().StringP("definition", "d", "", "Implementation definition, e.g. \"provider=default,fips=no\"")
	rootCmd.AddCommand(matchCmd)
}

// MatchCmd parses both strings and prints the verdict.
func MatchCmd(cmd *cobra.Command, _ []string) error {
	qs, _ := cmd.Flags().GetString("query")
	ds, _ := cmd.Flags().GetString("definition")
	q, err := property.Parse(qs)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	def, err := property.ParseDefinition(ds)
	if err != nil {
		return fmt.Errorf("definition: %w", err)
	}
	if q.Matches(def) {
		fmt.Fprintln(cmd.OutOrStdout(), "match")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "no match")
	}
	return nil
}
