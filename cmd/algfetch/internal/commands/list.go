package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/algfetch"
)

func initListCommand(rootCmd *cobra.Command, h *Handler) {
	listCmd := &cobra.Command{
		Use:   "list <operation>",
		Short: "List implementations of an operation kind",
		Long: `List every implementation of an operation kind in search order: providers
in registration order, then legacy implementations.

Operations: digest, cipher, mac, kdf, rand, keymgmt, keyexch, signature, asymcipher.`,
		Args: cobra.ExactArgs(1),
		RunE: h.withLibrary(h.ListCmd),
	}
	rootCmd.AddCommand(listCmd)
}

// ListCmd prints one row per implementation.
func (h *Handler) ListCmd(cmd *cobra.Command, args []string) error {
	op, err := algfetch.ParseOperation(args[0])
	if err != nil {
		return err
	}
	infos, err := h.app.Library.List(op)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tALIASES\tPROVIDER\tPROPERTIES")
	for _, in := range infos {
		prov := in.Provider
		if in.Legacy {
			prov = "(legacy)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", in.Name, strings.Join(in.Names, ","), prov, in.Properties)
	}
	return tw.Flush()
}
