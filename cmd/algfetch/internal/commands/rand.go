package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/algfetch"
)

func initRandCommand(rootCmd *cobra.Command, h *Handler) {
	randCmd := &cobra.Command{
		Use:   "rand",
		Short: "Print random bytes in hex",
		Args:  cobra.NoArgs,
		RunE:  h.withLibrary(h.RandCmd),
	}
	randCmd.Flags().StringP("algorithm", "a", "SYSTEM", "Generator name")
	randCmd.Flags().IntP("bytes", "n", 32, "Number of bytes")
	rootCmd.AddCommand(randCmd)
}

// RandCmd instantiates a generator and draws once.
func (h *Handler) RandCmd(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("algorithm")
	n, err := cmd.Flags().GetInt("bytes")
	if err != nil {
		return fmt.Errorf("invalid bytes flag: %w", err)
	}

	r, err := h.app.Library.FetchRand(name, "")
	if err != nil {
		return err
	}
	defer r.Release()
	c, err := algfetch.NewRandCtx(r)
	if err != nil {
		return err
	}
	defer c.Free()
	if err := c.Instantiate(128, false, nil, nil); err != nil {
		return err
	}
	out, err := c.Generate(n, 128, false, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(out))
	return nil
}
