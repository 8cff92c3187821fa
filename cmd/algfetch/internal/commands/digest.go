package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/algfetch"
)

const readChunk = 32 << 10

func initDigestCommand(rootCmd *cobra.Command, h *Handler) {
	digestCmd := &cobra.Command{
		Use:   "digest [file]",
		Short: "Print the hex digest of a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE:  h.withLibrary(h.DigestCmd),
	}
	digestCmd.Flags().StringP("algorithm", "a", "SHA2-256", "Digest name")
	digestCmd.Flags().StringP("query", "q", "", "Property query")
	rootCmd.AddCommand(digestCmd)
}

// DigestCmd streams the input through a digest context.
func (h *Handler) DigestCmd(cmd *cobra.Command, args []string) error {
	name, err := cmd.Flags().GetString("algorithm")
	if err != nil {
		return fmt.Errorf("invalid algorithm flag: %w", err)
	}
	query, err := cmd.Flags().GetString("query")
	if err != nil {
		return fmt.Errorf("invalid query flag: %w", err)
	}

	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(filepath.Clean(args[0]))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	md, err := h.app.Library.FetchDigest(name, query)
	if err != nil {
		return err
	}
	defer md.Release()
	c, err := algfetch.NewDigestCtx(md)
	if err != nil {
		return err
	}
	defer c.Free()
	if err := c.Init(nil); err != nil {
		return err
	}
	buf := make([]byte, readChunk)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if err := c.Update(buf[:n]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	sum, err := c.Final()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sum))
	return nil
}
