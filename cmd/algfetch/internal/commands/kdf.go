package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

func initKDFCommand(rootCmd *cobra.Command, h *Handler) {
	kdfCmd := &cobra.Command{
		Use:   "kdf",
		Short: "Derive a key and print it in hex",
		Args:  cobra.NoArgs,
		RunE:  h.withLibrary(h.KDFCmd),
	}
	kdfCmd.Flags().StringP("algorithm", "a", "PBKDF2", "KDF name")
	kdfCmd.Flags().StringP("query", "q", "", "Property query")
	kdfCmd.Flags().String("pass", "", "Password or input key material")
	kdfCmd.Flags().String("salt", "", "Salt")
	kdfCmd.Flags().Uint64("iter", 0, "Iteration count; 0 uses the implementation default")
	kdfCmd.Flags().Int("len", 32, "Output length in bytes")
	_ = kdfCmd.MarkFlagRequired("pass")
	rootCmd.AddCommand(kdfCmd)
}

// KDFCmd derives --len bytes. For HKDF --pass is the input key material.
func (h *Handler) KDFCmd(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("algorithm")
	query, _ := cmd.Flags().GetString("query")
	pass, _ := cmd.Flags().GetString("pass")
	salt, _ := cmd.Flags().GetString("salt")
	iter, _ := cmd.Flags().GetUint64("iter")
	length, err := cmd.Flags().GetInt("len")
	if err != nil {
		return fmt.Errorf("invalid len flag: %w", err)
	}

	k, err := h.app.Library.FetchKDF(name, query)
	if err != nil {
		return err
	}
	defer k.Release()
	c, err := algfetch.NewKDFCtx(k)
	if err != nil {
		return err
	}
	defer c.Free()

	secret := param.KeyPassword
	if k.IsA("HKDF") {
		secret = param.KeyKey
	}
	ps := param.Params{
		param.Octets(secret, []byte(pass)),
		param.Octets(param.KeySalt, []byte(salt)),
	}
	if iter > 0 {
		ps = append(ps, param.Uint(param.KeyIter, iter))
	}
	out, err := c.Derive(length, ps)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(out))
	return nil
}
