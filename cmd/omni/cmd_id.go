package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"omni/go-backend/internal/identity"
)

func newIDCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Create and inspect identities",
	}

	var out string
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a mnemonic and print its identity",
		Long: `Generate a BIP-39 mnemonic and print the identity derived from it.

With --out the mnemonic is written to a key file readable only by the owner
and is not printed. OMNI_KEY_PASSPHRASE is mixed into the derivation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mnemonic, err := identity.NewMnemonic()
			if err != nil {
				return err
			}
			kp, err := identity.KeyPairFromMnemonic(mnemonic, os.Getenv("OMNI_KEY_PASSPHRASE"))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" {
				if _, err := os.Stat(out); err == nil {
					return fmt.Errorf("%s already exists", out)
				}
				if err := identity.WriteKeyFile(out, mnemonic); err != nil {
					return err
				}
				fmt.Fprintf(w, "key file: %s\n", out)
			} else {
				fmt.Fprintf(w, "mnemonic: %s\n", mnemonic)
			}
			fmt.Fprintf(w, "identity: %s\n", kp.Identity())
			return nil
		},
	}
	newCmd.Flags().StringVar(&out, "out", "", "Write the mnemonic to this key file")

	showCmd := &cobra.Command{
		Use:   "show [identity]",
		Short: "Print the identity of --key-file, or decode an identity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				id, err := identity.Parse(args[0])
				if err != nil {
					return err
				}
				printIdentity(w, id)
				return nil
			}
			if opts.keyFile == "" {
				return errors.New("either an identity argument or --key-file is required")
			}
			kp, err := identity.LoadKeyFile(opts.keyFile, os.Getenv("OMNI_KEY_PASSPHRASE"))
			if err != nil {
				return err
			}
			printIdentity(w, kp.Identity())
			return nil
		},
	}

	cmd.AddCommand(newCmd, showCmd)
	return cmd
}

func printIdentity(w io.Writer, id identity.Identity) {
	fmt.Fprintf(w, "identity: %s\n", id)
	fmt.Fprintf(w, "kind:     %s\n", id.Kind())
	fmt.Fprintf(w, "bytes:    %x\n", id.Bytes())
	if sub, ok := id.Subresource(); ok {
		fmt.Fprintf(w, "parent:   %s\n", id.Parent())
		fmt.Fprintf(w, "sub:      %d\n", sub)
	}
}
