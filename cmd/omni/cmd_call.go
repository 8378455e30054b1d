package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/server"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, release, err := opts.dial()
			if err != nil {
				return err
			}
			defer release()
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStatus(w io.Writer, st server.Status) {
	fmt.Fprintf(w, "name:       %s\n", st.Name)
	fmt.Fprintf(w, "identity:   %s\n", st.Identity)
	fmt.Fprintf(w, "version:    %d\n", st.Version)
	if st.ServerVersion != "" {
		fmt.Fprintf(w, "server:     %s\n", st.ServerVersion)
	}
	fmt.Fprintf(w, "attributes: %v\n", st.Attributes)
}

func newCallCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [hex-cbor]",
		Short: "Call a method with raw CBOR arguments",
		Long: `Call a method and print the result in CBOR diagnostic notation.

The optional argument is the hex encoded CBOR payload, e.g.
  omni call echo a1006568656c6c6f`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 2 {
				decoded, err := decodeHexArg(args[1])
				if err != nil {
					return err
				}
				data = decoded
			}
			c, release, err := opts.dial()
			if err != nil {
				return err
			}
			defer release()
			result, err := c.CallRaw(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			return printCBOR(cmd.OutOrStdout(), result)
		},
	}
}

func decodeHexArg(raw string) ([]byte, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	data, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("argument is not hex: %w", err)
	}
	return data, nil
}

func printCBOR(w io.Writer, data []byte) error {
	if len(data) == 0 {
		fmt.Fprintln(w, "(empty)")
		return nil
	}
	diag, err := codec.Diagnose(data)
	if err != nil {
		fmt.Fprintf(w, "%x\n", data)
		return nil
	}
	fmt.Fprintln(w, diag)
	return nil
}
