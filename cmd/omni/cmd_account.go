package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"omni/go-backend/internal/identity"
	"omni/go-backend/internal/server/account"
)

func newAccountCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts on the server",
	}

	var description string
	var ledger bool
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account owned by --key-file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, release, err := opts.dial()
			if err != nil {
				return err
			}
			defer release()
			args := account.CreateArgs{}
			if cmd.Flags().Changed("description") {
				args.Description = &description
			}
			if ledger {
				args.Features = []account.WireFeature{{ID: account.LedgerFeatureID}}
			}
			var out account.CreateReturn
			if err := c.Call(cmd.Context(), account.MethodCreate, args, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "Account description")
	createCmd.Flags().BoolVar(&ledger, "ledger", false, "Enable the ledger feature")

	infoCmd := &cobra.Command{
		Use:   "info <account>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Parse(args[0])
			if err != nil {
				return err
			}
			c, release, err := opts.dial()
			if err != nil {
				return err
			}
			defer release()
			var info account.InfoReturn
			if err := c.Call(cmd.Context(), account.MethodInfo, account.InfoArgs{Account: id}, &info); err != nil {
				return err
			}
			printAccount(cmd.OutOrStdout(), id, info)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <account>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Parse(args[0])
			if err != nil {
				return err
			}
			c, release, err := opts.dial()
			if err != nil {
				return err
			}
			defer release()
			return c.Call(cmd.Context(), account.MethodDelete, account.DeleteArgs{Account: id}, nil)
		},
	}

	grantCmd := &cobra.Command{
		Use:   "grant <account> <identity> <role>...",
		Short: "Add roles to an identity",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeRoles(cmd, opts, account.MethodAddRoles, args)
		},
	}
	revokeCmd := &cobra.Command{
		Use:   "revoke <account> <identity> <role>...",
		Short: "Remove roles from an identity",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeRoles(cmd, opts, account.MethodRemoveRoles, args)
		},
	}

	cmd.AddCommand(createCmd, infoCmd, deleteCmd, grantCmd, revokeCmd)
	return cmd
}

func changeRoles(cmd *cobra.Command, opts *globalOptions, method string, args []string) error {
	acc, err := identity.Parse(args[0])
	if err != nil {
		return err
	}
	holder, err := identity.Parse(args[1])
	if err != nil {
		return err
	}
	roles := make([]account.Role, 0, len(args)-2)
	for _, r := range args[2:] {
		roles = append(roles, account.Role(r))
	}
	c, release, err := opts.dial()
	if err != nil {
		return err
	}
	defer release()
	// Add and remove share the same argument layout.
	payload := account.AddRolesArgs{
		Account: acc,
		Roles:   account.RoleMap{holder: account.NewRoleSet(roles...)},
	}
	return c.Call(cmd.Context(), method, payload, nil)
}

func printAccount(w io.Writer, id identity.Identity, info account.InfoReturn) {
	fmt.Fprintf(w, "account:     %s\n", id)
	if info.Description != nil {
		fmt.Fprintf(w, "description: %s\n", *info.Description)
	}
	for _, holder := range info.Roles.Identities() {
		fmt.Fprintf(w, "role:        %s %v\n", holder, info.Roles[holder].Sorted())
	}
	for _, f := range info.Features {
		fmt.Fprintf(w, "feature:     %d\n", f.ID)
	}
}
