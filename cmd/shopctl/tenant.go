package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/suteetoe/shopdash/internal/model"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage connected stores",
	}

	var domain, name, token, secret string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(true)
			if err != nil {
				return err
			}
			defer e.close()

			t := &model.Tenant{StoreDomain: domain, DisplayName: name, AccessToken: token}
			if secret != "" {
				t.WebhookSecret = &secret
			}
			if err := e.directory().Create(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %d created for %s\n", t.ID, t.StoreDomain)
			return nil
		},
	}
	add.Flags().StringVar(&domain, "domain", "", "store domain, e.g. acme.myshopify.com")
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&token, "token", "", "Admin API access token")
	add.Flags().StringVar(&secret, "webhook-secret", "", "webhook signing secret")
	add.MarkFlagRequired("domain")

	var rotateToken, rotateSecret string
	rotate := &cobra.Command{
		Use:   "rotate TENANT_ID",
		Short: "Replace a store's credentials; the old webhook secret keeps verifying until the next rotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTenantArg(args[0])
			if err != nil {
				return err
			}
			e, err := connect(true)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.directory().RotateCredentials(cmd.Context(), id, rotateToken, rotateSecret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %d credentials rotated\n", id)
			return nil
		},
	}
	rotate.Flags().StringVar(&rotateToken, "token", "", "new Admin API access token")
	rotate.Flags().StringVar(&rotateSecret, "webhook-secret", "", "new webhook signing secret")

	list := &cobra.Command{
		Use:   "list",
		Short: "List connected stores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(true)
			if err != nil {
				return err
			}
			defer e.close()

			tenants, err := e.directory().ListAll(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDOMAIN\tNAME\tSECRETS")
			for i := range tenants {
				t := &tenants[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", t.ID, t.StoreDomain, t.DisplayName, len(t.WebhookSecrets()))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, rotate, list)
	return cmd
}
