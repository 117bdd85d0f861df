package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suteetoe/shopdash/internal/middleware"
	"github.com/suteetoe/shopdash/internal/shopify"
)

func parseTenantArg(raw string) (uint, error) {
	id, ok := middleware.ParseTenantID(raw)
	if !ok {
		return 0, fmt.Errorf("tenant id must be a positive integer, got %q", raw)
	}
	return id, nil
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync TENANT_ID",
		Short: "Pull a store's customers, products, orders and locations from the platform",
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

			t, err := e.directory().ResolveByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			result, err := shopify.NewSyncer(e.store(), shopify.NewClientFactory(e.cfg.Shopify)).SyncTenant(cmd.Context(), t)
			if err != nil {
				return err
			}
			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			return out.Encode(result)
		},
	}
}
