package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/suteetoe/shopdash/internal/eventbus"
	"github.com/suteetoe/shopdash/internal/ingest"
	"github.com/suteetoe/shopdash/internal/realtime"
)

var errNoRedis = errors.New("dead letters are only shared through redis; set REDIS_ADDR")

func newDLQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered webhooks",
	}

	var count int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(false)
			if err != nil {
				return err
			}
			defer e.close()
			if e.redis == nil {
				return errNoRedis
			}

			entries, err := ingest.NewRedisDeadLetters(e.redis.Redis(), "").List(cmd.Context(), count)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTENANT\tTOPIC\tREASON\tATTEMPTS\tCREATED")
			for _, d := range entries {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\n",
					d.ID, d.Task.TenantID, d.Task.Topic, d.Reason, d.Task.Attempts, d.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	list.Flags().Int64Var(&count, "count", 50, "maximum entries to show")

	replay := &cobra.Command{
		Use:   "replay ID",
		Short: "Apply a dead-lettered task now and remove it on success",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(true)
			if err != nil {
				return err
			}
			defer e.close()
			if e.redis == nil {
				return errNoRedis
			}

			ctx := cmd.Context()
			dlq := ingest.NewRedisDeadLetters(e.redis.Redis(), "")
			entry, err := dlq.Get(ctx, args[0])
			if err != nil {
				return err
			}

			task := entry.Task
			task.Attempts = 0
			if entry.Reason == ingest.ReasonTenantNotFound {
				task.TenantID = 0
			}

			// broadcasts go through the backplane so running servers still notify their clients
			hub := realtime.NewHub(realtime.Options{
				Backplane: realtime.NewRedisBackplane(e.redis.Redis(), ""),
			}, e.log)
			defer hub.Close()
			publisher := eventbus.New(e.cfg.Kafka)
			defer publisher.Close()

			processor := ingest.NewProcessor(e.store(), e.directory(), hub, publisher)
			if err := processor.Process(ctx, &task); err != nil {
				return fmt.Errorf("replay %s: %w", entry.ID, err)
			}
			if err := dlq.Delete(ctx, entry.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %s (%s, tenant %d)\n", entry.ID, task.Topic, task.TenantID)
			return nil
		},
	}

	discard := &cobra.Command{
		Use:   "discard ID",
		Short: "Delete a dead letter without applying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(false)
			if err != nil {
				return err
			}
			defer e.close()
			if e.redis == nil {
				return errNoRedis
			}
			return ingest.NewRedisDeadLetters(e.redis.Redis(), "").Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, replay, discard)
	return cmd
}
