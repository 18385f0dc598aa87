// gsm-dlq is the operator CLI for the dead-letter queue: list, show, and
// replay failed deliveries.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/greentic/messaging/internal/platform"
	"github.com/greentic/messaging/pkg/bus"
	"github.com/greentic/messaging/pkg/dlq"
)

var jsonOut bool

func main() {
	root := &cobra.Command{
		Use:           "gsm-dlq",
		Short:         "Inspect and replay the messaging dead-letter queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit JSON output")

	root.AddCommand(listCmd(), showCmd(), replayCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// connect dials the bus and binds the DLQ stream store.
func connect(ctx context.Context) (*dlq.StreamStore, *bus.JetStreamBus, func(), error) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://127.0.0.1:4222"
	}
	nc, js, err := platform.Connect(url, "gsm-dlq")
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := dlq.NewStreamStore(ctx, js)
	if err != nil {
		nc.Close()
		return nil, nil, nil, err
	}
	return store, bus.NewJetStreamBus(js), nc.Close, nil
}

func listCmd() *cobra.Command {
	var tenant, stage string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List DLQ entries for a tenant/stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, _, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := store.List(ctx, tenant, stage, limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Printf("No DLQ entries for tenant=%s stage=%s\n", tenant, stage)
				return nil
			}
			printTable(entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&stage, "stage", "", "stage (platform)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <sequence>",
		Short: "Show a DLQ entry by stream sequence id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sequence, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid sequence %q", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, _, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			entry, err := store.Get(ctx, sequence)
			if err != nil {
				if errors.Is(err, dlq.ErrNotFound) {
					return fmt.Errorf("dlq entry %d not found", sequence)
				}
				return err
			}

			if jsonOut {
				return printJSON(entry)
			}

			rec := entry.Record
			fmt.Printf("sequence : %d\n", entry.Sequence)
			fmt.Printf("tenant   : %s\n", rec.Tenant)
			fmt.Printf("stage    : %s\n", rec.Stage)
			fmt.Printf("platform : %s\n", rec.Platform)
			fmt.Printf("msg_id   : %s\n", rec.MsgID)
			fmt.Printf("code     : %s\n", rec.Error.Code)
			fmt.Printf("message  : %s\n", rec.Error.Message)
			fmt.Printf("retries  : %d\n", rec.Retries)
			fmt.Printf("timestamp: %s\n", rec.TS)
			envelope, err := json.MarshalIndent(rec.Envelope, "", "  ")
			if err != nil {
				return err
			}
			fmt.Printf("envelope : %s\n", envelope)
			return nil
		},
	}
	return cmd
}

func replayCmd() *cobra.Command {
	var tenant, stage, to string
	var limit int

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay DLQ entries to another stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			store, publisher, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			results, err := dlq.Replay(ctx, store, publisher, tenant, stage, to, limit)
			if err != nil {
				return err
			}

			var replayed []dlq.Entry
			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "sequence %d failed: %v\n", res.Entry.Sequence, res.Err)
					continue
				}
				replayed = append(replayed, res.Entry)
			}

			if jsonOut {
				if err := printJSON(map[string]any{"target_stage": to, "processed": replayed}); err != nil {
					return err
				}
			} else if len(replayed) == 0 {
				fmt.Printf("No DLQ entries replayed for tenant=%s stage=%s\n", tenant, stage)
			} else {
				fmt.Printf("Replayed %d entries to stage %s\n", len(replayed), to)
				printTable(replayed)
			}

			if failed > 0 {
				return fmt.Errorf("%d entries failed to replay", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&stage, "stage", "", "source stage")
	cmd.Flags().StringVar(&to, "to", "", "target stage")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum entries")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printTable(entries []dlq.Entry) {
	fmt.Printf("%-8s %-10s %-10s %-10s %-12s %-7s %s\n", "SEQ", "TENANT", "STAGE", "PLATFORM", "CODE", "RETRY", "TS")
	for _, entry := range entries {
		rec := entry.Record
		fmt.Printf("%-8d %-10s %-10s %-10s %-12s %-7d %s\n",
			entry.Sequence, rec.Tenant, rec.Stage, rec.Platform, rec.Error.Code, rec.Retries, rec.TS)
	}
}
