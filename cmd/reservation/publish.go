package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/uma-arai/sbcntr-reservation/internal/common/config"
	"github.com/uma-arai/sbcntr-reservation/internal/messaging"
)

const publishFlushTimeout = 5 * time.Second

func newPublishCommand(opts *rootOptions) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "publish NAME...",
		Short: "Send reservation names to the inbound subject",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if subject == "" {
				subject = cfg.NATS.Subject
			}

			conn, err := messaging.Connect(cfg.NATS)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), publishFlushTimeout)
			defer cancel()

			if err := publishNames(ctx, conn, subject, args); err != nil {
				return err
			}
			if err := conn.Flush(ctx); err != nil {
				return fmt.Errorf("failed to flush published names: %w", err)
			}

			log.Printf("Published %d names to %s", len(args), subject)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "subject to publish to (defaults to the configured inbound subject)")

	return cmd
}

// publishNames sends each name as a raw UTF-8 payload.
func publishNames(ctx context.Context, pub messaging.Publisher, subject string, names []string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := pub.Publish(subject, []byte(name)); err != nil {
			return err
		}
	}
	return nil
}
