package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/events"
)

var errEnoughEvents = errors.New("event limit reached")

func (c *cli) newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect service events",
	}
	cmd.AddCommand(c.newEventsTailCmd())
	return cmd
}

func (c *cli) newEventsTailCmd() *cobra.Command {
	var (
		group string
		limit int
		types []string
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print query.executed and paper.retrieved events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(c.cfg.Kafka.Brokers) == 0 {
				return errors.New("no kafka brokers configured")
			}

			listener := events.NewListener(c.cfg.Kafka, group, c.logger)
			defer listener.Close()

			seen := 0
			err := listener.Run(cmd.Context(), func(_ context.Context, event *domain.Event) error {
				if !matchesType(event.Type, types) {
					return nil
				}
				if err := c.printEvent(event); err != nil {
					return err
				}
				seen++
				if limit > 0 && seen >= limit {
					return errEnoughEvents
				}
				return nil
			})
			if errors.Is(err, errEnoughEvents) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "consumer group; empty reads from the latest offset without committing")
	cmd.Flags().IntVar(&limit, "max", 0, "stop after this many events (0 runs until interrupted)")
	cmd.Flags().StringSliceVar(&types, "type", nil, "only print these event types")
	return cmd
}

func matchesType(eventType string, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == eventType {
			return true
		}
	}
	return false
}

func (c *cli) printEvent(event *domain.Event) error {
	if c.format == formatJSON {
		return c.printJSON(event)
	}
	_, err := fmt.Fprintf(c.out, "%s  %-16s  %s  %s\n",
		event.OccurredAt.UTC().Format(time.RFC3339), event.Type, event.EntityID, string(event.Payload))
	return err
}
