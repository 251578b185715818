package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type dlqAdmin interface {
	Recent(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

// dlqCommand backs the -dlq and -requeue flags.
type dlqCommand struct {
	repo  dlqAdmin
	out   io.Writer
	limit int
}

func (c dlqCommand) run(ctx context.Context, list bool, requeue string) error {
	if requeue != "" {
		id, err := uuid.Parse(requeue)
		if err != nil {
			return fmt.Errorf("invalid event id %q: %w", requeue, err)
		}
		if err := c.repo.Requeue(ctx, id); err != nil {
			return fmt.Errorf("requeue %s: %w", id, err)
		}
		fmt.Fprintln(c.out, "requeued", id)
	}
	if !list {
		return nil
	}

	rows, err := c.repo.Recent(ctx, c.limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FAILED AT\tEVENT\tTYPE\tREASON\tATTEMPTS\tERROR")
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			row.FailedAt.UTC().Format(time.RFC3339), row.EventID, row.EventType, row.ErrorReason, row.AttemptCount, msg)
	}
	return tw.Flush()
}
