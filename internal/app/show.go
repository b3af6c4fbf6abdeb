package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent observations.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	observations, err := store.History(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTime (UTC)\tPrice\tUnit")

	for _, obs := range observations {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\n",
			obs.ID,
			obs.Timestamp.UTC().Format(time.RFC3339),
			obs.Price.StringFixed(2),
			obs.Unit,
		)
	}

	writer.Flush()
	return nil
}
