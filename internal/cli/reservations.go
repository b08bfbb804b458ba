package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/studio-booking/internal/model"
)

func newMineCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your reservations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			list, err := cl.MyReservations(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tRESOURCE\tSTART (UTC)\tEND (UTC)\tSTATUS\tTITLE")
			for _, r := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.ResourceID,
					r.StartTime.UTC().Format(model.DateLayout+" "+model.ClockLayout),
					r.EndTime.UTC().Format(model.ClockLayout),
					r.Status, r.Title)
			}
			return w.Flush()
		},
	}
}

func newCancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel RESERVATION_ID",
		Short: "Cancel one of your reservations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if err := cl.Cancel(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
			return nil
		},
	}
}
