package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/studio-booking/internal/model"
)

func newResourcesCmd(opts *options) *cobra.Command {
	var kind string
	c := &cobra.Command{
		Use:   "resources",
		Short: "List bookable resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var t model.BookingType
			if kind != "" {
				parsed, err := model.ParseBookingType(kind)
				if err != nil {
					return err
				}
				t = parsed
			}
			cl, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			list, err := cl.Resources(ctx, t)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tCAPACITY\tTIMEZONE")
			for _, r := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Name, r.BookingType, r.Capacity, r.Timezone)
			}
			return w.Flush()
		},
	}
	c.Flags().StringVar(&kind, "type", "", "only this booking type (equipment, space, workshop, person)")
	return c
}

func newServicesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "services RESOURCE_ID",
		Short: "List services and staff offered on a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			cat, err := cl.Services(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tNAME\tMINUTES\tPRICE")
			for _, s := range cat.Services {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Name, s.DurationMinutes, formatCents(s.PriceCents))
			}
			if len(cat.Staff) > 0 {
				fmt.Fprintln(w, "\nSTAFF\tNAME\tAVAILABLE\t")
				for _, st := range cat.Staff {
					fmt.Fprintf(w, "%s\t%s\t%t\t\n", st.ID, st.Name, st.Available)
				}
			}
			return w.Flush()
		},
	}
}

func newSlotsCmd(opts *options) *cobra.Command {
	var (
		date     string
		duration time.Duration
		all      bool
	)
	c := &cobra.Command{
		Use:   "slots RESOURCE_ID",
		Short: "Show the time slots offered on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			res, err := cl.Resource(ctx, args[0])
			if err != nil {
				return err
			}
			loc := res.Zone()
			day, err := parseDate(date, loc)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			slots, err := cl.Slots(ctx, res.ID, day, duration)
			if err != nil {
				return err
			}
			printSlots(cmd, slots, loc, all)
			return nil
		},
	}
	c.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "date as YYYY-MM-DD")
	c.Flags().DurationVar(&duration, "duration", time.Hour, "booking length")
	c.Flags().BoolVar(&all, "all", false, "include unavailable slots")
	return c
}

func printSlots(cmd *cobra.Command, slots []model.Slot, loc *time.Location, all bool) {
	out := cmd.OutOrStdout()
	shown := 0
	for _, s := range slots {
		if !s.Available && !all {
			continue
		}
		mark := ""
		if !s.Available {
			mark = "  (taken)"
		}
		fmt.Fprintf(out, "%s-%s%s\n", s.Start.In(loc).Format(model.ClockLayout), s.End.In(loc).Format(model.ClockLayout), mark)
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(out, "no slots available")
	}
}

func formatCents(c int64) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}
