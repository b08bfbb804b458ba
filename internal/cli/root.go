// Package cli implements bookctl, a terminal front end for the booking
// API.  It drives the same booking session the web app uses, talking to
// the server through the HTTP client.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/client"
	"github.com/iliyamo/studio-booking/internal/logging"
	"github.com/iliyamo/studio-booking/internal/model"
)

type options struct {
	apiURL  string
	token   string
	verbose bool
	timeout time.Duration
}

func (o *options) logger() *zap.Logger {
	if o.verbose {
		if l, err := logging.New("development"); err == nil {
			return l
		}
	}
	return logging.Quiet()
}

func (o *options) client() (*client.Client, error) {
	return client.New(o.apiURL, o.token, client.WithLogger(o.logger()))
}

// NewRoot builds the bookctl command tree.
func NewRoot() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "bookctl",
		Short:         "Book studio resources from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("BOOKING_API_URL", "http://localhost:8080"), "booking API base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("BOOKING_TOKEN"), "bearer token for member endpoints")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests and state changes")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall command timeout")

	cmd.AddCommand(newResourcesCmd(opts))
	cmd.AddCommand(newServicesCmd(opts))
	cmd.AddCommand(newSlotsCmd(opts))
	cmd.AddCommand(newBookCmd(opts))
	cmd.AddCommand(newMineCmd(opts))
	cmd.AddCommand(newCancelCmd(opts))
	cmd.AddCommand(newTokenCmd())
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseDate reads YYYY-MM-DD as local midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout, s, loc)
}
