package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/example/call-scheduler/internal/config"
	"github.com/example/call-scheduler/internal/schedule"
	"github.com/example/call-scheduler/internal/scheduler"
	"github.com/example/call-scheduler/internal/store"
)

func newScheduleCmd(g *globalFlags) *cobra.Command {
	var (
		csvPath    string
		fromDB     bool
		source     string
		recurrence string
		dryRun     bool
	)

	c := &cobra.Command{
		Use:   "schedule",
		Short: "Register calls from a schedule and place them as they come due",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			if recurrence == "" {
				recurrence = cfg.Recurrence
			}
			rec, err := scheduler.ParseRecurrence(recurrence)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var entries []schedule.Entry
			if fromDB {
				entries, err = entriesFromDB(ctx, cfg, source)
			} else {
				entries, err = schedule.LoadFile(csvPath, schedule.Options{
					Location:           cfg.Location,
					DefaultCountryCode: cfg.DefaultCountryCode,
				})
			}
			if err != nil {
				return err
			}

			reg := scheduler.NewRegistry()
			jobs, err := scheduler.Register(reg, entries, rec, time.Now())
			if err != nil {
				return err
			}
			for _, j := range jobs {
				log.Info().
					Str("job_id", j.ID).
					Str("recipient", j.Entry.Name).
					Str("phone", j.Entry.Phone).
					Str("at", j.Entry.TimeOfDay()).
					Bool("active", j.Active()).
					Msg("scheduled call")
			}
			if dryRun {
				return printJobs(cmd.OutOrStdout(), jobs, rec, cfg.Location)
			}
			if len(jobs) == 0 {
				log.Warn().Msg("schedule is empty; nothing to do")
				return nil
			}

			d, err := newDispatcher(cfg, log)
			if err != nil {
				return err
			}
			s := &scheduler.Scheduler{
				Registry:     reg,
				Dispatcher:   d,
				Interval:     cfg.PollInterval,
				CallTimeout:  cfg.CallTimeout,
				Limiter:      newLimiter(cfg.CallRatePerSec),
				ExitWhenIdle: rec == scheduler.RecurOnce,
				Log:          log.With().Str("component", "scheduler").Logger(),
			}
			if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	c.Flags().StringVar(&csvPath, "csv", "", "schedule CSV (rep_name, phone_number, time_of_call)")
	c.Flags().BoolVar(&fromDB, "from-db", false, "load the schedule from DATABASE_URL instead of a CSV")
	c.Flags().StringVar(&source, "source", "", "with --from-db, only entries imported under this source")
	c.Flags().StringVar(&recurrence, "recurrence", "", "daily, once or both (default SCHED_RECURRENCE or daily)")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "print the registered jobs and exit without calling")
	c.MarkFlagsOneRequired("csv", "from-db")
	c.MarkFlagsMutuallyExclusive("csv", "from-db")
	return c
}

func entriesFromDB(ctx context.Context, cfg config.Config, source string) ([]schedule.Entry, error) {
	s, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s.ListEntries(ctx, source, cfg.Location)
}

// newLimiter paces calls at perSec; zero or less is unlimited.
func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}

func printJobs(w io.Writer, jobs []scheduler.Job, rec scheduler.Recurrence, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPHONE\tAT\tNEXT")
	for _, j := range jobs {
		next := "-"
		if j.Active() {
			next = j.Next.In(loc).Format(schedule.TimeLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Entry.Name, j.Entry.Phone, j.Entry.TimeOfDay(), next)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d job(s) registered (recurrence=%s)\n", len(jobs), rec)
	return err
}
