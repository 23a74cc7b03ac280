package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/call-scheduler/internal/schedule"
	"github.com/example/call-scheduler/internal/store"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	var csvPath, source string

	c := &cobra.Command{
		Use:   "import",
		Short: "Validate a schedule CSV and store it in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			entries, err := schedule.LoadFile(csvPath, schedule.Options{
				Location:           cfg.Location,
				DefaultCountryCode: cfg.DefaultCountryCode,
			})
			if err != nil {
				return err
			}
			if source == "" {
				source = strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
			}

			ctx := cmd.Context()
			s, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Ping(ctx); err != nil {
				return err
			}
			if err := s.Migrate(ctx); err != nil {
				return err
			}

			n, err := s.ReplaceEntries(ctx, source, entries)
			if err != nil {
				return err
			}
			log.Info().Str("source", source).Int64("entries", n).Msg("schedule imported")
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries as %q\n", n, source)
			return nil
		},
	}

	c.Flags().StringVar(&csvPath, "csv", "", "schedule CSV to import")
	c.Flags().StringVar(&source, "source", "", "name to store the entries under (default: file name)")
	_ = c.MarkFlagRequired("csv")
	return c
}
