package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aayushbajaj/trigcap/internal/report"
	"github.com/aayushbajaj/trigcap/internal/storage"
)

func newReportCmd(g *globalFlags) *cobra.Command {
	var (
		days int
		out  string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render recent captures as HTML and open it in the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			data, err := loadReport(store, days, time.Now())
			if err != nil {
				return err
			}
			path, err := report.WriteAndOpen(data, out)
			if path != "" {
				fprintf(cmd, "Report written to %s\n", path)
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days to include")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default a temporary file)")
	return cmd
}

func loadReport(store *storage.Store, days int, now time.Time) (report.Data, error) {
	stats, err := store.GetHistoricalStats(days)
	if err != nil {
		return report.Data{}, err
	}
	start := time.Date(now.Year(), now.Month(), now.Day()-days+1, 0, 0, 0, 0, time.Local)
	recs, err := store.ListCaptures(storage.Filter{Since: start})
	if err != nil {
		return report.Data{}, err
	}
	return report.Data{
		Title:     fmt.Sprintf("Captures, last %d days", days),
		Generated: now,
		Captures:  recs,
		Days:      stats,
	}, nil
}
