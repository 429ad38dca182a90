package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aayushbajaj/trigcap/internal/storage"
	"github.com/aayushbajaj/trigcap/internal/timer"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

func newTimerCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Inspect timer history and tags",
	}
	cmd.AddCommand(newTimerTagsCmd(g), newTimerHistoryCmd(g))
	return cmd
}

func newTimerTagsCmd(g *globalFlags) *cobra.Command {
	var (
		limit int
		add   []string
	)
	cmd := &cobra.Command{
		Use:   "tags [query]",
		Short: "List known tags, ranked by fuzzy match when a query is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, tag := range add {
				if err := store.AddKnownTag(tag); err != nil {
					return err
				}
			}
			known, err := store.KnownTags()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			for _, tag := range timer.SuggestTags(query, known, limit) {
				fprintf(cmd, "#%s\n", tag)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of tags (0 for all)")
	cmd.Flags().StringSliceVar(&add, "add", nil, "Add tags to the known set before listing")
	return cmd
}

func newTimerHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		days int
		tag  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show tracked time per day and per tag",
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

			stats, err := store.GetHistoricalStats(days)
			if err != nil {
				return err
			}
			kind := trigger.KindTimer
			now := time.Now()
			start := time.Date(now.Year(), now.Month(), now.Day()-days+1, 0, 0, 0, 0, time.Local)
			recs, err := store.ListCaptures(storage.Filter{Kind: &kind, Since: start, Tag: tag})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if tag == "" {
				fmt.Fprintln(w, "DATE\tTIMERS\tTIME")
				for _, d := range stats {
					fmt.Fprintf(w, "%s\t%d\t%s\n", d.Date, d.Timers, time.Duration(d.TimerSeconds)*time.Second)
				}
				fmt.Fprintln(w)
			}

			byTag := map[string]time.Duration{}
			var order []string
			for _, r := range recs {
				tags := r.Tags
				if len(tags) == 0 {
					tags = []string{""}
				}
				for _, t := range tags {
					if _, ok := byTag[t]; !ok {
						order = append(order, t)
					}
					byTag[t] += r.Duration()
				}
			}
			fmt.Fprintln(w, "TAG\tTIME")
			for _, t := range order {
				label := "(untagged)"
				if t != "" {
					label = "#" + t
				}
				fmt.Fprintf(w, "%s\t%s\n", label, byTag[t].Round(time.Second))
			}
			if len(order) == 0 {
				fmt.Fprintln(w, "(none)\t0s")
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days to include")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Only timers carrying this tag")
	return cmd
}
