package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/storage"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

type captureFilterFlags struct {
	kind  string
	tag   string
	since string
	query string
	limit int
}

func (f *captureFilterFlags) register(cmd *cobra.Command, limit int) {
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "", "Only captures of this kind: note|task|timer")
	cmd.Flags().StringVarP(&f.tag, "tag", "t", "", "Only timers carrying this tag")
	cmd.Flags().StringVar(&f.since, "since", "", "Only captures started after this date (YYYY-MM-DD) or duration ago (e.g. 48h)")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Only captures whose content contains this text")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", limit, "Maximum number of captures (0 for all)")
}

func (f *captureFilterFlags) filter(now time.Time) (storage.Filter, error) {
	out := storage.Filter{Tag: f.tag, Query: f.query, Limit: f.limit}
	if f.kind != "" {
		k, err := trigger.ParseKind(f.kind)
		if err != nil {
			return out, err
		}
		out.Kind = &k
	}
	if f.since != "" {
		since, err := parseSince(f.since, now)
		if err != nil {
			return out, err
		}
		out.Since = since
	}
	return out, nil
}

// parseSince accepts a local date or a duration before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want YYYY-MM-DD or a duration", s)
	}
	return t, nil
}

func newCapturesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "captures",
		Aliases: []string{"capture", "c"},
		Short:   "Browse stored captures",
	}
	cmd.AddCommand(
		newCapturesListCmd(g),
		newCapturesShowCmd(g),
		newCapturesDeleteCmd(g),
		newCapturesExportCmd(g),
	)
	return cmd
}

func newCapturesListCmd(g *globalFlags) *cobra.Command {
	var (
		f      captureFilterFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captures, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.filter(time.Now())
			if err != nil {
				return err
			}
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.ListCaptures(filter)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			if len(recs) == 0 {
				fprintf(cmd, "No captures.\n")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tKIND\tDURATION\tCONTENT")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Started.Local().Format("2006-01-02 15:04"), r.Kind,
					recordDuration(r), oneLine(r.Content, 60))
			}
			return w.Flush()
		},
	}
	f.register(cmd, 20)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print captures as JSON")
	return cmd
}

func newCapturesShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one capture in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := store.GetCapture(args[0])
			if err != nil {
				return err
			}
			fprintf(cmd, "ID:       %s\n", r.ID)
			fprintf(cmd, "Kind:     %s\n", r.Kind)
			if r.TriggerID != "" {
				fprintf(cmd, "Trigger:  %s\n", r.TriggerID)
			}
			if r.App != "" {
				fprintf(cmd, "App:      %s\n", r.App)
			}
			fprintf(cmd, "Started:  %s\n", r.Started.Local().Format(time.DateTime))
			fprintf(cmd, "Finished: %s\n", r.Finished.Local().Format(time.DateTime))
			if r.Kind == trigger.KindTimer {
				fprintf(cmd, "Duration: %s\n", recordDuration(*r))
			}
			if len(r.Tags) > 0 {
				fprintf(cmd, "Tags:     #%s\n", strings.Join(r.Tags, " #"))
			}
			fprintf(cmd, "\n%s\n", r.Content)
			return nil
		},
	}
}

func newCapturesDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete captures",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, id := range args {
				if err := store.DeleteCapture(id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fprintf(cmd, "Deleted %s\n", id)
			}
			return nil
		},
	}
}

func newCapturesExportCmd(g *globalFlags) *cobra.Command {
	var (
		f      captureFilterFlags
		asYAML bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export captures as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.filter(time.Now())
			if err != nil {
				return err
			}
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.ListCaptures(filter)
			if err != nil {
				return err
			}
			if recs == nil {
				recs = []capture.Record{}
			}
			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(recs); err != nil {
					return err
				}
				return enc.Close()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		},
	}
	f.register(cmd, 0)
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Export as YAML instead of JSON")
	return cmd
}

func recordDuration(r capture.Record) string {
	if r.Kind != trigger.KindTimer {
		return "-"
	}
	return r.Duration().Round(time.Second).String()
}

// oneLine flattens s and truncates it to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
