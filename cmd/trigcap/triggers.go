package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aayushbajaj/trigcap/internal/config"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

func newTriggersCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "triggers",
		Aliases: []string{"trigger"},
		Short:   "List and edit configured triggers",
	}
	cmd.AddCommand(
		newTriggersListCmd(g),
		newTriggersAddCmd(g),
		newTriggersUpdateCmd(g),
		newTriggersRemoveCmd(g),
		newTriggersEnableCmd(g, true),
		newTriggersEnableCmd(g, false),
		newTriggersValidateCmd(g),
	)
	return cmd
}

func newTriggersListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show configured triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadFile(g.configPath())
			if err != nil {
				return err
			}
			writeTriggers(cmd, cfg.Triggers)
			return nil
		},
	}
}

func writeTriggers(cmd *cobra.Command, defs []trigger.Definition) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATTERN\tKIND\tENABLED")
	for _, d := range defs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", d.ID, d.Pattern, d.Kind, d.Enabled)
	}
	w.Flush()
}

func newTriggersAddCmd(g *globalFlags) *cobra.Command {
	var (
		id       string
		kind     string
		disabled bool
	)
	cmd := &cobra.Command{
		Use:   "add <pattern>",
		Short: "Add a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := trigger.ParseKind(kind)
			if err != nil {
				return err
			}
			def := trigger.Definition{ID: id, Pattern: args[0], Kind: k, Enabled: !disabled}
			return editConfig(g, func(cfg *config.Config) error {
				added, err := cfg.AddTrigger(def)
				if err != nil {
					return err
				}
				fprintf(cmd, "Added %s trigger %q (%s)\n", added.Kind, added.Pattern, added.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Trigger ID (generated when empty)")
	cmd.Flags().StringVarP(&kind, "kind", "k", "note", "Trigger kind: note|task|timer")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Add the trigger disabled")
	return cmd
}

func newTriggersUpdateCmd(g *globalFlags) *cobra.Command {
	var (
		pattern string
		kind    string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a trigger's pattern or kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("pattern") && !cmd.Flags().Changed("kind") {
				return fmt.Errorf("nothing to update: pass --pattern or --kind")
			}
			var k trigger.Kind
			if cmd.Flags().Changed("kind") {
				var err error
				if k, err = trigger.ParseKind(kind); err != nil {
					return err
				}
			}
			return editConfig(g, func(cfg *config.Config) error {
				err := cfg.UpdateTrigger(args[0], func(d *trigger.Definition) {
					if cmd.Flags().Changed("pattern") {
						d.Pattern = pattern
					}
					if cmd.Flags().Changed("kind") {
						d.Kind = k
					}
				})
				if err != nil {
					return err
				}
				fprintf(cmd, "Updated trigger %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "New pattern")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "New kind: note|task|timer")
	return cmd
}

func newTriggersRemoveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a trigger",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfig(g, func(cfg *config.Config) error {
				if err := cfg.RemoveTrigger(args[0]); err != nil {
					return err
				}
				fprintf(cmd, "Removed trigger %s\n", args[0])
				return nil
			})
		},
	}
}

func newTriggersEnableCmd(g *globalFlags, enabled bool) *cobra.Command {
	use, short, verb := "enable <id>", "Enable a trigger", "Enabled"
	if !enabled {
		use, short, verb = "disable <id>", "Disable a trigger", "Disabled"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfig(g, func(cfg *config.Config) error {
				if err := cfg.SetTriggerEnabled(args[0], enabled); err != nil {
					return err
				}
				fprintf(cmd, "%s trigger %s\n", verb, args[0])
				return nil
			})
		},
	}
}

func newTriggersValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file without starting the engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadFile(g.configPath())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fprintf(cmd, "%s: %d triggers, %d enabled\n", g.configPath(), len(cfg.Triggers), len(trigger.Enabled(cfg.Triggers)))
			return nil
		},
	}
}

// editConfig reads the config file, applies fn and writes it back. Nothing
// is written when fn fails.
func editConfig(g *globalFlags, fn func(*config.Config) error) error {
	path := g.configPath()
	cfg, err := config.ReadFile(path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return config.Save(cfg, path)
}
