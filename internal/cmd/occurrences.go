package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/ux"
)

func newOccurrencesCmd() *cobra.Command {
	occCmd := &cobra.Command{
		Use:     "occurrences",
		Aliases: []string{"occ"},
		Short:   "List and report environmental occurrences",
	}

	occCmd.AddCommand(newOccurrencesListCmd(), newOccurrencesCreateCmd(), newOccurrencesStatsCmd())
	return occCmd
}

func newOccurrencesListCmd() *cobra.Command {
	var severity string

	c := &cobra.Command{
		Use:   "list",
		Short: "List occurrences",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			sev, err := severityFlag(severity)
			if err != nil {
				return err
			}
			list, err := a.resources.ListOccurrences(cmd.Context())
			if err != nil {
				return a.apiError("list occurrences", err)
			}
			if sev != "" {
				filtered := list[:0]
				for _, o := range list {
					if o.Severity == sev {
						filtered = append(filtered, o)
					}
				}
				list = filtered
			}
			return a.out.Format(occurrenceList(list))
		}),
	}

	c.Flags().StringVar(&severity, "severity", "", "only show this severity (low, medium, high)")
	return c
}

func newOccurrencesCreateCmd() *cobra.Command {
	var (
		o        resources.Occurrence
		severity string
		lat, lon float64
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Report an occurrence and raise a local alert for it",
		Long: `Report an occurrence to the server. A matching alert is added to the
local alert feed (see 'nauru alerts list --local').

Common types: deforestation, illegal_mining, poaching, pollution, fire.`,
		Args: cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			var err error
			if o.Type, err = stringInput(o.Type, "type", ux.Prompt{Message: "Type", Placeholder: "deforestation", Required: true}); err != nil {
				return err
			}
			if o.Location, err = stringInput(o.Location, "location", ux.Prompt{Message: "Location", Required: true}); err != nil {
				return err
			}
			if o.Description, err = stringInput(o.Description, "description", ux.Prompt{Message: "Description", Required: true}); err != nil {
				return err
			}
			if o.Severity, err = severityFlag(severity); err != nil {
				return err
			}
			if cmd.Flags().Changed("lat") {
				o.Latitude = &lat
			}
			if cmd.Flags().Changed("lon") {
				o.Longitude = &lon
			}

			created, alert, err := a.resources.ReportOccurrence(cmd.Context(), a.alerts, o)
			if created == nil {
				return a.apiError("report occurrence", err)
			}
			if err != nil {
				a.logger.Warn("occurrence reported but the local alert was not saved", "error", err)
			}
			return a.out.Format(reportView{Occurrence: *created, Alert: alert})
		}),
	}

	f := c.Flags()
	f.StringVar(&o.Type, "type", "", "occurrence type")
	f.StringVar(&o.Location, "location", "", "where it happened")
	f.StringVar(&o.Description, "description", "", "what was observed")
	f.StringVar(&severity, "severity", "", "low, medium or high (default medium)")
	f.Float64Var(&lat, "lat", 0, "latitude")
	f.Float64Var(&lon, "lon", 0, "longitude")
	return c
}

func newOccurrencesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show occurrence statistics",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			stats, err := a.resources.OccurrenceStats(cmd.Context())
			if err != nil {
				return a.apiError("occurrence stats", err)
			}
			return a.out.Format(statsView(stats))
		}),
	}
}

// severityFlag parses an optional severity flag value.
func severityFlag(v string) (resources.Severity, error) {
	if v == "" {
		return "", nil
	}
	sev, ok := resources.ParseSeverity(v)
	if !ok {
		return "", nerrors.New(nerrors.ErrCodeInputInvalid, fmt.Sprintf("unknown severity %q", v)).
			WithSuggestion("Use low, medium or high")
	}
	return sev, nil
}
