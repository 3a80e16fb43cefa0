package cmd

import (
	"time"

	"github.com/spf13/cobra"

	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/health"
)

func newHealthCmd() *cobra.Command {
	var timeout time.Duration

	c := &cobra.Command{
		Use:     "health",
		Aliases: []string{"doctor"},
		Short:   "Check the API, the session store and the session",
		Long: `Check the API, the session store and the session.

Exits non-zero when a check is unhealthy. A missing session only degrades
the report.`,
		Args: cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			a.session.Wait()

			m := health.NewManager().WithTimeout(timeout)
			m.AddChecker(health.NewAPIChecker(a.resources))
			m.AddChecker(health.NewStoreChecker(a.store))
			m.AddChecker(health.NewSessionChecker(a.session))

			checks := m.Check(cmd.Context())
			report := healthReport{Status: m.OverallStatus(checks), Checks: checks}
			if err := a.out.Format(report); err != nil {
				return err
			}
			if report.Status == health.StatusUnhealthy {
				return nerrors.New(nerrors.ErrCodeAPIRequest, "health check failed")
			}
			return nil
		}),
	}

	c.Flags().DurationVar(&timeout, "timeout", health.DefaultCheckTimeout, "timeout for each check")
	return c
}
