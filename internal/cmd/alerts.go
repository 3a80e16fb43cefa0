package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/tui"
	"github.com/nauru-yvy/nauru/internal/ux"
)

func newAlertsCmd() *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Follow territorial alerts",
		Long: `Follow territorial alerts.

Alerts come from the server feed, or with --local from the feed kept in the
session store, which collects an alert for every occurrence you report.`,
	}

	alertsCmd.AddCommand(
		newAlertsListCmd(),
		newAlertsCreateCmd(),
		newAlertsResolveCmd(),
		newAlertsRemoveCmd(),
		newAlertsWatchCmd(),
	)
	return alertsCmd
}

type alertFilter struct {
	severity string
	status   string
}

func (f *alertFilter) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.severity, "severity", "", "only show this severity (low, medium, high)")
	cmd.Flags().StringVar(&f.status, "status", "", "only show this status (active, investigating, resolved)")
}

func (f alertFilter) apply(list []resources.Alert) ([]resources.Alert, error) {
	sev, err := severityFlag(f.severity)
	if err != nil {
		return nil, err
	}
	out := make([]resources.Alert, 0, len(list))
	for _, a := range list {
		if sev != "" && a.Severity != sev {
			continue
		}
		if f.status != "" && a.Status != f.status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func newAlertsListCmd() *cobra.Command {
	var (
		filter alertFilter
		local  bool
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			var list []resources.Alert
			if local {
				list = a.alerts.List()
			} else {
				remote, err := a.resources.ListAlerts(cmd.Context())
				if err != nil {
					return a.apiError("list alerts", err)
				}
				list = remote
			}

			list, err := filter.apply(list)
			if err != nil {
				return err
			}
			return a.out.Format(alertList(list))
		}),
	}

	filter.register(c)
	c.Flags().BoolVar(&local, "local", false, "list the local alert feed instead of the server's")
	return c
}

func newAlertsCreateCmd() *cobra.Command {
	var (
		alert    resources.Alert
		severity string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Publish an alert",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			var err error
			if alert.Type, err = stringInput(alert.Type, "type", ux.Prompt{Message: "Alert title", Required: true}); err != nil {
				return err
			}
			if alert.Severity, err = severityFlag(severity); err != nil {
				return err
			}
			created, err := a.resources.CreateAlert(cmd.Context(), alert)
			if err != nil {
				return a.apiError("create alert", err)
			}
			return a.out.Format(alertList{*created})
		}),
	}

	f := c.Flags()
	f.StringVar(&alert.Type, "type", "", "alert title")
	f.StringVar(&alert.Location, "location", "", "where it applies")
	f.StringVar(&alert.Description, "description", "", "details")
	f.StringVar(&severity, "severity", "", "low, medium or high")
	return c
}

func newAlertsResolveCmd() *cobra.Command {
	var status string

	c := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Change the status of a local alert",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, a *app, args []string) error {
			switch status {
			case resources.StatusActive, resources.StatusInvestigating, resources.StatusResolved:
			default:
				return nerrors.New(nerrors.ErrCodeInputInvalid, fmt.Sprintf("unknown status %q", status)).
					WithSuggestion("Use active, investigating or resolved")
			}

			found, err := a.alerts.Update(resources.ID(args[0]), resources.AlertUpdate{Status: &status})
			if err != nil {
				return storeError(a.cfg.Storage.Path, err)
			}
			if !found {
				return alertNotFound(args[0])
			}
			return a.out.Format(fmt.Sprintf("Alert %s marked %s.", args[0], status))
		}),
	}

	c.Flags().StringVar(&status, "status", resources.StatusResolved, "new status")
	return c
}

func newAlertsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an alert from the local feed",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, a *app, args []string) error {
			found, err := a.alerts.Remove(resources.ID(args[0]))
			if err != nil {
				return storeError(a.cfg.Storage.Path, err)
			}
			if !found {
				return alertNotFound(args[0])
			}
			return a.out.Format(fmt.Sprintf("Alert %s removed.", args[0]))
		}),
	}
}

func alertNotFound(id string) error {
	return nerrors.New(nerrors.ErrCodeInputInvalid, fmt.Sprintf("no local alert with id %s", id)).
		WithSuggestion("List ids with 'nauru alerts list --local -o json'")
}

func newAlertsWatchCmd() *cobra.Command {
	var (
		filter   alertFilter
		interval time.Duration
		count    int
		dash     bool
	)

	c := &cobra.Command{
		Use:   "watch",
		Short: "Poll the server feed and print new alerts",
		Long: `Poll the server alert feed and print alerts as they appear.

With --metrics-addr the process also serves /metrics and /health/* while it
runs.`,
		Args: cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			if interval <= 0 {
				return nerrors.New(nerrors.ErrCodeInputInvalid, "--interval must be positive")
			}
			if _, err := filter.apply(nil); err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if a.cfg.Metrics.Addr != "" {
				stop, err := startStatusServer(ctx, a, a.cfg.Metrics.Addr)
				if err != nil {
					return err
				}
				defer stop()
			}

			if dash {
				return runDashboard(ctx, a, filter, interval)
			}
			w := &alertWatcher{app: a, filter: filter, seen: make(map[resources.ID]bool)}
			return w.run(ctx, interval, count)
		}),
	}

	filter.register(c)
	c.Flags().DurationVar(&interval, "interval", 30*time.Second, "polling interval")
	c.Flags().IntVar(&count, "count", 0, "stop after this many polls (0 polls until interrupted)")
	c.Flags().BoolVar(&dash, "tui", false, "show a full-screen dashboard instead of printing")
	c.MarkFlagsMutuallyExclusive("tui", "count")
	return c
}

func runDashboard(ctx context.Context, a *app, filter alertFilter, interval time.Duration) error {
	if !ux.IsInteractive() {
		return nerrors.New(nerrors.ErrCodeInputInvalid, "--tui needs a terminal")
	}
	var user string
	if u, ok := a.session.CurrentUser(); ok {
		user = u.DisplayName()
	}
	return tui.Run(ctx, tui.Options{
		Fetch: func(ctx context.Context) ([]resources.Alert, error) {
			list, err := a.resources.ListAlerts(ctx)
			if err != nil {
				return nil, a.apiError("list alerts", err)
			}
			return filter.apply(list)
		},
		Interval: interval,
		Fatal:    func(err error) bool { return isCode(err, nerrors.ErrCodeAuthSessionExpired) },
		User:     user,
	})
}

type alertWatcher struct {
	app    *app
	filter alertFilter
	seen   map[resources.ID]bool
}

func (w *alertWatcher) run(ctx context.Context, interval time.Duration, count int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for polls := 1; ; polls++ {
		if err := w.poll(ctx); err != nil {
			return err
		}
		if count > 0 && polls >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll prints the alerts not seen before. Network failures are logged and
// retried on the next tick; an expired session ends the watch.
func (w *alertWatcher) poll(ctx context.Context) error {
	list, err := w.app.resources.ListAlerts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		cerr := w.app.apiError("list alerts", err)
		if isCode(cerr, nerrors.ErrCodeAuthSessionExpired) {
			return cerr
		}
		w.app.logger.Warn("alert poll failed", "error", err)
		return nil
	}

	list, err = w.filter.apply(list)
	if err != nil {
		return err
	}

	fresh := make(alertList, 0, len(list))
	for _, al := range list {
		key := al.ID
		if key == "" {
			key = resources.ID(al.Type + "|" + al.Location + "|" + al.CreatedAt)
		}
		if w.seen[key] {
			continue
		}
		w.seen[key] = true
		fresh = append(fresh, al)
	}
	if len(fresh) == 0 {
		return nil
	}
	return w.app.out.Format(fresh)
}
