package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nauru-yvy/nauru/internal/config"
	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/ux"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or create the configuration file",
		Long: `Manage the configuration stored at ~/.nauru/config.yaml

Every key can also be set through the environment as NAURU_<SECTION>_<KEY>,
e.g. NAURU_API_BASE_URL or NAURU_SESSION_DIALECT. NAURU_API_URL and
NAURU_PASSPHRASE are accepted as short forms.

Examples:
  # Write a config file with the defaults
  nauru config init

  # Show the effective configuration
  nauru config show -o yaml

  # Show the configuration file path
  nauru config path
`,
	}

	configCmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigPathCmd())
	return configCmd
}

func configPath(cc *CommandContext) string {
	if cc.ConfigPath != "" {
		return cc.ConfigPath
	}
	return config.DefaultPath()
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	c := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the effective values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path := configPath(cc)

			if _, err := os.Stat(path); err == nil && !force {
				overwrite := false
				if ux.ShouldPrompt() {
					if overwrite, err = ux.Confirm(fmt.Sprintf("%s exists. Overwrite?", path), false); err != nil {
						return err
					}
				}
				if !overwrite {
					return nerrors.New(nerrors.ErrCodeConfigWrite, path+" already exists").
						WithSuggestion("Pass --force to overwrite it")
				}
			}

			cfg, err := cc.LoadConfig()
			if err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return nerrors.Wrap(nerrors.ErrCodeConfigWrite, "cannot write "+path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	c.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return c
}

// configView hides the passphrase, reporting only whether one is set.
type configView struct {
	*config.Config `yaml:",inline"`
	Passphrase     bool `json:"passphrase_set" yaml:"passphrase_set"`
}

func (v configView) RenderText(w io.Writer, _ ux.Styles) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := cc.LoadConfig()
			if err != nil {
				return err
			}
			out, err := cc.Formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			view := configView{Config: cfg, Passphrase: cfg.Storage.Passphrase != ""}
			return out.Format(view)
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), configPath(cc))
			return err
		},
	}
}
