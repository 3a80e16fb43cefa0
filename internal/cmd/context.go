package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nauru-yvy/nauru/internal/config"
	"github.com/nauru-yvy/nauru/internal/ux"
)

// CommandContext holds the persistent flags of one invocation.
type CommandContext struct {
	ConfigPath  string
	APIURL      string
	LogLevel    string
	LogFormat   string
	Format      string
	NoColor     bool
	MetricsAddr string
}

// NewCommandContext extracts the persistent flags from cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()
	cc := &CommandContext{}

	for name, dst := range map[string]*string{
		"config":       &cc.ConfigPath,
		"api-url":      &cc.APIURL,
		"log-level":    &cc.LogLevel,
		"log-format":   &cc.LogFormat,
		"output":       &cc.Format,
		"metrics-addr": &cc.MetricsAddr,
	} {
		v, err := flags.GetString(name)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return nil, err
	}
	cc.NoColor = noColor

	switch cc.Format {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("invalid argument %q for --output (supported: text, json, yaml)", cc.Format)
	}
	return cc, nil
}

// Apply overrides cfg with the flags that were set.
func (cc *CommandContext) Apply(cfg *config.Config) {
	if cc.APIURL != "" {
		cfg.API.BaseURL = cc.APIURL
	}
	if cc.LogLevel != "" {
		cfg.Logging.Level = cc.LogLevel
	}
	if cc.LogFormat != "" {
		cfg.Logging.Format = cc.LogFormat
	}
	if cc.MetricsAddr != "" {
		cfg.Metrics.Addr = cc.MetricsAddr
	}
}

// Formatter returns the output formatter selected by --output.
func (cc *CommandContext) Formatter(w io.Writer) (ux.Formatter, error) {
	return ux.NewFormatter(cc.Format, &ux.FormatterOptions{Writer: w, NoColor: cc.NoColor})
}

// LoadConfig loads the config file named by --config and applies the flag
// overrides.
func (cc *CommandContext) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(cc.ConfigPath)
	if err != nil {
		return nil, configError(err)
	}
	cc.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}
