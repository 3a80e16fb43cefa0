package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nauru-yvy/nauru/internal/ux"
	"github.com/nauru-yvy/nauru/internal/version"
)

type versionView struct {
	version.Info `yaml:",inline"`
	verbose      bool
}

func (v versionView) RenderText(w io.Writer, s ux.Styles) error {
	if !v.verbose {
		_, err := fmt.Fprintf(w, "nauru %s\n", v.Version)
		return err
	}
	fmt.Fprintln(w, s.Border.Render(s.Title.Render("nauru")+"\n"+s.Muted.Render("territorial monitoring client")))
	_, err := fmt.Fprintln(w, v.Info.String())
	return err
}

func newVersionCmd() *cobra.Command {
	var verbose bool

	c := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			out, err := cc.Formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return out.Format(versionView{Info: version.GetInfo(), verbose: verbose})
		},
	}

	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed version information")
	return c
}
