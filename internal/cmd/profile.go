package cmd

import (
	"github.com/spf13/cobra"

	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/session"
)

func newProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the signed-in user's profile",
	}

	profileCmd.AddCommand(newProfileShowCmd(), newProfileUpdateCmd())
	return profileCmd
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored profile",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			u, err := a.requireSession()
			if err != nil {
				return err
			}
			return a.out.Format(profileView{u})
		}),
	}
}

func newProfileUpdateCmd() *cobra.Command {
	var (
		age    int
		values = map[string]*string{}
	)

	c := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		Long: `Change profile fields. Only the flags you pass are sent.

Examples:
  nauru profile update --community "Aldeia Nova" --phone "+55 92 99999-0000"
  nauru profile update --bio ""`,
		Args: cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			upd := profileUpdateFromFlags(cmd, values, age)
			if upd.IsEmpty() {
				return nerrors.New(nerrors.ErrCodeInputMissing, "nothing to update").
					WithSuggestion("Pass at least one field flag, see 'nauru profile update --help'")
			}

			if err := a.resultError(a.session.UpdateProfile(cmd.Context(), upd), nerrors.ErrCodeAPIValidation); err != nil {
				return err
			}
			u, err := a.requireSession()
			if err != nil {
				return err
			}
			return a.out.Format(profileView{u})
		}),
	}

	f := c.Flags()
	for _, def := range profileFlags {
		values[def.name] = f.String(def.name, "", def.usage)
	}
	f.IntVar(&age, "age", 0, "age in years")
	return c
}

var profileFlags = []struct {
	name  string
	usage string
	field func(*session.ProfileUpdate) **string
}{
	{"name", "full name", func(p *session.ProfileUpdate) **string { return &p.Name }},
	{"bio", "short biography", func(p *session.ProfileUpdate) **string { return &p.Bio }},
	{"social-name", "social name", func(p *session.ProfileUpdate) **string { return &p.SocialName }},
	{"indigenous-name", "indigenous name", func(p *session.ProfileUpdate) **string { return &p.IndigenousName }},
	{"community", "village or community", func(p *session.ProfileUpdate) **string { return &p.Community }},
	{"territory", "territory location", func(p *session.ProfileUpdate) **string { return &p.TerritoryLocation }},
	{"phone", "phone number", func(p *session.ProfileUpdate) **string { return &p.Phone }},
	{"activity", "main activity in the community", func(p *session.ProfileUpdate) **string { return &p.MainActivity }},
}

// profileUpdateFromFlags sets the fields whose flags were passed, so an
// explicit empty value clears a field.
func profileUpdateFromFlags(cmd *cobra.Command, values map[string]*string, age int) session.ProfileUpdate {
	var upd session.ProfileUpdate
	for _, def := range profileFlags {
		if cmd.Flags().Changed(def.name) {
			v := *values[def.name]
			*def.field(&upd) = &v
		}
	}
	if cmd.Flags().Changed("age") {
		upd.Age = &age
	}
	return upd
}
