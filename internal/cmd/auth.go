package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/session"
	"github.com/nauru-yvy/nauru/internal/ux"
)

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, register and manage the local session",
		Long: `Manage the session stored in the encrypted local store.

Examples:
  # Sign in interactively
  nauru auth login

  # Sign in from a script
  echo "$PASSWORD" | nauru auth login --email ana@example.org --password-stdin

  # Show who is signed in
  nauru auth status -o json
`,
	}

	authCmd.AddCommand(
		newAuthLoginCmd(),
		newAuthRegisterCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
		newAuthVerifyCmd(),
		newAuthRefreshCmd(),
	)
	return authCmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)

	c := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			var err error
			if email, err = stringInput(email, "email", ux.Prompt{Message: "Email", Required: true}); err != nil {
				return err
			}
			password, err := secretInput(cmd.InOrStdin(), passwordStdin)
			if err != nil {
				return err
			}

			if err := a.resultError(a.session.SignIn(cmd.Context(), email, password), nerrors.ErrCodeAuthInvalidCredentials); err != nil {
				return err
			}
			return a.out.Format(newSessionView(a))
		}),
	}

	c.Flags().StringVarP(&email, "email", "e", "", "account email")
	c.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return c
}

func newAuthRegisterCmd() *cobra.Command {
	var (
		req           session.SignUpRequest
		age           int
		passwordStdin bool
	)

	c := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create an account and sign in with it.

Roles: ` + strings.Join(session.Roles(), ", "),
		Args: cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			var err error
			if req.Name, err = stringInput(req.Name, "name", ux.Prompt{Message: "Full name", Required: true}); err != nil {
				return err
			}
			if req.Email, err = stringInput(req.Email, "email", ux.Prompt{Message: "Email", Required: true}); err != nil {
				return err
			}
			if !cmd.Flags().Changed("role") && ux.ShouldPrompt() {
				options := make([]ux.Option, 0, len(session.Roles()))
				for _, r := range session.Roles() {
					options = append(options, ux.Option{Label: session.RoleLabel(r), Value: r})
				}
				if req.Role, err = ux.Select("Role", options, session.RoleCommunityMember); err != nil {
					return err
				}
			}
			if !session.IsRole(req.Role) {
				return nerrors.New(nerrors.ErrCodeInputInvalid, fmt.Sprintf("unknown role %q", req.Role)).
					WithSuggestion("Use one of: " + strings.Join(session.Roles(), ", "))
			}
			if cmd.Flags().Changed("age") {
				req.Age = &age
			}
			if req.Secret, err = secretInput(cmd.InOrStdin(), passwordStdin); err != nil {
				return err
			}

			if err := a.resultError(a.session.SignUp(cmd.Context(), req), nerrors.ErrCodeAuthRegistration); err != nil {
				return err
			}
			return a.out.Format(newSessionView(a))
		}),
	}

	f := c.Flags()
	f.StringVar(&req.Name, "name", "", "full name")
	f.StringVarP(&req.Email, "email", "e", "", "account email")
	f.StringVar(&req.Role, "role", session.RoleCommunityMember, "account role")
	f.IntVar(&age, "age", 0, "age in years")
	f.StringVar(&req.Bio, "bio", "", "short biography")
	f.StringVar(&req.SocialName, "social-name", "", "social name")
	f.StringVar(&req.IndigenousName, "indigenous-name", "", "indigenous name")
	f.StringVar(&req.Community, "community", "", "village or community")
	f.StringVar(&req.TerritoryLocation, "territory", "", "territory location")
	f.StringVar(&req.Phone, "phone", "", "phone number")
	f.StringVar(&req.MainActivity, "activity", "", "main activity in the community")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return c
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.resultError(a.session.SignOut(cmd.Context()), nerrors.ErrCodeAPIRequest); err != nil {
				return err
			}
			return a.out.Format(newSessionView(a))
		}),
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			// Let the background verification settle so the state printed is final.
			a.session.Wait()
			return a.out.Format(newSessionView(a))
		}),
	}
}

func newAuthVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the stored token with the server",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			a.session.Wait()
			if err := a.resultError(a.session.Verify(cmd.Context()), nerrors.ErrCodeAPIRequest); err != nil {
				return err
			}
			return a.out.Format(newSessionView(a))
		}),
	}
}

func newAuthRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored token for a fresh one",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			a.session.Wait()
			if err := a.resultError(a.session.Refresh(cmd.Context()), nerrors.ErrCodeAPIRequest); err != nil {
				return err
			}
			return a.out.Format(newSessionView(a))
		}),
	}
}

// stringInput returns value, prompting for it when empty and a terminal is
// attached. flag names the flag reported when the value stays empty.
func stringInput(value, flag string, p ux.Prompt) (string, error) {
	value = strings.TrimSpace(value)
	if value != "" {
		return value, nil
	}
	if ux.ShouldPrompt() {
		v, err := ux.PromptString(p)
		if err != nil {
			return "", err
		}
		value = v
	}
	if value == "" {
		return "", nerrors.NewMissingInputError(flag)
	}
	return value, nil
}

// secretInput reads the password from the first line of in when fromStdin
// is set, or prompts for it.
func secretInput(in io.Reader, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read password: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return "", nerrors.NewMissingInputError("password-stdin")
		}
		return line, nil
	}
	if ux.ShouldPrompt() {
		return ux.PromptSecret("Password")
	}
	return "", nerrors.New(nerrors.ErrCodeInputMissing, "password is required").
		WithSuggestion("Pass --password-stdin and pipe the password in")
}
